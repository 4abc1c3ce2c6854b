package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFakeClockAfterFunc(t *testing.T) {
	c := NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	done := make(chan struct{})
	var fired atomic.Int32
	c.AfterFunc(time.Second, func() {
		fired.Add(1)
		close(done)
	})
	stopped := c.AfterFunc(time.Second, func() { fired.Add(100) })
	if !stopped.Stop() {
		t.Fatalf("expected stop to succeed on armed timer")
	}

	c.Advance(500 * time.Millisecond)
	if c.PendingTimers() != 1 {
		t.Fatalf("expected 1 pending timer, got %d", c.PendingTimers())
	}

	c.Advance(500 * time.Millisecond)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timer did not fire")
	}
	if got := fired.Load(); got != 1 {
		t.Fatalf("expected only the live timer to fire, got %d", got)
	}
	if c.PendingTimers() != 0 {
		t.Fatalf("expected no pending timers")
	}
}
