package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/rfacto/internal/config"
)

func TestNilLockerGrantsLock(t *testing.T) {
	var l *Locker
	called := false
	err := l.WithLock(context.Background(), "rfacto:backup:import", time.Minute, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("expected callback to run")
	}
}

func TestUploadLimiterDisabledWithoutRedis(t *testing.T) {
	l := NewUploadLimiter(config.Config{UploadRatePerSecond: 1, UploadBurst: 5}, nil)
	if l.Enabled() {
		t.Fatalf("expected limiter to be disabled")
	}
	res, err := l.Allow(context.Background(), "someone@rfacto.test")
	if err != nil || !res.Allowed {
		t.Fatalf("expected allow, got %+v err=%v", res, err)
	}
}

func TestParseTokens(t *testing.T) {
	if got := parseTokens("2.5"); got != 2.5 {
		t.Fatalf("expected 2.5, got %v", got)
	}
	if got := parseTokens(int64(3)); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
	if got := bucketTTL(0.5, 1); got != 4*time.Second {
		t.Fatalf("expected 4s ttl, got %v", got)
	}
}
