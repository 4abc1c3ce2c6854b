package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	"github.com/smallbiznis/rfacto/internal/clock"
	obsmetrics "github.com/smallbiznis/rfacto/internal/observability/metrics"
	"github.com/smallbiznis/rfacto/pkg/optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type savedCall struct {
	id    int64
	patch claimdomain.Patch
}

type fakeSaver struct {
	mu      sync.Mutex
	calls   []savedCall
	fail    map[int64]error
	gate    chan struct{}
	started chan int64
}

func newFakeSaver() *fakeSaver {
	return &fakeSaver{fail: map[int64]error{}, started: make(chan int64, 16)}
}

func (f *fakeSaver) SaveClaim(ctx context.Context, id int64, patch claimdomain.Patch) error {
	f.mu.Lock()
	f.calls = append(f.calls, savedCall{id: id, patch: patch})
	gate := f.gate
	err := f.fail[id]
	f.mu.Unlock()

	f.started <- id
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeSaver) snapshot() []savedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]savedCall(nil), f.calls...)
}

func description(text string) Builder {
	return func(context.Context) (claimdomain.Patch, error) {
		return claimdomain.Patch{Description: optional.Set(text)}, nil
	}
}

func setupScheduler(t *testing.T, saver *fakeSaver, hooks Hooks) (*Scheduler, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	s := New(saver, clk, zap.NewNop(), Config{Debounce: 600 * time.Millisecond, RequestTimeout: time.Second, MaxConcurrent: 4}, hooks).
		WithMetrics(obsmetrics.NewAutosaveMetrics(prometheus.NewRegistry(), obsmetrics.Config{}))
	t.Cleanup(s.Close)
	return s, clk
}

func waitStarted(t *testing.T, saver *fakeSaver) int64 {
	t.Helper()
	select {
	case id := <-saver.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for save")
		return 0
	}
}

func waitState(t *testing.T, s *Scheduler, id int64, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Status(id).State == want }, 2*time.Second, 5*time.Millisecond)
}

func TestRapidEditsCoalesceIntoOneSave(t *testing.T) {
	saver := newFakeSaver()
	s, clk := setupScheduler(t, saver, Hooks{})

	invoked := make([]string, 0)
	var mu sync.Mutex
	builder := func(text string) Builder {
		return func(ctx context.Context) (claimdomain.Patch, error) {
			mu.Lock()
			invoked = append(invoked, text)
			mu.Unlock()
			return description(text)(ctx)
		}
	}

	s.Schedule(1, builder("a"))
	clk.Advance(200 * time.Millisecond)
	s.Schedule(1, builder("ab"))
	clk.Advance(200 * time.Millisecond)
	s.Schedule(1, builder("abc"))
	assert.Equal(t, Pending, s.Status(1).State)
	assert.Equal(t, 1, clk.PendingTimers())

	clk.Advance(599 * time.Millisecond)
	assert.Empty(t, saver.snapshot())

	clk.Advance(time.Millisecond)
	waitStarted(t, saver)
	waitState(t, s, 1, Saved)

	calls := saver.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "abc", calls[0].patch.Description.Or(""))
	mu.Lock()
	assert.Equal(t, []string{"abc"}, invoked)
	mu.Unlock()
}

func TestEditDuringSaveIsSentAfterInflightCompletes(t *testing.T) {
	saver := newFakeSaver()
	saver.gate = make(chan struct{})
	s, clk := setupScheduler(t, saver, Hooks{})

	s.Schedule(7, description("first"))
	clk.Advance(600 * time.Millisecond)
	waitStarted(t, saver)
	assert.Equal(t, Saving, s.Status(7).State)

	s.Schedule(7, description("second"))
	clk.Advance(600 * time.Millisecond)

	// the second timer must not put a request on the wire yet
	select {
	case <-saver.started:
		t.Fatalf("second save started while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	require.Len(t, saver.snapshot(), 1)

	close(saver.gate)
	waitStarted(t, saver)
	waitState(t, s, 7, Saved)

	calls := saver.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].patch.Description.Or(""))
	assert.Equal(t, "second", calls[1].patch.Description.Or(""))
}

func TestFlushAllDrainsEveryPendingRecord(t *testing.T) {
	saver := newFakeSaver()
	saver.fail[3] = errors.New("http 500")
	var savedMu sync.Mutex
	saved := map[int64]bool{}
	s, clk := setupScheduler(t, saver, Hooks{
		OnSaved: func(id int64, _ claimdomain.Patch) {
			savedMu.Lock()
			saved[id] = true
			savedMu.Unlock()
		},
	})

	for _, id := range []int64{1, 2, 3} {
		s.Schedule(id, description("x"))
	}
	assert.True(t, s.HasUnsaved())

	err := s.FlushAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, saver.fail[3])

	assert.Equal(t, Saved, s.Status(1).State)
	assert.Equal(t, Saved, s.Status(2).State)
	assert.Equal(t, Error, s.Status(3).State)
	assert.Equal(t, []int64{3}, s.Unsaved())
	assert.Len(t, saver.snapshot(), 3)
	savedMu.Lock()
	assert.Equal(t, map[int64]bool{1: true, 2: true}, saved)
	savedMu.Unlock()

	// the stopped debounce timers must not send again
	clk.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, saver.snapshot(), 3)
}

func TestFlushAllWithNothingPendingIsNoop(t *testing.T) {
	saver := newFakeSaver()
	s, _ := setupScheduler(t, saver, Hooks{})

	require.NoError(t, s.FlushAll(context.Background()))
	require.NoError(t, s.FlushAll(context.Background()))
	assert.Empty(t, saver.snapshot())
}

func TestErrorIsKeptUntilNextSuccessfulSave(t *testing.T) {
	saver := newFakeSaver()
	saver.fail[4] = errors.New("timeout")
	s, clk := setupScheduler(t, saver, Hooks{})

	s.Schedule(4, description("a"))
	require.Error(t, s.Flush(context.Background(), 4))
	st := s.Status(4)
	assert.Equal(t, Error, st.State)
	require.Error(t, st.Err)

	// no retry happens on its own
	clk.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, saver.snapshot(), 1)
	assert.True(t, s.HasUnsaved())

	// an explicit flush sends the failed patch again
	require.Error(t, s.Flush(context.Background(), 4))
	calls := saver.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[1].patch.Description.Or(""))
	assert.Equal(t, Error, s.Status(4).State)

	saver.mu.Lock()
	delete(saver.fail, 4)
	saver.mu.Unlock()
	s.Schedule(4, description("b"))
	assert.Equal(t, Pending, s.Status(4).State)
	assert.Error(t, s.Status(4).Err)

	require.NoError(t, s.Flush(context.Background(), 4))
	st = s.Status(4)
	assert.Equal(t, Saved, st.State)
	assert.NoError(t, st.Err)
	assert.False(t, s.HasUnsaved())

	// once saved, a flush has nothing to resend
	require.NoError(t, s.Flush(context.Background(), 4))
	assert.Len(t, saver.snapshot(), 3)
}

func TestFlushAllResendsFailedSave(t *testing.T) {
	saver := newFakeSaver()
	saver.fail[8] = errors.New("http 502")
	s, _ := setupScheduler(t, saver, Hooks{})

	s.Schedule(8, description("x"))
	require.Error(t, s.FlushAll(context.Background()))
	assert.Equal(t, Error, s.Status(8).State)

	saver.mu.Lock()
	delete(saver.fail, 8)
	saver.mu.Unlock()

	require.NoError(t, s.FlushAll(context.Background()))
	assert.Equal(t, Saved, s.Status(8).State)
	assert.False(t, s.HasUnsaved())
	assert.Len(t, saver.snapshot(), 2)
}

func TestEmptyPatchSkipsRequest(t *testing.T) {
	saver := newFakeSaver()
	s, _ := setupScheduler(t, saver, Hooks{})

	s.Schedule(5, func(context.Context) (claimdomain.Patch, error) { return claimdomain.Patch{}, nil })
	require.NoError(t, s.Flush(context.Background(), 5))
	assert.Empty(t, saver.snapshot())
	assert.Equal(t, Idle, s.Status(5).State)
}

func TestBuilderErrorEndsInError(t *testing.T) {
	saver := newFakeSaver()
	var failed []int64
	s, _ := setupScheduler(t, saver, Hooks{OnError: func(id int64, _ error) { failed = append(failed, id) }})

	s.Schedule(6, func(context.Context) (claimdomain.Patch, error) { return claimdomain.Patch{}, claimdomain.ErrInvalidType })
	err := s.Flush(context.Background(), 6)
	require.ErrorIs(t, err, claimdomain.ErrInvalidType)
	assert.Equal(t, Error, s.Status(6).State)
	assert.Equal(t, []int64{6}, failed)
	assert.Empty(t, saver.snapshot())
}

func TestDifferentRecordsSaveIndependently(t *testing.T) {
	saver := newFakeSaver()
	saver.gate = make(chan struct{})
	s, clk := setupScheduler(t, saver, Hooks{})

	s.Schedule(1, description("one"))
	s.Schedule(2, description("two"))
	clk.Advance(600 * time.Millisecond)

	got := map[int64]bool{waitStarted(t, saver): true, waitStarted(t, saver): true}
	assert.Equal(t, map[int64]bool{1: true, 2: true}, got)
	assert.Equal(t, Saving, s.Status(1).State)
	assert.Equal(t, Saving, s.Status(2).State)

	close(saver.gate)
	require.NoError(t, s.FlushAll(context.Background()))
	assert.Equal(t, Saved, s.Status(1).State)
	assert.Equal(t, Saved, s.Status(2).State)
}
