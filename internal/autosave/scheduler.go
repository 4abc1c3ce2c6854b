// Package autosave coalesces rapid edits to the same claim into one update.
//
// Each record moves Idle -> Pending when edited. The debounce timer (or an
// explicit Flush) captures the pending builder exactly once and sends the
// frozen patch, moving the record to Saving and then Saved or Error. An edit
// that arrives while a save is in flight starts a new Pending entry whose
// send waits for the in-flight request, so a record never has two updates
// on the wire at once. Failed saves are not retried on a timer: the failed
// builder is kept, the record stays in Error and still counts as unsaved, and
// the next Flush or FlushAll sends it again.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	"github.com/smallbiznis/rfacto/internal/clock"
	obsmetrics "github.com/smallbiznis/rfacto/internal/observability/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Builder produces the patch to send. It is called once per save, after it
// has been removed from the pending set. An empty patch skips the request.
type Builder func(ctx context.Context) (claimdomain.Patch, error)

// Saver persists one claim patch.
type Saver interface {
	SaveClaim(ctx context.Context, id int64, patch claimdomain.Patch) error
}

// Hooks observe save outcomes. Both run before the record leaves Saving.
type Hooks struct {
	OnSaved func(id int64, patch claimdomain.Patch)
	OnError func(id int64, err error)
}

type entry struct {
	state    State
	err      error
	build    Builder
	retry    Builder
	timer    clock.Timer
	gen      uint64
	inflight chan struct{}
}

func (e *entry) status() Status {
	switch {
	case e.inflight != nil:
		return Status{State: Saving, Err: e.err}
	case e.build != nil:
		return Status{State: Pending, Err: e.err}
	default:
		return Status{State: e.state, Err: e.err}
	}
}

func (e *entry) unsaved() bool {
	return e.build != nil || e.retry != nil || e.inflight != nil
}

type Scheduler struct {
	saver   Saver
	clock   clock.Clock
	log     *zap.Logger
	cfg     Config
	hooks   Hooks
	metrics *obsmetrics.AutosaveMetrics

	mu      sync.Mutex
	entries map[int64]*entry
	closed  bool
}

func New(saver Saver, clk clock.Clock, log *zap.Logger, cfg Config, hooks Hooks) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		saver:   saver,
		clock:   clk,
		log:     log.Named("autosave"),
		cfg:     cfg.withDefaults(),
		hooks:   hooks,
		metrics: obsmetrics.Autosave(),
		entries: make(map[int64]*entry),
	}
}

// WithMetrics replaces the process-wide autosave metrics.
func (s *Scheduler) WithMetrics(m *obsmetrics.AutosaveMetrics) *Scheduler {
	s.metrics = m
	return s
}

// Schedule queues build for id, replacing any builder still pending for it,
// and restarts the debounce window.
func (s *Scheduler) Schedule(id int64, build Builder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	e := s.entries[id]
	if e == nil {
		e = &entry{}
		s.entries[id] = e
	}
	e.build = build
	e.gen++
	gen := e.gen
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = s.clock.AfterFunc(s.cfg.Debounce, func() {
		_ = s.fire(context.Background(), id, gen, false)
	})
	s.updatePendingLocked()
}

// Flush sends the pending patch for id now and waits for any save of id
// already in flight. It returns the record's failure if it ends in Error.
func (s *Scheduler) Flush(ctx context.Context, id int64) error {
	if err := s.fire(ctx, id, 0, true); err != nil {
		return err
	}

	s.mu.Lock()
	e := s.entries[id]
	if e == nil {
		s.mu.Unlock()
		return nil
	}
	wait := e.inflight
	s.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.inflight == nil && e.state == Error {
		return e.err
	}
	return nil
}

// FlushAll flushes every pending or failed record and waits until none is
// saving. The returned error joins the per-record failures.
func (s *Scheduler) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.entries))
	for id, e := range s.entries {
		if e.unsaved() {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)

	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrent)
	for i, id := range ids {
		g.Go(func() error {
			errs[i] = s.Flush(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Status reports the autosave state of id. Unknown records are Idle.
func (s *Scheduler) Status(id int64) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[id]
	if e == nil {
		return Status{State: Idle}
	}
	return e.status()
}

// Unsaved lists records that are Pending or Saving, or whose last save
// failed and was not sent again yet.
func (s *Scheduler) Unsaved() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0)
	for id, e := range s.entries {
		if e.unsaved() {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func (s *Scheduler) HasUnsaved() bool {
	return len(s.Unsaved()) > 0
}

// Close stops debounce timers. Pending builders are kept so FlushAll can
// still send them; new edits are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
}

// fire moves id from Pending to Saving. A timer passes its generation so a
// stale timer is a no-op; force skips that check and also resends a failed
// builder when nothing newer is pending.
func (s *Scheduler) fire(ctx context.Context, id int64, gen uint64, force bool) error {
	s.mu.Lock()
	var e *entry
	for {
		e = s.entries[id]
		if e == nil || (!force && e.gen != gen) {
			s.mu.Unlock()
			return nil
		}
		if e.build == nil && (!force || e.retry == nil) {
			s.mu.Unlock()
			return nil
		}
		if e.inflight == nil {
			break
		}
		wait := e.inflight
		s.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}

	build := e.build
	if build == nil {
		build = e.retry
	}
	e.build = nil
	e.retry = nil
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	done := make(chan struct{})
	e.inflight = done
	s.updatePendingLocked()
	s.mu.Unlock()

	return s.save(ctx, id, e, build, done)
}

func (s *Scheduler) save(ctx context.Context, id int64, e *entry, build Builder, done chan struct{}) error {
	start := s.clock.Now()
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestTimeout)
	defer cancel()

	patch, err := build(reqCtx)
	if err != nil {
		err = fmt.Errorf("build patch for claim %d: %w", id, err)
	}
	sent := err == nil && !patch.IsEmpty()
	if sent {
		if saveErr := s.saver.SaveClaim(reqCtx, id, patch); saveErr != nil {
			err = fmt.Errorf("save claim %d: %w", id, saveErr)
		}
	}
	elapsed := s.clock.Now().Sub(start)

	switch {
	case err != nil:
		s.log.Warn("autosave failed",
			zap.Int64("claim_id", id),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		s.metrics.ObserveSave(obsmetrics.AutosaveOutcomeError, elapsed)
		if s.hooks.OnError != nil {
			s.hooks.OnError(id, err)
		}
	case sent:
		s.log.Debug("autosave saved",
			zap.Int64("claim_id", id),
			zap.Strings("fields", patch.Fields()),
			zap.Duration("elapsed", elapsed),
		)
		s.metrics.ObserveSave(obsmetrics.AutosaveOutcomeSaved, elapsed)
		if s.hooks.OnSaved != nil {
			s.hooks.OnSaved(id, patch)
		}
	}

	s.mu.Lock()
	e.inflight = nil
	switch {
	case err != nil:
		e.state = Error
		e.err = err
		if e.build == nil {
			e.retry = build
		}
	case sent:
		e.state = Saved
		e.err = nil
	default:
		if e.state != Error {
			e.state = Idle
		}
	}
	s.updatePendingLocked()
	s.mu.Unlock()
	close(done)

	return err
}

func (s *Scheduler) updatePendingLocked() {
	count := 0
	for _, e := range s.entries {
		if e.unsaved() {
			count++
		}
	}
	s.metrics.SetPending(count)
}
