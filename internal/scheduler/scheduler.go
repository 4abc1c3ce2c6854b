package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/rfacto/internal/activity/domain"
	backupdomain "github.com/smallbiznis/rfacto/internal/backup/domain"
	"github.com/smallbiznis/rfacto/internal/clock"
	obsmetrics "github.com/smallbiznis/rfacto/internal/observability/metrics"
	"github.com/smallbiznis/rfacto/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

const jobLockPrefix = "rfacto:lock:job:"

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Config   Config                 `optional:"true"`
	Backup   backupdomain.Service   `optional:"true"`
	Activity activitydomain.Service `optional:"true"`
	Locker   *ratelimit.Locker      `optional:"true"`
}

// Scheduler runs the periodic maintenance jobs: JSON backup snapshots and
// pruning of old activity entries.
type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	backup   backupdomain.Service
	activity activitydomain.Service
	locker   *ratelimit.Locker

	mu      sync.Mutex
	lastRun map[string]time.Time
}

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.GenID == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		backup:   p.Backup,
		activity: p.Activity,
		locker:   p.Locker,
		lastRun:  make(map[string]time.Time),
	}, nil
}

func (s *Scheduler) jobs() []job {
	var jobs []job
	if s.backup != nil && s.cfg.BackupInterval > 0 && s.cfg.isJobEnabled(JobBackupSnapshot) {
		jobs = append(jobs, job{JobBackupSnapshot, s.cfg.BackupInterval, s.BackupSnapshotJob})
	}
	if s.activity != nil && s.cfg.ActivityRetention > 0 && s.cfg.isJobEnabled(JobActivityPrune) {
		jobs = append(jobs, job{JobActivityPrune, s.cfg.PruneInterval, s.ActivityPruneJob})
	}
	return jobs
}

// Enabled reports whether at least one job is configured.
func (s *Scheduler) Enabled() bool {
	return len(s.jobs()) > 0
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := s.locker.WithLock(ctx, jobLockPrefix+name, timeout, fn)
	if errors.Is(err, ratelimit.ErrLockHeld) {
		err = obsmetrics.ErrJobLockHeld
	}
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	schedMetrics.IncJobError(name, err)
	switch {
	case errors.Is(err, obsmetrics.ErrJobLockHeld):
		log.Debug("job skipped, lock held by another instance")
		return nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		// deadline is a soft timeout; the job runs again on its next slot
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every job whose interval has elapsed since its last run.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	now := s.clock.Now()
	for _, j := range s.jobs() {
		if !s.due(j, now) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, j.name, s.cfg.JobTimeout, j.run))
		s.mu.Lock()
		s.lastRun[j.name] = now
		s.mu.Unlock()
	}
	return err
}

func (s *Scheduler) due(j job, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastRun[j.name]
	if !ok {
		// first slot is one interval after start
		s.lastRun[j.name] = now
		return false
	}
	return now.Sub(last) >= j.interval
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) BackupSnapshotJob(ctx context.Context) error {
	name, err := s.backup.Snapshot(ctx)
	if err != nil {
		return err
	}
	jobRunFromContext(ctx).AddProcessed(1)
	obsmetrics.Scheduler().AddItemsProcessed(JobBackupSnapshot, "snapshot", 1)
	s.logger(ctx).Info("backup snapshot written", zap.String("name", name))
	return nil
}

func (s *Scheduler) ActivityPruneJob(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.ActivityRetention)
	deleted, err := s.activity.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	jobRunFromContext(ctx).AddProcessed(int(deleted))
	obsmetrics.Scheduler().AddItemsProcessed(JobActivityPrune, "activity_entry", int(deleted))
	s.logger(ctx).Info("activity pruned",
		zap.Time("before", cutoff),
		zap.Int64("deleted", deleted),
	)
	return nil
}
