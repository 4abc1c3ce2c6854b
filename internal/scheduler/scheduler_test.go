package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	activitydomain "github.com/smallbiznis/rfacto/internal/activity/domain"
	"github.com/smallbiznis/rfacto/internal/actorcontext"
	backupdomain "github.com/smallbiznis/rfacto/internal/backup/domain"
	"github.com/smallbiznis/rfacto/internal/clock"
	obsmetrics "github.com/smallbiznis/rfacto/internal/observability/metrics"
	"go.uber.org/zap"
)

type fakeBackup struct {
	backupdomain.Service
	snapshots int
	actor     string
	err       error
}

func (f *fakeBackup) Snapshot(ctx context.Context) (string, error) {
	f.snapshots++
	f.actor = actorcontext.ActorEmail(ctx)
	return "snap.json", f.err
}

type fakeActivity struct {
	activitydomain.Service
	cutoffs []time.Time
}

func (f *fakeActivity) Prune(_ context.Context, before time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, before)
	return 3, nil
}

func newTestScheduler(t *testing.T, clk clock.Clock, cfg Config, backup backupdomain.Service, activity activitydomain.Service) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	s, err := New(Params{Log: zap.NewNop(), Clock: clk, GenID: node, Config: cfg, Backup: backup, Activity: activity})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func useTestRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	t.Cleanup(restore)

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "rfacto",
		Environment: "test",
	})
	return registry
}

func TestRunJobTimeoutDoesNotReturnError(t *testing.T) {
	registry := useTestRegistry(t)

	s := newTestScheduler(t, clock.NewFakeClock(time.Time{}), Config{}, nil, nil)
	err := s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	errorLabels := map[string]string{
		"service": "rfacto",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.JobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "rfacto_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunJobWrapsFailures(t *testing.T) {
	useTestRegistry(t)

	s := newTestScheduler(t, clock.NewFakeClock(time.Time{}), Config{}, nil, nil)
	boom := errors.New("boom")
	err := s.runJob(context.Background(), "failing", time.Second, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestJobsRunOnTheirInterval(t *testing.T) {
	registry := useTestRegistry(t)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	backup := &fakeBackup{}
	activity := &fakeActivity{}
	s := newTestScheduler(t, clk, Config{
		BackupInterval:    time.Hour,
		ActivityRetention: 90 * 24 * time.Hour,
		PruneInterval:     24 * time.Hour,
	}, backup, activity)

	if !s.Enabled() {
		t.Fatalf("expected scheduler enabled")
	}
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if backup.snapshots != 0 || len(activity.cutoffs) != 0 {
		t.Fatalf("nothing should run on the first tick")
	}

	clk.Advance(time.Hour)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if backup.snapshots != 1 {
		t.Fatalf("expected 1 snapshot, got %d", backup.snapshots)
	}
	if backup.actor != actorcontext.SystemEmail {
		t.Fatalf("expected system actor, got %q", backup.actor)
	}
	if len(activity.cutoffs) != 0 {
		t.Fatalf("prune is not due yet")
	}

	clk.Advance(23 * time.Hour)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("third run: %v", err)
	}
	if backup.snapshots != 2 {
		t.Fatalf("expected 2 snapshots, got %d", backup.snapshots)
	}
	if len(activity.cutoffs) != 1 {
		t.Fatalf("expected 1 prune, got %d", len(activity.cutoffs))
	}
	if want := clk.Now().Add(-90 * 24 * time.Hour); !activity.cutoffs[0].Equal(want) {
		t.Fatalf("cutoff = %v, want %v", activity.cutoffs[0], want)
	}

	labels := map[string]string{"service": "rfacto", "env": "test", "job": JobActivityPrune, "resource": "activity_entry"}
	if got := getCounterValue(t, registry, "rfacto_scheduler_items_processed_total", labels); got != 3 {
		t.Fatalf("expected 3 pruned entries counted, got %v", got)
	}
}

func TestSchedulerDisabledWithoutIntervals(t *testing.T) {
	s := newTestScheduler(t, clock.NewFakeClock(time.Time{}), Config{}, &fakeBackup{}, &fakeActivity{})
	if s.Enabled() {
		t.Fatalf("expected no job without intervals")
	}

	s = newTestScheduler(t, clock.NewFakeClock(time.Time{}), Config{
		BackupInterval: time.Hour,
		EnabledJobs:    []string{JobActivityPrune},
	}, &fakeBackup{}, &fakeActivity{})
	if s.Enabled() {
		t.Fatalf("backup job is not in the enabled list")
	}
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
