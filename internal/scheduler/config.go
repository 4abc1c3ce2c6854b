package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/rfacto/internal/config"
)

const (
	JobBackupSnapshot = "backup_snapshot"
	JobActivityPrune  = "activity_prune"
)

// Config controls how often the loop wakes up and which jobs are due.
// A job with a zero interval never runs.
type Config struct {
	RunInterval       time.Duration
	JobTimeout        time.Duration
	BackupInterval    time.Duration
	ActivityRetention time.Duration
	PruneInterval     time.Duration
	EnabledJobs       []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:   time.Minute,
		JobTimeout:    5 * time.Minute,
		PruneInterval: 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = defaults.PruneInterval
	}
	return c
}

// ProvideConfig derives the scheduler settings from the application config.
func ProvideConfig(cfg config.Config) Config {
	return Config{
		BackupInterval:    cfg.BackupInterval,
		ActivityRetention: cfg.ActivityRetention,
		EnabledJobs:       cfg.SchedulerJobs,
	}
}

func (c Config) isJobEnabled(jobName string) bool {
	// If EnabledJobs is empty, all jobs are enabled by default
	if len(c.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range c.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}
