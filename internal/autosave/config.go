package autosave

import (
	"time"

	"github.com/smallbiznis/rfacto/internal/config"
)

// Config controls debounce and request limits.
type Config struct {
	Debounce       time.Duration
	RequestTimeout time.Duration
	MaxConcurrent  int
}

func DefaultConfig() Config {
	return Config{
		Debounce:       600 * time.Millisecond,
		RequestTimeout: 15 * time.Second,
		MaxConcurrent:  8,
	}
}

// FromAppConfig reads the AUTOSAVE_* settings.
func FromAppConfig(cfg config.Config) Config {
	return Config{
		Debounce:       cfg.AutosaveDebounce,
		RequestTimeout: cfg.AutosaveRequestTimeout,
		MaxConcurrent:  cfg.AutosaveMaxConcurrent,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Debounce <= 0 {
		c.Debounce = defaults.Debounce
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaults.MaxConcurrent
	}
	return c
}
