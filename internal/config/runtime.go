package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RuntimeConfig holds settings that can change without a restart.
type RuntimeConfig struct {
	AllowedOrigins []string          `mapstructure:"allowedOrigins"`
	TaxCacheTTL    time.Duration     `mapstructure:"taxCacheTTL"`
	RouteRoles     map[string]string `mapstructure:"routeRoles"`
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		AllowedOrigins: []string{"*"},
		TaxCacheTTL:    5 * time.Minute,
		RouteRoles:     map[string]string{},
	}
}

type RuntimeConfigHolder struct {
	current atomic.Value // holds RuntimeConfig
}

// NewStaticRuntimeConfigHolder returns a holder that never reloads.
func NewStaticRuntimeConfigHolder(cfg RuntimeConfig) *RuntimeConfigHolder {
	holder := &RuntimeConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewRuntimeConfigHolder() (*RuntimeConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("rfacto")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/rfacto")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RFACTO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRuntimeConfig()
	v.SetDefault("runtime.allowedOrigins", defaults.AllowedOrigins)
	v.SetDefault("runtime.taxCacheTTL", defaults.TaxCacheTTL)
	v.SetDefault("runtime.routeRoles", defaults.RouteRoles)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		return NewStaticRuntimeConfigHolder(defaults), nil
	}

	cfg, err := decodeRuntimeConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticRuntimeConfigHolder(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRuntimeConfig(v)
		if err != nil {
			log.Printf("[runtime-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[runtime-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *RuntimeConfigHolder) Get() RuntimeConfig {
	return h.current.Load().(RuntimeConfig)
}

func decodeRuntimeConfig(v *viper.Viper) (RuntimeConfig, error) {
	var cfg RuntimeConfig
	if err := v.UnmarshalKey("runtime", &cfg); err != nil {
		return RuntimeConfig{}, err
	}
	if err := validateRuntimeConfig(cfg); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}

func validateRuntimeConfig(cfg RuntimeConfig) error {
	if len(cfg.AllowedOrigins) == 0 {
		return errors.New("runtime.allowedOrigins cannot be empty")
	}
	if cfg.TaxCacheTTL < 0 {
		return errors.New("runtime.taxCacheTTL cannot be negative")
	}
	for route, role := range cfg.RouteRoles {
		switch strings.ToLower(strings.TrimSpace(role)) {
		case "lecture", "user", "admin":
		default:
			return fmt.Errorf("runtime.routeRoles[%s]: unknown role %q", route, role)
		}
	}
	return nil
}
