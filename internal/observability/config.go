package observability

import (
	"strings"
	"time"

	"github.com/smallbiznis/rfacto/internal/config"
)

const (
	defaultServiceName   = "rfacto"
	defaultSamplingRatio = 0.1
)

// Config is the part of the application config the logger, tracer and
// metrics providers read.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string
	// DevMode turns on request debugging along with the auth bypass.
	DevMode bool

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	// AutosaveRequestTimeout is the upper bucket of the autosave latency
	// histogram; a save cannot take longer.
	AutosaveRequestTimeout time.Duration
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	protocol := cfg.OTLPProtocol
	switch protocol {
	case "http", "http/protobuf", "grpc", "grpc/protobuf":
	default:
		protocol = "grpc"
	}

	ratio := cfg.OtelSamplingRatio
	if ratio <= 0 || ratio > 1 {
		ratio = defaultSamplingRatio
	}

	logFormat := cfg.LogFormat
	if logFormat != "console" {
		logFormat = "json"
	}

	return Config{
		ServiceName:            serviceName,
		Environment:            strings.TrimSpace(cfg.Environment),
		Version:                strings.TrimSpace(cfg.AppVersion),
		LogLevel:               cfg.LogLevel,
		LogFormat:              logFormat,
		DevMode:                cfg.DevMode,
		OtelEnabled:            cfg.OtelEnabled,
		OtelExporterEndpoint:   strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol:   protocol,
		OtelSamplingRatio:      ratio,
		AutosaveRequestTimeout: cfg.AutosaveRequestTimeout,
	}
}

// Debug reports whether request logs carry error causes and stacks.
func (c Config) Debug() bool {
	if c.DevMode || c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
