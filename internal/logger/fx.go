package logger

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Level is the log level chosen on the command line.
type Level string

// NewFromLevel creates the logger and replaces the zap globals.
func NewFromLevel(level Level) (*zap.Logger, error) {
	return New(string(level))
}

func registerHooks(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
}

// Module wires the global zap logger for command line apps. The caller
// supplies the Level.
var Module = fx.Module("logger",
	fx.Provide(
		NewFromLevel,
	),
	fx.Invoke(registerHooks),
)
