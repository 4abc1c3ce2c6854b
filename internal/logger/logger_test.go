package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := newWithEncoding("loud", "json"); err == nil {
		t.Fatalf("expected an error for an unknown level")
	}
}

func TestNewDefaultsToInfo(t *testing.T) {
	log, err := newWithEncoding("", "console")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug should be disabled by default")
	}
	if !log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be enabled by default")
	}
}
