// Package logging builds the process-wide zap.Logger used by every
// long-running component (gateway, scheduler, delivery worker, channel
// adapters). Terminal rendering of the resulting structured events lives
// separately in internal/present, kept out of this package entirely.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the logger's verbosity and output encoding.
type Config struct {
	// Debug enables debug-level logging. Defaults to info level.
	Debug bool
	// JSON forces the JSON encoder even outside production mode. When
	// false and Debug is set, a human-readable console encoder is used —
	// convenient for local development, still structured underneath.
	JSON bool
}

// New builds a zap.Logger per cfg. The returned logger should be Sync'd
// before process exit.
func New(cfg Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Debug && !cfg.JSON {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.Debug {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger, nil
}

// Nop returns a logger that discards everything, for tests and code paths
// that received no logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Named returns logger scoped under name, or a no-op logger if logger is
// nil — every package in this codebase accepts a possibly-nil *zap.Logger
// and should route it through this helper rather than dereferencing it
// directly.
func Named(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		return Nop()
	}
	return logger.Named(name)
}
