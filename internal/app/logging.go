package app

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mgmtd/internal/infra/telemetry"
)

// LoggingConfig configures logging wiring.
type LoggingConfig struct {
	Logger      *zap.Logger
	Broadcaster *telemetry.LogBroadcaster
	Levels      *telemetry.LevelRegistry
}

// Logging bundles the logger, broadcaster and runtime level registry.
type Logging struct {
	Logger      *zap.Logger
	Broadcaster *telemetry.LogBroadcaster
	Levels      *telemetry.LevelRegistry

	base *zap.Logger
}

// NewLogging constructs logging dependencies. Every logger handed out is
// gated by the level registry and mirrored to the broadcaster. The registry
// only narrows: cfg.Logger's own level and sampling, and the broadcaster's
// minimum level, still filter what passes it, so cfg.Logger should be built
// at debug for the registry to have the final say.
func NewLogging(cfg LoggingConfig) Logging {
	base := cfg.Logger
	if base == nil {
		base = zap.NewNop()
	}
	base = base.With(zap.String(telemetry.FieldLogSource, telemetry.LogSourceCore))

	levels := cfg.Levels
	if levels == nil {
		levels = telemetry.NewLevelRegistry(zapcore.InfoLevel)
	}

	logs := cfg.Broadcaster
	if logs == nil {
		logs = telemetry.NewLogBroadcaster(zapcore.DebugLevel)
	}
	base = base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, logs.Core())
	}))

	return Logging{
		Logger:      levels.Logger(base, "app"),
		Broadcaster: logs,
		Levels:      levels,
		base:        base,
	}
}

// Named returns a logger whose level can be changed at runtime under name.
func (l Logging) Named(name string) *zap.Logger {
	return l.Levels.Logger(l.base, name)
}

// NewLogger returns the logger from a Logging bundle.
func NewLogger(logging Logging) *zap.Logger {
	return logging.Logger
}
