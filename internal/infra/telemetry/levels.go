package telemetry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mgmtd/internal/domain"
)

// LevelRegistry holds the runtime log levels of named loggers. A logger
// without an explicit level inherits the root level.
type LevelRegistry struct {
	mu      sync.RWMutex
	root    zap.AtomicLevel
	loggers map[string]*loggerLevel
}

type loggerLevel struct {
	level    zap.AtomicLevel
	explicit bool
}

func NewLevelRegistry(root zapcore.Level) *LevelRegistry {
	return &LevelRegistry{
		root:    zap.NewAtomicLevelAt(root),
		loggers: make(map[string]*loggerLevel),
	}
}

// Root returns the root level, usable as a zap.LevelEnabler.
func (r *LevelRegistry) Root() zap.AtomicLevel {
	return r.root
}

// Logger returns base named name, gated by the registry level for name.
func (r *LevelRegistry) Logger(base *zap.Logger, name string) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	name = strings.TrimSpace(name)
	if name == "" || name == domain.DefaultRootLoggerName {
		return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return &levelCore{Core: core, registry: r, name: domain.DefaultRootLoggerName}
		}))
	}
	r.register(name)
	return base.Named(name).WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &levelCore{Core: core, registry: r, name: name}
	}))
}

func (r *LevelRegistry) register(name string) *loggerLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.loggers[name]
	if !ok {
		entry = &loggerLevel{level: zap.NewAtomicLevelAt(r.root.Level())}
		r.loggers[name] = entry
	}
	return entry
}

// Effective returns the level currently applied to the named logger.
func (r *LevelRegistry) Effective(name string) zapcore.Level {
	if name == domain.DefaultRootLoggerName {
		return r.root.Level()
	}
	r.mu.RLock()
	entry, ok := r.loggers[name]
	r.mu.RUnlock()
	if !ok || !entry.explicit {
		return r.root.Level()
	}
	return entry.level.Level()
}

// SetLevel changes the level of an existing logger. An empty level (or
// "inherit") makes the logger follow the root level again.
func (r *LevelRegistry) SetLevel(name, level string) error {
	const op = "telemetry.SetLevel"
	name = strings.TrimSpace(name)
	level = strings.ToLower(strings.TrimSpace(level))

	if name == "" || name == domain.DefaultRootLoggerName {
		if level == "" || level == "inherit" {
			return domain.E(domain.CodeInvalidArgument, op, "root logger cannot inherit", domain.ErrInvalidLogLevel)
		}
		parsed, err := ParseLevel(level)
		if err != nil {
			return domain.Wrap(domain.CodeInvalidArgument, op, err)
		}
		r.root.SetLevel(parsed)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.loggers[name]
	if !ok {
		return domain.E(domain.CodeNotFound, op, fmt.Sprintf("logger %q does not exist", name), domain.ErrUnknownLogger)
	}
	if level == "" || level == "inherit" {
		entry.explicit = false
		return nil
	}
	parsed, err := ParseLevel(level)
	if err != nil {
		return domain.Wrap(domain.CodeInvalidArgument, op, err)
	}
	entry.level.SetLevel(parsed)
	entry.explicit = true
	return nil
}

// Configure applies configured levels, creating loggers that do not exist yet.
func (r *LevelRegistry) Configure(root string, levels map[string]string) error {
	var errs []error
	if strings.TrimSpace(root) != "" {
		if err := r.SetLevel(domain.DefaultRootLoggerName, root); err != nil {
			errs = append(errs, err)
		}
	}
	for name, level := range levels {
		if name != domain.DefaultRootLoggerName {
			r.register(name)
		}
		if err := r.SetLevel(name, level); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Levels lists all loggers, root first, then by name.
func (r *LevelRegistry) Levels() []domain.LoggerLevel {
	rootLevel := r.root.Level().String()
	r.mu.RLock()
	out := make([]domain.LoggerLevel, 0, len(r.loggers)+1)
	for name, entry := range r.loggers {
		item := domain.LoggerLevel{Name: name, EffectiveLevel: rootLevel}
		if entry.explicit {
			item.Level = entry.level.Level().String()
			item.EffectiveLevel = item.Level
		}
		out = append(out, item)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return append([]domain.LoggerLevel{{
		Name:           domain.DefaultRootLoggerName,
		Level:          rootLevel,
		EffectiveLevel: rootLevel,
	}}, out...)
}

// ParseLevel parses a zap level name, accepting "warning" as "warn".
func ParseLevel(text string) (zapcore.Level, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "warning" {
		text = "warn"
	}
	level, err := zapcore.ParseLevel(text)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("%w: %q", domain.ErrInvalidLogLevel, text)
	}
	return level, nil
}

// levelCore gates an inner core by the registry level of one logger name.
// Entries that pass the registry are still checked by the inner core, so its
// own level, sampling and tee filters apply on top.
type levelCore struct {
	zapcore.Core
	registry *LevelRegistry
	name     string
}

func (c *levelCore) Enabled(level zapcore.Level) bool {
	return level >= c.registry.Effective(c.name)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), registry: c.registry, name: c.name}
}

func (c *levelCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return checked
	}
	return c.Core.Check(entry, checked)
}

var _ zapcore.Core = (*levelCore)(nil)
