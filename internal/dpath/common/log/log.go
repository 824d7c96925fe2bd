package log

import (
	"fmt"
	"maps"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger handed to the importer, the snapshot
// store, replay and the commands. The packet path never logs.
type Logger interface {
	Debug(fields map[string]any, msg string)
	Info(fields map[string]any, msg string)
	Warn(fields map[string]any, msg string)
	Error(fields map[string]any, msg string)
	Fatal(fields map[string]any, msg string)
}

var global Logger = newZapLogger(false, zapcore.InfoLevel, "")

// SetLogger replaces the global logger.
func SetLogger(l Logger) { global = l }

// GetLogger returns the global logger.
func GetLogger() Logger { return global }

// Configure installs a zap logger for env ("prod" selects JSON output) at the
// given level. component, when non-empty, names every entry.
func Configure(env, level, component string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	global = newZapLogger(env != "prod", lvl, component)
	return nil
}

func Debug(fields map[string]any, msg string) { global.Debug(fields, msg) }
func Info(fields map[string]any, msg string)  { global.Info(fields, msg) }
func Warn(fields map[string]any, msg string)  { global.Warn(fields, msg) }
func Error(fields map[string]any, msg string) { global.Error(fields, msg) }

// Fatal logs through the global logger and exits the process.
func Fatal(fields map[string]any, msg string) { global.Fatal(fields, msg) }

// With returns a Logger that adds fields to every entry written through l.
// Per-call fields win over the attached ones.
func With(l Logger, fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	if fl, ok := l.(*fieldLogger); ok {
		merged := maps.Clone(fl.fields)
		maps.Copy(merged, fields)
		return &fieldLogger{next: fl.next, fields: merged}
	}
	return &fieldLogger{next: l, fields: maps.Clone(fields)}
}

type fieldLogger struct {
	next   Logger
	fields map[string]any
}

func (l *fieldLogger) merge(fields map[string]any) map[string]any {
	out := maps.Clone(l.fields)
	maps.Copy(out, fields)
	return out
}

func (l *fieldLogger) Debug(fields map[string]any, msg string) { l.next.Debug(l.merge(fields), msg) }
func (l *fieldLogger) Info(fields map[string]any, msg string)  { l.next.Info(l.merge(fields), msg) }
func (l *fieldLogger) Warn(fields map[string]any, msg string)  { l.next.Warn(l.merge(fields), msg) }
func (l *fieldLogger) Error(fields map[string]any, msg string) { l.next.Error(l.merge(fields), msg) }
func (l *fieldLogger) Fatal(fields map[string]any, msg string) { l.next.Fatal(l.merge(fields), msg) }

type zapLogger struct {
	base *zap.Logger
}

func newZapLogger(dev bool, level zapcore.Level, component string) Logger {
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "component"

	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	if component != "" {
		base = base.Named(component)
	}
	return &zapLogger{base: base}
}

func (l *zapLogger) Debug(fields map[string]any, msg string) { l.base.Debug(msg, zapFields(fields)...) }
func (l *zapLogger) Info(fields map[string]any, msg string)  { l.base.Info(msg, zapFields(fields)...) }
func (l *zapLogger) Warn(fields map[string]any, msg string)  { l.base.Warn(msg, zapFields(fields)...) }
func (l *zapLogger) Error(fields map[string]any, msg string) { l.base.Error(msg, zapFields(fields)...) }
func (l *zapLogger) Fatal(fields map[string]any, msg string) { l.base.Fatal(msg, zapFields(fields)...) }

func zapFields(m map[string]any) []zap.Field {
	fields := make([]zap.Field, 0, len(m))
	for k, v := range m {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

type noopLogger struct{}

func (noopLogger) Debug(map[string]any, string) {}
func (noopLogger) Info(map[string]any, string)  {}
func (noopLogger) Warn(map[string]any, string)  {}
func (noopLogger) Error(map[string]any, string) {}
func (noopLogger) Fatal(map[string]any, string) {}

// NewNoopLogger returns a Logger that discards everything.
func NewNoopLogger() Logger { return noopLogger{} }
