// Package logger provides the leveled logger used across the index engine,
// backed by zap instead of the standard library logger.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapCoreWriter is the sink every Logger writes to. Tests may swap it before
// calling New to capture output.
var zapCoreWriter io.Writer = os.Stderr

// LogLevel mirrors the ordering assumed by level filtering: DEBUG < INFO < WARN < ERROR.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// Logger wraps a *zap.SugaredLogger with a dynamically adjustable level, so
// build/insert/search/vacuum can each attach structured fields without losing
// the package-level Debug/Info/Warn/Error convenience functions.
type Logger struct {
	level  LogLevel
	atom   zap.AtomicLevel
	sugar  *zap.SugaredLogger
	fields []any
}

// New creates a Logger at the given level writing structured JSON to stderr.
func New(level LogLevel) *Logger {
	atom := zap.NewAtomicLevelAt(level.zapLevel())
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.Lock(zapcore.AddSync(zapCoreWriter)), atom)
	zl := zap.New(core)
	return &Logger{level: level, atom: atom, sugar: zl.Sugar()}
}

// With returns a child logger carrying additional structured key/value pairs,
// e.g. logger.With("index_id", id, "level", 2).
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{
		level:  l.level,
		atom:   l.atom,
		sugar:  l.sugar.With(kv...),
		fields: append(append([]any{}, l.fields...), kv...),
	}
}

// SetLevel adjusts the logger's minimum emitted level at runtime.
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	l.atom.SetLevel(level.zapLevel())
}

func (l *Logger) Debug(template string, args ...any) { l.sugar.Debugf(template, args...) }
func (l *Logger) Info(template string, args ...any)  { l.sugar.Infof(template, args...) }
func (l *Logger) Warn(template string, args ...any)  { l.sugar.Warnf(template, args...) }
func (l *Logger) Error(template string, args ...any) { l.sugar.Errorf(template, args...) }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.sugar.Sync() }

var defaultLogger = New(INFO)

// SetLevel adjusts the package-level default logger's level.
func SetLevel(level LogLevel) { defaultLogger.SetLevel(level) }

// With returns a child of the default logger with additional fields attached.
func With(kv ...any) *Logger { return defaultLogger.With(kv...) }

func Debug(template string, args ...any) { defaultLogger.Debug(template, args...) }
func Info(template string, args ...any)  { defaultLogger.Info(template, args...) }
func Warn(template string, args ...any)  { defaultLogger.Warn(template, args...) }
func Error(template string, args ...any) { defaultLogger.Error(template, args...) }
