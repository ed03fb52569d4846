package ports

import (
	"context"
	"fmt"
	"strings"
)

// Level represents the severity of a log message.
type Level int

const (
	// LevelDebug is for verbose debugging information.
	LevelDebug Level = iota
	// LevelInfo is for general operational information.
	LevelInfo
	// LevelWarn is for potentially problematic situations.
	LevelWarn
	// LevelError is for error conditions.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Field represents a structured logging field.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Well-known field keys shared by every package.
const (
	KeyPlugin  = "plugin"
	KeyVersion = "version"
	KeyStage   = "stage"
	KeySpec    = "spec"
	KeyError   = "error"
)

// PluginField tags an entry with a plugin id.
func PluginField(id string) Field { return F(KeyPlugin, id) }

// VersionField tags an entry with a version string.
func VersionField(v fmt.Stringer) Field { return F(KeyVersion, v.String()) }

// StageField tags an entry with a pipeline stage.
func StageField(stage string) Field { return F(KeyStage, stage) }

// ErrField tags an entry with an error message. A nil error yields an empty value.
func ErrField(err error) Field {
	if err == nil {
		return F(KeyError, "")
	}
	return F(KeyError, err.Error())
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message with optional structured fields.
	Debug(ctx context.Context, msg string, fields ...Field)

	// Info logs an informational message with optional structured fields.
	Info(ctx context.Context, msg string, fields ...Field)

	// Warn logs a warning message with optional structured fields.
	Warn(ctx context.Context, msg string, fields ...Field)

	// Error logs an error message with optional structured fields.
	Error(ctx context.Context, msg string, fields ...Field)

	// With returns a new Logger with the given fields added to every log entry.
	With(fields ...Field) Logger

	// Level returns the minimum log level.
	Level() Level

	// SetLevel sets the minimum log level.
	SetLevel(level Level)
}

// LoggerFromContext retrieves a Logger from the context.
// Returns nil if no logger is present.
func LoggerFromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return logger
	}
	return nil
}

// ContextWithLogger returns a new context with the logger attached.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

type loggerKey struct{}

// NopLogger discards every entry. Domain services default to it.
type NopLogger struct {
	level Level
}

// NewNopLogger creates a logger that discards everything.
func NewNopLogger() *NopLogger {
	return &NopLogger{level: LevelInfo}
}

// Debug does nothing.
func (l *NopLogger) Debug(context.Context, string, ...Field) {}

// Info does nothing.
func (l *NopLogger) Info(context.Context, string, ...Field) {}

// Warn does nothing.
func (l *NopLogger) Warn(context.Context, string, ...Field) {}

// Error does nothing.
func (l *NopLogger) Error(context.Context, string, ...Field) {}

// With returns the same logger.
func (l *NopLogger) With(...Field) Logger { return l }

// Level returns the configured level.
func (l *NopLogger) Level() Level { return l.level }

// SetLevel records the level.
func (l *NopLogger) SetLevel(level Level) { l.level = level }
