package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a case-insensitive level name to a LogLevel. Unknown
// names fall back to LogLevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface. Args are slog-style
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// AppLogger wraps slog.Logger adding a component attribute. WithComponent
// returns a copy.
type AppLogger struct {
	logger    *slog.Logger
	component string
}

// LoggerConfig configures construction of an AppLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr}
}

// NewLogger builds an AppLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *AppLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return &AppLogger{logger: slog.New(handler), component: cfg.Component}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent sets the logical component (runner, agent, ledger, ...).
func (l *AppLogger) WithComponent(c string) *AppLogger {
	nl := *l
	nl.component = c
	return &nl
}

func (l *AppLogger) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	attrs := make([]any, 0, len(args)+2)
	if l.component != "" {
		attrs = append(attrs, "component", l.component)
	}
	attrs = append(attrs, args...)
	l.logger.Log(ctx, level, msg, attrs...)
}

// Debug logs at debug level.
func (l *AppLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *AppLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *AppLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *AppLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// ForComponent scopes l to component when l is an *AppLogger and returns it
// unchanged otherwise.
func ForComponent(l Logger, component string) Logger {
	if al, ok := l.(*AppLogger); ok {
		return al.WithComponent(component)
	}
	return l
}

// LogStateSnapshot logs state under label as indented, key-sorted JSON at
// debug level. Pipelines call it before and after a run.
func LogStateSnapshot(l Logger, label string, state map[string]any) {
	l.Debug("state snapshot", "label", label, "keys", len(state), "state", FormatState(state))
}

// FormatState renders state as indented JSON with sorted keys, falling back
// to a marker when a value cannot be encoded.
func FormatState(state map[string]any) string {
	if state == nil {
		state = map[string]any{}
	}
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "<unencodable state: " + err.Error() + ">"
	}
	return string(raw)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
