package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with service-specific helpers
type Logger struct {
	*slog.Logger
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a JSON logger on stdout with the specified level
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a JSON logger that writes to w.
func NewWithWriter(level string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &Logger{Logger: slog.New(handler)}
}

// With returns a child logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component tags every record with the emitting component name.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}
