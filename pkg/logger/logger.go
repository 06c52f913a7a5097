package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a new structured logger with JSON output
func NewLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: true,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// WithComponent returns a child logger tagged with the component name so
// log lines from different layers can be told apart.
func WithComponent(l *slog.Logger, component string) *slog.Logger {
	return l.With("component", component)
}
