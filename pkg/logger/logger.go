package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the service-wide structured logger. Calls take a message followed
// by alternating key/value pairs.
type Logger struct {
	*slog.Logger
}

func NewLogger(level string) *Logger {
	return newLogger(os.Stdout, level)
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *Logger {
	return newLogger(io.Discard, "error")
}

func newLogger(w io.Writer, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return &Logger{Logger: slog.New(handler)}
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "dev":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
