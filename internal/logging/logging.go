// Package logging provides the structured logger shared by all torno
// components. It wraps log/slog so call sites use key-value pairs:
//
//	logger.Info("job queued", "job_id", job.JobID, "enrichment", name)
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is a thin wrapper over slog with level parsing and child loggers.
type Logger struct {
	slog *slog.Logger
}

// New creates a logger writing to stderr. level is one of debug, info,
// warn, error (case-insensitive; unknown values fall back to info). When
// json is true output is machine-parseable JSON, otherwise text.
func New(level string, json bool) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return &Logger{slog: slog.New(handler)}
}

// NewLogger returns a logger with default settings (info level, text).
func NewLogger() *Logger {
	return New("info", false)
}

// With returns a child logger carrying additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...any) { l.slog.Info(msg, args...) }

// Warn logs a warning.
func (l *Logger) Warn(msg string, args ...any) { l.slog.Warn(msg, args...) }

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
