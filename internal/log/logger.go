// Package log wraps log/slog with a component label so every pipeline
// stage tags its records consistently.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a slog.Logger carrying a component attribute.
type Logger struct {
	*slog.Logger
}

// New creates a logger writing text records to stderr at the given level.
func New(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

// NewWithHandler creates a logger with a caller-supplied handler. Tests use
// this to capture records.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{Logger: slog.New(h)}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	return &Logger{Logger: slog.New(handler)}
}

// WithComponent returns a logger tagged with a component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component)}
}
