// Package logger implements a logging adapter using log/slog.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"go.trai.ch/pycheck/internal/core/ports"
)

// Logger implements ports.Logger using log/slog. The daemon switches it
// to JSON output after detaching from the terminal so the daemon log
// file stays machine-readable.
type Logger struct {
	mu     sync.RWMutex
	logger *slog.Logger
	out    io.Writer
	json   bool
}

// New creates a new Logger writing human-readable output to stderr.
func New() *Logger {
	l := &Logger{out: os.Stderr}
	l.rebuild()
	return l
}

func (l *Logger) rebuild() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if l.json {
		handler = slog.NewJSONHandler(l.out, opts)
	} else {
		handler = NewPrettyHandler(l.out, opts)
	}
	l.logger = slog.New(handler)
}

// SetOutput updates the logger's output destination.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
	l.rebuild()
}

// SetJSON switches between the text and JSON handlers.
func (l *Logger) SetJSON(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.json = enabled
	l.rebuild()
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Info(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Warn(msg)
}

// Error logs an error message.
func (l *Logger) Error(err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Error("operation failed", "error", err)
}

var _ ports.Logger = (*Logger)(nil)
