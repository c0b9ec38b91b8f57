// Package logging provides structured logging with per-task iteration
// tracking, trimmed from MimeLyc-git-sonic's pkg/logging (workflow/step
// terminology renamed to task/iteration to match the Task Engine's own
// vocabulary, §4.G).
package logging

import (
	"context"
	"log/slog"
	"os"
	"time"
)

type contextKey struct{}

// Logger wraps slog.Logger with task-run bookkeeping.
type Logger struct {
	*slog.Logger
	taskID    string
	startTime time.Time
	iterNum   int
}

// New creates a Logger writing JSON or text to stdout.
func New(jsonFormat bool) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Default returns a text-formatted Logger.
func Default() *Logger {
	return New(false)
}

// With returns a new Logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), taskID: l.taskID, startTime: l.startTime, iterNum: l.iterNum}
}

// WithContext attaches the Logger to ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext retrieves the attached Logger, or Default() if none.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return l
	}
	return Default()
}

// StartTask begins logging for one task run (§4.G run()).
func (l *Logger) StartTask(taskID string, attrs ...any) *Logger {
	nl := &Logger{
		Logger:    l.Logger.With(append([]any{"task_id", taskID}, attrs...)...),
		taskID:    taskID,
		startTime: time.Now(),
	}
	nl.Info("task started")
	return nl
}

// Iteration logs one engine iteration and returns a func to log its outcome.
func (l *Logger) Iteration(attrs ...any) func(error) {
	l.iterNum++
	start := time.Now()
	il := l.With(append([]any{"iteration", l.iterNum}, attrs...)...)
	il.Info("iteration started")
	return func(err error) {
		elapsed := time.Since(start)
		if err != nil {
			il.Error("iteration failed", "error", err.Error(), "elapsed_ms", elapsed.Milliseconds())
			return
		}
		il.Info("iteration completed", "elapsed_ms", elapsed.Milliseconds())
	}
}

// EndTask logs task completion.
func (l *Logger) EndTask(err error) {
	elapsed := time.Since(l.startTime)
	if err != nil {
		l.Error("task failed", "error", err.Error(), "elapsed_ms", elapsed.Milliseconds(), "iterations", l.iterNum)
		return
	}
	l.Info("task completed", "elapsed_ms", elapsed.Milliseconds(), "iterations", l.iterNum)
}
