package hrtree

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with hrtree-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithPath adds the store path to every record.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogOpen logs a create or open.
func (l *Logger) LogOpen(path string, created bool, live int, err error) {
	if err != nil {
		l.Error("open failed",
			"path", path,
			"create", created,
			"error", err,
		)
		return
	}
	l.Info("store opened",
		"path", path,
		"create", created,
		"live", live,
	)
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(id uint32, ioCount uint32, err error) {
	if err != nil {
		l.Error("insert failed",
			"id", id,
			"error", err,
		)
	} else {
		l.Debug("insert completed",
			"id", id,
			"io", ioCount,
		)
	}
}

// LogSearch logs a range search.
func (l *Logger) LogSearch(resultsFound int, ioCount uint32, err error) {
	if err != nil {
		l.Error("search failed",
			"error", err,
		)
	} else {
		l.Debug("search completed",
			"results", resultsFound,
			"io", ioCount,
		)
	}
}

// LogKNN logs a nearest neighbor query.
func (l *Logger) LogKNN(k, resultsFound int, ioCount uint32, err error) {
	if err != nil {
		l.Error("knn failed",
			"k", k,
			"error", err,
		)
	} else {
		l.Debug("knn completed",
			"k", k,
			"results", resultsFound,
			"io", ioCount,
		)
	}
}

// LogErase logs an erase operation.
func (l *Logger) LogErase(id uint32, ioCount uint32, err error) {
	if err != nil {
		l.Error("erase failed",
			"id", id,
			"error", err,
		)
	} else {
		l.Debug("erase completed",
			"id", id,
			"io", ioCount,
		)
	}
}

// LogRebuild logs a completed rebuild.
func (l *Logger) LogRebuild(survivors, purged int, ioCount uint32, duration time.Duration) {
	l.Info("rebuild completed",
		"survivors", survivors,
		"purged", purged,
		"io", ioCount,
		"duration", duration,
	)
}

// LogBackup logs a backup upload.
func (l *Logger) LogBackup(ctx context.Context, name string, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "backup failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "backup uploaded",
			"name", name,
			"bytes", size,
		)
	}
}

// LogRestore logs a backup restore.
func (l *Logger) LogRestore(ctx context.Context, name, path string, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"name", name,
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "backup restored",
			"name", name,
			"path", path,
			"bytes", size,
		)
	}
}
