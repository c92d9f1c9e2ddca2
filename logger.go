package codearc

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/hupe1980/codearc/format"
)

// Logger wraps slog.Logger with codearc-specific context.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithPath adds the archive path to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithKind adds an entry kind field to the logger.
func (l *Logger) WithKind(kind format.Kind) *Logger {
	return &Logger{
		Logger: l.Logger.With("kind", kind.String()),
	}
}

// WithEntry adds an entry index field to the logger.
func (l *Logger) WithEntry(index uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("entry", index),
	}
}

// LogStore logs a store operation. Lookup failures are warnings since the
// archive stays usable; everything else that fails is an error.
func (l *Logger) LogStore(kind format.Kind, name string, id uint32, size int, err error) {
	switch {
	case err == nil:
		l.Debug("store completed",
			"kind", kind.String(),
			"name", name,
			"id", id,
			"size_bytes", size,
		)
	case isLookup(err):
		l.Warn("store skipped",
			"kind", kind.String(),
			"name", name,
			"id", id,
			"error", err,
		)
	default:
		l.Error("store failed",
			"kind", kind.String(),
			"name", name,
			"id", id,
			"error", err,
		)
	}
}

// LogLoad logs a load operation. A plain miss and a lookup failure are
// expected in mixed fleets and log at debug/warn.
func (l *Logger) LogLoad(kind format.Kind, name string, err error) {
	switch {
	case err == nil:
		l.Debug("load completed",
			"kind", kind.String(),
			"name", name,
		)
	case errors.Is(err, ErrNotFound):
		l.Debug("load missed",
			"kind", kind.String(),
			"name", name,
		)
	case isLookup(err):
		l.Warn("load skipped",
			"kind", kind.String(),
			"name", name,
			"error", err,
		)
	default:
		l.Error("load failed",
			"kind", kind.String(),
			"name", name,
			"error", err,
		)
	}
}

// LogInvalidate logs an entry invalidation.
func (l *Logger) LogInvalidate(index uint32, ok bool) {
	if ok {
		l.Debug("entry invalidated", "entry", index)
	} else {
		l.Warn("invalidate ignored", "entry", index)
	}
}

// LogFinalize logs the write-session finalization.
func (l *Logger) LogFinalize(path string, entries, size int, err error) {
	if err != nil {
		l.Error("archive finalize failed",
			"path", path,
			"entries", entries,
			"error", err,
		)
	} else {
		l.Info("archive finalized",
			"path", path,
			"entries", entries,
			"size_bytes", size,
		)
	}
}

// LogVerify logs a verification pass.
func (l *Logger) LogVerify(ctx context.Context, verified, failed, skipped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "verify failed",
			"verified", verified,
			"failed", failed,
			"skipped", skipped,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "verify completed",
			"verified", verified,
			"failed", failed,
			"skipped", skipped,
		)
	}
}

// LogTransfer logs a publish or fetch through a blob store.
func (l *Logger) LogTransfer(ctx context.Context, direction, name string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "transfer failed",
			"direction", direction,
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "transfer completed",
			"direction", direction,
			"name", name,
			"bytes", bytes,
		)
	}
}

func isLookup(err error) bool {
	var le *LookupError
	return errors.As(err, &le)
}
