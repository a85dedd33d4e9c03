package log

import (
	"context"
	"log/slog"
	"time"
)

type ContextKey string

const LoggerContextKey ContextKey = "logger"

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from ctx, falling back to the default logger.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger logs the recurring operations of a binary with a
// consistent field set.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogPass logs the outcome of one reconciliation pass over all owners.
// notified is the trigger's running count of delivered keys.
func (sl *StructuredLogger) LogPass(ctx context.Context, notified, owners int, started time.Time, err error) {
	fields := NewFields().
		WithOperation(OpReconcile).
		WithError(err)
	fields[FieldCount] = notified
	fields["owners"] = owners
	fields[FieldDuration] = time.Since(started).Milliseconds()

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	sl.logger.Log(ctx, level, "Reconciliation pass finished", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation)
	sl.logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}
