package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"fintrack/internal/reconcile"
)

// LogSink writes notifications to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(ctx context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Status == reconcile.StatusOverdue {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "Recurring item needs attention",
		"template_id", n.TemplateID,
		"owner_id", n.OwnerID,
		"title", n.Title,
		"status", n.Status,
		"due_date", n.DueDate.String(),
		"days_until_due", n.DaysUntilDue,
		"amount", n.Amount.String())
	return nil
}

// MultiSink fans a notification out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemorySink records notifications; useful for dry runs and tests.
type MemorySink struct {
	mu   sync.Mutex
	sent []Notification
}

func (m *MemorySink) Notify(_ context.Context, n Notification) error {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
	return nil
}

func (m *MemorySink) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.sent))
	copy(out, m.sent)
	return out
}
