// Package notify turns reconciliation output into due-soon and overdue
// notifications, each fired at most once per process.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/reconcile"
)

// Notification is what the trigger hands to a Sink.
type Notification struct {
	TemplateID   string               `json:"template_id"`
	OwnerID      string               `json:"owner_id"`
	Title        string               `json:"title"`
	Type         core.TransactionType `json:"type"`
	Amount       core.Money           `json:"amount"`
	Status       reconcile.Status     `json:"status"`
	DueDate      core.Date            `json:"due_date"`
	DaysUntilDue int                  `json:"days_until_due"`
}

// Sink delivers notifications somewhere outside the process.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

type seenKey struct {
	templateID string
	date       string
	status     reconcile.Status
}

// Trigger watches reconciled items and emits one notification per
// (template, display date, status). The seen-set lives as long as the
// Trigger; a fresh Trigger starts empty.
type Trigger struct {
	sink   Sink
	logger *slog.Logger

	mu   sync.Mutex
	seen map[seenKey]struct{}
}

func NewTrigger(sink Sink, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		sink:   sink,
		logger: logger,
		seen:   make(map[seenKey]struct{}),
	}
}

// Observe emits notifications for items that are due soon or overdue and
// have not been seen yet. It returns the number of notifications handed to
// the sink. A key is marked seen before delivery, so a sink failure is not
// retried on the next refresh.
func (t *Trigger) Observe(ctx context.Context, items []reconcile.Occurrence) (int, error) {
	var (
		sent int
		errs []error
	)
	for _, it := range items {
		if it.Status != reconcile.StatusDueSoon && it.Status != reconcile.StatusOverdue {
			continue
		}
		if !t.markSeen(seenKey{templateID: it.Template.ID, date: it.CalculatedNextDate.String(), status: it.Status}) {
			continue
		}

		n := Notification{
			TemplateID:   it.Template.ID,
			OwnerID:      it.Template.OwnerID,
			Title:        it.Template.Title,
			Type:         it.Template.Type,
			Amount:       it.Template.Amount,
			Status:       it.Status,
			DueDate:      it.CalculatedNextDate,
			DaysUntilDue: it.DaysUntilDue,
		}
		if err := t.sink.Notify(ctx, n); err != nil {
			t.logger.ErrorContext(ctx, "Failed to deliver notification",
				"template_id", n.TemplateID,
				"status", n.Status,
				"due_date", n.DueDate.String(),
				"error", err)
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

func (t *Trigger) markSeen(k seenKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[k]; ok {
		return false
	}
	t.seen[k] = struct{}{}
	return true
}

// Reset forgets every key seen so far.
func (t *Trigger) Reset() {
	t.mu.Lock()
	t.seen = make(map[seenKey]struct{})
	t.mu.Unlock()
}

// Seen reports how many distinct keys have fired.
func (t *Trigger) Seen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
