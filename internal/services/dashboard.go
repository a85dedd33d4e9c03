package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/notify"
	"fintrack/internal/reconcile"
)

// DashboardStore is the read side the dashboard needs.
type DashboardStore interface {
	ListTemplates(ctx context.Context, ownerID string) ([]core.RecurringTemplate, error)
	ListTransactions(ctx context.Context, ownerID string, from, to core.Date) ([]core.RealizedTransaction, error)
}

// Dashboard loads an owner's data for a month, reconciles it and feeds the
// notification trigger.
type Dashboard struct {
	store      DashboardStore
	reconciler *reconcile.Reconciler
	trigger    *notify.Trigger
}

// NewDashboard builds a dashboard. trigger may be nil to skip notifications.
func NewDashboard(store DashboardStore, reconciler *reconcile.Reconciler, trigger *notify.Trigger) *Dashboard {
	return &Dashboard{store: store, reconciler: reconciler, trigger: trigger}
}

// Refresh reconciles ownerID's templates for the month containing reference.
// Notification delivery failures are logged, not returned.
func (d *Dashboard) Refresh(ctx context.Context, ownerID string, reference core.Date) (reconcile.Result, error) {
	templates, err := d.store.ListTemplates(ctx, ownerID)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("load templates: %w", err)
	}
	txs, err := d.store.ListTransactions(ctx, ownerID, reference.MonthStart(), reference.MonthEnd())
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("load transactions: %w", err)
	}

	res := d.reconciler.Reconcile(templates, txs, reference)

	if d.trigger != nil {
		sent, err := d.trigger.Observe(ctx, res.CurrentPeriodItems)
		if err != nil {
			slog.WarnContext(ctx, "Some notifications were not delivered",
				"owner_id", ownerID,
				"error", err)
		}
		if sent > 0 {
			slog.InfoContext(ctx, "Notifications emitted", "owner_id", ownerID, "count", sent)
		}
	}
	return res, nil
}
