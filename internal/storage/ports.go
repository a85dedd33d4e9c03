package storage

import (
	"context"
	"errors"

	"fintrack/internal/budget"
	"fintrack/internal/core"
)

var ErrNotFound = errors.New("not found")

// Ports implemented by every backend.
type (
	TemplateStore interface {
		CreateTemplate(ctx context.Context, t core.RecurringTemplate) error
		UpdateTemplate(ctx context.Context, t core.RecurringTemplate) error
		// GetTemplate returns ErrNotFound for unknown ids.
		GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error)
		ListTemplates(ctx context.Context, ownerID string) ([]core.RecurringTemplate, error)
		// ListDueTemplates returns active templates of every owner whose next
		// occurrence is on or before asOf.
		ListDueTemplates(ctx context.Context, asOf core.Date) ([]core.RecurringTemplate, error)
		// AdvanceTemplate records a materialized occurrence. A zero next
		// clears the stored schedule.
		AdvanceTemplate(ctx context.Context, id string, lastProcessed, next core.Date) error
		ListOwners(ctx context.Context) ([]string, error)
	}

	TransactionStore interface {
		CreateTransaction(ctx context.Context, tx core.RealizedTransaction) error
		// ListTransactions returns an owner's transactions dated within
		// [from, to], ordered by date.
		ListTransactions(ctx context.Context, ownerID string, from, to core.Date) ([]core.RealizedTransaction, error)
	}

	GoalStore interface {
		SaveGoal(ctx context.Context, g core.BudgetGoal) error
		ListGoals(ctx context.Context, ownerID string) ([]core.BudgetGoal, error)
	}

	// Store is the full persistence surface used by the services.
	Store interface {
		TemplateStore
		TransactionStore
		GoalStore
		budget.BucketStore
		Close() error
	}
)
