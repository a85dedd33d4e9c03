package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fintrack/internal/budget"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// TransactionStore is what TransactionService needs from persistence.
type TransactionStore interface {
	storage.TransactionStore
	storage.GoalStore
	ListTemplates(ctx context.Context, ownerID string) ([]core.RecurringTemplate, error)
}

// TransactionService records realized transactions. Expenses are attached to
// the system budget bucket of their month before they are persisted.
type TransactionService struct {
	store     TransactionStore
	allocator *budget.Allocator
}

func NewTransactionService(store TransactionStore, allocator *budget.Allocator) *TransactionService {
	return &TransactionService{store: store, allocator: allocator}
}

// Record validates and saves tx. priority picks the bucket for an expense
// that does not carry one yet; an empty priority means needs.
func (s *TransactionService) Record(ctx context.Context, tx core.RealizedTransaction, priority core.BucketType) (core.RealizedTransaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.OwnerID == "" {
		return tx, core.NewValidationError("owner_id", "owner is required")
	}
	if tx.Type == core.Expense && tx.BudgetBucketID == "" {
		bucket, err := s.bucketFor(ctx, tx.OwnerID, tx.Date, priority)
		if err != nil {
			return tx, err
		}
		tx.BudgetBucketID = bucket.ID
	}
	if err := tx.Validate(); err != nil {
		return tx, err
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return tx, fmt.Errorf("save transaction: %w", err)
	}
	return tx, nil
}

// EnsureMonthBuckets pre-warms every bucket type for the month containing d.
func (s *TransactionService) EnsureMonthBuckets(ctx context.Context, ownerID string, d core.Date) ([]core.BudgetBucket, error) {
	income, err := s.IncomeContext(ctx, ownerID, d)
	if err != nil {
		return nil, err
	}
	start, end := budget.MonthPeriod(d)
	return s.allocator.EnsureBuckets(ctx, ownerID, start, end,
		[]core.BucketType{core.Needs, core.Wants, core.Savings}, income)
}

// SaveGoal stores g and drops the memoized buckets of its type, so amounts
// recalculated from the new goal are read back from the store instead of the
// cache.
func (s *TransactionService) SaveGoal(ctx context.Context, g core.BudgetGoal) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.OwnerID == "" {
		return core.NewValidationError("owner_id", "owner is required")
	}
	if !g.BucketType.IsValid() {
		return core.NewValidationError("bucket_type", "bucket must be needs, wants or savings")
	}
	if err := s.store.SaveGoal(ctx, g); err != nil {
		return core.NewPersistenceError("save goal", err)
	}

	dropped := s.allocator.ForgetType(g.OwnerID, g.BucketType)
	slog.InfoContext(ctx, "Saved budget goal",
		"owner_id", g.OwnerID,
		"bucket_type", g.BucketType,
		"cached_buckets_dropped", dropped)
	return nil
}

func (s *TransactionService) bucketFor(ctx context.Context, ownerID string, d core.Date, priority core.BucketType) (core.BudgetBucket, error) {
	if priority == "" {
		priority = core.Needs
	}
	income, err := s.IncomeContext(ctx, ownerID, d)
	if err != nil {
		return core.BudgetBucket{}, err
	}
	bucket, err := s.allocator.EnsureMonthBucket(ctx, ownerID, d, priority, income)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to resolve budget bucket",
			"owner_id", ownerID,
			"bucket_type", priority,
			"date", d.String(),
			"error", err)
		return core.BudgetBucket{}, err
	}
	return bucket, nil
}

// IncomeContext gathers the owner's goals and income for the month
// containing d. Income received this month wins; before any arrives, the
// active monthly income templates stand in as the expected income.
func (s *TransactionService) IncomeContext(ctx context.Context, ownerID string, d core.Date) (budget.IncomeContext, error) {
	goals, err := s.store.ListGoals(ctx, ownerID)
	if err != nil {
		return budget.IncomeContext{}, core.NewPersistenceError("list goals", err)
	}
	ic := budget.IncomeContext{Goals: goals}

	txs, err := s.store.ListTransactions(ctx, ownerID, d.MonthStart(), d.MonthEnd())
	if err != nil {
		return ic, core.NewPersistenceError("list transactions", err)
	}
	for _, tx := range txs {
		if tx.Type == core.Income {
			ic.Income = ic.Income.Add(tx.Amount)
			ic.Known = true
		}
	}
	if ic.Known {
		return ic, nil
	}

	templates, err := s.store.ListTemplates(ctx, ownerID)
	if err != nil {
		return ic, core.NewPersistenceError("list templates", err)
	}
	for _, t := range templates {
		if t.IsActive && t.Type == core.Income && t.Frequency == core.Monthly {
			ic.Income = ic.Income.Add(t.Amount)
			ic.Known = true
		}
	}
	return ic, nil
}
