package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"fintrack/internal/budget"
	"fintrack/internal/core"
	"fintrack/internal/schedule"
	"fintrack/internal/storage/memory"
)

type fixture struct {
	store     *memory.Store
	calc      *schedule.Calculator
	allocator *budget.Allocator
	txs       *TransactionService
	templates *TemplateService
	processor *RecurringProcessor
}

func newFixture(t *testing.T, today core.Date) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	calc := schedule.NewCalculator(logger)
	alloc := budget.NewAllocator(store, budget.AllocatorConfig{Logger: logger})
	txs := NewTransactionService(store, alloc)

	templates := NewTemplateService(store, calc)
	templates.now = func() time.Time { return today.Time }

	return &fixture{
		store:     store,
		calc:      calc,
		allocator: alloc,
		txs:       txs,
		templates: templates,
		processor: NewRecurringProcessor(store, txs, calc, RecurringProcessorConfig{}),
	}
}

func expenseTemplate(title string, start core.Date) core.RecurringTemplate {
	return core.RecurringTemplate{
		OwnerID:   "u1",
		Title:     title,
		Amount:    core.Money{Cents: 10000},
		Type:      core.Expense,
		Frequency: core.Monthly,
		StartDate: start,
	}
}

func (f *fixture) create(t *testing.T, tpl core.RecurringTemplate) core.RecurringTemplate {
	t.Helper()
	created, err := f.templates.Create(context.Background(), tpl)
	if err != nil {
		t.Fatalf("Create(%s) error = %v", tpl.Title, err)
	}
	return created
}

func (f *fixture) transactionsFor(t *testing.T, templateID string) []core.RealizedTransaction {
	t.Helper()
	all, err := f.store.ListTransactions(context.Background(), "u1", core.NewDate(2000, 1, 1), core.NewDate(2100, 1, 1))
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	var out []core.RealizedTransaction
	for _, tx := range all {
		if tx.RecurringTemplateID == templateID {
			out = append(out, tx)
		}
	}
	return out
}

// failingStore wraps the memory store and fails selected calls.
type failingStore struct {
	*memory.Store
	failCreateFor string
	failBuckets   bool
}

var errInjected = errors.New("injected failure")

func (s *failingStore) CreateTransaction(ctx context.Context, tx core.RealizedTransaction) error {
	if tx.RecurringTemplateID != "" && tx.RecurringTemplateID == s.failCreateFor {
		return errInjected
	}
	return s.Store.CreateTransaction(ctx, tx)
}

func (s *failingStore) FindBucket(ctx context.Context, key core.BucketKey) (*core.BudgetBucket, error) {
	if s.failBuckets {
		return nil, errInjected
	}
	return s.Store.FindBucket(ctx, key)
}
