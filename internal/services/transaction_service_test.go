package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"fintrack/internal/budget"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
)

func TestTransactionService_RecordExpenseGetsBucket(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 3, 1))
	ctx := context.Background()

	tx, err := f.txs.Record(ctx, core.RealizedTransaction{
		OwnerID: "u1",
		Type:    core.Expense,
		Amount:  core.Money{Cents: 4200},
		Date:    core.NewDate(2025, 3, 14),
	}, core.Wants)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if tx.ID == "" {
		t.Error("Record() should assign an id")
	}

	buckets := f.store.Buckets()
	if len(buckets) != 1 {
		t.Fatalf("buckets = %d, want 1", len(buckets))
	}
	b := buckets[0]
	if b.ID != tx.BudgetBucketID || b.BucketType != core.Wants {
		t.Errorf("bucket = %+v, transaction bucket = %q", b, tx.BudgetBucketID)
	}
	if !b.PeriodStart.Equal(core.NewDate(2025, 3, 1)) || !b.PeriodEnd.Equal(core.NewDate(2025, 3, 31)) {
		t.Errorf("bucket period = %s..%s, want March", b.PeriodStart, b.PeriodEnd)
	}

	// A second expense in the same month reuses the bucket.
	again, err := f.txs.Record(ctx, core.RealizedTransaction{
		OwnerID: "u1",
		Type:    core.Expense,
		Amount:  core.Money{Cents: 100},
		Date:    core.NewDate(2025, 3, 30),
	}, core.Wants)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if again.BudgetBucketID != tx.BudgetBucketID {
		t.Errorf("second expense bucket = %q, want %q", again.BudgetBucketID, tx.BudgetBucketID)
	}
}

func TestTransactionService_RecordDefaultsToNeeds(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 3, 1))
	if _, err := f.txs.Record(context.Background(), core.RealizedTransaction{
		OwnerID: "u1",
		Type:    core.Expense,
		Amount:  core.Money{Cents: 100},
		Date:    core.NewDate(2025, 3, 2),
	}, ""); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if got := f.store.Buckets(); len(got) != 1 || got[0].BucketType != core.Needs {
		t.Errorf("buckets = %+v, want one needs bucket", got)
	}
}

func TestTransactionService_RecordIncomeHasNoBucket(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 3, 1))
	tx, err := f.txs.Record(context.Background(), core.RealizedTransaction{
		OwnerID: "u1",
		Type:    core.Income,
		Amount:  core.Money{Cents: 250000},
		Date:    core.NewDate(2025, 3, 1),
	}, "")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if tx.BudgetBucketID != "" {
		t.Errorf("income BudgetBucketID = %q, want empty", tx.BudgetBucketID)
	}
	if got := f.store.Buckets(); len(got) != 0 {
		t.Errorf("income created %d buckets", len(got))
	}
}

func TestTransactionService_RecordValidation(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 3, 1))

	tests := []struct {
		name string
		tx   core.RealizedTransaction
	}{
		{"missing owner", core.RealizedTransaction{Type: core.Income, Amount: core.Money{Cents: 1}, Date: core.NewDate(2025, 3, 1)}},
		{"missing date", core.RealizedTransaction{OwnerID: "u1", Type: core.Income, Amount: core.Money{Cents: 1}}},
		{"negative amount", core.RealizedTransaction{OwnerID: "u1", Type: core.Income, Amount: core.Money{Cents: -1}, Date: core.NewDate(2025, 3, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.txs.Record(context.Background(), tt.tx, ""); !core.IsValidationError(err) {
				t.Errorf("Record() error = %v, want validation error", err)
			}
		})
	}
}

func TestTransactionService_BucketFailureIsPersistenceError(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 3, 1))
	store := &failingStore{Store: f.store, failBuckets: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewTransactionService(store, budget.NewAllocator(store, budget.AllocatorConfig{Logger: logger}))

	_, err := svc.Record(context.Background(), core.RealizedTransaction{
		OwnerID: "u1",
		Type:    core.Expense,
		Amount:  core.Money{Cents: 100},
		Date:    core.NewDate(2025, 3, 2),
	}, core.Needs)
	if !core.IsPersistenceError(err) {
		t.Errorf("Record() error = %v, want persistence error", err)
	}
	if got, _ := f.store.ListTransactions(context.Background(), "u1", core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31)); len(got) != 0 {
		t.Errorf("transaction persisted despite bucket failure")
	}
}

func TestTransactionService_IncomeContext(t *testing.T) {
	ctx := context.Background()
	march := core.NewDate(2025, 3, 15)

	t.Run("no income", func(t *testing.T) {
		f := newFixture(t, march)
		ic, err := f.txs.IncomeContext(ctx, "u1", march)
		if err != nil {
			t.Fatalf("IncomeContext() error = %v", err)
		}
		if ic.Known {
			t.Errorf("Known = true with no income data")
		}
	})

	t.Run("falls back to monthly income templates", func(t *testing.T) {
		f := newFixture(t, march)
		salary := expenseTemplate("Salary", core.NewDate(2025, 3, 27))
		salary.Type = core.Income
		salary.Amount = core.Money{Cents: 300000}
		f.create(t, salary)

		weekly := expenseTemplate("Tips", core.NewDate(2025, 3, 20))
		weekly.Type = core.Income
		weekly.Frequency = core.Weekly
		f.create(t, weekly)

		ic, err := f.txs.IncomeContext(ctx, "u1", march)
		if err != nil {
			t.Fatalf("IncomeContext() error = %v", err)
		}
		if !ic.Known || ic.Income.Cents != 300000 {
			t.Errorf("IncomeContext() = %+v, want 3000.00 from monthly template", ic)
		}
	})

	t.Run("realized income wins", func(t *testing.T) {
		f := newFixture(t, march)
		salary := expenseTemplate("Salary", core.NewDate(2025, 3, 27))
		salary.Type = core.Income
		salary.Amount = core.Money{Cents: 300000}
		f.create(t, salary)

		for _, cents := range []int64{100000, 50000} {
			if _, err := f.txs.Record(ctx, core.RealizedTransaction{
				OwnerID: "u1", Type: core.Income, Amount: core.Money{Cents: cents}, Date: core.NewDate(2025, 3, 3),
			}, ""); err != nil {
				t.Fatalf("Record() error = %v", err)
			}
		}
		// Other months do not count.
		if _, err := f.txs.Record(ctx, core.RealizedTransaction{
			OwnerID: "u1", Type: core.Income, Amount: core.Money{Cents: 999}, Date: core.NewDate(2025, 2, 28),
		}, ""); err != nil {
			t.Fatalf("Record() error = %v", err)
		}

		ic, err := f.txs.IncomeContext(ctx, "u1", march)
		if err != nil {
			t.Fatalf("IncomeContext() error = %v", err)
		}
		if !ic.Known || ic.Income.Cents != 150000 {
			t.Errorf("IncomeContext() = %+v, want 1500.00", ic)
		}
	})
}

func TestTransactionService_GoalSeedsBucket(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 3, 1))
	ctx := context.Background()

	pct := 50.0
	target := core.Money{Cents: 20000}
	if err := f.store.SaveGoal(ctx, core.BudgetGoal{ID: "g1", OwnerID: "u1", BucketType: core.Needs, Percentage: &pct}); err != nil {
		t.Fatalf("SaveGoal() error = %v", err)
	}
	if err := f.store.SaveGoal(ctx, core.BudgetGoal{ID: "g2", OwnerID: "u1", BucketType: core.Savings, TargetAmount: &target}); err != nil {
		t.Fatalf("SaveGoal() error = %v", err)
	}
	if _, err := f.txs.Record(ctx, core.RealizedTransaction{
		OwnerID: "u1", Type: core.Income, Amount: core.Money{Cents: 300000}, Date: core.NewDate(2025, 3, 1),
	}, ""); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	buckets, err := f.txs.EnsureMonthBuckets(ctx, "u1", core.NewDate(2025, 3, 9))
	if err != nil {
		t.Fatalf("EnsureMonthBuckets() error = %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("EnsureMonthBuckets() = %d buckets, want 3", len(buckets))
	}

	want := map[core.BucketType]int64{core.Needs: 150000, core.Wants: 0, core.Savings: 20000}
	for _, b := range buckets {
		if b.Amount.Cents != want[b.BucketType] {
			t.Errorf("%s bucket amount = %d, want %d", b.BucketType, b.Amount.Cents, want[b.BucketType])
		}
	}
}

// recalculatedStore reports an externally recalculated amount for buckets
// of one type, standing in for goal logic that rewrites bucket amounts.
type recalculatedStore struct {
	*memory.Store
	bucketType core.BucketType
	amount     *core.Money
}

func (s *recalculatedStore) FindBucket(ctx context.Context, key core.BucketKey) (*core.BudgetBucket, error) {
	b, err := s.Store.FindBucket(ctx, key)
	if b != nil && s.amount != nil && key.BucketType == s.bucketType {
		b.Amount = *s.amount
	}
	return b, err
}

func TestTransactionService_SaveGoalDropsCachedBucket(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &recalculatedStore{Store: memory.New(), bucketType: core.Wants}
	alloc := budget.NewAllocator(store, budget.AllocatorConfig{
		Logger: logger,
		Cache:  cache.NewLRUCache[core.BudgetBucket](16, time.Hour),
	})
	txs := NewTransactionService(store, alloc)
	march := core.NewDate(2025, 3, 9)

	first, err := alloc.EnsureMonthBucket(ctx, "u1", march, core.Wants, budget.IncomeContext{})
	if err != nil {
		t.Fatalf("EnsureMonthBucket() error = %v", err)
	}
	if first.Amount.Cents != 0 {
		t.Fatalf("initial amount = %d, want 0", first.Amount.Cents)
	}

	store.amount = &core.Money{Cents: 45000}
	cached, _ := alloc.EnsureMonthBucket(ctx, "u1", march, core.Wants, budget.IncomeContext{})
	if cached.Amount.Cents != 0 {
		t.Fatalf("cached amount = %d, want 0 before the goal changes", cached.Amount.Cents)
	}

	pct := 15.0
	if err := txs.SaveGoal(ctx, core.BudgetGoal{OwnerID: "u1", BucketType: core.Wants, Percentage: &pct}); err != nil {
		t.Fatalf("SaveGoal() error = %v", err)
	}
	got, err := alloc.EnsureMonthBucket(ctx, "u1", march, core.Wants, budget.IncomeContext{})
	if err != nil {
		t.Fatalf("EnsureMonthBucket() error = %v", err)
	}
	if got.ID != first.ID || got.Amount.Cents != 45000 {
		t.Errorf("after SaveGoal = %s/%d, want %s/45000", got.ID, got.Amount.Cents, first.ID)
	}

	goals, _ := store.ListGoals(ctx, "u1")
	if len(goals) != 1 || goals[0].ID == "" {
		t.Errorf("ListGoals() = %+v, want one goal with an id", goals)
	}
}

func TestTransactionService_SaveGoalValidation(t *testing.T) {
	f := newFixture(t, core.NewDate(2025, 3, 1))
	ctx := context.Background()
	tests := []struct {
		name string
		goal core.BudgetGoal
	}{
		{"missing owner", core.BudgetGoal{BucketType: core.Needs}},
		{"unknown bucket", core.BudgetGoal{OwnerID: "u1", BucketType: "fun"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.txs.SaveGoal(ctx, tt.goal); !core.IsValidationError(err) {
				t.Errorf("SaveGoal() error = %v, want ValidationError", err)
			}
		})
	}
}
