// Package budget resolves the per-period system budget bucket every expense
// must reference.
package budget

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
	"fintrack/internal/core"
)

// BucketStore is the persistence collaborator for budget buckets.
type BucketStore interface {
	// FindBucket returns nil, nil when no bucket exists for key.
	FindBucket(ctx context.Context, key core.BucketKey) (*core.BudgetBucket, error)
	// CreateBucket inserts b. If a bucket with the same key already exists
	// the store returns that one instead.
	CreateBucket(ctx context.Context, b core.BudgetBucket) (core.BudgetBucket, error)
}

// IncomeContext carries what the caller knows about the owner's income and
// goals when a bucket may have to be created.
type IncomeContext struct {
	Income core.Money
	Known  bool
	Goals  []core.BudgetGoal
}

// AllocatorConfig holds optional collaborators for the allocator.
type AllocatorConfig struct {
	// Cache memoizes resolved buckets by key. Nil disables memoization.
	Cache  cache.Cache[core.BudgetBucket]
	Logger *slog.Logger
	// NewID generates bucket ids; defaults to random UUIDs.
	NewID func() string
}

// Allocator returns the unique bucket for (owner, period, type), creating it
// on first reference. Concurrent calls for the same key share one in-flight
// lookup-or-create; calls for different keys do not contend.
type Allocator struct {
	store  BucketStore
	flight singleflight.Group
	cache  cache.Cache[core.BudgetBucket]
	logger *slog.Logger
	newID  func() string
}

func NewAllocator(store BucketStore, cfg AllocatorConfig) *Allocator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Allocator{
		store:  store,
		cache:  cfg.Cache,
		logger: cfg.Logger,
		newID:  cfg.NewID,
	}
}

// EnsureBucket returns the existing bucket for the key or creates exactly one.
// Store failures are returned as *core.PersistenceError and never retried.
// A cancelled ctx abandons the wait but not the shared lookup, so other
// callers on the same key still resolve it.
func (a *Allocator) EnsureBucket(ctx context.Context, ownerID string, periodStart, periodEnd core.Date, bucketType core.BucketType, income IncomeContext) (core.BudgetBucket, error) {
	key := core.BucketKey{
		OwnerID:     ownerID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		BucketType:  bucketType,
	}
	if err := key.Validate(); err != nil {
		return core.BudgetBucket{}, err
	}

	if a.cache != nil {
		if b, ok := a.cache.Get(key.String()); ok {
			return b, nil
		}
	}

	// The shared lookup outlives any single caller's cancellation; each
	// caller only stops waiting on its own context.
	detached := context.WithoutCancel(ctx)
	ch := a.flight.DoChan(key.String(), func() (any, error) {
		return a.findOrCreate(detached, key, income)
	})
	select {
	case <-ctx.Done():
		return core.BudgetBucket{}, fmt.Errorf("ensure bucket %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return core.BudgetBucket{}, res.Err
		}
		if res.Shared {
			a.logger.DebugContext(ctx, "Joined in-flight bucket allocation", "key", key.String())
		}
		return res.Val.(core.BudgetBucket), nil
	}
}

func (a *Allocator) findOrCreate(ctx context.Context, key core.BucketKey, income IncomeContext) (core.BudgetBucket, error) {
	existing, err := a.store.FindBucket(ctx, key)
	if err != nil {
		return core.BudgetBucket{}, core.NewPersistenceError("find bucket", err)
	}
	if existing != nil {
		a.remember(key, *existing)
		return *existing, nil
	}

	bucket := core.BudgetBucket{
		ID:          a.newID(),
		OwnerID:     key.OwnerID,
		PeriodStart: key.PeriodStart,
		PeriodEnd:   key.PeriodEnd,
		BucketType:  key.BucketType,
		Amount:      InitialAmount(key.BucketType, income),
	}
	created, err := a.store.CreateBucket(ctx, bucket)
	if err != nil {
		return core.BudgetBucket{}, core.NewPersistenceError("create bucket", err)
	}

	a.logger.InfoContext(ctx, "Created system budget bucket",
		"bucket_id", created.ID,
		"owner_id", created.OwnerID,
		"bucket_type", created.BucketType,
		"period_start", created.PeriodStart.String(),
		"period_end", created.PeriodEnd.String(),
		"amount_cents", created.Amount.Cents)

	a.remember(key, created)
	return created, nil
}

func (a *Allocator) remember(key core.BucketKey, b core.BudgetBucket) {
	if a.cache != nil {
		a.cache.Set(key.String(), b)
	}
}

// ForgetType drops every memoized bucket of bucketType for ownerID, whatever
// its period, so amounts recalculated after a goal change are read from the
// store again. It returns the number of dropped entries.
func (a *Allocator) ForgetType(ownerID string, bucketType core.BucketType) int {
	if a.cache == nil {
		return 0
	}
	return a.cache.DeleteFunc(func(_ string, b core.BudgetBucket) bool {
		return b.OwnerID == ownerID && b.BucketType == bucketType
	})
}

// EnsureBuckets pre-warms several bucket types for the same period in
// parallel. The first failure cancels the remaining lookups.
func (a *Allocator) EnsureBuckets(ctx context.Context, ownerID string, periodStart, periodEnd core.Date, types []core.BucketType, income IncomeContext) ([]core.BudgetBucket, error) {
	out := make([]core.BudgetBucket, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, bt := range types {
		i, bt := i, bt
		g.Go(func() error {
			b, err := a.EnsureBucket(gctx, ownerID, periodStart, periodEnd, bt, income)
			if err != nil {
				return fmt.Errorf("ensure %s bucket: %w", bt, err)
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureMonthBucket resolves the bucket for the calendar month containing d.
func (a *Allocator) EnsureMonthBucket(ctx context.Context, ownerID string, d core.Date, bucketType core.BucketType, income IncomeContext) (core.BudgetBucket, error) {
	start, end := MonthPeriod(d)
	return a.EnsureBucket(ctx, ownerID, start, end, bucketType, income)
}

// MonthPeriod returns the calendar month bounds used as the system period.
func MonthPeriod(d core.Date) (core.Date, core.Date) {
	return d.MonthStart(), d.MonthEnd()
}

// InitialAmount seeds a new bucket from the owner's goal for bucketType:
// a percentage of known income, else an absolute target, else zero.
func InitialAmount(bucketType core.BucketType, income IncomeContext) core.Money {
	goal, ok := goalFor(bucketType, income.Goals)
	if !ok {
		return core.Money{}
	}
	if goal.Percentage != nil && income.Known {
		pct := decimal.NewFromFloat(*goal.Percentage)
		return core.MoneyFromDecimal(income.Income.Decimal().Mul(pct).Div(decimal.NewFromInt(100)))
	}
	if goal.TargetAmount != nil {
		return *goal.TargetAmount
	}
	return core.Money{}
}

func goalFor(bucketType core.BucketType, goals []core.BudgetGoal) (core.BudgetGoal, bool) {
	for _, g := range goals {
		if g.BucketType == bucketType {
			return g, true
		}
	}
	return core.BudgetGoal{}, false
}
