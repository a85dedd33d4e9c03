// Package postgres stores budget buckets in PostgreSQL so that several
// processes can share one allocation boundary.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS budget_buckets (
    id           TEXT PRIMARY KEY,
    owner_id     TEXT NOT NULL,
    period_start DATE NOT NULL,
    period_end   DATE NOT NULL,
    bucket_type  TEXT NOT NULL CHECK (bucket_type IN ('needs', 'wants', 'savings')),
    amount_cents BIGINT NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (owner_id, period_start, period_end, bucket_type)
)`

// BucketStore implements budget.BucketStore on a pgx connection pool.
type BucketStore struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for connString and verifies it with a ping.
func Connect(ctx context.Context, connString string) (*BucketStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &BucketStore{pool: pool}, nil
}

func NewBucketStore(pool *pgxpool.Pool) *BucketStore {
	return &BucketStore{pool: pool}
}

// EnsureSchema creates the buckets table when missing.
func (s *BucketStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure bucket schema: %w", err)
	}
	return nil
}

func (s *BucketStore) Close() {
	s.pool.Close()
}

func (s *BucketStore) FindBucket(ctx context.Context, key core.BucketKey) (*core.BudgetBucket, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, owner_id, period_start, period_end, bucket_type, amount_cents
		FROM budget_buckets
		WHERE owner_id = $1 AND period_start = $2 AND period_end = $3 AND bucket_type = $4`,
		key.OwnerID, key.PeriodStart.Time, key.PeriodEnd.Time, string(key.BucketType))

	var (
		b          core.BudgetBucket
		start, end time.Time
		bt         string
	)
	err := row.Scan(&b.ID, &b.OwnerID, &start, &end, &bt, &b.Amount.Cents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find bucket: %w", err)
	}
	b.PeriodStart = core.DateOf(start)
	b.PeriodEnd = core.DateOf(end)
	b.BucketType = core.BucketType(bt)
	return &b, nil
}

// CreateBucket inserts b unless the key already exists and returns the
// stored row either way.
func (s *BucketStore) CreateBucket(ctx context.Context, b core.BudgetBucket) (core.BudgetBucket, error) {
	tag, err := s.pool.Exec(ctx, `INSERT INTO budget_buckets
		(id, owner_id, period_start, period_end, bucket_type, amount_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, period_start, period_end, bucket_type) DO NOTHING`,
		b.ID, b.OwnerID, b.PeriodStart.Time, b.PeriodEnd.Time, string(b.BucketType), b.Amount.Cents)
	if err != nil {
		return core.BudgetBucket{}, fmt.Errorf("create bucket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		slog.DebugContext(ctx, "Bucket already created by another writer", "key", b.Key().String())
	}

	stored, err := s.FindBucket(ctx, b.Key())
	if err != nil {
		return core.BudgetBucket{}, err
	}
	if stored == nil {
		return core.BudgetBucket{}, fmt.Errorf("create bucket %s: row vanished after insert", b.Key())
	}
	return *stored, nil
}
