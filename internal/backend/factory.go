package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/budget"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
	"fintrack/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		base storage.Store
		err  error
	)
	switch config.Type {
	case SQLiteBackend:
		base, err = storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		base = memory.New()
		f.logger.Info("Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	store := base
	if bt := config.bucketType(); bt == PostgresBackend || (bt == MemoryBackend && config.Type != MemoryBackend) {
		buckets, closeBuckets, err := f.createBucketStore(ctx, bt, config)
		if err != nil {
			base.Close()
			return nil, err
		}
		store = &splitStore{Store: base, buckets: buckets, closeBuckets: closeBuckets}
	}

	allocCfg := budget.AllocatorConfig{Logger: f.logger}
	var manager *cache.Manager
	if config.BucketCacheSize > 0 {
		lru := cache.NewLRUCache[core.BudgetBucket](config.BucketCacheSize, config.BucketCacheTTL)
		allocCfg.Cache = lru
		if config.BucketCacheTTL > 0 {
			manager = cache.NewManager(f.logger)
			manager.Register(lru)
			manager.StartCleanup(config.BucketCacheTTL)
		}
	}

	return &BackendResult{
		Store:     store,
		Allocator: budget.NewAllocator(store, allocCfg),
		Cleanup: func() error {
			if manager != nil {
				manager.Stop()
			}
			return store.Close()
		},
	}, nil
}

func (f *DefaultFactory) createBucketStore(ctx context.Context, bt BackendType, config Config) (budget.BucketStore, func(), error) {
	switch bt {
	case PostgresBackend:
		pg, err := postgres.Connect(ctx, config.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect bucket store: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("failed to prepare bucket schema: %w", err)
		}
		f.logger.Info("Initialized postgres bucket store")
		return pg, pg.Close, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory bucket store")
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported bucket store: %s", bt)
	}
}

// splitStore keeps buckets in a different store from the rest of the data.
type splitStore struct {
	storage.Store
	buckets      budget.BucketStore
	closeBuckets func()
}

func (s *splitStore) FindBucket(ctx context.Context, key core.BucketKey) (*core.BudgetBucket, error) {
	return s.buckets.FindBucket(ctx, key)
}

func (s *splitStore) CreateBucket(ctx context.Context, b core.BudgetBucket) (core.BudgetBucket, error) {
	return s.buckets.CreateBucket(ctx, b)
}

func (s *splitStore) Close() error {
	s.closeBuckets()
	return s.Store.Close()
}
