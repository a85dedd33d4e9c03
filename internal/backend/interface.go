package backend

import (
	"context"
	"time"

	"fintrack/internal/budget"
	"fintrack/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult bundles the store, the allocator built on its bucket store
// and the cleanup that releases both.
type BackendResult struct {
	Store     storage.Store
	Allocator *budget.Allocator
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Type holds templates, transactions and goals.
	Type BackendType
	// Buckets holds budget buckets; empty means the same as Type.
	Buckets BackendType

	SQLiteDBPath string
	PostgresURL  string

	// Bucket memoization. A zero size disables the cache.
	BucketCacheSize int
	BucketCacheTTL  time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	MemoryBackend   BackendType = "memory"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid reports whether bt can hold the full data set.
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// IsValidBucketStore reports whether bt can hold budget buckets.
func (bt BackendType) IsValidBucketStore() bool {
	return bt.IsValid() || bt == PostgresBackend
}
