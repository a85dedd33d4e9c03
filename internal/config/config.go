package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// Storage
	DataBackend  string
	SQLiteDBPath string
	BucketStore  string
	PostgresURL  string

	// Bucket cache
	BucketCacheTTL  time.Duration
	BucketCacheSize int

	// AMQP notifications
	AMQPURL         string
	AMQPExchange    string
	AMQPNotifyQueue string

	// Worker
	ProcessInterval time.Duration

	// Reconciliation policy. Empty values keep the policy file or defaults.
	PolicyFile     string
	PaidThreshold  string
	DueSoonDays    int
	TimelineLength int

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		BucketStore:  getEnv("BUCKET_STORE", ""),
		PostgresURL:  getEnv("POSTGRES_URL", ""),

		BucketCacheTTL:  getEnvDuration("BUCKET_CACHE_TTL", 10*time.Minute),
		BucketCacheSize: getEnvInt("BUCKET_CACHE_SIZE", 256),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPNotifyQueue: getEnv("AMQP_NOTIFY_QUEUE", "notifications"),

		ProcessInterval: getEnvDuration("PROCESS_INTERVAL", time.Hour),

		PolicyFile:     getEnv("POLICY_FILE", ""),
		PaidThreshold:  getEnv("PAID_THRESHOLD", ""),
		DueSoonDays:    getEnvInt("DUE_SOON_DAYS", 0),
		TimelineLength: getEnvInt("TIMELINE_LENGTH", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// EffectiveBucketStore returns the backend buckets are kept in. It defaults
// to the data backend.
func (c *Config) EffectiveBucketStore() string {
	if c.BucketStore == "" {
		return c.DataBackend
	}
	return c.BucketStore
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	validBucketStores := []string{"memory", "sqlite", "postgres"}
	if c.BucketStore != "" && !slices.Contains(validBucketStores, c.BucketStore) {
		errors = append(errors, fmt.Sprintf("invalid bucket store '%s': must be one of %v", c.BucketStore, validBucketStores))
	}

	if c.DataBackend == "sqlite" || c.BucketStore == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}
	if c.BucketStore == "sqlite" && c.DataBackend != "sqlite" {
		errors = append(errors, "sqlite bucket store requires the sqlite data backend")
	}

	if c.BucketStore == "postgres" {
		if c.PostgresURL == "" {
			errors = append(errors, "POSTGRES_URL is required when using the postgres bucket store")
		} else if u, err := url.Parse(c.PostgresURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, fmt.Sprintf("invalid POSTGRES_URL '%s': must be a postgres:// URL", c.PostgresURL))
		}
	}

	if c.BucketCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid bucket cache size %d: must not be negative", c.BucketCacheSize))
	}
	if c.BucketCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid bucket cache TTL %v: must not be negative", c.BucketCacheTTL))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPNotifyQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ProcessInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid process interval %v: must be at least 1 second", c.ProcessInterval))
	} else if c.ProcessInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid process interval %v: must be at most 24 hours", c.ProcessInterval))
	}

	if c.PaidThreshold != "" {
		if d, err := decimal.NewFromString(c.PaidThreshold); err != nil {
			errors = append(errors, fmt.Sprintf("invalid paid threshold '%s': must be a decimal", c.PaidThreshold))
		} else if !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(1)) {
			errors = append(errors, fmt.Sprintf("invalid paid threshold %s: must be in (0, 1]", d))
		}
	}
	if c.DueSoonDays < 0 {
		errors = append(errors, fmt.Sprintf("invalid due soon days %d: must not be negative", c.DueSoonDays))
	}
	if c.TimelineLength < 0 {
		errors = append(errors, fmt.Sprintf("invalid timeline length %d: must not be negative", c.TimelineLength))
	}

	if _, err := c.SlogLevel(); err != nil {
		errors = append(errors, err.Error())
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
