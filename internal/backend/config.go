package backend

import (
	"fmt"

	"fintrack/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Type:            BackendType(appConfig.DataBackend),
		Buckets:         BackendType(appConfig.EffectiveBucketStore()),
		SQLiteDBPath:    appConfig.SQLiteDBPath,
		PostgresURL:     appConfig.PostgresURL,
		BucketCacheSize: appConfig.BucketCacheSize,
		BucketCacheTTL:  appConfig.BucketCacheTTL,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Buckets != "" && !c.Buckets.IsValidBucketStore() {
		return fmt.Errorf("invalid bucket store: %s", c.Buckets)
	}

	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	switch c.bucketType() {
	case SQLiteBackend:
		if c.Type != SQLiteBackend {
			return fmt.Errorf("sqlite bucket store requires the sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for the postgres bucket store")
		}
	}
	return nil
}

func (c Config) bucketType() BackendType {
	if c.Buckets == "" {
		return c.Type
	}
	return c.Buckets
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}
