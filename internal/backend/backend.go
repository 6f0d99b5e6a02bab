// Package backend builds the data source and the persistent cache store
// selected by configuration.
package backend

import (
	"context"
	"fmt"

	"finboard/internal/cache"
	"finboard/internal/config"
	"finboard/internal/sources"
)

// CleanupFunc releases resources held by a created component.
type CleanupFunc func() error

// SourceType selects where entities are fetched from.
type SourceType string

const (
	MemorySource SourceType = "memory"
	SheetsSource SourceType = "sheets"
)

func (t SourceType) String() string { return string(t) }

func (t SourceType) IsValid() bool {
	switch t {
	case MemorySource, SheetsSource:
		return true
	default:
		return false
	}
}

// StoreType selects the persistent cache tier.
type StoreType string

const (
	SQLiteStore StoreType = "sqlite"
	MemoryStore StoreType = "memory"
	NoStore     StoreType = "none"
)

func (t StoreType) String() string { return string(t) }

func (t StoreType) IsValid() bool {
	switch t {
	case SQLiteStore, MemoryStore, NoStore:
		return true
	default:
		return false
	}
}

// Config holds what the factory needs to build components.
type Config struct {
	Source SourceType
	Store  StoreType

	// Memory source
	DataDirectory string

	// Sheets source
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Cache store
	CacheDBPath     string
	CacheQuotaBytes int64
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg := Config{
		Source:                   SourceType(appConfig.DataBackend),
		Store:                    StoreType(appConfig.CacheBackend),
		DataDirectory:            appConfig.DataDir,
		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		CacheDBPath:              appConfig.CacheDBPath,
		CacheQuotaBytes:          appConfig.CacheQuotaBytes,
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Source.IsValid() {
		return fmt.Errorf("invalid source type: %s", c.Source)
	}
	if !c.Store.IsValid() {
		return fmt.Errorf("invalid store type: %s", c.Store)
	}
	if c.Source == SheetsSource && c.GoogleSpreadsheetID == "" {
		return fmt.Errorf("Google Spreadsheet ID is required for sheets source")
	}
	if c.Store == SQLiteStore && c.CacheDBPath == "" {
		return fmt.Errorf("cache database path is required for sqlite store")
	}
	return nil
}

// SourceResult is a created Source with its optional cleanup.
type SourceResult struct {
	Source  sources.Source
	Cleanup CleanupFunc
}

// StoreResult is a created cache tier. Store is nil for NoStore.
type StoreResult struct {
	Store   cache.Store
	Cleanup CleanupFunc
}

// Tier wraps the store in a namespaced persistent tier.
func (r *StoreResult) Tier(namespace string) cache.PersistentTier {
	if r == nil || r.Store == nil {
		return cache.NoopTier{}
	}
	return cache.NewStoreTier(r.Store, namespace)
}

// Factory creates components based on configuration
type Factory interface {
	CreateSource(ctx context.Context, config Config) (*SourceResult, error)
	CreateStore(config Config) (*StoreResult, error)
}
