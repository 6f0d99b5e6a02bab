package backend

import (
	"context"
	"fmt"

	"finboard/internal/cache"
	"finboard/internal/log"
	"finboard/internal/sources/google"
	"finboard/internal/sources/memory"
	"finboard/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

var _ Factory = (*DefaultFactory)(nil)

// CreateSource implements Factory.CreateSource
func (f *DefaultFactory) CreateSource(ctx context.Context, config Config) (*SourceResult, error) {
	switch config.Source {
	case SheetsSource:
		return f.createSheetsSource(ctx, config)
	case MemorySource:
		return f.createMemorySource(config)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", config.Source)
	}
}

func (f *DefaultFactory) createSheetsSource(ctx context.Context, config Config) (*SourceResult, error) {
	cli, err := google.New(ctx, google.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets source")
	return &SourceResult{Source: cli}, nil
}

func (f *DefaultFactory) createMemorySource(config Config) (*SourceResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store, err := memory.NewFromDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory source: %w", err)
	}

	f.logger.Info("Initialized memory source", "data_directory", dataDir)
	return &SourceResult{Source: store}, nil
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(config Config) (*StoreResult, error) {
	switch config.Store {
	case SQLiteStore:
		s, err := storage.NewSQLiteStore(config.CacheDBPath, config.CacheQuotaBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite cache store: %w", err)
		}
		f.logger.Info("Initialized SQLite cache store", "db_path", config.CacheDBPath, "quota_bytes", config.CacheQuotaBytes)
		return &StoreResult{Store: s, Cleanup: s.Close}, nil
	case MemoryStore:
		f.logger.Info("Initialized in-process cache store", "quota_bytes", config.CacheQuotaBytes)
		return &StoreResult{Store: cache.NewMapStore(int(config.CacheQuotaBytes))}, nil
	case NoStore:
		f.logger.Info("Persistent cache tier disabled")
		return &StoreResult{}, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Store)
	}
}
