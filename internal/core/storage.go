package core

import (
	"context"
	"fmt"

	"probikes/internal/blob"
	"probikes/internal/infra/persistence/postgres"
	"probikes/internal/infra/persistence/snapshot"
	"probikes/internal/infra/persistence/sqlite"
	"probikes/pkg/domain"
)

// StorageDriver identifies where the workshop document is persisted.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // process memory only (tests / demos)
	StorageBlob     StorageDriver = "blob"     // object in the configured blob store
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and configures the document backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	// Objects is used by the blob driver when set; otherwise Blob is opened.
	Objects blob.Store
	Blob    blob.Config
	// DocumentKey names the document in every backend (default
	// snapshot.DocumentName).
	DocumentKey string
}

// OpenPersistentStore opens the configured backend and loads, migrates or
// seeds the document. Defaults to sqlite when the driver is unset.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *domain.RulesEngine, opts ...snapshot.Option) (*snapshot.Store, error) {
	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := snapshot.Open(ctx, backend, engine, opts...)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return store, nil
}

// OpenBackend constructs the snapshot backend for cfg without loading it.
func OpenBackend(ctx context.Context, cfg StorageConfig) (snapshot.Backend, error) {
	key := cfg.DocumentKey
	if key == "" {
		key = snapshot.DocumentName
	}
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return snapshot.NewBlobBackend(blob.NewMemory(), key), nil
	case StorageBlob:
		objects := cfg.Objects
		if objects == nil {
			var err error
			if objects, err = blob.Open(ctx, cfg.Blob); err != nil {
				return nil, fmt.Errorf("open blob store: %w", err)
			}
		}
		return snapshot.NewBlobBackend(objects, key), nil
	case StorageSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath, key)
	case StoragePostgres:
		return postgres.Open(ctx, cfg.PostgresDSN, key)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
