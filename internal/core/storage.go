package core

import (
	"fmt"
	"strings"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// DefaultStorageKey names the persisted state record, matching the key the
// browser application used.
const DefaultStorageKey = "lab_os_v1"

// StorageConfig selects and configures a backend for OpenPersistentStore.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	Key         string
}

// OpenPersistentStore selects a backend from cfg. Defaults to sqlite when the
// driver is unset.
func OpenPersistentStore(cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(string(cfg.Driver))))
	if driver == "" {
		driver = StorageSQLite
	}
	key := cfg.Key
	if key == "" {
		key = DefaultStorageKey
	}
	switch driver {
	case StorageMemory:
		return NewMemoryStore(engine), nil
	case StorageSQLite:
		return NewSQLiteStore(cfg.SQLitePath, key, engine)
	case StoragePostgres:
		return NewPostgresStore(cfg.PostgresDSN, key, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
