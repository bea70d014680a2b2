package core

import (
	"labbook/internal/infra/persistence/memory"
	"labbook/internal/infra/persistence/postgres"
	"labbook/internal/infra/persistence/sqlite"
)

type (
	// MemoryStore keeps state in process memory only.
	MemoryStore = memory.Store
	// SQLiteStore flushes state to a SQLite file after every commit.
	SQLiteStore = sqlite.Store
	// PostgresStore flushes state to a PostgreSQL table after every commit.
	PostgresStore = postgres.Store
)

// NewMemoryStore constructs an in-memory store with the provided rules engine.
func NewMemoryStore(engine *RulesEngine) *MemoryStore {
	return memory.NewStore(engine)
}

// NewSQLiteStore opens (or creates) the SQLite file at path and loads the
// state stored under key.
func NewSQLiteStore(path, key string, engine *RulesEngine) (*SQLiteStore, error) {
	return sqlite.NewStore(path, key, engine)
}

// NewPostgresStore connects to dsn and loads the state stored under key.
func NewPostgresStore(dsn, key string, engine *RulesEngine) (*PostgresStore, error) {
	return postgres.NewStore(dsn, key, engine)
}
