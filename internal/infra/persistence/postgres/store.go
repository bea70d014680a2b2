// Package postgres provides a Postgres-backed persistent store that mirrors the
// in-memory semantics, writing the full state as one JSONB row per storage key.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"labbook/internal/infra/persistence/memory"
	"labbook/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/labbook?sslmode=disable"
	// DefaultKey names the row holding the state.
	DefaultKey = "lab_os_v1"
)

const (
	createStateSQL = `CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	selectStateSQL = `SELECT payload FROM state WHERE key = $1`
	upsertStateSQL = `INSERT INTO state(key,payload) VALUES($1,$2) ON CONFLICT(key) DO UPDATE SET payload=EXCLUDED.payload`
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store keeps the working state in memory and rewrites its row after every
// committed transaction.
type Store struct {
	*memory.Store
	db  *sql.DB
	key string
}

// NewStore connects to dsn (a local default when empty), creates the state
// table if needed and loads the row stored under key.
func NewStore(dsn, key string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	if key == "" {
		key = DefaultKey
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, key: key}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.SetFlushFunc(s.persist)
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createStateSQL); err != nil {
		return fmt.Errorf("create state table: %w", err)
	}
	payload, err := s.Payload(ctx)
	if err != nil || payload == nil {
		return err
	}
	snapshot, err := domain.DecodeSnapshot(payload)
	if err != nil {
		return fmt.Errorf("decode state %q: %w", s.key, err)
	}
	s.ImportState(snapshot)
	return nil
}

// Payload returns the raw persisted JSON, or nil when the row does not exist.
func (s *Store) Payload(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, selectStateSQL, s.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	return payload, nil
}

// Key returns the storage key this store reads and writes.
func (s *Store) Key() string { return s.key }

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// persist writes the snapshot inside its own SQL transaction so a failed
// write leaves the previous row in place.
func (s *Store) persist(ctx context.Context, snapshot domain.Snapshot) (err error) {
	data, err := domain.EncodeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, upsertStateSQL, s.key, string(data)); err != nil {
		return fmt.Errorf("upsert %s: %w", s.key, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
