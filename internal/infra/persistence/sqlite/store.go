// Package sqlite persists the in-memory store to a single SQLite row holding
// the full serialized state.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"labbook/internal/infra/persistence/memory"
	"labbook/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	// DefaultPath is used when no database path is configured.
	DefaultPath = "labbook.db"
	// DefaultKey names the row holding the state, matching the browser app's storage key.
	DefaultKey = "lab_os_v1"
)

// Store keeps state in memory and rewrites the whole payload after every
// committed transaction. A failed write rolls the transaction back.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
	key  string
}

// NewStore opens (creating if needed) the database at path and hydrates the
// store from the row named key.
func NewStore(path, key string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if key == "" {
		key = DefaultKey
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path, key: key}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.SetFlushFunc(s.persist)
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE key = ?`, s.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	snapshot, err := domain.DecodeSnapshot(payload)
	if err != nil {
		return fmt.Errorf("decode state %q: %w", s.key, err)
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist(ctx context.Context, snapshot domain.Snapshot) error {
	data, err := domain.EncodeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO state(key,payload) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET payload=excluded.payload`, s.key, data); err != nil {
		return fmt.Errorf("upsert %s: %w", s.key, err)
	}
	return nil
}

// Payload returns the raw persisted bytes, or nil when nothing has been written.
func (s *Store) Payload(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE key = ?`, s.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	return payload, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
