package core

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"labbook/internal/infra/persistence/postgres"
	"labbook/internal/infra/persistence/postgres/testutil"
)

func TestOpenPersistentStoreDrivers(t *testing.T) {
	engine := NewDefaultRulesEngine()

	mem, err := OpenPersistentStore(StorageConfig{Driver: " Memory "}, engine)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := mem.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", mem)
	}

	path := filepath.Join(t.TempDir(), "nested", "lab.db")
	lite, err := OpenPersistentStore(StorageConfig{SQLitePath: path}, engine)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { _ = lite.Close() })
	sq, ok := lite.(*SQLiteStore)
	if !ok || sq.Path() != path {
		t.Fatalf("expected sqlite store at %s, got %T", path, lite)
	}

	if _, err := OpenPersistentStore(StorageConfig{Driver: "redis"}, engine); err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestOpenPersistentStorePostgres(t *testing.T) {
	db, conn := testutil.NewStubDB()
	var gotDSN string
	restore := postgres.OverrideSQLOpen(func(_, dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return db, nil
	})
	t.Cleanup(restore)

	store, err := OpenPersistentStore(StorageConfig{Driver: StoragePostgres, PostgresDSN: "postgres://lab/book"}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	if _, ok := store.(*PostgresStore); !ok || gotDSN != "postgres://lab/book" {
		t.Fatalf("unexpected store %T dsn %q", store, gotDSN)
	}

	svc := NewService(store, WithIDGenerator(seqIDs()))
	if _, err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	payload, ok := conn.Payload(DefaultStorageKey)
	if !ok {
		t.Fatalf("expected state row under %s", DefaultStorageKey)
	}
	if !strings.Contains(payload, `"pages":[`) {
		t.Fatalf("unexpected payload %s", payload)
	}
}
