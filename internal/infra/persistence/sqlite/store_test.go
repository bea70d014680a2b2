package sqlite

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"labbook/pkg/domain"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path, "", domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store := openStore(t, path)
	if store.HasState() {
		t.Fatalf("fresh database must report no state")
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.UpsertPage(domain.Page{ID: "p1", Title: "HeLa", Kind: domain.Cell{Adhesion: domain.Adherent, Medium: "DMEM"}})
		return e
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	reloaded := openStore(t, path)
	if !reloaded.HasState() {
		t.Fatalf("expected reloaded store to report state")
	}
	pages := reloaded.ListPages()
	if len(pages) != 1 || pages[0].Title != "HeLa" {
		t.Fatalf("unexpected pages after reload: %+v", pages)
	}
	if cell, ok := pages[0].Cell(); !ok || cell.Medium != "DMEM" {
		t.Fatalf("cell metadata lost: %+v", pages[0].Kind)
	}
}

func TestSQLiteStoreWritesUnderKey(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.UpsertPage(domain.Page{ID: "p1", Title: "PBS", Kind: domain.Reagent{}})
		return e
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	var payload []byte
	if err := store.DB().QueryRow(`SELECT payload FROM state WHERE key = ?`, DefaultKey).Scan(&payload); err != nil {
		t.Fatalf("select payload: %v", err)
	}
	if !bytes.Contains(payload, []byte(`"metaReagent"`)) {
		t.Fatalf("expected wire layout in payload: %s", payload)
	}
}

func TestSQLiteStoreFailedTransactionKeepsPayload(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, e := tx.UpsertPage(domain.Page{ID: "p1", Title: "Keep", Kind: domain.Duty{}})
		return e
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	before, err := store.Payload(ctx)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	boom := errors.New("boom")
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		tx.DeletePage("p1")
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	after, err := store.Payload(ctx)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("payload changed after failed transaction")
	}
}

func TestSQLiteStoreRejectsCorruptPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store := openStore(t, path)
	if _, err := store.DB().Exec(`INSERT INTO state(key,payload) VALUES(?,?)`, DefaultKey, []byte(`{"pages":{}}`)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := NewStore(path, "", nil); !errors.Is(err, domain.ErrFormat) {
		t.Fatalf("expected format error on corrupt payload, got %v", err)
	}
}
