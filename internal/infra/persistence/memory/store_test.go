package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"labbook/pkg/domain"
)

func page(id, title string, kind domain.Kind) domain.Page {
	return domain.Page{ID: id, Title: title, Kind: kind}
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindPage("missing"); ok {
			t.Fatalf("expected missing page lookup")
		}
		if _, err := tx.UpsertPage(page("a", "First", domain.Protocol{})); err != nil {
			return err
		}
		if _, err := tx.UpsertPage(page("b", "Second", domain.Duty{})); err != nil {
			return err
		}
		if got := len(tx.Snapshot().ListPages()); got != 2 {
			t.Fatalf("snapshot mismatch: %d", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	pages := store.ListPages()
	if len(pages) != 2 || pages[0].ID != "b" || pages[1].ID != "a" {
		t.Fatalf("expected newest page first, got %+v", pages)
	}
	if !store.HasState() {
		t.Fatalf("expected committed state to count as persisted")
	}

	snapshot := store.ExportState()
	store.ImportState(domain.Snapshot{})
	if len(store.ListPages()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListPages()) != 2 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil || store.NowFunc() == nil {
		t.Fatalf("expected rules engine and now func")
	}
}

func TestUpsertReplacesInPlace(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	for _, p := range []domain.Page{page("a", "A", domain.Duty{}), page("b", "B", domain.Duty{}), page("c", "C", domain.Duty{})} {
		p := p
		if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.UpsertPage(p)
			return err
		}); err != nil {
			t.Fatalf("insert %s: %v", p.ID, err)
		}
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpsertPage(page("b", "B2", domain.Protocol{}))
		return err
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	pages := store.ListPages()
	if pages[1].ID != "b" || pages[1].Title != "B2" || pages[1].Type() != domain.PageProtocol {
		t.Fatalf("expected in-place replacement, got %+v", pages)
	}
}

func TestUpsertRejectsInvalidPage(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpsertPage(page("a", "", domain.Duty{}))
		return err
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.HasState() {
		t.Fatalf("failed transaction must not mark state persisted")
	}
}

func TestUpdateAndDelete(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	run := domain.Run{ID: "r1", ProtocolID: "a", StartedAt: time.UnixMilli(1000).UTC()}
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpsertPage(page("a", "A", domain.Protocol{})); err != nil {
			return err
		}
		_, err := tx.UpsertRun(run)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpdatePage("missing", func(*domain.Page) error { return nil }); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if _, err := tx.UpdateRun("missing", func(*domain.Run) error { return nil }); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if _, err := tx.UpdateRun("r1", func(r *domain.Run) error {
			r.Notes = "ok"
			r.ID = "hijack"
			return nil
		}); err != nil {
			return err
		}
		if !tx.DeletePage("a") || tx.DeletePage("a") {
			t.Fatalf("expected single successful delete")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok := store.GetRun("r1")
	if !ok || got.Notes != "ok" || got.ProtocolID != "a" {
		t.Fatalf("run should survive page deletion with its references intact: %+v", got)
	}
	if _, ok := store.GetPage("a"); ok {
		t.Fatalf("expected page deleted")
	}
}

func TestFlushFailureRollsBack(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	var flushed []domain.Snapshot
	fail := false
	store.SetFlushFunc(func(_ context.Context, s domain.Snapshot) error {
		if fail {
			return errors.New("disk full")
		}
		flushed = append(flushed, s)
		return nil
	})
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpsertPage(page("a", "A", domain.Duty{}))
		return err
	}); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if len(flushed) != 1 || len(flushed[0].Pages) != 1 {
		t.Fatalf("expected one flush with one page, got %+v", flushed)
	}

	fail = true
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpsertPage(page("b", "B", domain.Duty{}))
		return err
	})
	if err == nil {
		t.Fatalf("expected flush error")
	}
	if len(store.ListPages()) != 1 {
		t.Fatalf("failed flush must leave state unchanged")
	}
}

func TestReadOnlyTransactionDoesNotFlush(t *testing.T) {
	store := NewStore(nil)
	calls := 0
	store.SetFlushFunc(func(context.Context, domain.Snapshot) error {
		calls++
		return nil
	})
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		tx.DeletePage("missing")
		return nil
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if calls != 0 || store.HasState() {
		t.Fatalf("expected no flush for an empty change set")
	}
}

func TestReplaceState(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, _ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpsertPage(page("old", "Old", domain.Duty{}))
		return err
	})
	next := domain.Snapshot{
		Pages: []domain.Page{page("n1", "New", domain.Cell{}), page("n2", "Other", domain.Duty{})},
		Runs:  []domain.Run{{ID: "r"}},
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.ReplaceState(next)
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	pages := store.ListPages()
	if len(pages) != 2 || pages[0].ID != "n1" || pages[1].ID != "n2" {
		t.Fatalf("expected snapshot order kept, got %+v", pages)
	}
	if cell, _ := pages[0].Cell(); cell.Adhesion != domain.Adherent {
		t.Fatalf("expected adhesion default, got %q", cell.Adhesion)
	}
	if len(store.ListRuns()) != 1 {
		t.Fatalf("expected runs replaced")
	}
}

func TestReplaceStateRejectsBadIDs(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, _ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpsertPage(page("old", "Old", domain.Duty{}))
		return err
	})
	bad := []domain.Snapshot{
		{Pages: []domain.Page{page("n1", "New", domain.Duty{}), page("n1", "Dup", domain.Duty{})}},
		{Pages: []domain.Page{page("", "Anonymous", domain.Duty{})}},
		{Runs: []domain.Run{{ID: "r"}, {ID: "r"}}},
	}
	for i, snap := range bad {
		_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.ReplaceState(snap)
		})
		if !errors.Is(err, domain.ErrFormat) {
			t.Fatalf("case %d: expected format error, got %v", i, err)
		}
	}
	if pages := store.ListPages(); len(pages) != 1 || pages[0].ID != "old" {
		t.Fatalf("rejected replacements must keep state, got %+v", pages)
	}
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.UpsertPage(page("a", "A", domain.Duty{}))
		return e
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if len(store.ListPages()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock, Message: "no"}}}, nil
}

func TestViewIsolation(t *testing.T) {
	store := NewStore(nil)
	_, _ = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpsertPage(domain.Page{ID: "a", Title: "A", Aliases: []string{"x"}, Kind: domain.Duty{}})
		return err
	})
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		p, _ := v.FindPage("a")
		p.Aliases[0] = "mutated"
		return nil
	})
	if got, _ := store.GetPage("a"); got.Aliases[0] != "x" {
		t.Fatalf("view mutation leaked: %+v", got)
	}
}
