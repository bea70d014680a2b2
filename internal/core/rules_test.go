package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"labbook/pkg/domain"
)

func TestBlockWindowRuleBlocksInvertedBlocks(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	inverted := Run{
		ID:        "r1",
		StartedAt: baseTime,
		Plan:      domain.Plan{Blocks: []Block{{Label: "bad", StartAt: baseTime, EndAt: baseTime.Add(-time.Minute)}}},
	}
	if _, err := svc.UpdateRun(ctx, inverted); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected blocking violation, got %v", err)
	}
	var rv RuleViolationError
	if _, err := svc.UpdateRun(ctx, inverted); !errors.As(err, &rv) || rv.Result.Violations[0].Rule != "block_window" {
		t.Fatalf("expected block_window violation, got %v", err)
	}
	if _, ok := svc.GetRun(ctx, "r1"); ok {
		t.Fatalf("blocked run must not be stored")
	}
}

func TestBlockWindowRuleSkipsImports(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	legacy := Snapshot{Runs: []Run{{
		ID:   "r1",
		Plan: domain.Plan{Blocks: []Block{{Label: "zero", StartAt: baseTime, EndAt: baseTime}}},
	}}}
	if err := svc.ImportSnapshot(ctx, legacy); err != nil {
		t.Fatalf("imports are taken as written: %v", err)
	}
	if _, ok := svc.GetRun(ctx, "r1"); !ok {
		t.Fatalf("expected imported run")
	}
}

func TestImportedZeroLengthBlockKeepsRunEditable(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	payload := `{"pages":[],"runs":[{"id":"r","protocolId":"gone","protocolTitleSnapshot":"Fix","protocolBodySnapshot":"",` +
		`"startedAt":1700000000000,"finishedAt":null,"notes":"","cellId":null,` +
		`"plan":{"blocks":[{"label":"Flash","startAt":1700000000000,"endAt":1700000000000}]}}]}`
	if err := svc.ImportAll(ctx, []byte(payload)); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := svc.ToggleFinished(ctx, "r"); err != nil {
		t.Fatalf("toggle finished: %v", err)
	}
	if _, err := svc.SetRunNotes(ctx, "r", "kept"); err != nil {
		t.Fatalf("set notes: %v", err)
	}
	run, _ := svc.GetRun(ctx, "r")
	if _, err := svc.UpdateRun(ctx, run); err != nil {
		t.Fatalf("unchanged update: %v", err)
	}
	if _, err := svc.AddBlock(ctx, "r", BlockInput{Label: "Wash", Hours: 1}); err != nil {
		t.Fatalf("add block: %v", err)
	}

	run, _ = svc.GetRun(ctx, "r")
	if len(run.Plan.Blocks) != 2 || run.Notes != "kept" || !run.Finished() {
		t.Fatalf("unexpected run after edits: %+v", run)
	}
	run.Plan.Blocks = append(run.Plan.Blocks, Block{Label: "bad", StartAt: baseTime, EndAt: baseTime.Add(-time.Minute)})
	if _, err := svc.UpdateRun(ctx, run); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("a new inverted block must still be blocked, got %v", err)
	}
}

func TestAddedBlocks(t *testing.T) {
	a := Block{Label: "a", StartAt: baseTime, EndAt: baseTime}
	b := Block{Label: "b", StartAt: baseTime, EndAt: baseTime.Add(time.Hour)}
	got := addedBlocks([]Block{a, b}, []Block{b, a, a})
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected only the second copy of a to count as added, got %v", got)
	}
	if got := addedBlocks(nil, []Block{a}); len(got) != 1 || got[0] != 0 {
		t.Fatalf("every block of a new run is added, got %v", got)
	}
}

func TestRunCellReferenceRuleWarns(t *testing.T) {
	view := fakeView{
		pages: []Page{{ID: "duty", Title: "Autoclave", Kind: domain.Duty{}}, {ID: "cell", Title: "HeLa", Kind: domain.Cell{}}},
		runs: []Run{
			{ID: "ok", CellID: "cell"},
			{ID: "wrong", CellID: "duty"},
			{ID: "gone", CellID: "deleted"},
			{ID: "none"},
		},
	}
	var changes []Change
	for _, r := range view.runs {
		changes = append(changes, Change{Entity: EntityRun, Action: ActionUpdate, After: r})
	}
	res, err := NewRunCellReferenceRule().Evaluate(context.Background(), view, changes)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Violations) != 2 || res.HasBlocking() {
		t.Fatalf("expected two warnings, got %+v", res.Violations)
	}
	if res.Violations[0].EntityID != "wrong" || res.Violations[1].EntityID != "gone" {
		t.Fatalf("unexpected violations %+v", res.Violations)
	}

	replace := []Change{{Entity: EntityPage, Action: ActionReplace}}
	res, _ = NewRunCellReferenceRule().Evaluate(context.Background(), view, replace)
	if len(res.Violations) != 2 {
		t.Fatalf("a replace must check every run, got %+v", res.Violations)
	}
}

func TestDuplicateTitleRule(t *testing.T) {
	saved := Page{ID: "b", Title: " PBS ", Kind: domain.Reagent{}}
	view := fakeView{pages: []Page{{ID: "a", Title: "pbs", Kind: domain.Duty{}}, saved}}
	res, err := NewDuplicateTitleRule().Evaluate(context.Background(), view, []Change{
		{Entity: EntityPage, Action: ActionCreate, After: saved},
		{Entity: EntityPage, Action: ActionDelete, Before: saved},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Severity != SeverityWarn || res.Violations[0].EntityID != "b" {
		t.Fatalf("unexpected violations %+v", res.Violations)
	}
}

type fakeView struct {
	pages []Page
	runs  []Run
}

func (v fakeView) ListPages() []Page { return v.pages }
func (v fakeView) ListRuns() []Run   { return v.runs }

func (v fakeView) FindPage(id string) (Page, bool) {
	for _, p := range v.pages {
		if p.ID == id {
			return p, true
		}
	}
	return Page{}, false
}

func (v fakeView) FindRun(id string) (Run, bool) {
	for _, r := range v.runs {
		if r.ID == id {
			return r, true
		}
	}
	return Run{}, false
}
