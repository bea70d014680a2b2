package core

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"labbook/pkg/domain"
)

func startStainAssay(t *testing.T, svc *Service) (Page, Run) {
	t.Helper()
	ctx := context.Background()
	proto, err := svc.SavePage(ctx, PageDraft{Type: PageProtocol, Title: "Stain Assay", Body: "Fix, wash, stain."})
	if err != nil {
		t.Fatalf("save protocol: %v", err)
	}
	run, err := svc.StartRun(ctx, proto.ID)
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	return proto, run
}

func TestStainAssayScenario(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, run := startStainAssay(t, svc)

	fix, err := svc.AddBlock(ctx, run.ID, BlockInput{Label: "Fix", Hours: 1})
	if err != nil {
		t.Fatalf("add fix: %v", err)
	}
	if !fix.StartAt.Equal(run.StartedAt) || fix.EndAt.Sub(run.StartedAt) != 3600000*time.Millisecond {
		t.Fatalf("fix block %+v does not start at run start %v", fix, run.StartedAt)
	}
	wash, err := svc.AddBlock(ctx, run.ID, BlockInput{Label: "Wash", Hours: 0.5})
	if err != nil {
		t.Fatalf("add wash: %v", err)
	}
	if !wash.StartAt.Equal(fix.EndAt) || wash.EndAt.Sub(wash.StartAt) != 30*time.Minute {
		t.Fatalf("wash block %+v does not chain from %v", wash, fix.EndAt)
	}
	got, _ := svc.GetRun(ctx, run.ID)
	if len(got.Plan.Blocks) != 2 || got.Plan.Blocks[1].Label != "Wash" {
		t.Fatalf("unexpected plan %+v", got.Plan)
	}
}

func TestStartRunSnapshotsProtocol(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	proto, run := startStainAssay(t, svc)
	if run.ProtocolID != proto.ID || run.ProtocolTitleSnapshot != "Stain Assay" || run.Finished() || run.CellID != "" {
		t.Fatalf("unexpected run %+v", run)
	}
	draft := DraftFromPage(proto)
	draft.Title = "Stain Assay v2"
	draft.Body = "changed"
	if _, err := svc.SavePage(ctx, draft); err != nil {
		t.Fatalf("edit protocol: %v", err)
	}
	got, _ := svc.GetRun(ctx, run.ID)
	if got.ProtocolTitleSnapshot != "Stain Assay" || got.ProtocolBodySnapshot != "Fix, wash, stain." {
		t.Fatalf("snapshot must be immune to protocol edits: %+v", got)
	}

	duty, _ := svc.SavePage(ctx, PageDraft{Type: PageDuty, Title: "Autoclave"})
	if _, err := svc.StartRun(ctx, duty.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for non-protocol, got %v", err)
	}
	if _, err := svc.StartRun(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddBlockRejectsBadHours(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, run := startStainAssay(t, svc)
	for _, hours := range []float64{0, -1, math.NaN(), math.Inf(1), 1e-7} {
		_, err := svc.AddBlock(ctx, run.ID, BlockInput{Hours: hours})
		var verr domain.ValidationError
		if !errors.As(err, &verr) || verr.Field != "hours" {
			t.Fatalf("hours %v: expected hours validation error, got %v", hours, err)
		}
	}
	got, _ := svc.GetRun(ctx, run.ID)
	if len(got.Plan.Blocks) != 0 {
		t.Fatalf("rejected blocks must leave the plan unchanged: %+v", got.Plan)
	}
	if _, err := svc.AddBlock(ctx, "missing", BlockInput{Hours: 1}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddBlockExplicitStartAndDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, run := startStainAssay(t, svc)
	explicit := run.StartedAt.Add(-2 * time.Hour)
	if _, err := svc.AddBlock(ctx, run.ID, BlockInput{Label: "Late", Hours: 1}); err != nil {
		t.Fatal(err)
	}
	early, err := svc.AddBlock(ctx, run.ID, BlockInput{Label: "  ", Hours: 2, Start: &explicit})
	if err != nil {
		t.Fatal(err)
	}
	if early.Label != domain.DefaultBlockLabel || !early.StartAt.Equal(explicit) {
		t.Fatalf("unexpected block %+v", early)
	}
	got, _ := svc.GetRun(ctx, run.ID)
	if got.Plan.Blocks[1].Label != domain.DefaultBlockLabel {
		t.Fatalf("explicit out-of-order start must stay at the tail: %+v", got.Plan.Blocks)
	}
}

func TestDeleteBlockAndToggleFinished(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, run := startStainAssay(t, svc)
	for _, label := range []string{"A", "B", "C"} {
		if _, err := svc.AddBlock(ctx, run.ID, BlockInput{Label: label, Hours: 1}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := svc.DeleteBlock(ctx, run.ID, 1)
	if err != nil {
		t.Fatalf("delete block: %v", err)
	}
	if len(got.Plan.Blocks) != 2 || got.Plan.Blocks[0].Label != "A" || got.Plan.Blocks[1].Label != "C" {
		t.Fatalf("unexpected plan %+v", got.Plan.Blocks)
	}
	if _, err := svc.DeleteBlock(ctx, run.ID, 5); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected out of range, got %v", err)
	}

	finished, err := svc.ToggleFinished(ctx, run.ID)
	if err != nil || !finished.Finished() {
		t.Fatalf("finish: %+v %v", finished, err)
	}
	reopened, err := svc.ToggleFinished(ctx, run.ID)
	if err != nil || reopened.Finished() {
		t.Fatalf("reopen: %+v %v", reopened, err)
	}
}

func TestRunEdits(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, run := startStainAssay(t, svc)

	if _, err := svc.SetRunStart(ctx, run.ID, time.Time{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected missing time input, got %v", err)
	}
	start := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	got, err := svc.SetRunStart(ctx, run.ID, start)
	if err != nil || !got.StartedAt.Equal(start) {
		t.Fatalf("set start: %+v %v", got, err)
	}
	block, _ := svc.AddBlock(ctx, run.ID, BlockInput{Hours: 1})
	if !block.StartAt.Equal(start) {
		t.Fatalf("first block must chain from the new start, got %v", block.StartAt)
	}

	if got, err := svc.SetRunNotes(ctx, run.ID, "stained well"); err != nil || got.Notes != "stained well" {
		t.Fatalf("notes: %+v %v", got, err)
	}

	cell, _ := svc.SavePage(ctx, PageDraft{Type: PageCell, Title: "HeLa"})
	duty, _ := svc.SavePage(ctx, PageDraft{Type: PageDuty, Title: "Autoclave"})
	if got, err := svc.SetRunCell(ctx, run.ID, cell.ID); err != nil || got.CellID != cell.ID {
		t.Fatalf("link cell: %+v %v", got, err)
	}
	if _, err := svc.SetRunCell(ctx, run.ID, duty.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected non-cell rejection, got %v", err)
	}
	if runs := svc.ListRunsByCell(ctx, cell.ID); len(runs) != 1 || runs[0].ID != run.ID {
		t.Fatalf("unexpected runs by cell %+v", runs)
	}
	if got, err := svc.SetRunCell(ctx, run.ID, ""); err != nil || got.CellID != "" {
		t.Fatalf("clear cell: %+v %v", got, err)
	}
	if runs := svc.ListRunsByCell(ctx, cell.ID); len(runs) != 0 {
		t.Fatalf("expected no linked runs, got %+v", runs)
	}
}

func TestListRunsOrderAndUpdateRun(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mk := func(id string, started time.Time) {
		t.Helper()
		if _, err := svc.UpdateRun(ctx, Run{ID: id, ProtocolID: "gone", StartedAt: started}); err != nil {
			t.Fatalf("update run %s: %v", id, err)
		}
	}
	mk("r1", baseTime.Add(time.Hour))
	mk("r2", baseTime)
	mk("r3", baseTime.Add(2*time.Hour))
	if got := runIDs(svc.ListRuns(ctx)); got != "r3,r1,r2" {
		t.Fatalf("expected startedAt desc, got %s", got)
	}

	r, _ := svc.GetRun(ctx, "r2")
	r.Notes = "edited"
	if _, err := svc.UpdateRun(ctx, r); err != nil {
		t.Fatal(err)
	}
	if got, _ := svc.GetRun(ctx, "r2"); got.Notes != "edited" || !got.StartedAt.Equal(baseTime) {
		t.Fatalf("update run must store as given: %+v", got)
	}

	if err := svc.DeleteRun(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteRun(ctx, "r1"); err != nil {
		t.Fatalf("deleting a missing run must be a no-op: %v", err)
	}
	if got := runIDs(svc.ListRuns(ctx)); got != "r3,r2" {
		t.Fatalf("unexpected runs %s", got)
	}
}
