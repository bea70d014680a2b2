package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"labbook/pkg/domain"
)

// ListRuns returns every run, most recently started first. Ties keep
// collection order.
func (s *Service) ListRuns(ctx context.Context) []Run {
	var out []Run
	s.view(ctx, func(v TransactionView) { out = v.ListRuns() })
	sortRuns(out)
	return out
}

// ListRunsByCell returns the runs linked to the cell page cellID, most
// recently started first.
func (s *Service) ListRunsByCell(ctx context.Context, cellID string) []Run {
	var out []Run
	s.view(ctx, func(v TransactionView) {
		for _, r := range v.ListRuns() {
			if cellID != "" && r.CellID == cellID {
				out = append(out, r)
			}
		}
	})
	sortRuns(out)
	return out
}

func sortRuns(runs []Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}

// GetRun returns the run with id.
func (s *Service) GetRun(ctx context.Context, id string) (Run, bool) {
	var (
		run Run
		ok  bool
	)
	s.view(ctx, func(v TransactionView) { run, ok = v.FindRun(id) })
	return run, ok
}

// UpdateRun stores r as given, replacing the run with the same id in place or
// inserting it at the front. No timestamp is stamped.
func (s *Service) UpdateRun(ctx context.Context, r Run) (Run, error) {
	var saved Run
	err := s.mutate(ctx, "update_run", func(tx Transaction) (string, error) {
		if strings.TrimSpace(r.ID) == "" {
			r.ID = s.ids.NewID()
		}
		var err error
		saved, err = tx.UpsertRun(r)
		return r.ID, err
	})
	return saved, err
}

// DeleteRun removes the run. Deleting a missing run is a no-op.
func (s *Service) DeleteRun(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_run", func(tx Transaction) (string, error) {
		tx.DeleteRun(id)
		return id, nil
	})
}

// StartRun begins a run of the protocol page protocolID, copying its title and
// body so later edits to the protocol do not alter the record.
func (s *Service) StartRun(ctx context.Context, protocolID string) (Run, error) {
	var started Run
	err := s.mutate(ctx, "start_run", func(tx Transaction) (string, error) {
		proto, ok := tx.Snapshot().FindPage(protocolID)
		if !ok {
			return "", domain.NotFoundError{Entity: EntityPage, ID: protocolID}
		}
		if proto.Type() != PageProtocol {
			return "", domain.ValidationError{Field: "protocolId", Message: "page " + protocolID + " is not a protocol"}
		}
		run := Run{
			ID:                    s.ids.NewID(),
			ProtocolID:            proto.ID,
			ProtocolTitleSnapshot: proto.Title,
			ProtocolBodySnapshot:  proto.Body,
			StartedAt:             s.now(),
		}
		var err error
		started, err = tx.UpsertRun(run)
		return run.ID, err
	})
	return started, err
}

// AddBlock appends an incubation block to the run's plan and returns it.
func (s *Service) AddBlock(ctx context.Context, runID string, in BlockInput) (Block, error) {
	if err := domain.ValidateHours(in.Hours); err != nil {
		return Block{}, err
	}
	if in.Start != nil {
		start := truncateMillis(*in.Start)
		in.Start = &start
	}
	var added Block
	_, err := s.updateRun(ctx, "add_block", runID, func(r *Run) error {
		var err error
		added, err = r.AddBlock(in, s.now())
		return err
	})
	return added, err
}

// DeleteBlock removes the block at index from the run's plan.
func (s *Service) DeleteBlock(ctx context.Context, runID string, index int) (Run, error) {
	return s.updateRun(ctx, "delete_block", runID, func(r *Run) error {
		_, err := r.RemoveBlock(index)
		return err
	})
}

// ToggleFinished marks the run finished now, or clears the mark.
func (s *Service) ToggleFinished(ctx context.Context, runID string) (Run, error) {
	return s.updateRun(ctx, "toggle_finished", runID, func(r *Run) error {
		r.ToggleFinished(s.now())
		return nil
	})
}

// SetRunStart moves the scheduling origin of the run. Existing blocks keep
// their absolute times.
func (s *Service) SetRunStart(ctx context.Context, runID string, start time.Time) (Run, error) {
	if start.IsZero() {
		return Run{}, domain.ValidationError{Field: "startedAt", Message: "missing time input"}
	}
	return s.updateRun(ctx, "set_run_start", runID, func(r *Run) error {
		r.StartedAt = truncateMillis(start)
		return nil
	})
}

// SetRunNotes replaces the free-text notes of the run.
func (s *Service) SetRunNotes(ctx context.Context, runID, notes string) (Run, error) {
	return s.updateRun(ctx, "set_run_notes", runID, func(r *Run) error {
		r.Notes = notes
		return nil
	})
}

// SetRunCell links the run to a cell page. An empty cellID clears the link.
func (s *Service) SetRunCell(ctx context.Context, runID, cellID string) (Run, error) {
	cellID = strings.TrimSpace(cellID)
	var updated Run
	err := s.mutate(ctx, "set_run_cell", func(tx Transaction) (string, error) {
		if cellID != "" {
			cell, ok := tx.Snapshot().FindPage(cellID)
			if !ok {
				return runID, domain.NotFoundError{Entity: EntityPage, ID: cellID}
			}
			if cell.Type() != PageCell {
				return runID, domain.ValidationError{Field: "cellId", Message: "page " + cellID + " is not a cell page"}
			}
		}
		var err error
		updated, err = tx.UpdateRun(runID, func(r *Run) error {
			r.CellID = cellID
			return nil
		})
		return runID, err
	})
	return updated, err
}

func (s *Service) updateRun(ctx context.Context, op, id string, mutator func(*Run) error) (Run, error) {
	var updated Run
	err := s.mutate(ctx, op, func(tx Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateRun(id, mutator)
		return id, err
	})
	return updated, err
}
