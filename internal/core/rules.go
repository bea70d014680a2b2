package core

import (
	"context"
	"fmt"

	"labbook/internal/textnorm"
)

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewBlockWindowRule())
	engine.Register(NewRunCellReferenceRule())
	engine.Register(NewDuplicateTitleRule())
	return engine
}

// changedRuns returns the runs created or updated in changes, as committed.
// A full state replacement yields every run.
func changedRuns(view RuleView, changes []Change) []Run {
	var out []Run
	for _, c := range changes {
		switch c.Entity {
		case EntityRun:
			if c.Action == ActionDelete {
				continue
			}
			if r, ok := c.After.(Run); ok {
				if current, ok := view.FindRun(r.ID); ok {
					out = append(out, current)
				}
			}
		case EntityPage:
			if c.Action == ActionReplace {
				return view.ListRuns()
			}
		}
	}
	return out
}

type blockWindowRule struct{}

// NewBlockWindowRule blocks commits that add a block ending at or before its
// start. Blocks a run already had are left alone, so an imported plan stays
// editable.
func NewBlockWindowRule() Rule { return blockWindowRule{} }

func (blockWindowRule) Name() string { return "block_window" }

func (r blockWindowRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	var res Result
	for _, c := range changes {
		if c.Entity != EntityRun || c.Action == ActionDelete {
			continue
		}
		after, ok := c.After.(Run)
		if !ok {
			continue
		}
		before, _ := c.Before.(Run)
		for _, i := range addedBlocks(before.Plan.Blocks, after.Plan.Blocks) {
			b := after.Plan.Blocks[i]
			if b.EndAt.After(b.StartAt) {
				continue
			}
			res.Violations = append(res.Violations, Violation{
				Rule:     r.Name(),
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("block %d of run %s ends before it starts", i, after.ID),
				Entity:   EntityRun,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}

// addedBlocks returns the indexes of blocks in after that have no unclaimed
// equal block in before.
func addedBlocks(before, after []Block) []int {
	claimed := make([]bool, len(before))
	var added []int
next:
	for i, b := range after {
		for j, old := range before {
			if !claimed[j] && sameBlock(old, b) {
				claimed[j] = true
				continue next
			}
		}
		added = append(added, i)
	}
	return added
}

func sameBlock(a, b Block) bool {
	return a.Label == b.Label && a.StartAt.Equal(b.StartAt) && a.EndAt.Equal(b.EndAt)
}

type runCellReferenceRule struct{}

// NewRunCellReferenceRule warns when a changed run links to a page that is
// missing or not a cell. Runs tolerate dangling references, so this never blocks.
func NewRunCellReferenceRule() Rule { return runCellReferenceRule{} }

func (runCellReferenceRule) Name() string { return "run_cell_reference" }

func (r runCellReferenceRule) Evaluate(_ context.Context, view RuleView, changes []Change) (Result, error) {
	var res Result
	for _, run := range changedRuns(view, changes) {
		if run.CellID == "" {
			continue
		}
		page, ok := view.FindPage(run.CellID)
		if ok && page.Type() == PageCell {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("run %s links to %s which is not a cell page", run.ID, run.CellID),
			Entity:   EntityRun,
			EntityID: run.ID,
		})
	}
	return res, nil
}

type duplicateTitleRule struct{}

// NewDuplicateTitleRule warns when a saved page shares its title with another
// page; links then resolve to whichever comes first.
func NewDuplicateTitleRule() Rule { return duplicateTitleRule{} }

func (duplicateTitleRule) Name() string { return "duplicate_title" }

func (r duplicateTitleRule) Evaluate(_ context.Context, view RuleView, changes []Change) (Result, error) {
	var res Result
	for _, c := range changes {
		if c.Entity != EntityPage || (c.Action != ActionCreate && c.Action != ActionUpdate) {
			continue
		}
		saved, ok := c.After.(Page)
		if !ok {
			continue
		}
		key := textnorm.Key(saved.Title)
		for _, other := range view.ListPages() {
			if other.ID != saved.ID && textnorm.Key(other.Title) == key {
				res.Violations = append(res.Violations, Violation{
					Rule:     r.Name(),
					Severity: SeverityWarn,
					Message:  fmt.Sprintf("page %s shares title %q with %s", saved.ID, saved.Title, other.ID),
					Entity:   EntityPage,
					EntityID: saved.ID,
				})
				break
			}
		}
	}
	return res, nil
}
