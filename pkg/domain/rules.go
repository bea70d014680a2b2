package domain

import (
	"context"
	"fmt"
)

// RuleView is the read-only state a rule sees: the transaction's working copy,
// uncommitted changes included.
type RuleView interface {
	ListPages() []Page
	FindPage(id string) (Page, bool)
	ListRuns() []Run
	FindRun(id string) (Run, bool)
}

// Rule checks a pending change set before it is committed. A blocking
// violation aborts the transaction.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine runs its rules in registration order. The zero value and a nil
// engine accept every change set.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine returns an engine holding rules.
func NewRulesEngine(rules ...Rule) *RulesEngine {
	e := &RulesEngine{}
	e.Register(rules...)
	return e
}

// Register appends rules, skipping nil entries.
func (e *RulesEngine) Register(rules ...Rule) {
	for _, r := range rules {
		if r != nil {
			e.rules = append(e.rules, r)
		}
	}
}

// Names lists the registered rule names in evaluation order.
func (e *RulesEngine) Names() []string {
	if e == nil {
		return nil
	}
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.Name())
	}
	return names
}

// Evaluate merges the results of every rule. Violations a rule leaves
// unattributed are credited to it. An empty change set is not evaluated.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	if e == nil || len(changes) == 0 {
		return combined, nil
	}
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		for i := range res.Violations {
			if res.Violations[i].Rule == "" {
				res.Violations[i].Rule = rule.Name()
			}
		}
		combined.Merge(res)
	}
	return combined, nil
}
