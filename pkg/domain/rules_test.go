package domain

import (
	"context"
	"errors"
	"testing"
)

type ruleFunc struct {
	name string
	fn   func([]Change) (Result, error)
}

func (r ruleFunc) Name() string { return r.name }

func (r ruleFunc) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	return r.fn(changes)
}

func TestRulesEngineAttributesViolations(t *testing.T) {
	calls := 0
	warn := ruleFunc{name: "warn", fn: func([]Change) (Result, error) {
		calls++
		return Result{Violations: []Violation{{Severity: SeverityWarn, Message: "w"}}}, nil
	}}
	named := ruleFunc{name: "named", fn: func([]Change) (Result, error) {
		return Result{Violations: []Violation{{Rule: "custom", Severity: SeverityBlock, Message: "b"}}}, nil
	}}
	engine := NewRulesEngine(warn, nil)
	engine.Register(named)
	if got := engine.Names(); len(got) != 2 || got[0] != "warn" || got[1] != "named" {
		t.Fatalf("unexpected rule names %v", got)
	}

	res, err := engine.Evaluate(context.Background(), nil, nil)
	if err != nil || len(res.Violations) != 0 || calls != 0 {
		t.Fatalf("empty change set must skip rules: %+v %v calls=%d", res, err, calls)
	}

	res, err = engine.Evaluate(context.Background(), nil, []Change{{Entity: EntityPage, Action: ActionCreate}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || res.Violations[0].Rule != "warn" || res.Violations[1].Rule != "custom" {
		t.Fatalf("unexpected violations %+v", res.Violations)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
}

func TestRulesEngineWrapsRuleErrors(t *testing.T) {
	boom := errors.New("boom")
	engine := NewRulesEngine(ruleFunc{name: "broken", fn: func([]Change) (Result, error) { return Result{}, boom }})
	_, err := engine.Evaluate(context.Background(), nil, []Change{{Entity: EntityRun, Action: ActionUpdate}})
	if !errors.Is(err, boom) || err.Error() != "rule broken: boom" {
		t.Fatalf("unexpected error %v", err)
	}
	var nilEngine *RulesEngine
	if res, err := nilEngine.Evaluate(context.Background(), nil, []Change{{}}); err != nil || len(res.Violations) != 0 {
		t.Fatalf("nil engine must accept everything")
	}
	if nilEngine.Names() != nil {
		t.Fatalf("nil engine has no rules")
	}
}
