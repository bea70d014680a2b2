package domain

import (
	"context"
	"fmt"
	"time"
)

// EntityType names the record collections tracked in change sets.
type EntityType string

// Entity types.
const (
	EntityPage EntityType = "page"
	EntityRun  EntityType = "run"
)

// Snapshot is the complete persisted state. Order is significant: both
// collections are kept in insertion order with the newest record first.
type Snapshot struct {
	Pages []Page
	Runs  []Run
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	var out Snapshot
	if len(s.Pages) > 0 {
		out.Pages = make([]Page, len(s.Pages))
		for i, p := range s.Pages {
			out.Pages[i] = p.Clone()
		}
	}
	if len(s.Runs) > 0 {
		out.Runs = make([]Run, len(s.Runs))
		for i, r := range s.Runs {
			out.Runs[i] = r.Clone()
		}
	}
	return out
}

// CheckIDs reports a FormatError when a page or run has an empty id or
// reuses an id already taken in its collection.
func (s Snapshot) CheckIDs() error {
	seen := make(map[string]struct{}, len(s.Pages))
	for i, p := range s.Pages {
		if err := checkID(seen, "pages", i, p.ID); err != nil {
			return err
		}
	}
	seen = make(map[string]struct{}, len(s.Runs))
	for i, r := range s.Runs {
		if err := checkID(seen, "runs", i, r.ID); err != nil {
			return err
		}
	}
	return nil
}

func checkID(seen map[string]struct{}, collection string, i int, id string) error {
	if id == "" {
		return FormatError{Reason: fmt.Sprintf("%s[%d]: missing id", collection, i)}
	}
	if _, dup := seen[id]; dup {
		return FormatError{Reason: fmt.Sprintf("%s[%d]: duplicate id %q", collection, i, id)}
	}
	seen[id] = struct{}{}
	return nil
}

// Change describes a mutation applied to a record during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionReplace marks a full state replacement by import.
	ActionReplace Action = "replace"
)

// Severity classifies a rule violation.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	ListPages() []Page
	FindPage(id string) (Page, bool)
	ListRuns() []Run
	FindRun(id string) (Run, bool)
}

// Transaction exposes the mutations a persistence implementation must support
// within an atomic scope. Records are stored as given; identity and timestamps
// are the caller's responsibility.
type Transaction interface {
	Snapshot() TransactionView
	// UpsertPage replaces the page with the same id in place, or inserts it at the front.
	UpsertPage(Page) (Page, error)
	UpdatePage(id string, mutator func(*Page) error) (Page, error)
	// DeletePage reports whether a page was removed.
	DeletePage(id string) bool
	UpsertRun(Run) (Run, error)
	UpdateRun(id string, mutator func(*Run) error) (Run, error)
	DeleteRun(id string) bool
	// ReplaceState discards both collections in favour of snapshot.
	ReplaceState(Snapshot) error
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ExportState() Snapshot
	// HasState reports whether any state has been persisted, either loaded from
	// the backend or written by a committed transaction.
	HasState() bool
	NowFunc() func() time.Time
	Close() error
}
