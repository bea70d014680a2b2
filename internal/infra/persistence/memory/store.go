// Package memory provides an in-memory implementation of the persistence
// store. Durable backends embed it and attach a flush hook.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"labbook/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Page aliases domain.Page for in-memory persistence operations.
	Page = domain.Page
	// Run aliases domain.Run.
	Run = domain.Run
	// Snapshot aliases domain.Snapshot, the unit of load and flush.
	Snapshot = domain.Snapshot
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// FlushFunc writes a committed snapshot to a durable backend. It runs while
// the store holds its write lock; a returned error rolls the transaction back.
type FlushFunc func(ctx context.Context, snapshot Snapshot) error

// memoryState keeps both collections in insertion order, newest first.
type memoryState struct {
	pages []Page
	runs  []Run
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	cp := s.Clone()
	return memoryState{pages: cp.Pages, runs: cp.Runs}
}

func (s memoryState) snapshot() Snapshot {
	return Snapshot{Pages: s.pages, Runs: s.runs}.Clone()
}

func (s memoryState) clone() memoryState {
	return memoryStateFromSnapshot(Snapshot{Pages: s.pages, Runs: s.runs})
}

func (s memoryState) pageIndex(id string) int {
	for i := range s.pages {
		if s.pages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s memoryState) runIndex(id string) int {
	for i := range s.runs {
		if s.runs[i].ID == id {
			return i
		}
	}
	return -1
}

// migrateSnapshot normalises state read from a backend or an import: cell
// pages without an adhesion default to adherent. Ids are expected to be
// checked already (Snapshot.CheckIDs).
func migrateSnapshot(snapshot Snapshot) Snapshot {
	var out Snapshot
	for _, p := range snapshot.Pages {
		if cell, ok := p.Cell(); ok && cell.Adhesion == "" {
			cell.Adhesion = domain.Adherent
			p.Kind = cell
		}
		out.Pages = append(out.Pages, p)
	}
	out.Runs = append(out.Runs, snapshot.Runs...)
	return out
}

// Store provides an in-memory transactional store for pages and runs.
type Store struct {
	mu        sync.RWMutex
	state     memoryState
	engine    *RulesEngine
	nowFn     func() time.Time
	flush     FlushFunc
	persisted bool
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetFlushFunc installs the hook called with the new state before every commit.
func (s *Store) SetFlushFunc(fn FlushFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flush = fn
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.snapshot()
}

// ImportState replaces the store state with the provided snapshot without
// flushing it. Backends use it to hydrate from what they loaded.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
	s.persisted = true
}

// HasState reports whether state was loaded or has been committed.
func (s *Store) HasState() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persisted
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// Close releases nothing; it exists to satisfy the persistence contract.
func (s *Store) Close() error { return nil }

type transaction struct {
	state   memoryState
	changes []Change
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListPages returns the pages in collection order.
func (v transactionView) ListPages() []Page {
	out := make([]Page, 0, len(v.state.pages))
	for _, p := range v.state.pages {
		out = append(out, p.Clone())
	}
	return out
}

// FindPage looks a page up by id.
func (v transactionView) FindPage(id string) (Page, bool) {
	i := v.state.pageIndex(id)
	if i < 0 {
		return Page{}, false
	}
	return v.state.pages[i].Clone(), true
}

// ListRuns returns the runs in collection order.
func (v transactionView) ListRuns() []Run {
	out := make([]Run, 0, len(v.state.runs))
	for _, r := range v.state.runs {
		out = append(out, r.Clone())
	}
	return out
}

// FindRun looks a run up by id.
func (v transactionView) FindRun(id string) (Run, bool) {
	i := v.state.runIndex(id)
	if i < 0 {
		return Run{}, false
	}
	return v.state.runs[i].Clone(), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only after rules pass and the flush hook,
// if any, succeeds.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}
	if len(tx.changes) == 0 {
		return result, nil
	}

	if s.flush != nil {
		if err := s.flush(ctx, tx.state.snapshot()); err != nil {
			return result, fmt.Errorf("flush state: %w", err)
		}
	}
	s.state = tx.state
	s.persisted = true
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// UpsertPage replaces the page with the same id in place or inserts it at the front.
func (tx *transaction) UpsertPage(p Page) (Page, error) {
	if err := p.Validate(); err != nil {
		return Page{}, err
	}
	stored := p.Clone()
	if i := tx.state.pageIndex(p.ID); i >= 0 {
		before := tx.state.pages[i]
		tx.state.pages[i] = stored
		tx.recordChange(Change{Entity: domain.EntityPage, Action: domain.ActionUpdate, Before: before.Clone(), After: stored.Clone()})
		return stored.Clone(), nil
	}
	tx.state.pages = append([]Page{stored}, tx.state.pages...)
	tx.recordChange(Change{Entity: domain.EntityPage, Action: domain.ActionCreate, After: stored.Clone()})
	return stored.Clone(), nil
}

// UpdatePage mutates a page in place using the provided mutator function.
func (tx *transaction) UpdatePage(id string, mutator func(*Page) error) (Page, error) {
	i := tx.state.pageIndex(id)
	if i < 0 {
		return Page{}, domain.NotFoundError{Entity: domain.EntityPage, ID: id}
	}
	before := tx.state.pages[i].Clone()
	current := before.Clone()
	if err := mutator(&current); err != nil {
		return Page{}, err
	}
	current.ID = id
	if err := current.Validate(); err != nil {
		return Page{}, err
	}
	tx.state.pages[i] = current.Clone()
	tx.recordChange(Change{Entity: domain.EntityPage, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current, nil
}

// DeletePage removes a page; runs referencing it are left untouched.
func (tx *transaction) DeletePage(id string) bool {
	i := tx.state.pageIndex(id)
	if i < 0 {
		return false
	}
	before := tx.state.pages[i]
	tx.state.pages = append(tx.state.pages[:i:i], tx.state.pages[i+1:]...)
	tx.recordChange(Change{Entity: domain.EntityPage, Action: domain.ActionDelete, Before: before.Clone()})
	return true
}

// UpsertRun replaces the run with the same id in place or inserts it at the front.
func (tx *transaction) UpsertRun(r Run) (Run, error) {
	if r.ID == "" {
		return Run{}, domain.ValidationError{Field: "id", Message: "run id is required"}
	}
	stored := r.Clone()
	if i := tx.state.runIndex(r.ID); i >= 0 {
		before := tx.state.runs[i]
		tx.state.runs[i] = stored
		tx.recordChange(Change{Entity: domain.EntityRun, Action: domain.ActionUpdate, Before: before.Clone(), After: stored.Clone()})
		return stored.Clone(), nil
	}
	tx.state.runs = append([]Run{stored}, tx.state.runs...)
	tx.recordChange(Change{Entity: domain.EntityRun, Action: domain.ActionCreate, After: stored.Clone()})
	return stored.Clone(), nil
}

// UpdateRun mutates a run in place using the provided mutator function.
func (tx *transaction) UpdateRun(id string, mutator func(*Run) error) (Run, error) {
	i := tx.state.runIndex(id)
	if i < 0 {
		return Run{}, domain.NotFoundError{Entity: domain.EntityRun, ID: id}
	}
	before := tx.state.runs[i].Clone()
	current := before.Clone()
	if err := mutator(&current); err != nil {
		return Run{}, err
	}
	current.ID = id
	tx.state.runs[i] = current.Clone()
	tx.recordChange(Change{Entity: domain.EntityRun, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current, nil
}

// DeleteRun removes a run.
func (tx *transaction) DeleteRun(id string) bool {
	i := tx.state.runIndex(id)
	if i < 0 {
		return false
	}
	before := tx.state.runs[i]
	tx.state.runs = append(tx.state.runs[:i:i], tx.state.runs[i+1:]...)
	tx.recordChange(Change{Entity: domain.EntityRun, Action: domain.ActionDelete, Before: before.Clone()})
	return true
}

// ReplaceState swaps both collections for the provided snapshot. Empty or
// reused ids are a FormatError.
func (tx *transaction) ReplaceState(snapshot Snapshot) error {
	if err := snapshot.CheckIDs(); err != nil {
		return err
	}
	migrated := migrateSnapshot(snapshot.Clone())
	for _, p := range migrated.Pages {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	before := tx.state.snapshot()
	tx.state = memoryStateFromSnapshot(migrated)
	tx.recordChange(Change{Entity: domain.EntityPage, Action: domain.ActionReplace, Before: before, After: migrated.Clone()})
	return nil
}

// GetPage returns the page with id.
func (s *Store) GetPage(id string) (Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.state.pageIndex(id)
	if i < 0 {
		return Page{}, false
	}
	return s.state.pages[i].Clone(), true
}

// ListPages returns all pages in collection order.
func (s *Store) ListPages() []Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListPages()
}

// GetRun returns the run with id.
func (s *Store) GetRun(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.state.runIndex(id)
	if i < 0 {
		return Run{}, false
	}
	return s.state.runs[i].Clone(), true
}

// ListRuns returns all runs in collection order.
func (s *Store) ListRuns() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListRuns()
}
