package core

import (
	"context"

	"labbook/pkg/domain"
)

// ExportAll returns the whole persisted state. ok is false when nothing has
// been persisted yet.
func (s *Service) ExportAll(ctx context.Context) (Snapshot, bool) {
	if !s.store.HasState() {
		return Snapshot{}, false
	}
	var snapshot Snapshot
	s.view(ctx, func(v TransactionView) {
		snapshot = Snapshot{Pages: v.ListPages(), Runs: v.ListRuns()}
	})
	return snapshot, true
}

// ExportJSON returns the export file contents: the persisted layout as
// 2-space indented JSON.
func (s *Service) ExportJSON(ctx context.Context) ([]byte, bool, error) {
	snapshot, ok := s.ExportAll(ctx)
	if !ok {
		return nil, false, nil
	}
	data, err := domain.EncodeSnapshotIndent(snapshot)
	if err != nil {
		return nil, true, err
	}
	return data, true, nil
}

// ImportAll replaces the whole state with a payload in the persisted layout.
// A payload without pages and runs arrays is a FormatError and leaves the
// state untouched.
func (s *Service) ImportAll(ctx context.Context, payload []byte) error {
	snapshot, err := domain.DecodeSnapshot(payload)
	if err != nil {
		s.logger.Warn("import rejected", "operation", "import", "err", err)
		return err
	}
	return s.ImportSnapshot(ctx, snapshot)
}

// ImportSnapshot atomically replaces both collections and flushes them.
// Values read before the import are stale afterwards; the reload hook, if
// any, is told once the new state is committed.
func (s *Service) ImportSnapshot(ctx context.Context, snapshot Snapshot) error {
	err := s.mutate(ctx, "import", func(tx Transaction) (string, error) {
		return "", tx.ReplaceState(snapshot)
	})
	if err != nil {
		return err
	}
	s.logger.Info("state imported", "pages", len(snapshot.Pages), "runs", len(snapshot.Runs))
	if s.onReload != nil {
		s.onReload()
	}
	return nil
}
