// Package backup moves export files between the lab book and a blob store or
// plain streams. Export files are named after the local time they were taken
// and kept under Prefix.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"labbook/internal/blob"
)

const (
	// Prefix is the key prefix every backup is stored under.
	Prefix = "backups/"
	// ContentType is the media type of export files.
	ContentType = "application/json"

	fileLayout = "lab_os_backup_20060102_150405.json"
)

// ErrNoState is returned by exports when nothing has ever been persisted.
var ErrNoState = errors.New("backup: no state to export")

// Service is the part of core.Service a backup needs.
type Service interface {
	ExportJSON(ctx context.Context) ([]byte, bool, error)
	ImportAll(ctx context.Context, payload []byte) error
}

// FileName returns the export file name for t, in local time.
func FileName(t time.Time) string {
	return t.Local().Format(fileLayout)
}

// IsBackupName reports whether name has the export file layout.
func IsBackupName(name string) bool {
	_, err := time.ParseInLocation(fileLayout, name, time.Local)
	return err == nil
}

// WriteTo writes the export file contents to w.
func WriteTo(ctx context.Context, svc Service, w io.Writer) (int64, error) {
	data, ok, err := svc.ExportJSON(ctx)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	if !ok {
		return 0, ErrNoState
	}
	n, err := w.Write(data)
	return int64(n), err
}

// ReadFrom imports an export file read from r, replacing the whole state.
func ReadFrom(ctx context.Context, svc Service, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	return svc.ImportAll(ctx, data)
}

// Manager stores and restores backups in a blob store.
type Manager struct {
	svc   Service
	store blob.Store
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time used to name new backups.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager returns a Manager backed by store.
func NewManager(svc Service, store blob.Store, opts ...Option) *Manager {
	m := &Manager{svc: svc, store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the blob store backups are written to.
func (m *Manager) Store() blob.Store { return m.store }

// Export writes the current state as a new backup. Two exports within the
// same second collide and the second fails with blob.ErrExists.
func (m *Manager) Export(ctx context.Context) (blob.Info, error) {
	data, ok, err := m.svc.ExportJSON(ctx)
	if err != nil {
		return blob.Info{}, fmt.Errorf("export: %w", err)
	}
	if !ok {
		return blob.Info{}, ErrNoState
	}
	taken := m.now()
	key := Prefix + FileName(taken)
	info, err := m.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: ContentType,
		Metadata:    map[string]string{"taken-at": taken.UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store backup %s: %w", key, err)
	}
	return info, nil
}

// Import restores the backup stored under key. A bare file name is looked up
// under Prefix.
func (m *Manager) Import(ctx context.Context, key string) error {
	key = Key(key)
	_, rc, err := m.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("open backup %s: %w", key, err)
	}
	defer rc.Close()
	return ReadFrom(ctx, m.svc, rc)
}

// List returns the stored backups, newest first.
func (m *Manager) List(ctx context.Context) ([]blob.Info, error) {
	infos, err := m.store.List(ctx, Prefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	out := infos[:0]
	for _, info := range infos {
		if IsBackupName(strings.TrimPrefix(info.Key, Prefix)) {
			out = append(out, info)
		}
	}
	// Names embed the timestamp, so key order is time order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// URL returns a time-limited download link for the backup under key. Stores
// that cannot sign links return blob.ErrUnsupported.
func (m *Manager) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	key = Key(key)
	if _, err := m.store.Head(ctx, key); err != nil {
		return "", fmt.Errorf("backup %s: %w", key, err)
	}
	return m.store.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: expiry})
}

// Key returns the blob key of a backup given its key or bare file name.
func Key(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, Prefix) {
		return name
	}
	return Prefix + name
}
