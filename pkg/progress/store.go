package progress

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

// ErrEmptyKey is returned when a store is called without an application id.
var ErrEmptyKey = errors.New("progress: application id is required")

// Store persists snapshots keyed by application id. Load returns (nil, nil)
// when nothing is stored.
type Store interface {
	Save(ctx context.Context, appID string, snapshot Snapshot) error
	Load(ctx context.Context, appID string) (*Snapshot, error)
	Clear(ctx context.Context, appID string) error
}

// Manager applies the write and read policies on top of a Store: blank
// snapshots are never written unless a lead was captured, every write is
// timestamped, and restores are skipped while a payment return is being
// processed.
type Manager struct {
	store Store
	now   func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerClock overrides the clock used for SavedAt.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager wraps store. A nil store disables persistence.
func NewManager(store Store, options ...ManagerOption) *Manager {
	m := &Manager{store: store, now: time.Now}
	for _, opt := range options {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Save writes snapshot unless it is blank. It reports whether a write
// happened.
func (m *Manager) Save(ctx context.Context, appID string, snapshot Snapshot) (bool, error) {
	if m == nil || m.store == nil {
		return false, nil
	}
	if strings.TrimSpace(appID) == "" {
		return false, ErrEmptyKey
	}
	if snapshot.Blank() {
		return false, nil
	}
	snapshot.FormData = snapshot.FormData.Clone()
	snapshot.SavedAt = m.now().UnixMilli()
	if err := m.store.Save(ctx, appID, snapshot); err != nil {
		return false, err
	}
	return true, nil
}

// Restore loads the snapshot for appID unless query carries the payment
// return marker.
func (m *Manager) Restore(ctx context.Context, appID string, query url.Values) (*Snapshot, error) {
	if m == nil || m.store == nil || HasReturnMarker(query) {
		return nil, nil
	}
	if strings.TrimSpace(appID) == "" {
		return nil, ErrEmptyKey
	}
	return m.store.Load(ctx, appID)
}

// Clear deletes the snapshot for appID.
func (m *Manager) Clear(ctx context.Context, appID string) error {
	if m == nil || m.store == nil {
		return nil
	}
	if strings.TrimSpace(appID) == "" {
		return ErrEmptyKey
	}
	return m.store.Clear(ctx, appID)
}
