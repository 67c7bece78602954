// Package mock provides in-memory test doubles for the store interfaces.
//
// The mocks are functional: saved baselines and appended session entries are
// retrievable again, so a test can exercise a full request cycle without a
// database. Exported *Err fields force failures. All mocks are safe for
// concurrent use via an internal [sync.Mutex].
package mock

import (
	"context"
	"sync"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/pkg/store"
)

// Compile-time interface checks.
var (
	_ store.BaselineStore = (*BaselineStore)(nil)
	_ store.SessionStore  = (*SessionStore)(nil)
)

// BaselineStore is a functional in-memory [store.BaselineStore].
type BaselineStore struct {
	mu       sync.Mutex
	profiles map[string]*analysis.BaselineProfile

	// SaveErr, GetErr, and DeleteErr force the corresponding method to fail.
	SaveErr   error
	GetErr    error
	DeleteErr error

	// SaveCount counts successful SaveBaseline calls.
	SaveCount int
}

func (m *BaselineStore) SaveBaseline(_ context.Context, profile *analysis.BaselineProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if m.profiles == nil {
		m.profiles = make(map[string]*analysis.BaselineProfile)
	}
	m.profiles[profile.UserID] = profile
	m.SaveCount++
	return nil
}

func (m *BaselineStore) GetBaseline(_ context.Context, userID string) (*analysis.BaselineProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.profiles[userID], nil
}

func (m *BaselineStore) DeleteBaseline(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.profiles, userID)
	return nil
}

// SessionStore is a functional in-memory [store.SessionStore].
type SessionStore struct {
	mu      sync.Mutex
	entries map[string][]store.SessionEntry

	// AppendErr and HistoryErr force the corresponding method to fail.
	AppendErr  error
	HistoryErr error
}

func (m *SessionStore) AppendEntry(_ context.Context, entry store.SessionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	if m.entries == nil {
		m.entries = make(map[string][]store.SessionEntry)
	}
	m.entries[entry.SessionID] = append(m.entries[entry.SessionID], entry)
	return nil
}

func (m *SessionStore) History(_ context.Context, sessionID string, limit int) ([]store.SessionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HistoryErr != nil {
		return nil, m.HistoryErr
	}
	entries := m.entries[sessionID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]store.SessionEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *SessionStore) Summary(ctx context.Context, sessionID string) (map[string]any, error) {
	entries, err := m.History(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	return store.BuildSummary(entries), nil
}
