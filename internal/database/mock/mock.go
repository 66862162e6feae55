// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-auth/internal/database"
)

// Ensure MockPersister implements database.SnapshotPersister at compile time
var _ database.SnapshotPersister = (*MockPersister)(nil)

// MockPersister is an in-memory database.SnapshotPersister that records every save.
type MockPersister struct {
	mu    sync.Mutex
	saved database.Snapshot
	saves int

	// Error injection
	LoadError error
	SaveError error

	// OnSave, when set, runs before each save is recorded.
	OnSave func(database.Snapshot)
}

// NewMockPersister creates a persister whose Load returns initial.
func NewMockPersister(initial database.Snapshot) *MockPersister {
	if initial == nil {
		initial = make(database.Snapshot)
	}
	return &MockPersister{saved: initial.Clone()}
}

// Name returns the backend name.
func (m *MockPersister) Name() string {
	return "mock"
}

// Load returns the last saved snapshot.
func (m *MockPersister) Load(ctx context.Context) (database.Snapshot, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved.Clone(), nil
}

// Save records the snapshot unless SaveError is set.
func (m *MockPersister) Save(ctx context.Context, snapshot database.Snapshot) error {
	if m.OnSave != nil {
		m.OnSave(snapshot)
	}
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = snapshot.Clone()
	m.saves++
	return nil
}

// Saved returns a copy of the last successfully saved snapshot.
func (m *MockPersister) Saved() database.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved.Clone()
}

// Saves returns the number of successful saves.
func (m *MockPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
