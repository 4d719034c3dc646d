package snapshot

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

// MemoryStore keeps deep copies so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]models.Snapshot
	writes    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[uuid.UUID]models.Snapshot)}
}

func (m *MemoryStore) Get(ctx context.Context, draftID uuid.UUID) (models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[draftID]
	if !ok {
		return models.Snapshot{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, s models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.snapshots[s.DraftID]; ok && s.Cursor().Before(prev.Cursor()) {
		return ErrStaleWrite
	}
	m.snapshots[s.DraftID] = s.Clone()
	m.writes++
	return nil
}

// Writes counts successful Put calls.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
