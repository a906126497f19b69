package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/aqueduct/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Snapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Snapshot),
	}
}

// Save persists the snapshot in memory.
func (s *Store) Save(ctx context.Context, workspaceID string, snap domain.Snapshot) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := snap.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[workspaceID] = copied
	return nil
}

// Load retrieves the snapshot from memory.
func (s *Store) Load(ctx context.Context, workspaceID string) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[workspaceID]
	if !ok {
		return domain.Snapshot{}, domain.ErrNotFound
	}

	// Copy on read so the caller can't mutate store state
	return snap.Clone(), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, workspaceID)
	return nil
}

// List returns saved workspaces in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
