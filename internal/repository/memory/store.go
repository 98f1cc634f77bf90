// Package memory keeps the editor snapshot in a process-local variable.
// Nothing survives a restart.
package memory

import (
	"fmt"
	"sync"

	"github.com/jaakkos/sketchstore/internal/domain"
)

// Store implements app.SnapshotRepository with a single guarded variable.
type Store struct {
	mu   sync.RWMutex
	snap *domain.Snapshot
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Load implements app.SnapshotRepository. Callers get their own copy.
func (s *Store) Load() (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return domain.NewSnapshot(), nil
	}
	return s.snap.Clone(), nil
}

// Save implements app.SnapshotRepository.
func (s *Store) Save(snap *domain.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}
	c := snap.Clone()
	s.mu.Lock()
	s.snap = c
	s.mu.Unlock()
	return nil
}

// Clear implements app.SnapshotRepository.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.snap = nil
	s.mu.Unlock()
	return nil
}

// Close is a no-op so the store satisfies io.Closer like the sqlite backend.
func (s *Store) Close() error { return nil }
