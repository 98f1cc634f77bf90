// Package app implements the editor store use cases and defines ports (repository interfaces).
package app

import (
	"github.com/jaakkos/sketchstore/internal/domain"
)

// SnapshotRepository holds the single editor snapshot.
// Implementations: internal/repository/memory, internal/repository/sqlite.
type SnapshotRepository interface {
	Load() (*domain.Snapshot, error)
	Save(*domain.Snapshot) error
	Clear() error
}
