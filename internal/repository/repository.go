package repository

import (
	"errors"
	"fmt"

	"github.com/jaakkos/sketchstore/internal/app"
	"github.com/jaakkos/sketchstore/internal/policy"
	"github.com/jaakkos/sketchstore/internal/repository/memory"
	"github.com/jaakkos/sketchstore/internal/repository/sqlite"
)

// ErrUnknownDriver is returned for a store driver name that has no backend.
var ErrUnknownDriver = errors.New("unknown store driver")

// NewSnapshotRepository returns the SnapshotRepository selected by cfg.Driver:
// "memory" (default) or "sqlite" at cfg.Path.
func NewSnapshotRepository(cfg policy.StoreConfig) (app.SnapshotRepository, error) {
	switch cfg.Driver {
	case "", policy.DriverMemory:
		return memory.New(), nil
	case policy.DriverSQLite:
		return sqlite.New(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
