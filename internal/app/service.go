package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaakkos/sketchstore/internal/domain"
)

// Triggerable is something that can be triggered after a store write (e.g. Notifier).
type Triggerable interface {
	Trigger()
}

// EditorService runs the editor store use cases over the snapshot repository.
// Operations are serialized; concurrent saves resolve last-write-wins.
type EditorService struct {
	repo     SnapshotRepository
	policy   Policy
	logger   *log.Logger
	now      func() time.Time
	mu       sync.Mutex
	notifier Triggerable // optional; set via SetNotifier after construction
}

// NewEditorService returns a new EditorService. A nil logger discards output.
func NewEditorService(repo SnapshotRepository, policy Policy, logger *log.Logger) *EditorService {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &EditorService{repo: repo, policy: policy, logger: logger, now: time.Now}
}

// SetNotifier attaches a Triggerable (e.g. *Notifier) that is poked after every write.
func (s *EditorService) SetNotifier(n Triggerable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Snapshot returns a copy of the current snapshot including bookkeeping.
func (s *EditorService) Snapshot() (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.repo.Load()
	if err != nil {
		return nil, fmt.Errorf("snapshot load: %w", err)
	}
	return snap.Clone(), nil
}

// GetStoreData returns the stored data, or null if nothing was saved.
func (s *EditorService) GetStoreData() (domain.StoreData, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return domain.StoreData{}, err
	}
	s.logger.Printf("getStoreData requested - revision %d, %d bytes", snap.Revision, len(snap.Data))
	return domain.StoreData{Data: snap.Data}, nil
}

// SaveStoreData replaces the stored data with raw. Any JSON value is accepted;
// empty input stores null.
func (s *EditorService) SaveStoreData(raw json.RawMessage) (domain.SaveResult, error) {
	data, err := domain.Normalize(raw)
	if err != nil {
		return domain.SaveResult{}, err
	}

	var saved *domain.Snapshot
	err = s.write(func(cur *domain.Snapshot) (*domain.Snapshot, error) {
		next := &domain.Snapshot{
			Data:      data,
			Revision:  cur.Revision + 1,
			VersionID: uuid.NewString(),
			UpdatedAt: s.now(),
		}
		if err := s.repo.Save(next); err != nil {
			return nil, fmt.Errorf("snapshot save: %w", err)
		}
		saved = next
		return next, nil
	})
	if err != nil {
		return domain.SaveResult{}, err
	}
	s.logger.Printf("saveStoreData: revision %d, %d bytes", saved.Revision, len(saved.Data))
	return domain.SaveResult{Success: true, Data: append(json.RawMessage(nil), saved.Data...)}, nil
}

// ClearStoreData resets the stored data to null.
func (s *EditorService) ClearStoreData() (domain.ClearResult, error) {
	var cleared *domain.Snapshot
	err := s.write(func(cur *domain.Snapshot) (*domain.Snapshot, error) {
		next := &domain.Snapshot{
			Data:      domain.Null,
			Revision:  cur.Revision + 1,
			UpdatedAt: s.now(),
		}
		if err := s.repo.Clear(); err != nil {
			return nil, fmt.Errorf("snapshot clear: %w", err)
		}
		// Clear drops bookkeeping in some backends; persist the bumped revision.
		if err := s.repo.Save(next); err != nil {
			return nil, fmt.Errorf("snapshot save: %w", err)
		}
		cleared = next
		return next, nil
	})
	if err != nil {
		return domain.ClearResult{}, err
	}
	s.logger.Printf("clearStoreData: revision %d", cleared.Revision)
	return domain.ClearResult{Success: true}, nil
}

// write loads the current snapshot, runs fn, then signals watchers.
// If the repository cannot be loaded the error is returned; a write never
// proceeds from an assumed-empty snapshot.
func (s *EditorService) write(fn func(cur *domain.Snapshot) (*domain.Snapshot, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.repo.Load()
	if err != nil {
		return fmt.Errorf("snapshot load: %w", err)
	}
	if cur == nil {
		cur = domain.NewSnapshot()
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	if s.policy != nil {
		if err := TouchNotifySignal(s.policy.SignalFilePath(), next.Revision); err != nil {
			s.logger.Printf("Warning: touch notify signal: %v", err)
		}
	}
	if s.notifier != nil {
		s.notifier.Trigger()
	}
	return nil
}

// Policy returns the policy for handlers that need tool toggles etc.
func (s *EditorService) Policy() Policy { return s.policy }
