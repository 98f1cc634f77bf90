package app

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jaakkos/sketchstore/internal/debounce"
)

const (
	defaultDebounce     = 200 * time.Millisecond
	defaultPollInterval = 10 * time.Second

	// StoreUpdatedMethod is the notification pushed when the snapshot changes.
	StoreUpdatedMethod = "notifications/store_updated"
)

// StoreUpdateParams is the payload for notifications/store_updated.
type StoreUpdateParams struct {
	Revision  int64  `json:"revision"`
	VersionID string `json:"version_id,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
	Empty     bool   `json:"empty"`
	Bytes     int    `json:"bytes"`
}

// PushFunc delivers a notification to connected clients.
type PushFunc func(method string, params any) error

// Notifier pushes store_updated notifications when the snapshot revision
// changes. It watches the signal file (writes from other processes sharing
// a sqlite store) and is triggered directly by same-process writes.
type Notifier struct {
	signalPath   string
	repo         SnapshotRepository
	pushFunc     PushFunc
	logger       *log.Logger
	debounceWait time.Duration
	pollInterval time.Duration

	mu           sync.Mutex
	lastRevision int64
	pushedOnce   bool
	lastStamp    string
	debouncer    *debounce.Debouncer[struct{}]
	watcher      *fsnotify.Watcher
	stopCh       chan struct{}
	doneCh       chan struct{}
	stopOnce     sync.Once
	pushMu       sync.Mutex // serializes checkAndPush to prevent duplicate pushes
}

// NotifierOption configures the notifier.
type NotifierOption func(*Notifier)

// WithPollInterval sets the fallback poll interval (default 10s).
func WithPollInterval(d time.Duration) NotifierOption {
	return func(n *Notifier) {
		n.pollInterval = d
	}
}

// WithDebounce sets how long bursts of writes are coalesced (default 200ms).
func WithDebounce(d time.Duration) NotifierOption {
	return func(n *Notifier) {
		n.debounceWait = d
	}
}

// NewNotifier creates a notifier. signalPath may be empty, in which case only
// Trigger and the poll loop drive checks.
func NewNotifier(signalPath string, repo SnapshotRepository, pushFunc PushFunc, logger *log.Logger, opts ...NotifierOption) *Notifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	n := &Notifier{
		signalPath:   signalPath,
		repo:         repo,
		pushFunc:     pushFunc,
		logger:       logger,
		debounceWait: defaultDebounce,
		pollInterval: defaultPollInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, o := range opts {
		o(n)
	}
	n.debouncer = debounce.New(n.debounceWait, func(struct{}) { n.checkAndPush() })
	return n
}

// Start starts the file watcher and fallback poll. Returns when ctx is cancelled
// or Stop is called. If fsnotify fails to initialize, falls back to poll-only mode.
func (n *Notifier) Start(ctx context.Context) {
	defer close(n.doneCh)

	// Record the starting revision so a restart doesn't re-announce old data.
	n.primeRevision()

	if n.signalPath != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			n.logger.Printf("Notifier: fsnotify init failed (%v), using poll-only", err)
		} else if err := watcher.Add(filepath.Dir(n.signalPath)); err != nil {
			n.logger.Printf("Notifier: fsnotify add %s failed (%v), using poll-only", filepath.Dir(n.signalPath), err)
			_ = watcher.Close()
		} else {
			n.watcher = watcher
			defer n.watcher.Close()
			go n.watchLoop(ctx, filepath.Base(n.signalPath))
		}
	}

	n.pollLoop(ctx)
	n.debouncer.Stop()
}

// Stop signals the notifier to stop and waits for Start to return.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() { close(n.stopCh) })
	<-n.doneCh
}

// CheckOnce runs one check-and-push cycle (for testing or manual trigger).
func (n *Notifier) CheckOnce() {
	n.checkAndPush()
}

// Trigger schedules a debounced check. Call after a same-process write;
// fsnotify may coalesce or miss those events.
func (n *Notifier) Trigger() {
	_ = n.debouncer.Call(struct{}{})
}

func (n *Notifier) watchLoop(ctx context.Context, signalName string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stopCh:
			return
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != signalName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !n.stampChanged() {
				continue
			}
			n.Trigger()
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.logger.Printf("Notifier: watch error: %v", err)
		}
	}
}

// stampChanged reports whether the signal file holds a stamp not seen before.
// A single write often produces several fsnotify events.
func (n *Notifier) stampChanged() bool {
	stamp := ReadNotifySignal(n.signalPath)
	n.mu.Lock()
	defer n.mu.Unlock()
	if stamp == "" || stamp == n.lastStamp {
		return false
	}
	n.lastStamp = stamp
	return true
}

func (n *Notifier) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.checkAndPush()
		}
	}
}

func (n *Notifier) primeRevision() {
	snap, err := n.repo.Load()
	if err != nil || snap == nil {
		return
	}
	n.mu.Lock()
	n.lastRevision = snap.Revision
	n.pushedOnce = true
	n.mu.Unlock()
}

func (n *Notifier) checkAndPush() {
	// The debounce timer and the poll loop can both get here; without the
	// lock both would pass the revision check and push twice.
	n.pushMu.Lock()
	defer n.pushMu.Unlock()

	snap, err := n.repo.Load()
	if err != nil {
		n.logger.Printf("Notifier: load snapshot: %v", err)
		return
	}
	if snap == nil {
		return
	}

	n.mu.Lock()
	unchanged := n.pushedOnce && snap.Revision == n.lastRevision
	n.mu.Unlock()
	if unchanged {
		return
	}

	params := StoreUpdateParams{
		Revision:  snap.Revision,
		VersionID: snap.VersionID,
		Empty:     snap.IsEmpty(),
		Bytes:     len(snap.Data),
	}
	if !snap.UpdatedAt.IsZero() {
		params.UpdatedAt = snap.UpdatedAt.Format(time.RFC3339Nano)
	}
	if n.pushFunc != nil {
		if err := n.pushFunc(StoreUpdatedMethod, params); err != nil {
			n.logger.Printf("Notifier: push failed: %v", err)
			return
		}
	}

	n.mu.Lock()
	n.lastRevision = snap.Revision
	n.pushedOnce = true
	n.mu.Unlock()
}
