package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultSyncPollInterval = 2 * time.Second

// FileSync feeds every change to a local snapshot file into a Bridge.
type FileSync struct {
	path         string
	bridge       *Bridge
	logger       *log.Logger
	pull         bool
	pollInterval time.Duration

	mu   sync.Mutex
	last []byte // last content sent or pulled; suppresses echoes
}

// FileSyncOption configures a FileSync.
type FileSyncOption func(*FileSync)

// WithPull writes the server copy into the file on start when the file is
// missing or empty.
func WithPull(pull bool) FileSyncOption {
	return func(f *FileSync) { f.pull = pull }
}

// WithSyncPollInterval sets the fallback poll interval (default 2s).
func WithSyncPollInterval(d time.Duration) FileSyncOption {
	return func(f *FileSync) { f.pollInterval = d }
}

// NewFileSync returns a FileSync for path. A nil logger discards output.
func NewFileSync(path string, bridge *Bridge, logger *log.Logger, opts ...FileSyncOption) *FileSync {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	f := &FileSync{
		path:         filepath.Clean(path),
		bridge:       bridge,
		logger:       logger,
		pollInterval: defaultSyncPollInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run syncs until ctx is cancelled. If fsnotify cannot watch the file's
// directory, the poll loop alone picks up changes. The bridge is not closed.
func (f *FileSync) Run(ctx context.Context) error {
	if f.pull {
		if err := f.pullInitial(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	if f.last == nil {
		f.last, _ = os.ReadFile(f.path)
	}
	f.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.logger.Printf("FileSync: fsnotify init failed (%v), using poll-only", err)
	} else if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		f.logger.Printf("FileSync: fsnotify add %s failed (%v), using poll-only", filepath.Dir(f.path), err)
		_ = watcher.Close()
		watcher = nil
	}
	if watcher != nil {
		defer watcher.Close()
		go f.watchLoop(ctx, watcher)
	}

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.sync()
		}
	}
}

func (f *FileSync) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			f.sync()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.Printf("FileSync: watch error: %v", err)
		}
	}
}

// pullInitial fills a missing or empty file with the server's snapshot.
func (f *FileSync) pullInitial(ctx context.Context) error {
	cur, err := os.ReadFile(f.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(bytes.TrimSpace(cur)) > 0 {
		return nil
	}
	data, ok, err := f.bridge.LoadInitial(ctx)
	if err != nil {
		return err
	}
	if !ok {
		f.logger.Printf("FileSync: server has no snapshot, nothing to pull")
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	f.mu.Lock()
	f.last = append([]byte(nil), data...)
	f.mu.Unlock()
	f.logger.Printf("FileSync: pulled %d bytes into %s", len(data), f.path)
	return nil
}

// sync reads the file and notifies the bridge if its content changed.
func (f *FileSync) sync() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Printf("FileSync: read %s: %v", f.path, err)
		}
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if bytes.Equal(data, f.last) {
		return
	}
	if !json.Valid(data) {
		// Partial write; a later event carries the full document.
		return
	}
	if err := f.bridge.Notify(json.RawMessage(data)); err != nil {
		f.logger.Printf("FileSync: notify: %v", err)
		return
	}
	f.last = data
}
