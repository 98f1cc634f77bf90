package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/jaakkos/sketchstore/internal/debounce"
	"github.com/jaakkos/sketchstore/internal/domain"
)

const (
	defaultDelay       = 500 * time.Millisecond
	defaultSaveTimeout = 30 * time.Second
)

// Remote is the store a Bridge reads from and saves to. Both *Client and
// *api.Caller satisfy it.
type Remote interface {
	GetStoreData(ctx context.Context) (domain.StoreData, error)
	SaveStoreData(ctx context.Context, data json.RawMessage) (domain.SaveResult, error)
}

// Bridge turns a stream of editor change notifications into debounced saves.
// Only the most recent snapshot of a burst is saved.
type Bridge struct {
	remote      Remote
	logger      *log.Logger
	delay       time.Duration
	maxWait     time.Duration
	saveTimeout time.Duration
	onError     func(error)

	deb    *debounce.Debouncer[json.RawMessage]
	sem    chan struct{} // one save at a time
	mu     sync.Mutex
	closed bool
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithDelay sets the quiet period before a save (default 500ms).
func WithDelay(d time.Duration) BridgeOption {
	return func(b *Bridge) { b.delay = d }
}

// WithMaxWait bounds how long continuous changes can postpone a save.
func WithMaxWait(d time.Duration) BridgeOption {
	return func(b *Bridge) { b.maxWait = d }
}

// WithSaveTimeout bounds a single save request (default 30s).
func WithSaveTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) { b.saveTimeout = d }
}

// WithErrorHandler is called with every failed save.
func WithErrorHandler(fn func(error)) BridgeOption {
	return func(b *Bridge) { b.onError = fn }
}

// NewBridge returns a bridge saving to remote. A nil logger discards output.
func NewBridge(remote Remote, logger *log.Logger, opts ...BridgeOption) *Bridge {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	b := &Bridge{
		remote:      remote,
		logger:      logger,
		delay:       defaultDelay,
		saveTimeout: defaultSaveTimeout,
		sem:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	var dopts []debounce.Option
	if b.maxWait > 0 {
		dopts = append(dopts, debounce.WithMaxWait(b.maxWait))
	}
	b.deb = debounce.New(b.delay, func(data json.RawMessage) {
		_ = b.save(context.Background(), data)
	}, dopts...)
	return b
}

// LoadInitial fetches the stored snapshot. ok is false when nothing has
// been saved yet.
func (b *Bridge) LoadInitial(ctx context.Context) (data json.RawMessage, ok bool, err error) {
	out, err := b.remote.GetStoreData(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load store data: %w", err)
	}
	if domain.IsNull(out.Data) {
		return nil, false, nil
	}
	return out.Data, true, nil
}

// Notify records a changed snapshot. The snapshot is serialized right away;
// values that cannot be encoded as JSON are rejected here.
func (b *Bridge) Notify(snapshot any) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}
	if err := b.deb.Call(data); err != nil {
		if errors.Is(err, debounce.ErrStopped) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Pending reports whether a save is scheduled.
func (b *Bridge) Pending() bool {
	return b.deb.Pending()
}

// Flush saves the pending snapshot now, if any.
func (b *Bridge) Flush(ctx context.Context) error {
	data, ok := b.deb.Take()
	if !ok {
		return nil
	}
	return b.save(ctx, data)
}

// Close flushes the pending snapshot and rejects further notifications.
// It waits for an in-flight save to finish or ctx to expire.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	data, pending := b.deb.Take()
	b.deb.Stop()
	if pending {
		return b.save(ctx, data)
	}

	select {
	case b.sem <- struct{}{}:
		<-b.sem
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) save(ctx context.Context, data json.RawMessage) error {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		b.fail(ctx.Err())
		return ctx.Err()
	}
	defer func() { <-b.sem }()

	ctx, cancel := context.WithTimeout(ctx, b.saveTimeout)
	defer cancel()
	if _, err := b.remote.SaveStoreData(ctx, data); err != nil {
		b.fail(err)
		return err
	}
	return nil
}

func (b *Bridge) fail(err error) {
	b.logger.Printf("Failed to save store data: %v", err)
	if b.onError != nil {
		b.onError(err)
	}
}
