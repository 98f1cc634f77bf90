// Package debounce provides a trailing-edge debouncer: a burst of calls
// collapses into one invocation carrying the most recent value.
package debounce

import (
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Call after Stop.
var ErrStopped = errors.New("debouncer stopped")

// Option configures a Debouncer.
type Option func(*options)

type options struct {
	maxWait time.Duration
	now     func() time.Time
}

// WithMaxWait caps how long a continuous burst can postpone the invocation.
// Zero (default) lets a burst postpone it indefinitely.
func WithMaxWait(d time.Duration) Option {
	return func(o *options) { o.maxWait = d }
}

// Debouncer delays fn until wait has elapsed without a new Call.
// fn runs on a timer goroutine, outside the debouncer lock.
type Debouncer[T any] struct {
	wait    time.Duration
	maxWait time.Duration
	fn      func(T)
	now     func() time.Time

	mu         sync.Mutex
	timer      *time.Timer
	gen        uint64 // bumped on every reschedule; stale timers compare it
	pending    bool
	value      T
	burstStart time.Time
	stopped    bool
}

// New returns a debouncer that calls fn wait after the last Call.
func New[T any](wait time.Duration, fn func(T), opts ...Option) *Debouncer[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Debouncer[T]{
		wait:    wait,
		maxWait: o.maxWait,
		fn:      fn,
		now:     o.now,
	}
}

// Call records v as the latest value and restarts the wait.
func (d *Debouncer[T]) Call(v T) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	now := d.now()
	if !d.pending {
		d.pending = true
		d.burstStart = now
	}
	d.value = v

	delay := d.wait
	if d.maxWait > 0 {
		remaining := d.maxWait - now.Sub(d.burstStart)
		if remaining < 0 {
			remaining = 0
		}
		if remaining < delay {
			delay = remaining
		}
	}
	d.schedule(delay)
	return nil
}

// schedule must be called with mu held.
func (d *Debouncer[T]) schedule(delay time.Duration) {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(delay, func() { d.fire(gen) })
}

func (d *Debouncer[T]) fire(gen uint64) {
	v, ok := d.take(gen)
	if ok {
		d.fn(v)
	}
}

// take claims the pending value if gen is still current.
func (d *Debouncer[T]) take(gen uint64) (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var zero T
	if gen != d.gen || !d.pending {
		return zero, false
	}
	v := d.value
	d.value = zero
	d.pending = false
	d.timer = nil
	return v, true
}

// Flush runs a pending invocation immediately on the caller's goroutine.
// It reports whether anything was pending.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	v := d.value
	var zero T
	d.value = zero
	d.pending = false
	d.mu.Unlock()

	d.fn(v)
	return true
}

// Take claims the pending value without invoking fn, so the caller can run
// it with its own context. It reports whether anything was pending.
func (d *Debouncer[T]) Take() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var zero T
	if !d.pending {
		return zero, false
	}
	v := d.value
	d.cancelLocked()
	return v, true
}

// Cancel drops any pending invocation.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

func (d *Debouncer[T]) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	var zero T
	d.value = zero
	d.pending = false
}

// Pending reports whether an invocation is waiting to run.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels any pending invocation and rejects further calls.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}
