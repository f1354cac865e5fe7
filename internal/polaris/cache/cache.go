// Package cache provides a single-value TTL cache used by the settings and
// handler-manifest loaders.
//
// Each loader owns its cache instance and consults it before reading the
// backing table; entries expire purely by TTL (600 s in production), so
// stale reads inside the window are an accepted tradeoff, not a bug. The
// clock is injected to make expiry deterministically testable.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is the cache window for settings and the handler manifest.
const DefaultTTL = 600 * time.Second

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// Entry is a single cached value with a fixed TTL.
// Entry is safe for concurrent use from multiple goroutines.
type Entry[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   Clock
	value T
	setAt time.Time
	valid bool
}

// New returns an empty cache entry. A ttl ≤ 0 defaults to DefaultTTL; a nil
// clock defaults to time.Now.
func New[T any](ttl time.Duration, now Clock) *Entry[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Entry[T]{ttl: ttl, now: now}
}

// Get returns the cached value and true when a value is present and has not
// expired. Expired values are dropped on access.
func (e *Entry[T]) Get() (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.valid || e.now().Sub(e.setAt) >= e.ttl {
		var zero T
		e.value = zero
		e.valid = false
		return zero, false
	}
	return e.value, true
}

// Put stores value and restarts the TTL window.
func (e *Entry[T]) Put(value T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = value
	e.setAt = e.now()
	e.valid = true
}

// Invalidate drops any cached value so the next Get misses.
func (e *Entry[T]) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	var zero T
	e.value = zero
	e.valid = false
}
