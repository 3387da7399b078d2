// Package cache provides a small TTL memoization cache: an explicit
// object with a get-or-compute operation, replacing decorator-style
// caching with something callers can see and test.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value    any
	storedAt time.Time
}

// Cache is a mutex-guarded TTL cache. Entries are checked for expiry on
// access; there is no background sweeper.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry

	// now is swappable for tests.
	now func() time.Time
}

// Option configures a Cache created with New.
type Option func(*Cache)

// WithClock overrides the time source. Used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the cached value for key when it is younger than
// ttl; otherwise it runs compute, stores the result, and returns it.
// A compute error is returned as-is and nothing is cached.
//
// The lock is held across compute, so concurrent callers for the same
// key compute once. Computes are expected to be quick (an HTTP model
// listing, not a batch job).
func (c *Cache) GetOrCompute(key string, ttl time.Duration, compute func() (any, error)) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && c.now().Sub(e.storedAt) < ttl {
		return e.value, nil
	}

	value, err := compute()
	if err != nil {
		return nil, err
	}

	c.entries[key] = entry{value: value, storedAt: c.now()}
	return value, nil
}

// Invalidate drops the entry for key, if any.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
