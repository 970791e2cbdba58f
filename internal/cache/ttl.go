// Package cache provides a small read-through TTL cache for documents fetched
// from slow backends.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds how long a fetched document is served without refetching.
const DefaultTTL = 60 * time.Second

// ErrNilFetch is returned by GetOrFetch when no fetch function is supplied.
var ErrNilFetch = errors.New("cache: fetch function is nil")

// FetchFunc loads the value for a key from the backing store.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Entry is a cached value and the time it was fetched.
type Entry struct {
	Value     []byte
	FetchedAt time.Time
}

// Store is the cache contract consumed by readers. Implementations must be
// safe for concurrent use.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
	GetOrFetch(ctx context.Context, key string, fetch FetchFunc) ([]byte, bool, error)
}

// TTLCache is an in-memory Store whose entries expire after a fixed TTL.
// Entries are replaced whole under the write lock, so readers never observe
// a partially written value.
type TTLCache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]Entry
}

// Option configures a TTLCache.
type Option func(*TTLCache)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *TTLCache) {
		c.now = now
	}
}

// NewTTLCache creates a cache. A non-positive ttl uses DefaultTTL.
func NewTTLCache(ttl time.Duration, opts ...Option) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &TTLCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *TTLCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the value for key if it was fetched within the TTL.
func (c *TTLCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.expired(entry) {
		c.mu.Lock()
		// Only evict if nobody refreshed it in the meantime.
		if cur, ok := c.entries[key]; ok && c.expired(cur) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.Value, true
}

// Set stores value under key, stamped with the current time.
func (c *TTLCache) Set(key string, value []byte) {
	c.mu.Lock()
	c.entries[key] = Entry{Value: value, FetchedAt: c.now()}
	c.mu.Unlock()
}

// Delete removes key. Deleting a missing key is a no-op.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops all expired entries and returns how many it removed.
func (c *TTLCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// GetOrFetch returns the cached value for key or loads it with fetch.
// Concurrent misses for the same key share a single fetch. The boolean
// reports whether the value came from the cache. Failed fetches are not
// cached, so the next call after the TTL lapses tries again.
func (c *TTLCache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) ([]byte, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	if fetch == nil {
		return nil, false, ErrNilFetch
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, data)
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

func (c *TTLCache) expired(e Entry) bool {
	return c.now().Sub(e.FetchedAt) > c.ttl
}

var _ Store = (*TTLCache)(nil)
