// Package cache provides a process-local TTL cache for provider query
// results, so repeated collection runs within the window skip the
// network round trip entirely.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a thread-safe in-memory cache with per-entry expiry. A
// disabled cache misses on every Get and drops every Set.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	enabled bool

	now func() time.Time
}

// New creates a cache with the given default TTL. A non-positive TTL or
// enabled=false yields a cache that never stores anything.
func New(ttl time.Duration, enabled bool) *Cache {
	if ttl <= 0 {
		enabled = false
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		enabled: enabled,
		now:     time.Now,
	}
}

// Get returns the cached value for key, or false when absent or expired.
// Expired entries are removed lazily here and in bulk by ClearExpired.
func (c *Cache) Get(key string) (any, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

// Set stores a value under key with the cache's default TTL.
func (c *Cache) Set(key string, value any) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// ClearExpired removes all expired entries and returns how many were
// dropped. Intended to run on a periodic schedule.
func (c *Cache) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}

	return removed
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
