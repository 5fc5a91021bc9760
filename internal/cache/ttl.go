// Package cache provides a bounded TTL cache for upstream lookups.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Stats contains cache performance statistics.
type Stats struct {
	Entries  int     `json:"entries"`
	Capacity int     `json:"capacity"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Skipped  int64   `json:"skipped"`
	HitRate  float64 `json:"hit_rate"`
}

// TTL is a concurrent-safe cache with a fixed capacity. Entries expire after
// the configured TTL. When full, Set sweeps expired entries first and drops
// the insert if the cache is still full.
type TTL[V any] struct {
	mu       sync.Mutex
	items    *gocache.Cache
	capacity int
	hits     atomic.Int64
	misses   atomic.Int64
	skipped  atomic.Int64
}

// NewTTL creates a TTL cache. Non-positive capacity disables caching.
func NewTTL[V any](capacity int, ttl time.Duration) *TTL[V] {
	// No janitor: expired entries are swept on demand when the cache fills.
	return &TTL[V]{
		items:    gocache.New(ttl, 0),
		capacity: capacity,
	}
}

// Get returns a cached value. Expired entries count as misses.
func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V
	if v, ok := c.items.Get(key); ok {
		if typed, ok := v.(V); ok {
			c.hits.Add(1)
			return typed, true
		}
	}
	c.misses.Add(1)
	return zero, false
}

// Set stores a value and reports whether it was inserted.
func (c *TTL[V]) Set(key string, v V) bool {
	if c.capacity <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items.Get(key); !exists && c.items.ItemCount() >= c.capacity {
		c.items.DeleteExpired()
		if c.items.ItemCount() >= c.capacity {
			c.skipped.Add(1)
			return false
		}
	}
	c.items.SetDefault(key, v)
	return true
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (c *TTL[V]) Len() int {
	return c.items.ItemCount()
}

// Flush removes every entry.
func (c *TTL[V]) Flush() {
	c.items.Flush()
}

// Stats returns cache performance statistics.
func (c *TTL[V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Entries:  c.Len(),
		Capacity: c.capacity,
		Hits:     hits,
		Misses:   misses,
		Skipped:  c.skipped.Load(),
		HitRate:  hitRate,
	}
}
