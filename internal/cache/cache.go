// Package cache provides an in-process TTL cache on sharded concurrent maps.
//
// The cache is a fast path only: entries carry a TTL no longer than the
// durable record they mirror, and callers must treat a miss as "fall back to
// storage", never as an error.
package cache

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/chatfloor/dispatch/internal/clock"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a keyed TTL cache. Expired entries are dropped lazily on read.
type Cache[V any] struct {
	entries *xsync.Map[string, entry[V]]
	clock   clock.Clock
}

// New creates an empty cache reading time from clk.
func New[V any](clk clock.Clock) *Cache[V] {
	if clk == nil {
		clk = clock.System()
	}
	return &Cache[V]{
		entries: xsync.NewMap[string, entry[V]](),
		clock:   clk,
	}
}

// Get returns the live value for key, or false on miss or expiry.
func (c *Cache[V]) Get(key string) (V, bool) {
	e, ok := c.entries.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		c.entries.Delete(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key for ttl. Non-positive ttl is a no-op.
func (c *Cache[V]) Put(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.entries.Store(key, entry[V]{value: value, expiresAt: c.clock.Now().Add(ttl)})
}

// Forget removes key immediately.
func (c *Cache[V]) Forget(key string) {
	c.entries.Delete(key)
}

// Range calls fn for every live entry. Expired entries are skipped and
// dropped as they are encountered.
func (c *Cache[V]) Range(fn func(key string, value V) bool) {
	now := c.clock.Now()
	c.entries.Range(func(key string, e entry[V]) bool {
		if !now.Before(e.expiresAt) {
			c.entries.Delete(key)
			return true
		}
		return fn(key, e.value)
	})
}

// Len returns the number of entries currently held, including any not yet
// lazily expired.
func (c *Cache[V]) Len() int {
	return c.entries.Size()
}
