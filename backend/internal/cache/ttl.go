// Package cache holds the explicit caches the engine reads through. Entries
// expire after a TTL and can be marked stale by the writes that invalidate them.
package cache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// TTL is an in-process cache safe for concurrent use. Reads do not extend
// an entry's lifetime.
type TTL[K comparable, V any] struct {
	items *ttlcache.Cache[K, V]
}

// NewTTL creates a cache whose entries live for ttl.
func NewTTL[K comparable, V any](ttl time.Duration) *TTL[K, V] {
	return &TTL[K, V]{
		items: ttlcache.New[K, V](
			ttlcache.WithTTL[K, V](ttl),
			ttlcache.WithDisableTouchOnHit[K, V](),
		),
	}
}

// Get returns the cached value if present and not expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	item := c.items.Get(key)
	if item == nil || item.IsExpired() {
		var zero V
		return zero, false
	}
	return item.Value(), true
}

// Set stores value under key for the cache TTL.
func (c *TTL[K, V]) Set(key K, value V) {
	c.items.Set(key, value, ttlcache.DefaultTTL)
}

// SetIfAbsent stores value only when key holds no live entry and reports
// whether it did.
func (c *TTL[K, V]) SetIfAbsent(key K, value V) bool {
	_, found := c.items.GetOrSet(key, value)
	return !found
}

// MarkStale drops key so the next read goes to the store.
func (c *TTL[K, V]) MarkStale(key K) {
	c.items.Delete(key)
}

// Purge drops every entry.
func (c *TTL[K, V]) Purge() {
	c.items.DeleteAll()
}

// Len counts live entries.
func (c *TTL[K, V]) Len() int {
	c.items.DeleteExpired()
	return c.items.Len()
}
