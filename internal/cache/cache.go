// Package cache provides a small generic in-memory cache with a fixed TTL.
package cache

import (
	"sync"
	"time"
)

// Observer receives hit/miss notifications, typically backed by Prometheus counters.
type Observer interface {
	CacheHit()
	CacheMiss()
}

type entry[T any] struct {
	val T
	exp time.Time
}

// TTLCache is safe for concurrent use. A zero TTL disables caching: every
// Get misses and Set is a no-op.
type TTLCache[T any] struct {
	mu  sync.RWMutex
	m   map[string]entry[T]
	ttl time.Duration
	obs Observer
	now func() time.Time
}

func New[T any](ttl time.Duration, obs Observer) *TTLCache[T] {
	return &TTLCache[T]{
		m:   make(map[string]entry[T]),
		ttl: ttl,
		obs: obs,
		now: time.Now,
	}
}

func (c *TTLCache[T]) Get(key string) (T, bool) {
	var zero T
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.exp) {
		if ok {
			c.mu.Lock()
			// Re-check under the write lock; a concurrent Set may have refreshed it.
			if cur, still := c.m[key]; still && !c.now().Before(cur.exp) {
				delete(c.m, key)
			}
			c.mu.Unlock()
		}
		c.miss()
		return zero, false
	}
	c.hit()
	return e.val, true
}

func (c *TTLCache[T]) Set(key string, v T) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.m[key] = entry[T]{val: v, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *TTLCache[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

// Purge drops expired entries and returns how many were removed.
func (c *TTLCache[T]) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.m {
		if !now.Before(e.exp) {
			delete(c.m, k)
			removed++
		}
	}
	return removed
}

func (c *TTLCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *TTLCache[T]) hit() {
	if c.obs != nil {
		c.obs.CacheHit()
	}
}

func (c *TTLCache[T]) miss() {
	if c.obs != nil {
		c.obs.CacheMiss()
	}
}
