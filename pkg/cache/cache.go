package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"igmirror/pkg/errors"
)

// Hydrator fetches an entity from the upstream, returning the entity and
// the quota units the fetch cost.
type Hydrator[V any] func(ctx context.Context) (V, int, error)

// Cache is a time-bounded entity store keyed by natural identity (username,
// post shortcode). Entries carry one of two TTL classes: the long TTL for
// normally resolved entities, the short TTL for classified blocking failures
// stored as negative entries so repeated requests fail fast until the TTL
// lapses and the next request retries for real.
//
// Concurrent fetches for the same key are de-duplicated: at most one
// upstream fetch per key is outstanding at any instant, and every waiter
// observes its result. Only the caller whose hydrator actually ran is told
// the units spent; late joiners see zero cost.
type Cache[V any] struct {
	longTTL  time.Duration
	shortTTL time.Duration

	mu      sync.Mutex
	entries map[string]*entry[V]
	group   singleflight.Group

	now func() time.Time
}

type entry[V any] struct {
	value   V
	err     error
	addedAt time.Time
	ttl     time.Duration
}

// New creates a cache with the given TTL classes.
func New[V any](longTTL, shortTTL time.Duration) *Cache[V] {
	return &Cache[V]{
		longTTL:  longTTL,
		shortTTL: shortTTL,
		entries:  make(map[string]*entry[V]),
		now:      time.Now,
	}
}

// GetOrFetch returns the cached entity for key, or runs the hydrator to
// resolve it. The returned units are zero for cache hits and for callers
// that joined an already in-flight fetch.
//
// A cached negative entry is returned as its original error with zero cost.
// Hydrator failures with a cacheable classification are stored under the
// short TTL; unclassified failures are not stored at all.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch Hydrator[V]) (V, int, error) {
	if v, err, ok := c.lookup(key); ok {
		return v, 0, err
	}

	// units is written only by the closure that actually executes, so
	// joiners report zero cost and the charge is never duplicated.
	var units int
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A fetch may have completed between the miss and joining the
		// flight group.
		if v, err, ok := c.lookup(key); ok {
			if err != nil {
				return nil, err
			}
			return v, nil
		}

		val, spent, err := fetch(ctx)
		units = spent
		if err != nil {
			if errors.IsCacheable(errors.KindOf(err)) {
				c.storeFailure(key, err)
			}
			return nil, err
		}
		c.store(key, val)
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, units, err
	}
	return v.(V), units, nil
}

// Seed stores a summary-hydrated entity under the long TTL class, unless a
// live entry already exists (seeding must never clobber a fuller entity or
// reset its TTL). Reports whether the value was stored.
func (c *Cache[V]) Seed(key string, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && c.now().Sub(e.addedAt) < e.ttl {
		return false
	}
	c.entries[key] = &entry[V]{value: value, addedAt: c.now(), ttl: c.longTTL}
	return true
}

// Has reports whether key has a live entry, positive or negative.
func (c *Cache[V]) Has(key string) bool {
	_, _, ok := c.lookup(key)
	return ok
}

// TTLRemaining returns the time until key's entry expires, or zero if there
// is no live entry.
func (c *Cache[V]) TTLRemaining(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0
	}
	remaining := e.ttl - c.now().Sub(e.addedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *Cache[V]) lookup(key string) (V, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, nil, false
	}
	if c.now().Sub(e.addedAt) >= e.ttl {
		delete(c.entries, key)
		return zero, nil, false
	}
	return e.value, e.err, true
}

func (c *Cache[V]) store(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry[V]{value: value, addedAt: c.now(), ttl: c.longTTL}
}

func (c *Cache[V]) storeFailure(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry[V]{err: err, addedAt: c.now(), ttl: c.shortTTL}
}
