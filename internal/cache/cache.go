// Package cache provides a bounded, time-expiring LRU cache with de-duplicated fetches.
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the value for a key on a cache miss.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Stats reports cache activity since creation.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Fetches uint64 `json:"fetches"`
	Entries int    `json:"entries"`
}

// Option configures a TTLCache.
type Option func(*options)

type options struct {
	normalize func(string) string
	now       func() time.Time
}

// WithKeyNormalizer maps every key through fn before lookup and store.
func WithKeyNormalizer(fn func(string) string) Option {
	return func(o *options) { o.normalize = fn }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// TTLCache is an LRU cache whose entries also expire after a fixed TTL.
// A ttl <= 0 disables expiry; a capacity <= 0 disables eviction.
type TTLCache[V any] struct {
	capacity int
	ttl      time.Duration
	opts     options

	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List

	group   singleflight.Group
	hits    atomic.Uint64
	misses  atomic.Uint64
	fetches atomic.Uint64
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// New creates a cache holding at most capacity entries for ttl each.
func New[V any](capacity int, ttl time.Duration, opts ...Option) *TTLCache[V] {
	o := options{normalize: func(s string) string { return s }, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache[V]{
		capacity: capacity,
		ttl:      ttl,
		opts:     o,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the live value for key. Expired entries are removed and reported as a miss.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	key = c.opts.normalize(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.getLocked(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

func (c *TTLCache[V]) getLocked(key string) (V, bool) {
	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[V])
	if c.ttl > 0 && !c.opts.now().Before(e.expiresAt) {
		c.lru.Remove(elem)
		delete(c.items, key)
		return zero, false
	}
	c.lru.MoveToFront(elem)
	return e.value, true
}

// Set stores value for key, evicting the least recently used entry if at capacity.
func (c *TTLCache[V]) Set(key string, value V) {
	key = c.opts.normalize(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

func (c *TTLCache[V]) setLocked(key string, value V) {
	expiresAt := c.opts.now().Add(c.ttl)
	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.lru.MoveToFront(elem)
		return
	}
	elem := c.lru.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem
	if c.capacity > 0 && c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*entry[V]).key)
		}
	}
}

// GetOrFetch returns the cached value for key or calls fetch and caches its result.
// Concurrent misses for the same key share a single fetch. Errors are not cached.
func (c *TTLCache[V]) GetOrFetch(ctx context.Context, key string, fetch FetchFunc[V]) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	nkey := c.opts.normalize(key)
	res, err, _ := c.group.Do(nkey, func() (interface{}, error) {
		// Another caller may have filled the entry while we waited on the group.
		c.mu.Lock()
		if v, ok := c.getLocked(nkey); ok {
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()

		c.fetches.Add(1)
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.setLocked(nkey, v)
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Invalidate removes key if present.
func (c *TTLCache[V]) Invalidate(key string) {
	key = c.opts.normalize(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.lru.Remove(elem)
		delete(c.items, key)
	}
}

// Purge removes every entry.
func (c *TTLCache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.lru.Init()
}

// Len returns the number of stored entries, including any not yet reaped as expired.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of cache counters.
func (c *TTLCache[V]) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Fetches: c.fetches.Load(),
		Entries: c.Len(),
	}
}
