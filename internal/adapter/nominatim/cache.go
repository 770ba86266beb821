package nominatim

import (
	"context"
	"sync"

	"github.com/couchcryptid/ej-indicator-service/internal/domain"
)

// CachedResolver wraps a Resolver with an in-memory LRU cache keyed by the
// normalized query.
type CachedResolver struct {
	inner domain.Resolver
	cache *lruCache
}

// NewCachedResolver creates a cache decorator around a resolver.
func NewCachedResolver(inner domain.Resolver, maxEntries int) *CachedResolver {
	return &CachedResolver{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

// Resolve returns a cached location for query or delegates to the inner resolver.
func (c *CachedResolver) Resolve(ctx context.Context, query domain.LocationQuery) (domain.ResolvedLocation, error) {
	key := query.Key()
	if loc, ok := c.cache.get(key); ok {
		return loc.clone(), nil
	}
	loc, err := c.inner.Resolve(ctx, query)
	if err != nil {
		// Failures, not_found included, are never cached so they can be retried.
		return loc, err
	}
	if loc.HasCoordinates() {
		c.cache.put(key, cachedLocation(loc))
	}
	return loc, nil
}

type cachedLocation domain.ResolvedLocation

func (l cachedLocation) clone() domain.ResolvedLocation {
	out := domain.ResolvedLocation(l)
	if l.Geo != nil {
		g := *l.Geo
		out.Geo = &g
	}
	return out
}

// lruCache is a thread-safe LRU cache of resolved locations.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value cachedLocation
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (cachedLocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return cachedLocation{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value cachedLocation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
