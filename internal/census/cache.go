package census

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/couchcryptid/census-flows/internal/domain"
	"github.com/couchcryptid/census-flows/internal/observability"
)

// CachedSource wraps a Source with an in-memory LRU cache keyed on the
// canonical query. A build that renders several reports over the same
// snapshot retrieves each table once.
type CachedSource struct {
	inner   Source
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a source.
func NewCachedSource(inner Source, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSource) ACS(ctx context.Context, q ACSQuery) ([]domain.GeographicObservation, error) {
	key := fmt.Sprintf("acs:%d|%s|%s|%s|%s|%s",
		q.Year, q.Dataset, strings.Join(q.Variables, ","), q.Level, q.State, q.County)
	if v, ok := c.cache.get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("acs", "hit").Inc()
		return v.([]domain.GeographicObservation), nil
	}
	c.metrics.CacheLookups.WithLabelValues("acs", "miss").Inc()

	obs, err := c.inner.ACS(ctx, q)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so a transiently empty response can be retried.
	if len(obs) > 0 {
		c.cache.put(key, obs)
	}
	return obs, nil
}

func (c *CachedSource) Flows(ctx context.Context, q FlowsQuery) ([]domain.MigrationFlowRecord, error) {
	key := fmt.Sprintf("flows:%d|%s|%s", q.Year, q.Level, q.GeoID)
	if v, ok := c.cache.get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("flows", "hit").Inc()
		return v.([]domain.MigrationFlowRecord), nil
	}
	c.metrics.CacheLookups.WithLabelValues("flows", "miss").Inc()

	recs, err := c.inner.Flows(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(recs) > 0 {
		c.cache.put(key, recs)
	}
	return recs, nil
}

// lruCache is a simple thread-safe LRU cache for retrieved tables.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value any
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value any) {
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
