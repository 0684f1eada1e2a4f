// Package cache provides the bounded LRU store of decoded page summaries.
//
// Entries are keyed by page number and belong to a generation: every
// invalidation bumps the generation atomically, so a reload never serves
// pages from two different file versions mixed together.
package cache

import (
	"container/list"
	"sync"

	"sqlite-viewer/internal/metrics"
	"sqlite-viewer/internal/sqlite"
)

// DefaultMaxEntries bounds the cache when no explicit ceiling is configured.
const DefaultMaxEntries = 8192

// Stats contains cache counters.
type Stats struct {
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
	Evictions  int64  `json:"evictions"`
	Size       int    `json:"size"`
	MaxSize    int    `json:"maxSize"`
	Generation uint64 `json:"generation"`
}

type entry struct {
	key  uint32
	page *sqlite.Page
}

// Cache is a thread-safe LRU cache of immutable Page values. Pages are
// replaced wholesale on reload, never patched in place.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[uint32]*list.Element
	order      *list.List // front is most recently used
	generation uint64

	hits      int64
	misses    int64
	evictions int64
}

// New creates a cache bounded to maxEntries pages. A non-positive ceiling
// uses DefaultMaxEntries.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		maxEntries: maxEntries,
		entries:    make(map[uint32]*list.Element),
		order:      list.New(),
	}
}

// Get returns the cached page summary for a page number, marking it as
// recently used.
func (c *Cache) Get(pageNumber uint32) (*sqlite.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[pageNumber]
	if !ok {
		c.misses++
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	metrics.CacheHitsTotal.Inc()
	return el.Value.(*entry).page, true
}

// Put stores a page summary, evicting the least recently used entry once the
// ceiling is reached.
func (c *Cache) Put(pageNumber uint32, page *sqlite.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[pageNumber]; ok {
		el.Value.(*entry).page = page
		c.order.MoveToFront(el)
		return
	}

	c.entries[pageNumber] = c.order.PushFront(&entry{key: pageNumber, page: page})

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
		c.evictions++
		metrics.CacheEvictionsTotal.Inc()
	}

	metrics.CacheSize.Set(float64(c.order.Len()))
}

// InvalidateAll drops every entry and bumps the generation. Callers see
// either the old complete generation or the new one, never a partial mix.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[uint32]*list.Element)
	c.order.Init()
	c.generation++

	metrics.CacheSize.Set(0)
	metrics.CacheGeneration.Set(float64(c.generation))
}

// Len returns the number of cached pages.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Generation returns the current cache generation.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
		Size:       c.order.Len(),
		MaxSize:    c.maxEntries,
		Generation: c.generation,
	}
}
