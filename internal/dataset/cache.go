package dataset

import (
	"container/list"
	"sync"
)

// lruCache is a thread-safe, size-bounded memo for decoded collections.
// It is owned by a single Source, so entries never expire: input files
// are immutable for the duration of a run.
type lruCache struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
}

type cacheEntry struct {
	key   string
	value any
}

func newLRUCache(maxSize int) *lruCache {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &lruCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *lruCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}

	// Move to front (most recently used)
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).value, true
}

func (c *lruCache) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	elem := c.order.PushFront(&cacheEntry{key: key, value: value})
	c.items[key] = elem

	// Evict if over capacity
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
