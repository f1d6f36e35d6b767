package render

import (
	"container/list"
	"sync"
	"time"
)

type cacheEntry struct {
	key        string
	value      []byte
	expiration time.Time
}

// SourceCache is an LRU cache of fetched layer source bytes.
type SourceCache struct {
	capacity  int
	ttl       time.Duration
	items     map[string]*list.Element
	lruList   *list.List
	mu        sync.Mutex
	hitCount  int64
	missCount int64
}

// NewSourceCache creates a cache holding up to capacity entries, each valid for ttl.
// A non-positive capacity disables caching.
func NewSourceCache(capacity int, ttl time.Duration) *SourceCache {
	return &SourceCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		lruList:  list.New(),
	}
}

func (c *SourceCache) Set(key string, value []byte) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expiration := time.Now().Add(c.ttl)

	if elem, exists := c.items[key]; exists {
		c.lruList.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiration = expiration
		return
	}

	elem := c.lruList.PushFront(&cacheEntry{key: key, value: value, expiration: expiration})
	c.items[key] = elem

	for c.lruList.Len() > c.capacity {
		c.removeElement(c.lruList.Back())
	}
}

func (c *SourceCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		c.missCount++
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiration) {
		c.removeElement(elem)
		c.missCount++
		return nil, false
	}

	c.lruList.MoveToFront(elem)
	c.hitCount++
	return entry.value, true
}

func (c *SourceCache) removeElement(elem *list.Element) {
	c.lruList.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry).key)
}

func (c *SourceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

// Stats returns the hit and miss counters.
func (c *SourceCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hitCount, c.missCount
}
