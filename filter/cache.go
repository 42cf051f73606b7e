package filter

import (
	"container/list"
	"sync"
	"time"
)

// lruCache is a thread-safe LRU cache whose entries also expire after maxAge.
type lruCache struct {
	size      int
	maxAge    time.Duration
	evictList *list.List
	items     map[string]*list.Element
	mu        sync.Mutex
	now       func() time.Time
}

type entry struct {
	key    string
	value  any
	stored time.Time
}

// newLRUCache creates a cache holding at most size entries. A zero maxAge
// disables expiry.
func newLRUCache(size int, maxAge time.Duration) *lruCache {
	return &lruCache{
		size:      size,
		maxAge:    maxAge,
		evictList: list.New(),
		items:     make(map[string]*list.Element),
		now:       time.Now,
	}
}

// Get retrieves a value and marks it most recently used.
func (c *lruCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, exists := c.items[key]
	if !exists {
		return nil, false
	}
	ent := node.Value.(*entry)
	if c.expired(ent) {
		c.removeElement(node)
		return nil, false
	}
	c.evictList.MoveToFront(node)
	return ent.value, true
}

// Put adds or refreshes a value.
func (c *lruCache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, exists := c.items[key]; exists {
		c.evictList.MoveToFront(node)
		ent := node.Value.(*entry)
		ent.value = value
		ent.stored = c.now()
		return
	}

	node := c.evictList.PushFront(&entry{key: key, value: value, stored: c.now()})
	c.items[key] = node

	for c.evictList.Len() > c.size {
		c.removeElement(c.evictList.Back())
	}
	c.pruneExpired()
}

// pruneExpired drops expired entries from the cold end.
func (c *lruCache) pruneExpired() {
	for node := c.evictList.Back(); node != nil; {
		prev := node.Prev()
		if c.expired(node.Value.(*entry)) {
			c.removeElement(node)
		}
		node = prev
	}
}

func (c *lruCache) expired(ent *entry) bool {
	return c.maxAge > 0 && c.now().Sub(ent.stored) > c.maxAge
}

func (c *lruCache) removeElement(node *list.Element) {
	c.evictList.Remove(node)
	delete(c.items, node.Value.(*entry).key)
}

// Clear removes all items from the cache.
func (c *lruCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
}

// Size returns the number of items in the cache.
func (c *lruCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictList.Len()
}
