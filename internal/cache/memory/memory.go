package memory

import (
	"sync"
	"time"

	"cryptofolio/internal/cache"
	"cryptofolio/internal/models"
)

var _ cache.Store = (*Cache)(nil)

// Cache is an unbounded map of entries. Nothing is ever evicted; an expired
// entry stays until it is overwritten.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
}

func New() *Cache {
	return &Cache{entries: make(map[string]models.CacheEntry)}
}

func (c *Cache) Get(key string) (*models.CacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return &entry, true
}

func (c *Cache) Set(key string, entry models.CacheEntry, _ time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
