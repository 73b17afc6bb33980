package noop

import (
	"time"

	"cryptofolio/internal/cache"
	"cryptofolio/internal/models"
)

var _ cache.Store = (*Cache)(nil)

// Cache never holds anything; every lookup goes upstream.
type Cache struct{}

func New() *Cache {
	return &Cache{}
}

func (n *Cache) Get(key string) (*models.CacheEntry, bool) {
	return nil, false
}

func (n *Cache) Set(key string, entry models.CacheEntry, ttl time.Duration) {}

func (n *Cache) Delete(key string) {}
