package multi

import (
	"time"

	"go.uber.org/zap"

	"cryptofolio/internal/cache"
	"cryptofolio/internal/models"
)

var _ cache.Store = (*Cache)(nil)

// BackfillTTL is the retention used when copying an entry up to a higher
// level. Freshness is judged by the reader from FetchedAt, so it only has
// to cover the longest freshness window.
const BackfillTTL = models.HistoricalTTL

// Cache layers several stores, usually an in-process L1 over a shared L2.
// Reads consult every level and serve the most recently fetched entry;
// writes go to all of them.
type Cache struct {
	caches []cache.Store
	logger *zap.Logger
}

func New(caches []cache.Store, logger *zap.Logger) *Cache {
	return &Cache{
		caches: caches,
		logger: logger,
	}
}

// Get returns the newest entry across levels. When it came from a lower
// level, the levels above it that missed or held an older copy are backfilled.
func (mc *Cache) Get(key string) (*models.CacheEntry, bool) {
	var newest *models.CacheEntry
	level := -1
	found := make([]*models.CacheEntry, len(mc.caches))

	for i, c := range mc.caches {
		entry, ok := c.Get(key)
		if !ok || entry == nil {
			continue
		}
		found[i] = entry
		if newest == nil || entry.FetchedAt.After(newest.FetchedAt) {
			newest, level = entry, i
		}
	}
	if newest == nil {
		return nil, false
	}

	for i := 0; i < level; i++ {
		if found[i] != nil && !found[i].FetchedAt.Before(newest.FetchedAt) {
			continue
		}
		mc.caches[i].Set(key, *newest, BackfillTTL)
	}
	if level > 0 {
		mc.logger.Debug("Cache hit below L1", zap.String("key", key), zap.Int("level", level+1))
	}
	return newest, true
}

func (mc *Cache) Set(key string, entry models.CacheEntry, ttl time.Duration) {
	if len(mc.caches) == 0 {
		mc.logger.Warn("No caches available for set operation", zap.String("key", key))
		return
	}
	for _, c := range mc.caches {
		c.Set(key, entry, ttl)
	}
}

func (mc *Cache) Delete(key string) {
	for _, c := range mc.caches {
		c.Delete(key)
	}
}

func (mc *Cache) Levels() int {
	return len(mc.caches)
}
