package l1

import (
	"context"
	"encoding/json"
	"time"

	"github.com/allegro/bigcache/v3"
	"go.uber.org/zap"

	"cryptofolio/internal/cache"
	"cryptofolio/internal/metrics"
	"cryptofolio/internal/models"
)

var _ cache.Store = (*BigCache)(nil)

type Options struct {
	SizeMB int
	// LifeWindow is how long bigcache keeps any entry. It should be at least
	// the longest TTL the service uses.
	LifeWindow time.Duration
}

// BigCache implements L1 cache using BigCache
type BigCache struct {
	cache  *bigcache.BigCache
	logger *zap.Logger
}

func NewBigCache(opts Options, logger *zap.Logger) (*BigCache, error) {
	if opts.LifeWindow <= 0 {
		opts.LifeWindow = models.HistoricalTTL
	}
	if opts.SizeMB <= 0 {
		opts.SizeMB = 64
	}

	config := bigcache.DefaultConfig(opts.LifeWindow)
	config.CleanWindow = opts.LifeWindow
	// few shards so that a long historical series fits in one shard
	config.Shards = 16
	config.HardMaxCacheSize = opts.SizeMB
	config.MaxEntrySize = 4096
	config.Verbose = false

	bc, err := bigcache.New(context.Background(), config)
	if err != nil {
		return nil, err
	}

	return &BigCache{
		cache:  bc,
		logger: logger,
	}, nil
}

func (bc *BigCache) Get(key string) (*models.CacheEntry, bool) {
	data, err := bc.cache.Get(key)
	if err != nil {
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		bc.logger.Warn("Failed to unmarshal L1 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l1", "decode")
		_ = bc.cache.Delete(key)
		return nil, false
	}

	return &entry, true
}

// Set stores the entry. bigcache has a single global life window, so ttl is
// not used per key.
func (bc *BigCache) Set(key string, entry models.CacheEntry, _ time.Duration) {
	data, err := json.Marshal(entry)
	if err != nil {
		bc.logger.Error("Failed to marshal cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l1", "encode")
		return
	}

	if err := bc.cache.Set(key, data); err != nil {
		bc.logger.Error("Failed to set cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l1", "set")
	}
}

func (bc *BigCache) Delete(key string) {
	_ = bc.cache.Delete(key)
}

func (bc *BigCache) Len() int {
	return bc.cache.Len()
}

func (bc *BigCache) Close() error {
	return bc.cache.Close()
}
