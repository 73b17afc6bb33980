package l2

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"cryptofolio/internal/cache"
	"cryptofolio/internal/metrics"
	"cryptofolio/internal/models"
)

var _ cache.Store = (*RedisCache)(nil)

// RedisCache implements L2 cache on redis, shared between processes.
type RedisCache struct {
	client       RedisClient
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger
}

func NewRedisCache(client RedisClient, readTimeout, writeTimeout time.Duration, logger *zap.Logger) *RedisCache {
	if readTimeout <= 0 {
		readTimeout = time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = time.Second
	}
	return &RedisCache{
		client:       client,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

func (rc *RedisCache) Get(key string) (*models.CacheEntry, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), rc.readTimeout)
	defer cancel()

	data, err := rc.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			rc.logger.Error("L2 cache get error", zap.String("key", key), zap.Error(err))
			metrics.RecordCacheError("l2", "get")
		}
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		rc.logger.Error("Failed to unmarshal L2 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l2", "decode")
		rc.Delete(key)
		return nil, false
	}

	return &entry, true
}

// Set stores the entry with redis expiry at ttl.
func (rc *RedisCache) Set(key string, entry models.CacheEntry, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), rc.writeTimeout)
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		rc.logger.Error("Failed to marshal L2 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l2", "encode")
		return
	}

	if err := rc.client.Set(ctx, key, data, ttl).Err(); err != nil {
		rc.logger.Error("Failed to set L2 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l2", "set")
	}
}

func (rc *RedisCache) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), rc.writeTimeout)
	defer cancel()

	if err := rc.client.Del(ctx, key).Err(); err != nil {
		rc.logger.Error("Failed to delete L2 cache entry", zap.String("key", key), zap.Error(err))
	}
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
