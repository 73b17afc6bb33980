package cache

import (
	"fmt"
	"time"

	"cryptofolio/internal/models"
)

//go:generate mockgen -package=mock -source=cache.go -destination=mock/store.go

// Store holds cache entries by key. Implementations must be safe for
// concurrent use. Freshness is decided by the caller from FetchedAt; ttl only
// lets a backend expire entries natively and never shortens what the caller
// considers fresh.
type Store interface {
	Get(key string) (*models.CacheEntry, bool) // returns entry and found flag
	Set(key string, entry models.CacheEntry, ttl time.Duration)
	Delete(key string)
}

// LiveKey is the cache key of a live price.
func LiveKey(coin, currency string) string {
	return fmt.Sprintf("price:live:%s:%s", coin, currency)
}

// HistoryKey is the cache key of a historical series.
func HistoryKey(coin string, days int, currency string) string {
	return fmt.Sprintf("price:history:%s:%d:%s", coin, days, currency)
}
