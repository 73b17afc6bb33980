package models

import (
	"encoding/json"
	"time"
)

// Default freshness windows for cached upstream data.
const (
	LivePriceTTL  = 60 * time.Second
	HistoricalTTL = 5 * time.Minute
)

// CacheEntry is a JSON-encoded upstream value and the time it was fetched.
// Every cache backend stores entries in this shape.
type CacheEntry struct {
	Data      []byte    `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NewCacheEntry encodes v as the entry payload.
func NewCacheEntry(v any, fetchedAt time.Time) (CacheEntry, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return CacheEntry{}, err
	}
	return CacheEntry{Data: data, FetchedAt: fetchedAt}, nil
}

// Fresh reports whether the entry may still be served at now.
func (e *CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// Decode unmarshals the payload into v.
func (e *CacheEntry) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}
