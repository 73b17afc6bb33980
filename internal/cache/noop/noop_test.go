package noop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cryptofolio/internal/models"
)

func TestCache_AlwaysMisses(t *testing.T) {
	c := New()
	c.Set("k", models.CacheEntry{Data: []byte("1"), FetchedAt: time.Now()}, time.Minute)

	entry, found := c.Get("k")
	assert.False(t, found)
	assert.Nil(t, entry)
	c.Delete("k")
}
