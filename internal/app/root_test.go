package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptofolio/internal/cache/memory"
	"cryptofolio/internal/cache/noop"
	"cryptofolio/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{Addr: ":0"},
		Price: config.PriceConfig{
			Retries:    1,
			BaseDelay:  time.Millisecond,
			LiveTTL:    time.Minute,
			HistoryTTL: 5 * time.Minute,
			Currency:   "inr",
			BaseURL:    "http://127.0.0.1:1",
			Timeout:    time.Second,
		},
		Cache:    config.CacheConfig{Backend: "memory"},
		Database: config.DatabaseConfig{Driver: "memory"},
		Auth:     config.AuthConfig{JWTSecret: "0123456789abcdef", TokenTTL: time.Hour},
		Refresh:  config.RefreshConfig{Interval: time.Minute},
		Logging:  config.LoggingConfig{Level: "error"},
	}
}

func TestNew_Memory(t *testing.T) {
	root, err := New(testConfig())
	require.NoError(t, err)
	defer root.Cleanup()

	assert.IsType(t, &memory.Cache{}, root.Cache)
	assert.Equal(t, "inr", root.Prices.Currency())
	assert.NotNil(t, root.Portfolio)
	assert.NotNil(t, root.Auth)
	assert.False(t, root.Digest.Enabled())

	rec := httptest.NewRecorder()
	root.NewHTTPServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	ref, err := root.NewRefresher(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ref)
}

func TestNew_CacheBackends(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Backend = "none"
	root, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &noop.Cache{}, root.Cache)
	assert.NoError(t, root.Cleanup())

	cfg = testConfig()
	cfg.Cache.Backend = "bigcache"
	cfg.Cache.BigCacheSize = 8
	root, err = New(cfg)
	require.NoError(t, err)
	assert.NoError(t, root.Cleanup())

	cfg = testConfig()
	cfg.Cache.Backend = "memcached"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestNew_CoinsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coins.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coins:\n  - id: pepe\n    name: Pepe\n    symbol: PEPE\n"), 0o600))

	cfg := testConfig()
	cfg.CoinsFile = path
	root, err := New(cfg)
	require.NoError(t, err)
	defer root.Cleanup()

	assert.Equal(t, "pepe", root.Coins.Resolve("PEPE"))
	assert.Equal(t, "bitcoin", root.Coins.Resolve("btc"))
}

func TestCleanup_ReportsCloserErrors(t *testing.T) {
	errFirst := errors.New("first")
	errLast := errors.New("last")
	var order []string
	r := &Root{closers: []func() error{
		func() error { order = append(order, "first"); return errFirst },
		func() error { order = append(order, "middle"); return nil },
		func() error { order = append(order, "last"); return errLast },
	}}

	err := r.Cleanup()
	require.Error(t, err)
	assert.ErrorIs(t, err, errFirst)
	assert.ErrorIs(t, err, errLast)
	assert.Equal(t, []string{"last", "middle", "first"}, order)

	assert.NoError(t, r.Cleanup())
}
