package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 3, cfg.Price.Retries)
	assert.Equal(t, 2*time.Second, cfg.Price.BaseDelay)
	assert.Equal(t, 60*time.Second, cfg.Price.LiveTTL)
	assert.Equal(t, 5*time.Minute, cfg.Price.HistoryTTL)
	assert.Equal(t, "inr", cfg.Price.Currency)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Refresh.Interval)
	assert.False(t, cfg.Telegram.Enabled())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "AUTH_JWT_SECRET=0123456789abcdef\nPRICE_CURRENCY=USD\nTELEGRAM_BOT_TOKEN=abc\nTELEGRAM_CHAT_ID=42\nTELEGRAM_USER_EMAIL=me@example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, key := range []string{"AUTH_JWT_SECRET", "PRICE_CURRENCY", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "TELEGRAM_USER_EMAIL"} {
			os.Unsetenv(key)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "usd", cfg.Price.Currency)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
	assert.True(t, cfg.Telegram.Enabled())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Price:    PriceConfig{Retries: 3, BaseDelay: time.Second, LiveTTL: time.Minute, HistoryTTL: time.Minute, Currency: "inr"},
			Cache:    CacheConfig{Backend: "memory"},
			Database: DatabaseConfig{Driver: "memory"},
			Auth:     AuthConfig{JWTSecret: "0123456789abcdef"},
			Refresh:  RefreshConfig{Interval: time.Minute},
		}
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero retries", func(c *Config) { c.Price.Retries = 0 }},
		{"too many retries", func(c *Config) { c.Price.Retries = 11 }},
		{"zero base delay", func(c *Config) { c.Price.BaseDelay = 0 }},
		{"no currency", func(c *Config) { c.Price.Currency = " " }},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"redis without url", func(c *Config) { c.Cache.Backend = "redis" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }},
		{"zero refresh", func(c *Config) { c.Refresh.Interval = 0 }},
		{"lock without redis", func(c *Config) { c.Refresh.LockEnabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())
}
