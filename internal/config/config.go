package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration, read from the environment.
type Config struct {
	HTTP      HTTPConfig     `envconfig:"HTTP"`
	Price     PriceConfig    `envconfig:"PRICE"`
	Cache     CacheConfig    `envconfig:"CACHE"`
	Database  DatabaseConfig `envconfig:"DATABASE"`
	Auth      AuthConfig     `envconfig:"AUTH"`
	Telegram  TelegramConfig `envconfig:"TELEGRAM"`
	OpenAI    OpenAIConfig   `envconfig:"OPENAI"`
	Refresh   RefreshConfig  `envconfig:"REFRESH"`
	Logging   LoggingConfig  `envconfig:"LOG"`
	CoinsFile string         `envconfig:"COINS_FILE"`
}

type HTTPConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// PriceConfig tunes the price acquisition service and its upstream client.
type PriceConfig struct {
	Retries    int           `envconfig:"RETRIES" default:"3"`
	BaseDelay  time.Duration `envconfig:"BASE_DELAY" default:"2s"`
	LiveTTL    time.Duration `envconfig:"LIVE_TTL" default:"60s"`
	HistoryTTL time.Duration `envconfig:"HISTORY_TTL" default:"5m"`
	Currency   string        `envconfig:"CURRENCY" default:"inr"`
	BaseURL    string        `envconfig:"BASE_URL" default:"https://api.coingecko.com/api/v3"`
	APIKey     string        `envconfig:"API_KEY"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"10s"`
	UserAgent  string        `envconfig:"USER_AGENT" default:"cryptofolio/1.0"`
}

type CacheConfig struct {
	Backend      string        `envconfig:"BACKEND" default:"memory"`   // memory, bigcache, redis, tiered, none
	BigCacheSize int           `envconfig:"BIGCACHE_SIZE" default:"64"` // MB
	RedisURL     string        `envconfig:"REDIS_URL"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"500ms"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"500ms"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
}

type DatabaseConfig struct {
	Driver         string `envconfig:"DRIVER" default:"memory"` // memory or postgres
	Host           string `envconfig:"HOST" default:"localhost"`
	Port           int    `envconfig:"PORT" default:"5432"`
	User           string `envconfig:"USER" default:"cryptofolio"`
	Password       string `envconfig:"PASSWORD"`
	Name           string `envconfig:"NAME" default:"cryptofolio"`
	SSLMode        string `envconfig:"SSL_MODE" default:"disable"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"migrations"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
}

type TelegramConfig struct {
	BotToken  string `envconfig:"BOT_TOKEN"`
	ChatID    int64  `envconfig:"CHAT_ID"`
	UserEmail string `envconfig:"USER_EMAIL"`
}

// Enabled reports whether enough is configured to run the bot.
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0 && c.UserEmail != ""
}

type OpenAIConfig struct {
	APIKey  string `envconfig:"API_KEY"`
	BaseURL string `envconfig:"BASE_URL"`
	Model   string `envconfig:"MODEL" default:"gpt-4o-mini"`
}

type RefreshConfig struct {
	Interval    time.Duration `envconfig:"INTERVAL" default:"5m"`
	LockEnabled bool          `envconfig:"LOCK_ENABLED" default:"false"`
	LockTTL     time.Duration `envconfig:"LOCK_TTL" default:"4m"`
}

type LoggingConfig struct {
	Level string `envconfig:"LEVEL" default:"info"`
	File  string `envconfig:"FILE"`
}

// Load reads the given .env files (".env" when none is given) into the
// process environment and then builds a validated Config from it. Missing
// .env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

const maxRetries = 10

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Price.Retries < 1 || c.Price.Retries > maxRetries {
		return fmt.Errorf("PRICE_RETRIES must be between 1 and %d", maxRetries)
	}
	if c.Price.BaseDelay <= 0 {
		return fmt.Errorf("PRICE_BASE_DELAY must be positive")
	}
	if c.Price.LiveTTL <= 0 || c.Price.HistoryTTL <= 0 {
		return fmt.Errorf("price TTLs must be positive")
	}
	c.Price.Currency = strings.ToLower(strings.TrimSpace(c.Price.Currency))
	if c.Price.Currency == "" {
		return fmt.Errorf("PRICE_CURRENCY is required")
	}

	switch c.Cache.Backend {
	case "memory", "bigcache", "none":
	case "redis", "tiered":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("CACHE_REDIS_URL is required for cache backend %q", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("DATABASE_HOST and DATABASE_NAME are required for postgres")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 16 characters")
	}

	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	if c.Refresh.LockEnabled && c.Cache.RedisURL == "" {
		return fmt.Errorf("CACHE_REDIS_URL is required when REFRESH_LOCK_ENABLED is set")
	}

	return nil
}
