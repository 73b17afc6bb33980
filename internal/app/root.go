package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"cryptofolio/internal/auth"
	"cryptofolio/internal/bot"
	"cryptofolio/internal/cache"
	"cryptofolio/internal/cache/l1"
	"cryptofolio/internal/cache/l2"
	"cryptofolio/internal/cache/memory"
	"cryptofolio/internal/cache/multi"
	"cryptofolio/internal/cache/noop"
	"cryptofolio/internal/coingecko"
	"cryptofolio/internal/config"
	"cryptofolio/internal/digest"
	"cryptofolio/internal/feed"
	"cryptofolio/internal/httpserver"
	"cryptofolio/internal/logger"
	"cryptofolio/internal/models"
	"cryptofolio/internal/portfolio"
	"cryptofolio/internal/price"
	"cryptofolio/internal/refresher"
	"cryptofolio/internal/store"
	memstore "cryptofolio/internal/store/memory"
	"cryptofolio/internal/store/postgres"
)

// Root holds every application dependency. It is built once per process,
// in dependency order, and torn down with Cleanup.
type Root struct {
	Config *config.Config
	Logger *zap.Logger

	Coins  *models.Catalog
	Cache  cache.Store
	Prices *price.Service

	Repository store.Repository
	Broker     *feed.Broker
	Auth       *auth.Service
	Portfolio  *portfolio.Service
	Digest     *digest.Writer

	closers []func() error
}

// New wires the core services. Surfaces (HTTP, bot, refresher) are built on
// demand by the entry points.
func New(cfg *config.Config) (*Root, error) {
	r := &Root{Config: cfg}

	if err := r.initLogger(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := r.initCoins(); err != nil {
		return nil, fmt.Errorf("failed to load coin catalog: %w", err)
	}
	if err := r.initCache(); err != nil {
		r.Cleanup()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	r.initPrices()
	if err := r.initRepository(); err != nil {
		r.Cleanup()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	r.initServices()

	return r, nil
}

func (r *Root) initLogger() error {
	log, err := logger.New(r.Config.Logging.Level, r.Config.Logging.File)
	if err != nil {
		return err
	}
	r.Logger = log
	r.closers = append(r.closers, func() error {
		_ = r.Logger.Sync()
		return nil
	})
	return nil
}

func (r *Root) initCoins() error {
	r.Coins = models.NewCatalog()
	if r.Config.CoinsFile == "" {
		return nil
	}
	n, err := r.Coins.LoadYAML(r.Config.CoinsFile)
	if err != nil {
		return err
	}
	r.Logger.Info("Coin catalog loaded", zap.String("file", r.Config.CoinsFile), zap.Int("coins", n))
	return nil
}

func (r *Root) initCache() error {
	cfg := r.Config.Cache

	switch cfg.Backend {
	case "none":
		r.Cache = noop.New()
	case "memory":
		r.Cache = memory.New()
	case "bigcache":
		bc, err := r.newBigCache()
		if err != nil {
			return err
		}
		r.Cache = bc
	case "redis":
		rc, err := r.newRedisCache()
		if err != nil {
			return err
		}
		r.Cache = rc
	case "tiered":
		bc, err := r.newBigCache()
		if err != nil {
			return err
		}
		rc, err := r.newRedisCache()
		if err != nil {
			r.Logger.Warn("Failed to connect to redis, falling back to L1 only", zap.Error(err))
			r.Cache = bc
			break
		}
		r.Cache = multi.New([]cache.Store{bc, rc}, r.Logger)
	default:
		return fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}

	r.Logger.Info("Price cache initialized", zap.String("backend", cfg.Backend))
	return nil
}

func (r *Root) newBigCache() (*l1.BigCache, error) {
	lifeWindow := r.Config.Price.HistoryTTL
	if r.Config.Price.LiveTTL > lifeWindow {
		lifeWindow = r.Config.Price.LiveTTL
	}
	bc, err := l1.NewBigCache(l1.Options{SizeMB: r.Config.Cache.BigCacheSize, LifeWindow: lifeWindow}, r.Logger)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, bc.Close)
	return bc, nil
}

func (r *Root) newRedisCache() (*l2.RedisCache, error) {
	cfg := r.Config.Cache
	client, err := l2.NewRedisClient(l2.ClientOptions{
		URL:          cfg.RedisURL,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	}, r.Logger)
	if err != nil {
		return nil, err
	}
	rc := l2.NewRedisCache(client, cfg.ReadTimeout, cfg.WriteTimeout, r.Logger)
	r.closers = append(r.closers, rc.Close)
	return rc, nil
}

func (r *Root) initPrices() {
	cfg := r.Config.Price
	client := coingecko.NewClient(coingecko.Options{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	})

	opts := price.DefaultOptions()
	opts.Retries = cfg.Retries
	opts.BaseDelay = cfg.BaseDelay
	opts.LiveTTL = cfg.LiveTTL
	opts.HistoryTTL = cfg.HistoryTTL
	opts.Currency = cfg.Currency

	r.Prices = price.NewService(client, r.Cache, opts, r.Logger)
}

func (r *Root) initRepository() error {
	cfg := r.Config.Database
	switch cfg.Driver {
	case "memory":
		r.Repository = memstore.New()
		r.Logger.Warn("Using in-memory store, data is lost on exit")
	case "postgres":
		pg, err := postgres.Connect(cfg.DSN(), r.Logger)
		if err != nil {
			return err
		}
		if err := postgres.MigrateUp(pg.DB(), cfg.MigrationsPath, r.Logger); err != nil {
			_ = pg.Close()
			return err
		}
		r.Repository = pg
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	r.closers = append(r.closers, r.Repository.Close)
	return nil
}

func (r *Root) initServices() {
	r.Broker = feed.NewBroker(feed.DefaultBuffer, r.Logger)
	r.Auth = auth.NewService(
		r.Repository,
		auth.NewTokens(r.Config.Auth.JWTSecret, r.Config.Auth.TokenTTL),
		auth.DefaultArgon2Params,
		r.Logger,
	)
	r.Portfolio = portfolio.NewService(r.Repository, r.Prices, r.Coins, r.Broker, r.Logger)
	r.Digest = digest.New(r.Config.OpenAI, r.Logger)
}

func (r *Root) NewHTTPServer() *httpserver.Server {
	return httpserver.NewServer(r.Config.HTTP, r.Prices, r.Auth, r.Portfolio, r.Broker, r.Logger)
}

func (r *Root) NewBot(ctx context.Context) (*bot.Bot, error) {
	return bot.New(ctx, r.Config.Telegram, r.Repository, r.Prices, r.Portfolio, r.Digest, r.Broker, r.Logger)
}

// NewRefresher uses a redlock lock when enabled and a local one otherwise.
func (r *Root) NewRefresher(ctx context.Context) (*refresher.Refresher, error) {
	var locker refresher.Locker = refresher.LocalLocker{}
	if r.Config.Refresh.LockEnabled {
		opts, err := redis.ParseURL(r.Config.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL for refresh lock: %w", err)
		}
		lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rl, err := refresher.NewRedLocker(lockCtx, []string{"tcp://" + opts.Addr}, r.Logger)
		if err != nil {
			return nil, err
		}
		locker = rl
	}
	return refresher.New(r.Repository, r.Prices, r.Broker, locker, r.Config.Refresh, r.Logger), nil
}

// Cleanup releases resources in reverse order of creation.
func (r *Root) Cleanup() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
