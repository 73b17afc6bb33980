package price

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"cryptofolio/internal/cache"
	"cryptofolio/internal/coingecko"
	"cryptofolio/internal/metrics"
	"cryptofolio/internal/models"
)

//go:generate mockgen -source=service.go -destination=mock/fetcher.go -package=mock

// Fetcher issues single upstream requests. *coingecko.Client implements it.
type Fetcher interface {
	SimplePrice(ctx context.Context, coin, currency string) (price float64, found bool, err error)
	MarketChart(ctx context.Context, coin, currency string, days int) ([]models.PricePoint, error)
}

var (
	// ErrSeriesUnavailable is returned when every attempt to load a
	// historical series failed. It is distinct from an empty series.
	ErrSeriesUnavailable = errors.New("failed to load data")
	ErrInvalidDays       = errors.New("days must be positive")
)

const (
	kindLive    = "live"
	kindHistory = "history"
)

// MaxRetries bounds Options.Retries so Backoff cannot overflow.
const MaxRetries = 10

type Options struct {
	Retries    int
	BaseDelay  time.Duration
	LiveTTL    time.Duration
	HistoryTTL time.Duration
	Currency   string

	// Now and Sleep default to the wall clock and a context-aware timer.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultOptions() Options {
	return Options{
		Retries:    3,
		BaseDelay:  2 * time.Second,
		LiveTTL:    models.LivePriceTTL,
		HistoryTTL: models.HistoricalTTL,
		Currency:   "inr",
	}
}

// Service serves live prices and historical series from a cache, going
// upstream with exponential backoff when an entry is absent or expired.
// Concurrent lookups of the same stale key are not coalesced.
type Service struct {
	fetcher Fetcher
	cache   cache.Store
	opts    Options
	logger  *zap.Logger
}

func NewService(fetcher Fetcher, store cache.Store, opts Options, logger *zap.Logger) *Service {
	defaults := DefaultOptions()
	if opts.Retries < 1 {
		opts.Retries = defaults.Retries
	}
	if opts.Retries > MaxRetries {
		opts.Retries = MaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaults.BaseDelay
	}
	if opts.LiveTTL <= 0 {
		opts.LiveTTL = defaults.LiveTTL
	}
	if opts.HistoryTTL <= 0 {
		opts.HistoryTTL = defaults.HistoryTTL
	}
	opts.Currency = strings.ToLower(opts.Currency)
	if opts.Currency == "" {
		opts.Currency = defaults.Currency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	return &Service{
		fetcher: fetcher,
		cache:   store,
		opts:    opts,
		logger:  logger,
	}
}

// Currency is the display currency of live prices.
func (s *Service) Currency() string {
	return s.opts.Currency
}

// LivePrice returns the coin's price in the service currency, or 0 when it
// is unknown. A well-formed response without the price field is cached as 0;
// exhausting every attempt returns 0 without caching it.
func (s *Service) LivePrice(ctx context.Context, coin string) float64 {
	key := cache.LiveKey(coin, s.opts.Currency)

	var price float64
	if s.lookup(key, kindLive, s.opts.LiveTTL, &price) {
		return price
	}

	price, err := withRetries(ctx, s, kindLive, coin, func(ctx context.Context) (float64, error) {
		p, found, err := s.fetcher.SimplePrice(ctx, coin, s.opts.Currency)
		if err != nil {
			return 0, err
		}
		if !found {
			s.logger.Warn("No price in response, caching zero",
				zap.String("coin", coin),
				zap.String("currency", s.opts.Currency))
		}
		return p, nil
	})
	if err != nil {
		metrics.RecordUnavailable(kindLive)
		s.logger.Error("Live price unavailable",
			zap.String("coin", coin),
			zap.Int("attempts", s.opts.Retries),
			zap.Error(err))
		return 0
	}

	s.store(key, price, s.opts.LiveTTL)
	return price
}

// LivePrices looks up each distinct coin in turn.
func (s *Service) LivePrices(ctx context.Context, coins []string) map[string]float64 {
	prices := make(map[string]float64, len(coins))
	for _, coin := range coins {
		if _, done := prices[coin]; done {
			continue
		}
		prices[coin] = s.LivePrice(ctx, coin)
	}
	return prices
}

// HistoricalSeries returns the upstream price series for the last days days,
// exactly as sent. An empty currency means the service currency.
func (s *Service) HistoricalSeries(ctx context.Context, coin string, days int, currency string) ([]models.PricePoint, error) {
	if days < 1 {
		return nil, ErrInvalidDays
	}
	currency = strings.ToLower(currency)
	if currency == "" {
		currency = s.opts.Currency
	}
	key := cache.HistoryKey(coin, days, currency)

	var series []models.PricePoint
	if s.lookup(key, kindHistory, s.opts.HistoryTTL, &series) {
		if series == nil {
			series = []models.PricePoint{}
		}
		return series, nil
	}

	series, err := withRetries(ctx, s, kindHistory, coin, func(ctx context.Context) ([]models.PricePoint, error) {
		return s.fetcher.MarketChart(ctx, coin, currency, days)
	})
	if err != nil {
		metrics.RecordUnavailable(kindHistory)
		s.logger.Error("Historical series unavailable",
			zap.String("coin", coin),
			zap.Int("days", days),
			zap.String("currency", currency),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrSeriesUnavailable, coin, err)
	}
	if series == nil {
		series = []models.PricePoint{}
	}

	s.store(key, series, s.opts.HistoryTTL)
	return series, nil
}

// lookup decodes a fresh entry into out. Expired or undecodable entries count
// as misses.
func (s *Service) lookup(key, kind string, ttl time.Duration, out any) bool {
	metrics.RecordCacheRequest(kind)

	entry, found := s.cache.Get(key)
	if !found || !entry.Fresh(s.opts.Now(), ttl) {
		metrics.RecordCacheMiss(kind)
		return false
	}
	if err := entry.Decode(out); err != nil {
		s.logger.Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheMiss(kind)
		return false
	}

	metrics.RecordCacheHit(kind)
	return true
}

func (s *Service) store(key string, v any, ttl time.Duration) {
	entry, err := models.NewCacheEntry(v, s.opts.Now())
	if err != nil {
		s.logger.Error("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	s.cache.Set(key, entry, ttl)
}

// Backoff is the pause before attempt i (0-based).
func (s *Service) Backoff(attempt int) time.Duration {
	return s.opts.BaseDelay * time.Duration(1<<attempt)
}

// withRetries runs attempt up to Retries times, sleeping Backoff(i) before
// attempt i. Rate limits are logged as warnings, other failures as errors.
// It returns the last failure once attempts or the context run out.
func withRetries[T any](ctx context.Context, s *Service, kind, coin string, attempt func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for i := 0; i < s.opts.Retries; i++ {
		if err := s.opts.Sleep(ctx, s.Backoff(i)); err != nil {
			s.logger.Info("Price lookup cancelled", zap.String("coin", coin), zap.Int("attempt", i+1), zap.Error(err))
			return zero, err
		}

		v, err := attempt(ctx)
		if err == nil {
			metrics.RecordAttempt(kind, "ok")
			return v, nil
		}
		lastErr = err

		if coingecko.IsRateLimited(err) {
			metrics.RecordAttempt(kind, "rate_limited")
			s.logger.Warn("Rate limited by upstream",
				zap.String("kind", kind),
				zap.String("coin", coin),
				zap.Int("attempt", i+1),
				zap.Int("retries", s.opts.Retries))
			continue
		}

		metrics.RecordAttempt(kind, "error")
		s.logger.Error("Upstream request failed",
			zap.String("kind", kind),
			zap.String("coin", coin),
			zap.Int("attempt", i+1),
			zap.Int("retries", s.opts.Retries),
			zap.Error(err))
	}

	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
