package price

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"cryptofolio/internal/cache"
	"cryptofolio/internal/cache/memory"
	"cryptofolio/internal/cache/multi"
	"cryptofolio/internal/coingecko"
	"cryptofolio/internal/models"
	"cryptofolio/internal/price/mock"
)

var errUpstream = errors.New("connection reset")

func rateLimited() error {
	return &coingecko.APIError{Endpoint: "simple_price", Coin: "bitcoin", StatusCode: 429, Err: coingecko.ErrRateLimited}
}

// fixture wires a service to a mock fetcher, an in-memory cache, a settable
// clock and a sleeper that records the requested pauses.
type fixture struct {
	fetcher *mock.MockFetcher
	cache   *memory.Cache
	svc     *Service

	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		fetcher: mock.NewMockFetcher(ctrl),
		cache:   memory.New(),
		now:     time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.fetcher, f.cache, Options{
		Retries:    3,
		BaseDelay:  2 * time.Second,
		LiveTTL:    60 * time.Second,
		HistoryTTL: 5 * time.Minute,
		Currency:   "inr",
		Now:        f.clock,
		Sleep:      f.sleep,
	}, zap.NewNop())
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fixture) sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fixture) seed(t *testing.T, key string, v any, fetchedAt time.Time) {
	t.Helper()
	entry, err := models.NewCacheEntry(v, fetchedAt)
	require.NoError(t, err)
	f.cache.Set(key, entry, time.Minute)
}

func TestLivePrice_FreshEntryServedWithoutNetwork(t *testing.T) {
	f := newFixture(t)
	f.seed(t, cache.LiveKey("bitcoin", "inr"), 5712345.5, f.now.Add(-59*time.Second))

	// no EXPECT: any fetcher call fails the test
	price := f.svc.LivePrice(context.Background(), "bitcoin")

	assert.Equal(t, 5712345.5, price)
	assert.Empty(t, f.sleeps)
}

func TestLivePrice_ExpiredEntryRefetched(t *testing.T) {
	f := newFixture(t)
	f.seed(t, cache.LiveKey("bitcoin", "inr"), 100.0, f.now.Add(-60*time.Second))

	f.fetcher.EXPECT().SimplePrice(gomock.Any(), "bitcoin", "inr").Return(200.0, true, nil).Times(1)

	price := f.svc.LivePrice(context.Background(), "bitcoin")
	assert.Equal(t, 200.0, price)

	entry, found := f.cache.Get(cache.LiveKey("bitcoin", "inr"))
	require.True(t, found)
	assert.True(t, entry.FetchedAt.Equal(f.now))
}

func TestLivePrice_AbsentEntryFetchedThenCached(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().SimplePrice(gomock.Any(), "ethereum", "inr").Return(300000.0, true, nil).Times(1)

	assert.Equal(t, 300000.0, f.svc.LivePrice(context.Background(), "ethereum"))
	assert.Equal(t, []time.Duration{2 * time.Second}, f.sleeps)

	f.advance(30 * time.Second)
	assert.Equal(t, 300000.0, f.svc.LivePrice(context.Background(), "ethereum"))
}

func TestLivePrice_RateLimitsThenSuccess(t *testing.T) {
	f := newFixture(t)
	gomock.InOrder(
		f.fetcher.EXPECT().SimplePrice(gomock.Any(), "bitcoin", "inr").Return(0.0, false, rateLimited()),
		f.fetcher.EXPECT().SimplePrice(gomock.Any(), "bitcoin", "inr").Return(0.0, false, rateLimited()),
		f.fetcher.EXPECT().SimplePrice(gomock.Any(), "bitcoin", "inr").Return(42.0, true, nil),
	)

	price := f.svc.LivePrice(context.Background(), "bitcoin")

	assert.Equal(t, 42.0, price)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, f.sleeps)
	_, found := f.cache.Get(cache.LiveKey("bitcoin", "inr"))
	assert.True(t, found)
}

func TestLivePrice_HardFailureThenSuccess(t *testing.T) {
	f := newFixture(t)
	gomock.InOrder(
		f.fetcher.EXPECT().SimplePrice(gomock.Any(), "bitcoin", "inr").Return(0.0, false, errUpstream),
		f.fetcher.EXPECT().SimplePrice(gomock.Any(), "bitcoin", "inr").Return(7.5, true, nil),
	)

	assert.Equal(t, 7.5, f.svc.LivePrice(context.Background(), "bitcoin"))
	assert.Len(t, f.sleeps, 2)
}

func TestLivePrice_ExhaustedReturnsZeroUncached(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().SimplePrice(gomock.Any(), "bitcoin", "inr").Return(0.0, false, rateLimited()).Times(1)
	f.fetcher.EXPECT().SimplePrice(gomock.Any(), "bitcoin", "inr").Return(0.0, false, errUpstream).Times(2)

	price := f.svc.LivePrice(context.Background(), "bitcoin")

	assert.Zero(t, price)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, f.sleeps)
	assert.Equal(t, 0, f.cache.Len())
}

func TestLivePrice_ExhaustedRetriesNextCall(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().SimplePrice(gomock.Any(), "bitcoin", "inr").Return(0.0, false, errUpstream).Times(3)
	assert.Zero(t, f.svc.LivePrice(context.Background(), "bitcoin"))

	f.fetcher.EXPECT().SimplePrice(gomock.Any(), "bitcoin", "inr").Return(11.0, true, nil).Times(1)
	assert.Equal(t, 11.0, f.svc.LivePrice(context.Background(), "bitcoin"))
}

func TestLivePrice_MissingFieldCachedAsZero(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().SimplePrice(gomock.Any(), "nosuchcoin", "inr").Return(0.0, false, nil).Times(1)

	assert.Zero(t, f.svc.LivePrice(context.Background(), "nosuchcoin"))
	assert.Equal(t, 1, f.cache.Len())

	f.advance(59 * time.Second)
	assert.Zero(t, f.svc.LivePrice(context.Background(), "nosuchcoin"))
	assert.Len(t, f.sleeps, 1)
}

func TestLivePrice_WrongShapeBodyCachedAsZero(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"bitcoin": 5}`))
	}))
	defer srv.Close()

	store := memory.New()
	svc := NewService(coingecko.NewClient(coingecko.Options{BaseURL: srv.URL}), store, Options{
		Sleep: func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	}, zap.NewNop())

	assert.Zero(t, svc.LivePrice(context.Background(), "bitcoin"))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, store.Len())

	assert.Zero(t, svc.LivePrice(context.Background(), "bitcoin"))
	assert.Equal(t, int32(1), hits.Load())
}

func TestLivePrice_TieredCacheServesFresherLowerLevel(t *testing.T) {
	f := newFixture(t)
	l2 := memory.New()
	f.svc.cache = multi.New([]cache.Store{f.cache, l2}, zap.NewNop())

	key := cache.LiveKey("bitcoin", "inr")
	f.seed(t, key, 100.0, f.now.Add(-90*time.Second))
	entry, err := models.NewCacheEntry(200.0, f.now.Add(-5*time.Second))
	require.NoError(t, err)
	l2.Set(key, entry, time.Minute)

	// no EXPECT: the fresh L2 entry must be served without going upstream
	assert.Equal(t, 200.0, f.svc.LivePrice(context.Background(), "bitcoin"))
	assert.Empty(t, f.sleeps)
}

func TestLivePrice_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Zero(t, f.svc.LivePrice(ctx, "bitcoin"))
	assert.Equal(t, 0, f.cache.Len())
}

func TestLivePrice_UndecodableEntryIsMiss(t *testing.T) {
	f := newFixture(t)
	f.cache.Set(cache.LiveKey("bitcoin", "inr"), models.CacheEntry{Data: []byte("{"), FetchedAt: f.now}, time.Minute)
	f.fetcher.EXPECT().SimplePrice(gomock.Any(), "bitcoin", "inr").Return(1.0, true, nil)

	assert.Equal(t, 1.0, f.svc.LivePrice(context.Background(), "bitcoin"))
}

func TestLivePrices_DistinctCoins(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().SimplePrice(gomock.Any(), "bitcoin", "inr").Return(1.0, true, nil).Times(1)
	f.fetcher.EXPECT().SimplePrice(gomock.Any(), "ethereum", "inr").Return(2.0, true, nil).Times(1)

	prices := f.svc.LivePrices(context.Background(), []string{"bitcoin", "ethereum", "bitcoin"})
	assert.Equal(t, map[string]float64{"bitcoin": 1, "ethereum": 2}, prices)
}

func TestHistoricalSeries_Verbatim(t *testing.T) {
	f := newFixture(t)
	series := []models.PricePoint{{Timestamp: 1711929600000, Price: 10}, {Timestamp: 1711933200000, Price: 12.5}}
	f.fetcher.EXPECT().MarketChart(gomock.Any(), "bitcoin", "inr", 7).Return(series, nil).Times(1)

	got, err := f.svc.HistoricalSeries(context.Background(), "bitcoin", 7, "")
	require.NoError(t, err)
	assert.Equal(t, series, got)

	f.advance(4 * time.Minute)
	got, err = f.svc.HistoricalSeries(context.Background(), "bitcoin", 7, "INR")
	require.NoError(t, err)
	assert.Equal(t, series, got)
}

func TestHistoricalSeries_ExpiresAfterFiveMinutes(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().MarketChart(gomock.Any(), "bitcoin", "inr", 1).Return([]models.PricePoint{{Timestamp: 1, Price: 1}}, nil).Times(2)

	_, err := f.svc.HistoricalSeries(context.Background(), "bitcoin", 1, "inr")
	require.NoError(t, err)
	f.advance(5 * time.Minute)
	_, err = f.svc.HistoricalSeries(context.Background(), "bitcoin", 1, "inr")
	require.NoError(t, err)
}

func TestHistoricalSeries_KeyedByCurrency(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().MarketChart(gomock.Any(), "bitcoin", "inr", 30).Return([]models.PricePoint{{Timestamp: 1, Price: 5000000}}, nil).Times(1)
	f.fetcher.EXPECT().MarketChart(gomock.Any(), "bitcoin", "usd", 30).Return([]models.PricePoint{{Timestamp: 1, Price: 60000}}, nil).Times(1)

	inr, err := f.svc.HistoricalSeries(context.Background(), "bitcoin", 30, "inr")
	require.NoError(t, err)
	usd, err := f.svc.HistoricalSeries(context.Background(), "bitcoin", 30, "usd")
	require.NoError(t, err)
	assert.NotEqual(t, inr, usd)
}

func TestHistoricalSeries_EmptyIsNotFailure(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().MarketChart(gomock.Any(), "bitcoin", "inr", 1).Return([]models.PricePoint{}, nil).Times(1)

	got, err := f.svc.HistoricalSeries(context.Background(), "bitcoin", 1, "")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = f.svc.HistoricalSeries(context.Background(), "bitcoin", 1, "")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestHistoricalSeries_ExhaustedIsDistinctFailure(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().MarketChart(gomock.Any(), "bitcoin", "inr", 7).Return(nil, rateLimited()).Times(3)

	got, err := f.svc.HistoricalSeries(context.Background(), "bitcoin", 7, "")

	assert.ErrorIs(t, err, ErrSeriesUnavailable)
	assert.Nil(t, got)
	assert.Equal(t, 0, f.cache.Len())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, f.sleeps)
}

func TestHistoricalSeries_InvalidDays(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.HistoricalSeries(context.Background(), "bitcoin", 0, "")
	assert.ErrorIs(t, err, ErrInvalidDays)
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(nil, memory.New(), Options{}, zap.NewNop())

	assert.Equal(t, "inr", svc.Currency())
	assert.Equal(t, 3, svc.opts.Retries)
	assert.Equal(t, 60*time.Second, svc.opts.LiveTTL)
	assert.Equal(t, 5*time.Minute, svc.opts.HistoryTTL)
	assert.Equal(t, 2*time.Second, svc.Backoff(0))
	assert.Equal(t, 8*time.Second, svc.Backoff(2))
}

func TestNewService_ClampsRetries(t *testing.T) {
	svc := NewService(nil, memory.New(), Options{Retries: 64, BaseDelay: -time.Second}, zap.NewNop())

	assert.Equal(t, MaxRetries, svc.opts.Retries)
	assert.Equal(t, 2*time.Second, svc.Backoff(0))
	assert.Equal(t, 1024*time.Second, svc.Backoff(MaxRetries-1))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
