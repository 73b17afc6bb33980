package refresher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cryptofolio/internal/config"
	"cryptofolio/internal/feed"
	"cryptofolio/internal/metrics"
	"cryptofolio/internal/models"
)

const LockName = "cryptofolio:refresh"

type HoldingsSource interface {
	ListAllHoldings(ctx context.Context) ([]models.Holding, error)
}

type PriceWarmer interface {
	LivePrices(ctx context.Context, coins []string) map[string]float64
}

type Subscriber interface {
	Subscribe(userID string) (<-chan models.ChangeEvent, func())
}

// Refresher re-fetches the live price of every held coin on an interval so
// that reads between cycles are served from cache. It tracks holdings
// through the change feed rather than polling the store.
type Refresher struct {
	holdings HoldingsSource
	prices   PriceWarmer
	feed     Subscriber
	locker   Locker
	interval time.Duration
	lockTTL  time.Duration
	logger   *zap.Logger

	// OnRefresh, if set, receives the prices of each completed cycle.
	OnRefresh func(map[string]float64)
}

func New(holdings HoldingsSource, prices PriceWarmer, sub Subscriber, locker Locker, cfg config.RefreshConfig, logger *zap.Logger) *Refresher {
	if locker == nil {
		locker = LocalLocker{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = interval * 4 / 5
	}
	return &Refresher{
		holdings: holdings,
		prices:   prices,
		feed:     sub,
		locker:   locker,
		interval: interval,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

// Run refreshes immediately and then on every tick until ctx is done. The
// view of watched holdings is owned by this goroutine alone.
func (r *Refresher) Run(ctx context.Context) error {
	events, cancel, view, err := r.subscribe(ctx)
	if err != nil {
		return err
	}
	defer func() { cancel() }()

	r.logger.Info("Price refresher started",
		zap.Duration("interval", r.interval),
		zap.Int("holdings", view.Len()))

	r.RefreshOnce(ctx, view.Coins())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Price refresher stopped")
			return nil
		case <-ticker.C:
			r.RefreshOnce(ctx, view.Coins())
		case ev, ok := <-events:
			if ok {
				view.Apply(ev)
				continue
			}
			r.logger.Warn("Change feed dropped the refresher, rebuilding watch list")
			cancel()
			events, cancel, view, err = r.subscribe(ctx)
			if err != nil {
				return err
			}
		}
	}
}

// subscribe registers with the feed before reading the store so that no
// write falls between the two.
func (r *Refresher) subscribe(ctx context.Context) (<-chan models.ChangeEvent, func(), *feed.Reconciler, error) {
	events, cancel := r.feed.Subscribe("")
	seed, err := r.holdings.ListAllHoldings(ctx)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return events, cancel, feed.NewReconciler(seed), nil
}

// RefreshOnce fetches prices for coins under the refresh lock. It reports
// false when the cycle was skipped.
func (r *Refresher) RefreshOnce(ctx context.Context, coins []string) bool {
	if len(coins) == 0 {
		metrics.RecordRefresh("skipped")
		return false
	}

	ok, err := r.locker.TryLock(ctx, LockName, r.lockTTL)
	if err != nil {
		metrics.RecordRefresh("error")
		r.logger.Error("Failed to take refresh lock", zap.Error(err))
		return false
	}
	if !ok {
		metrics.RecordRefresh("skipped")
		r.logger.Debug("Refresh running elsewhere, skipping")
		return false
	}
	defer func() { _ = r.locker.Unlock(context.WithoutCancel(ctx), LockName) }()

	start := time.Now()
	prices := r.prices.LivePrices(ctx, coins)

	unknown := 0
	for _, p := range prices {
		if p == 0 {
			unknown++
		}
	}
	metrics.RecordRefresh("ok")
	r.logger.Info("Prices refreshed",
		zap.Int("coins", len(coins)),
		zap.Int("unknown", unknown),
		zap.Duration("took", time.Since(start)))

	if r.OnRefresh != nil {
		r.OnRefresh(prices)
	}
	return true
}
