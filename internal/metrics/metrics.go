package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PriceCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_cache_requests_total",
			Help: "Total number of price cache lookups",
		},
		[]string{"kind"}, // live or history
	)

	PriceCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_cache_hits_total",
			Help: "Total number of fresh price cache hits",
		},
		[]string{"kind"},
	)

	PriceCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_cache_misses_total",
			Help: "Total number of absent or expired price cache entries",
		},
		[]string{"kind"},
	)

	UpstreamAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_attempts_total",
			Help: "Upstream price requests by outcome",
		},
		[]string{"kind", "outcome"}, // outcome: ok, rate_limited, error
	)

	UnknownFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_unavailable_total",
			Help: "Lookups that exhausted every attempt",
		},
		[]string{"kind"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of upstream price requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Cache backend errors",
		},
		[]string{"level", "op"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	WebsocketSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_subscribers",
			Help: "Open websocket change feeds",
		},
	)

	RefreshRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_runs_total",
			Help: "Auto-refresh cycles by outcome",
		},
		[]string{"outcome"}, // ok, skipped, error
	)
)

func RecordCacheRequest(kind string) {
	PriceCacheRequests.WithLabelValues(kind).Inc()
}

func RecordCacheHit(kind string) {
	PriceCacheHits.WithLabelValues(kind).Inc()
}

func RecordCacheMiss(kind string) {
	PriceCacheMisses.WithLabelValues(kind).Inc()
}

func RecordAttempt(kind, outcome string) {
	UpstreamAttempts.WithLabelValues(kind, outcome).Inc()
}

func RecordUnavailable(kind string) {
	UnknownFallbacks.WithLabelValues(kind).Inc()
}

func RecordCacheError(level, op string) {
	CacheErrors.WithLabelValues(level, op).Inc()
}

func RecordHTTPRequest(method, route string, status int) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func RecordRefresh(outcome string) {
	RefreshRuns.WithLabelValues(outcome).Inc()
}

// TimeUpstream returns a func that observes the elapsed time for endpoint.
func TimeUpstream(endpoint string) func() {
	start := time.Now()
	return func() {
		UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
