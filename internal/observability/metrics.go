// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Aggregation metrics
	DealsProcessed     prometheus.Counter
	ReservesUpdated    prometheus.Counter
	SnapshotsCreated   *prometheus.CounterVec
	UnknownPrices      *prometheus.CounterVec
	LockedLiquidityUSD prometheus.Gauge

	// Cache metrics
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	EntitiesFlushed  *prometheus.CounterVec
	EntitiesEvicted  *prometheus.CounterVec
	ResolverRebuilds prometheus.Counter

	// Driver metrics
	BlocksProcessed prometheus.Counter
	HighestBlock    prometheus.Gauge
	EventErrors     *prometheus.CounterVec
	SyncDuration    prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "orderbook_lab"
	}

	return &Metrics{
		DealsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "deals_processed_total",
			Help:      "Total number of deals applied to order books",
		}),
		ReservesUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "reserves_updated_total",
			Help:      "Total number of order book reserve updates",
		}),
		SnapshotsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "snapshots_created_total",
			Help:      "Total number of snapshot buckets created by resolution",
		}, []string{"resolution"}),
		UnknownPrices: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "unknown_price_total",
			Help:      "Valuations that used zero because an asset had no USD price",
		}, []string{"context"}),
		LockedLiquidityUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "locked_liquidity_usd",
			Help:      "USD value locked across all order books at the last valuation",
		}),

		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Entity cache hits by cache",
		}, []string{"cache"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Entity cache misses by cache",
		}, []string{"cache"}),
		EntitiesFlushed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entities_flushed_total",
			Help:      "Entities written to the persistent store by cache",
		}, []string{"cache"}),
		EntitiesEvicted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entities_evicted_total",
			Help:      "Entities dropped from memory by cache",
		}, []string{"cache"}),
		ResolverRebuilds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "rebuilds_total",
			Help:      "Full technical account scans",
		}),

		BlocksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "blocks_processed_total",
			Help:      "Total number of blocks processed",
		}),
		HighestBlock: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "highest_block",
			Help:      "Highest block height processed",
		}),
		EventErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "event_errors_total",
			Help:      "Event handling errors by event type",
		}, []string{"event_type"}),
		SyncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "sync_duration_seconds",
			Help:      "Duration of block sync points in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordDeal increments the deals processed counter.
func RecordDeal() {
	DefaultMetrics.DealsProcessed.Inc()
}

// RecordReserveUpdate increments the reserve update counter.
func RecordReserveUpdate() {
	DefaultMetrics.ReservesUpdated.Inc()
}

// RecordSnapshotCreated counts a new bucket.
func RecordSnapshotCreated(resolution string) {
	DefaultMetrics.SnapshotsCreated.WithLabelValues(resolution).Inc()
}

// RecordUnknownPrice counts a zero valuation caused by a missing USD price.
func RecordUnknownPrice(context string) {
	DefaultMetrics.UnknownPrices.WithLabelValues(context).Inc()
}

// SetLockedLiquidityUSD updates the locked liquidity gauge.
func SetLockedLiquidityUSD(usd float64) {
	DefaultMetrics.LockedLiquidityUSD.Set(usd)
}

// RecordCacheHit increments the hit counter of cache.
func RecordCacheHit(cache string) {
	DefaultMetrics.CacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss increments the miss counter of cache.
func RecordCacheMiss(cache string) {
	DefaultMetrics.CacheMisses.WithLabelValues(cache).Inc()
}

// RecordEntitiesFlushed adds n written entities.
func RecordEntitiesFlushed(cache string, n int) {
	DefaultMetrics.EntitiesFlushed.WithLabelValues(cache).Add(float64(n))
}

// RecordEvictions adds n evicted entities.
func RecordEvictions(cache string, n int) {
	DefaultMetrics.EntitiesEvicted.WithLabelValues(cache).Add(float64(n))
}

// RecordResolverRebuild increments the resolver rebuild counter.
func RecordResolverRebuild() {
	DefaultMetrics.ResolverRebuilds.Inc()
}

// RecordBlock records a processed block.
func RecordBlock(height int64) {
	DefaultMetrics.BlocksProcessed.Inc()
	DefaultMetrics.HighestBlock.Set(float64(height))
}

// RecordEventError records an event handling error.
func RecordEventError(eventType string) {
	DefaultMetrics.EventErrors.WithLabelValues(eventType).Inc()
}

// RecordSync records the duration of a sync point.
func RecordSync(seconds float64) {
	DefaultMetrics.SyncDuration.Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
