package observability

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mhutchens/bikeshare-dashboard/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Response body size per route. Watch for: unexpectedly large page or API payloads.
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Rows loaded from the primary dataset. Zero after startup means the load failed.
	DatasetRowsLoaded prometheus.Gauge

	// Dataset load latency at startup.
	DatasetLoadDurationSeconds prometheus.Histogram

	// Ranking aggregations actually computed (cache misses). Watch for: recompute churn.
	AggregationsComputedTotal prometheus.Counter

	// Aggregation latency per recompute.
	AggregationDurationSeconds prometheus.Histogram

	// Total ranking lookups. rate() gives stations-page QPS.
	RankingQueriesTotal prometheus.Counter

	// Per-selection query count (allow-list; others go to "other"). Watch for: popular filters.
	RankingQueriesBySelectionTotal *prometheus.CounterVec

	// Cache hits. Hit rate = hits / rankingQueriesTotal.
	CacheHitsTotal *prometheus.CounterVec

	// Cache backend failures by operation and category.
	CacheErrorsTotal *prometheus.CounterVec

	// Cache operation latency by operation and outcome.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Cache warming runs, failures and latency.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// Optional-asset serve failures (missing image or trip map).
	AssetMissesTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// In-flight requests remaining when shutdown drain started.
	ShutdownInFlightRequests prometheus.Gauge

	// trackedSelections is built from config; used to resolve selection labels for metrics.
	trackedSelectionsMu sync.RWMutex
	trackedSelections   map[string]struct{}

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	HTTPResponseSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpResponseSizeBytes",
			Help:    "HTTP response body size in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"route"},
	)
	DatasetRowsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "datasetRowsLoaded",
			Help: "Number of trip records loaded from the primary dataset",
		},
	)
	DatasetLoadDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datasetLoadDurationSeconds",
			Help:    "Primary dataset load latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
	AggregationsComputedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregationsComputedTotal",
			Help: "Station rankings recomputed from the table (cache misses)",
		},
	)
	AggregationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregationDurationSeconds",
			Help:    "Station ranking aggregation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
	RankingQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rankingQueriesTotal",
			Help: "Total number of station ranking lookups",
		},
	)
	RankingQueriesBySelectionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankingQueriesBySelectionTotal",
			Help: "Ranking queries by season selection (allow-list; others use selection=other)",
		},
		[]string{"selection"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of ranking cache hits",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend failures by operation and error category",
		},
		[]string{"operation", "category"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache operation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"operation", "outcome"},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Ranking cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Ranking cache warming runs that had at least one failure",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Ranking cache warming latency in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
	AssetMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetMissesTotal",
			Help: "Requests for optional assets that were not loaded (degraded serving)",
		},
		[]string{"asset"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	ShutdownInFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "In-flight requests remaining when shutdown drain started",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		HTTPResponseSizeBytes,
		DatasetRowsLoaded, DatasetLoadDurationSeconds,
		AggregationsComputedTotal, AggregationDurationSeconds,
		RankingQueriesTotal, RankingQueriesBySelectionTotal,
		CacheHitsTotal, CacheErrorsTotal, CacheOperationDurationSeconds,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		AssetMissesTotal,
		RateLimitDeniedTotal, ShutdownInFlightRequests,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// Call from main after config load with cfg.OverloadWindow.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window; load/capacity planning",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window; are we rejecting requests",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// SetTrackedSelections sets the allow-list for selection metrics. Non-tracked
// selections increment "other".
func SetTrackedSelections(selections [][]string) {
	trackedSelectionsMu.Lock()
	defer trackedSelectionsMu.Unlock()
	trackedSelections = make(map[string]struct{}, len(selections))
	for _, sel := range selections {
		trackedSelections[SelectionLabel(sel)] = struct{}{}
	}
}

// RecordRankingQuery records a ranking lookup for the given season selection.
func RecordRankingQuery(seasons []string) {
	RankingQueriesTotal.Inc()
	label := SelectionLabel(seasons)
	trackedSelectionsMu.RLock()
	_, ok := trackedSelections[label] // nil map read is safe in Go
	trackedSelectionsMu.RUnlock()
	if ok {
		RankingQueriesBySelectionTotal.WithLabelValues(label).Inc()
	} else {
		RankingQueriesBySelectionTotal.WithLabelValues("other").Inc()
	}
}

// SelectionLabel produces a stable, order-insensitive metric label for a
// season selection: lowercase labels sorted and joined with "+".
func SelectionLabel(seasons []string) string {
	norm := make([]string, 0, len(seasons))
	for _, s := range seasons {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			norm = append(norm, s)
		}
	}
	sort.Strings(norm)
	if len(norm) == 0 {
		return "none"
	}
	return strings.Join(norm, "+")
}

// RecordShutdownInFlight records the number of in-flight requests at shutdown.
func RecordShutdownInFlight(n int64) {
	ShutdownInFlightRequests.Set(float64(n))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
