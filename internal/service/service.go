package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mhutchens/bikeshare-dashboard/internal/cache"
	"github.com/mhutchens/bikeshare-dashboard/internal/dataset"
	"github.com/mhutchens/bikeshare-dashboard/internal/observability"
	"github.com/mhutchens/bikeshare-dashboard/internal/stats"
)

// DashboardService is the session-scoped data context: it owns the loaded
// table and computes everything the pages show. Rankings go through the
// cache-aside pattern; all other views are derived on demand.
type DashboardService struct {
	table         *dataset.Table
	top20         []dataset.PrecomputedStation
	cache         cache.Cache
	ttl           time.Duration
	topLimit      int
	tempThreshold float64
}

// NewDashboardService creates a DashboardService over the loaded table.
// top20 is the optional precomputed ranking (nil when its file was absent or
// unreadable). ttl is the ranking-cache expiration.
func NewDashboardService(table *dataset.Table, top20 []dataset.PrecomputedStation, c cache.Cache, ttl time.Duration, topLimit int, tempThreshold float64) *DashboardService {
	if topLimit <= 0 {
		topLimit = stats.DefaultTopLimit
	}
	if tempThreshold <= 0 {
		tempThreshold = stats.DefaultCumulativeTempThreshold
	}
	return &DashboardService{
		table:         table,
		top20:         top20,
		cache:         c,
		ttl:           ttl,
		topLimit:      topLimit,
		tempThreshold: tempThreshold,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// Seasons returns the distinct season labels observed in the table, in
// first-observed order. The stations page uses this as both the filter
// options and the default selection.
func (s *DashboardService) Seasons() []string {
	return s.table.Seasons()
}

// TopStations returns the ranking for the given season selection using the
// cache-aside pattern. An empty selection (or one matching no rows) yields
// an empty ranking, not an error; callers report that case distinctly.
func (s *DashboardService) TopStations(ctx context.Context, seasons []string) (stats.Ranking, error) {
	key := observability.SelectionLabel(seasons)
	start := time.Now()
	logger := loggerFromContext(ctx)
	observability.RecordRankingQuery(seasons)

	getStart := time.Now()
	cached, ok, err := s.cache.Get(ctx, key)
	getDuration := time.Since(getStart).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
	} else if ok {
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
		observability.CacheHitsTotal.WithLabelValues("ranking").Inc()
		if logger != nil {
			logger.Debug("ranking served", zap.String("selection", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		}
		return cached, nil
	}

	aggStart := time.Now()
	ranking := stats.Rank(s.table.Records, seasons, s.topLimit)
	observability.AggregationsComputedTotal.Inc()
	observability.AggregationDurationSeconds.Observe(time.Since(aggStart).Seconds())

	setStart := time.Now()
	if setErr := s.cache.Set(ctx, key, ranking, s.ttl); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(setStart).Seconds())
		if logger != nil {
			logger.Warn("ranking cache set failed", zap.String("selection", key), zap.Error(setErr))
		}
	} else {
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(setStart).Seconds())
	}
	if logger != nil {
		logger.Debug("ranking served", zap.String("selection", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	}
	return ranking, nil
}

// WeatherSeries returns the date-sorted daily rides and normalized
// temperature series for the weather page.
func (s *DashboardService) WeatherSeries(ctx context.Context) []stats.DailyPoint {
	return stats.DailySeries(s.table.Records, s.tempThreshold)
}

// Summary describes the loaded dataset for the intro page and health detail.
type Summary struct {
	Rows        int       `json:"rows"`
	Stations    int       `json:"stations"`
	Seasons     []string  `json:"seasons"`
	FirstDate   time.Time `json:"firstDate"`
	LastDate    time.Time `json:"lastDate"`
	Top20Loaded bool      `json:"top20Loaded"`
	SourcePath  string    `json:"sourcePath"`
}

// Summarize returns dataset-level facts derived from the table.
func (s *DashboardService) Summarize(ctx context.Context) Summary {
	first, last := s.table.DateRange()
	return Summary{
		Rows:        s.table.Len(),
		Stations:    s.table.Stations(),
		Seasons:     s.table.Seasons(),
		FirstDate:   first,
		LastDate:    last,
		Top20Loaded: len(s.top20) > 0,
		SourcePath:  s.table.SourcePath,
	}
}

// Precomputed returns the optional secondary top-20 rows (nil when absent).
func (s *DashboardService) Precomputed() []dataset.PrecomputedStation {
	return s.top20
}

// categorizeCacheError returns a stable label for cache error metrics
// (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
