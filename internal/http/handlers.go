package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mhutchens/bikeshare-dashboard/internal/assets"
	"github.com/mhutchens/bikeshare-dashboard/internal/format"
	"github.com/mhutchens/bikeshare-dashboard/internal/lifecycle"
	"github.com/mhutchens/bikeshare-dashboard/internal/observability"
	"github.com/mhutchens/bikeshare-dashboard/internal/service"
	"github.com/mhutchens/bikeshare-dashboard/internal/stats"
	"github.com/mhutchens/bikeshare-dashboard/internal/traffic"
	"github.com/mhutchens/bikeshare-dashboard/internal/validation"
)

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	RateLimitRPS           int
	RateLimitBurst         int // 0 when rate limiter disabled
	DegradedWindow         time.Duration
	DegradedErrorPct       int
	IdleWindow             time.Duration
	IdleThresholdReqPerMin int
	MinimumLifespan        time.Duration
	StartTime              time.Time
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc              *service.DashboardService
	assets           *assets.Store
	healthConfig     *HealthConfig
	logger           *zap.Logger
	rateLimiter      *rate.Limiter
	maxSeasonLen     int
	labelMaxLen      int
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	svc *service.DashboardService,
	assetStore *assets.Store,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	rateLimiter *rate.Limiter,
	maxSeasonLen int,
	labelMaxLen int,
) *Handler {
	if maxSeasonLen <= 0 {
		maxSeasonLen = 40
	}
	if labelMaxLen <= 0 {
		labelMaxLen = 28
	}
	return &Handler{
		svc:          svc,
		assets:       assetStore,
		healthConfig: healthConfig,
		logger:       logger,
		rateLimiter:  rateLimiter,
		maxSeasonLen: maxSeasonLen,
		labelMaxLen:  labelMaxLen,
	}
}

// seasonsFromRequest reads the repeated season query params, validates each
// label, and falls back to all observed seasons when none are given.
// explicitEmpty distinguishes "no params" from "season= present but blank".
func (h *Handler) seasonsFromRequest(r *http.Request) (seasons []string, explicit bool, err error) {
	raw, present := r.URL.Query()["season"]
	if !present {
		return h.svc.Seasons(), false, nil
	}
	for _, s := range raw {
		if s == "" {
			continue
		}
		label, verr := validation.ValidateSeason(s, h.maxSeasonLen)
		if verr != nil {
			return nil, true, verr
		}
		seasons = append(seasons, label)
	}
	return seasons, true, nil
}

// topStationsResponse is the JSON body for GET /api/stations/top.
type topStationsResponse struct {
	stats.Ranking
	TotalRidesLabel string `json:"totalRidesLabel"`
	Message         string `json:"message,omitempty"`
}

// GetTopStations handles GET /api/stations/top.
func (h *Handler) GetTopStations(w http.ResponseWriter, r *http.Request) {
	seasons, _, err := h.seasonsFromRequest(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_SEASON", err.Error())
		return
	}

	ranking, err := h.svc.TopStations(r.Context(), seasons)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := topStationsResponse{Ranking: ranking, TotalRidesLabel: totalRidesLabel(ranking.TotalTrips)}
	if len(ranking.Stations) == 0 {
		// Distinct from an error: the selection simply matched nothing.
		resp.Message = "no data for the selected seasons"
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetWeatherSeries handles GET /api/weather.
func (h *Handler) GetWeatherSeries(w http.ResponseWriter, r *http.Request) {
	series := h.svc.WeatherSeries(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"points": series})
}

// GetSummary handles GET /api/summary.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Summarize(r.Context()))
}

// GetAsset handles GET /assets/{name}. Missing assets are a local,
// recoverable condition: 404 plus a warning log, never a crash.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	data, err := h.assets.Image(name)
	if err != nil {
		recordAssetMiss(r, "image")
		writeError(w, r, http.StatusNotFound, "ASSET_MISSING", "asset not available: "+name)
		return
	}
	w.Header().Set("Content-Type", assets.ContentType(name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetMap handles GET /map, serving the pre-rendered trip map verbatim.
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	html, err := h.assets.MapHTML()
	if err != nil {
		recordAssetMiss(r, "map")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<!doctype html><p>Trip map file is not available.</p>"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if h.svc.Summarize(r.Context()).Rows > 0 {
		checks["dataset"] = "healthy"
	} else {
		checks["dataset"] = "unhealthy"
	}
	if warnings := h.assets.Warnings(); len(warnings) == 0 {
		checks["assets"] = "healthy"
	} else {
		checks["assets"] = "degraded"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "bikeshare-dashboard",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus determines the current health status by evaluating
// conditions in priority order: shutting-down > overloaded > idle >
// degraded > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
	if float64(traffic.RequestCount(h.healthConfig.OverloadWindow)) > threshold {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
	}
	if h.healthConfig.IdleWindow > 0 && h.healthConfig.MinimumLifespan > 0 && time.Since(h.healthConfig.StartTime) >= h.healthConfig.MinimumLifespan {
		if traffic.RequestCount(h.healthConfig.IdleWindow) < h.healthConfig.IdleThresholdReqPerMin {
			return healthResult{"idle", http.StatusOK, "low_traffic"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errors, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError writes a 500 error response for aggregation failures and
// logs the underlying error at DEBUG when a request logger is present.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusInternalServerError, "AGGREGATION_FAILED", "Unable to compute station ranking")
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("aggregation error", zap.Error(err))
	}
}

// totalRidesLabel renders the total-rides metric in compact form.
func totalRidesLabel(total int) string {
	return format.CompactNumber(float64(total))
}

// recordAssetMiss counts a degraded asset serve and warns via the request logger.
func recordAssetMiss(r *http.Request, kind string) {
	observability.AssetMissesTotal.WithLabelValues(kind).Inc()
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Warn("optional asset missing", zap.String("asset", kind), zap.String("path", r.URL.Path))
	}
}
