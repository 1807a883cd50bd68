package http

import (
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mhutchens/bikeshare-dashboard/internal/observability"
)

// NewRouter wires all dashboard routes with the shared middleware chain.
// The API subrouter additionally gets rate limiting and a request deadline.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/", h.GetDashboard).Methods("GET")
	router.HandleFunc("/dashboard/{page}", h.GetDashboard).Methods("GET")
	router.HandleFunc("/assets/{name}", h.GetAsset).Methods("GET")
	router.HandleFunc("/map", h.GetMap).Methods("GET")
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	api := router.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(limiter))
	api.Use(TimeoutMiddleware(requestTimeout))
	api.HandleFunc("/stations/top", h.GetTopStations).Methods("GET")
	api.HandleFunc("/weather", h.GetWeatherSeries).Methods("GET")
	api.HandleFunc("/summary", h.GetSummary).Methods("GET")

	return router
}
