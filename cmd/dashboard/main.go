package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mhutchens/bikeshare-dashboard/internal/assets"
	"github.com/mhutchens/bikeshare-dashboard/internal/cache"
	"github.com/mhutchens/bikeshare-dashboard/internal/config"
	"github.com/mhutchens/bikeshare-dashboard/internal/dataset"
	httphandler "github.com/mhutchens/bikeshare-dashboard/internal/http"
	"github.com/mhutchens/bikeshare-dashboard/internal/lifecycle"
	"github.com/mhutchens/bikeshare-dashboard/internal/observability"
	"github.com/mhutchens/bikeshare-dashboard/internal/service"
)

func main() {
	_ = godotenv.Load()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	// The primary dataset is the one hard requirement. Everything else
	// degrades gracefully.
	loadStart := time.Now()
	table, err := dataset.Load(cfg.DataFile, cfg.Columns)
	if err != nil {
		logger.Fatal("load dataset", zap.String("file", cfg.DataFile), zap.Error(err))
	}
	observability.DatasetRowsLoaded.Set(float64(table.Len()))
	observability.DatasetLoadDurationSeconds.Observe(time.Since(loadStart).Seconds())
	logger.Info("dataset loaded",
		zap.String("file", cfg.DataFile),
		zap.Int("rows", table.Len()),
		zap.Strings("seasons", table.Seasons()))

	var top20 []dataset.PrecomputedStation
	if cfg.Top20File != "" {
		top20, err = dataset.LoadTop20(cfg.Top20File)
		if err != nil {
			logger.Warn("precomputed top-20 unavailable, continuing without it",
				zap.String("file", cfg.Top20File), zap.Error(err))
		}
	}

	var imageFiles []string
	for _, name := range []string{cfg.IntroImage, cfg.RecommendationsImage} {
		if name != "" {
			imageFiles = append(imageFiles, name)
		}
	}
	assetStore := assets.NewStore(cfg.AssetsDir, cfg.MapFile, imageFiles)
	for _, warning := range assetStore.Warnings() {
		logger.Warn("optional asset unavailable", zap.String("detail", warning))
	}
	httphandler.SetPageAssets(cfg.IntroImage, cfg.RecommendationsImage)

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	svc := service.NewDashboardService(table, top20, cacheSvc, cfg.CacheTTL, cfg.TopStationLimit, cfg.CumulativeTempThreshold)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:         cfg.OverloadWindow,
		OverloadThresholdPct:   cfg.OverloadThresholdPct,
		RateLimitRPS:           cfg.RateLimitRPS,
		RateLimitBurst:         cfg.RateLimitBurst,
		DegradedWindow:         cfg.DegradedWindow,
		DegradedErrorPct:       cfg.DegradedErrorPct,
		IdleWindow:             cfg.IdleWindow,
		IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
		MinimumLifespan:        cfg.MinimumLifespan,
		StartTime:              time.Now(),
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(svc, assetStore, healthConfig, logger, limiter, 0, cfg.LabelMaxLength)

	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	// Warm the all-seasons selection plus each tracked season, so the first
	// stations-page request after startup is served from cache.
	selections := [][]string{table.Seasons()}
	for _, season := range cfg.TrackedSeasons {
		selections = append(selections, []string{season})
	}
	observability.SetTrackedSelections(selections)
	if cfg.WarmCache {
		warmer := cache.NewWarmer(svc, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx, selections); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
	}

	router := httphandler.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
