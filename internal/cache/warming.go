package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mhutchens/bikeshare-dashboard/internal/observability"
	"github.com/mhutchens/bikeshare-dashboard/internal/stats"
)

// RankingProducer is implemented by the service layer to compute (and cache)
// the ranking for a season selection. Used by Warmer to avoid a circular
// dependency on the service package.
type RankingProducer interface {
	TopStations(ctx context.Context, seasons []string) (stats.Ranking, error)
}

// Warmer primes the ranking cache for a list of season selections so the
// first stations-page request after startup is served warm.
type Warmer struct {
	producer RankingProducer
	logger   *zap.Logger
}

// NewWarmer creates a Warmer that uses the given producer and logger.
func NewWarmer(producer RankingProducer, logger *zap.Logger) *Warmer {
	return &Warmer{producer: producer, logger: logger}
}

// Warm computes the ranking for each selection concurrently, populating the
// cache via the producer. Returns an aggregated error if any selection failed.
func (w *Warmer) Warm(ctx context.Context, selections [][]string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming ranking cache", zap.Int("selections", len(selections)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(selections))
	for _, seasons := range selections {
		seasons := seasons
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.producer.TopStations(ctx, seasons); err != nil {
				errCh <- fmt.Errorf("warm %v: %w", seasons, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("ranking cache warming complete", zap.Int("selections", len(selections)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %v", errs)
	}
	return nil
}
