package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mhutchens/bikeshare-dashboard/internal/cache"
	"github.com/mhutchens/bikeshare-dashboard/internal/dataset"
	"github.com/mhutchens/bikeshare-dashboard/internal/stats"
)

func testTable() *dataset.Table {
	var records []dataset.TripRecord
	add := func(station, season string, n int) {
		for i := 0; i < n; i++ {
			records = append(records, dataset.TripRecord{Station: station, Season: season})
		}
	}
	add("B", "Summer", 25)
	add("A", "Summer", 10)
	add("C", "Summer", 5)
	add("A", "Winter", 4)
	return &dataset.Table{Records: records, SourcePath: "test.csv"}
}

func newTestService() *DashboardService {
	return NewDashboardService(testTable(), nil, cache.NewInMemoryCache(), time.Minute, 20, 100)
}

func TestTopStations_ComputesRanking(t *testing.T) {
	svc := newTestService()

	got, err := svc.TopStations(context.Background(), []string{"Summer"})
	if err != nil {
		t.Fatalf("TopStations() error = %v", err)
	}
	want := []stats.StationCount{{Station: "B", Trips: 25}, {Station: "A", Trips: 10}, {Station: "C", Trips: 5}}
	if len(got.Stations) != len(want) {
		t.Fatalf("Stations = %v, want %v", got.Stations, want)
	}
	for i := range want {
		if got.Stations[i] != want[i] {
			t.Errorf("Stations[%d] = %+v, want %+v", i, got.Stations[i], want[i])
		}
	}
	if got.TotalTrips != 40 {
		t.Errorf("TotalTrips = %d, want 40", got.TotalTrips)
	}
}

func TestTopStations_EmptySelection(t *testing.T) {
	svc := newTestService()

	got, err := svc.TopStations(context.Background(), nil)
	if err != nil {
		t.Fatalf("TopStations() error = %v, want nil for empty selection", err)
	}
	if len(got.Stations) != 0 || got.TotalTrips != 0 {
		t.Errorf("got %+v, want empty ranking", got)
	}
}

// countingCache wraps the in-memory cache and counts Set calls to observe
// cache-aside behavior.
type countingCache struct {
	inner *cache.InMemoryCache
	sets  int
}

func (c *countingCache) Get(ctx context.Context, key string) (stats.Ranking, bool, error) {
	return c.inner.Get(ctx, key)
}

func (c *countingCache) Set(ctx context.Context, key string, value stats.Ranking, ttl time.Duration) error {
	c.sets++
	return c.inner.Set(ctx, key, value, ttl)
}

func TestTopStations_SecondCallHitsCache(t *testing.T) {
	cc := &countingCache{inner: cache.NewInMemoryCache()}
	svc := NewDashboardService(testTable(), nil, cc, time.Minute, 20, 100)

	ctx := context.Background()
	if _, err := svc.TopStations(ctx, []string{"Summer"}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := svc.TopStations(ctx, []string{"Summer"}); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if cc.sets != 1 {
		t.Errorf("cache sets = %d, want 1 (second call should hit)", cc.sets)
	}
}

// TestTopStations_SelectionKeyOrderInsensitive verifies that the cache key
// treats [Summer, Winter] and [Winter, Summer] as the same selection.
func TestTopStations_SelectionKeyOrderInsensitive(t *testing.T) {
	cc := &countingCache{inner: cache.NewInMemoryCache()}
	svc := NewDashboardService(testTable(), nil, cc, time.Minute, 20, 100)

	ctx := context.Background()
	if _, err := svc.TopStations(ctx, []string{"Summer", "Winter"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.TopStations(ctx, []string{"Winter", "Summer"}); err != nil {
		t.Fatal(err)
	}
	if cc.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cc.sets)
	}
}

// failingCache always errors; the service must fall through to recomputing.
type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) (stats.Ranking, bool, error) {
	return stats.Ranking{}, false, errors.New("connection refused")
}

func (failingCache) Set(ctx context.Context, key string, value stats.Ranking, ttl time.Duration) error {
	return errors.New("connection refused")
}

func TestTopStations_CacheFailureFallsThrough(t *testing.T) {
	svc := NewDashboardService(testTable(), nil, failingCache{}, time.Minute, 20, 100)

	got, err := svc.TopStations(context.Background(), []string{"Summer"})
	if err != nil {
		t.Fatalf("TopStations() error = %v, want nil despite cache failure", err)
	}
	if got.TotalTrips != 40 {
		t.Errorf("TotalTrips = %d, want 40", got.TotalTrips)
	}
}

func TestSummarize(t *testing.T) {
	svc := newTestService()

	got := svc.Summarize(context.Background())
	if got.Rows != 44 {
		t.Errorf("Rows = %d, want 44", got.Rows)
	}
	if got.Stations != 3 {
		t.Errorf("Stations = %d, want 3", got.Stations)
	}
	if len(got.Seasons) != 2 {
		t.Errorf("Seasons = %v, want 2 labels", got.Seasons)
	}
	if got.Top20Loaded {
		t.Error("Top20Loaded = true, want false")
	}
}

func TestWeatherSeries_NormalizesCumulative(t *testing.T) {
	base := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []dataset.TripRecord{
		{Date: base, Season: "Summer", Station: "A", RidesDaily: 10, AvgTemp: 50},
		{Date: base.AddDate(0, 0, 1), Season: "Summer", Station: "A", RidesDaily: 12, AvgTemp: 170},
	}
	table := &dataset.Table{Records: records}
	svc := NewDashboardService(table, nil, cache.NewInMemoryCache(), time.Minute, 20, 100)

	got := svc.WeatherSeries(context.Background())
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].AvgTemp != 50 || got[1].AvgTemp != 120 {
		t.Errorf("temps = %v/%v, want 50/120 (first differences)", got[0].AvgTemp, got[1].AvgTemp)
	}
}
