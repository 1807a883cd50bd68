package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mhutchens/bikeshare-dashboard/internal/stats"
)

// TestInMemoryCache_GetSet verifies that Set stores values and Get retrieves
// them correctly with the expected data.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := stats.Ranking{
		Seasons:    []string{"Summer"},
		Stations:   []stats.StationCount{{Station: "Grove St PATH", Trips: 25}},
		TotalTrips: 25,
	}
	if err := c.Set(ctx, "summer", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "summer")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.TotalTrips != val.TotalTrips || len(got.Stations) != 1 || got.Stations[0] != val.Stations[0] {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false when
// the requested key does not exist in cache.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	_, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Expired verifies that Get returns ok=false for
// expired entries and removes them from cache on access.
func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := stats.Ranking{TotalTrips: 1}
	if err := c.Set(ctx, "summer", val, 1*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	time.Sleep(2 * time.Millisecond)

	_, ok, err := c.Get(ctx, "summer")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired entry")
	}
}

// TestInMemoryCache_Concurrent exercises concurrent Get/Set under the race
// detector; rankings are read by every request handler.
func TestInMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.Set(ctx, "all", stats.Ranking{TotalTrips: 1}, time.Minute)
		}()
		go func() {
			defer wg.Done()
			_, _, _ = c.Get(ctx, "all")
		}()
	}
	wg.Wait()
}
