package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "dev.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldWD); err != nil {
			t.Fatal(err)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	writeConfig(t, "dataset:\n  file: data.csv\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.DataFile != "data.csv" {
		t.Errorf("DataFile = %q, want data.csv", cfg.DataFile)
	}
	if cfg.CumulativeTempThreshold != 100 {
		t.Errorf("CumulativeTempThreshold = %v, want 100", cfg.CumulativeTempThreshold)
	}
	if cfg.TopStationLimit != 20 {
		t.Errorf("TopStationLimit = %d, want 20", cfg.TopStationLimit)
	}
	if cfg.LabelMaxLength != 28 {
		t.Errorf("LabelMaxLength = %d, want 28", cfg.LabelMaxLength)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if !cfg.WarmCache {
		t.Error("WarmCache = false, want true by default")
	}
	if cfg.RateLimitRPS != 100 || cfg.RateLimitBurst != 250 {
		t.Errorf("rate limit = %d/%d, want 100/250", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoad_FullFile(t *testing.T) {
	writeConfig(t, `
server:
  port: "9090"
dataset:
  file: trips.csv
  top20_file: top20.csv
  columns:
    station: start_station_name
    season: season
  cumulative_temp_threshold: 60
  top_station_limit: 10
  label_max_length: 20
assets:
  dir: static
  map_file: trips_map.html
  intro_image: intro.jpg
  recommendations_image: recs.jpg
request:
  timeout: 3s
cache:
  backend: memcached
  ttl: 90s
  warm: false
  memcached:
    addrs: "cache1:11211,cache2:11211"
    timeout: 250ms
    max_idle_conns: 4
reliability:
  rate_limit_rps: 50
  rate_limit_burst: 75
lifecycle:
  overload_threshold_pct: 70
  degraded_error_pct: 10
metrics:
  tracked_seasons: [Summer, Winter]
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.Columns.Station != "start_station_name" {
		t.Errorf("Columns.Station = %q", cfg.Columns.Station)
	}
	if cfg.CumulativeTempThreshold != 60 {
		t.Errorf("CumulativeTempThreshold = %v, want 60", cfg.CumulativeTempThreshold)
	}
	if cfg.TopStationLimit != 10 {
		t.Errorf("TopStationLimit = %d, want 10", cfg.TopStationLimit)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", cfg.CacheTTL)
	}
	if cfg.WarmCache {
		t.Error("WarmCache = true, want false")
	}
	if cfg.MemcachedAddrs != "cache1:11211,cache2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.RateLimitRPS != 50 || cfg.RateLimitBurst != 75 {
		t.Errorf("rate limit = %d/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if len(cfg.TrackedSeasons) != 2 || cfg.TrackedSeasons[0] != "Summer" {
		t.Errorf("TrackedSeasons = %v", cfg.TrackedSeasons)
	}
	if cfg.MapFile != "trips_map.html" || cfg.IntroImage != "intro.jpg" {
		t.Errorf("assets = %q/%q", cfg.MapFile, cfg.IntroImage)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldWD); err != nil {
			t.Fatal(err)
		}
	})

	_, err = Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_InvalidCacheBackend(t *testing.T) {
	writeConfig(t, "dataset:\n  file: data.csv\ncache:\n  backend: redis\n")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "cache.backend") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	writeConfig(t, "dataset:\n  file: from_file.csv\ncache:\n  backend: in_memory\n")
	t.Setenv("DATA_FILE", "from_env.csv")
	t.Setenv("CACHE_BACKEND", "memcached")
	t.Setenv("MEMCACHED_ADDRS", "envhost:11211")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataFile != "from_env.csv" {
		t.Errorf("DataFile = %q, want from_env.csv", cfg.DataFile)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "envhost:11211" {
		t.Errorf("MemcachedAddrs = %q, want envhost:11211", cfg.MemcachedAddrs)
	}
}
