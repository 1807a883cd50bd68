package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mhutchens/bikeshare-dashboard/internal/dataset"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	DataFile  string
	Top20File string
	Columns   dataset.Columns

	// CumulativeTempThreshold is the cut-off for the best-effort
	// cumulative-temperature detection heuristic.
	CumulativeTempThreshold float64
	TopStationLimit         int
	LabelMaxLength          int

	AssetsDir            string
	MapFile              string
	IntroImage           string
	RecommendationsImage string

	RequestTimeout time.Duration

	CacheBackend string // "in_memory" or "memcached"
	CacheTTL     time.Duration
	WarmCache    bool

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	IdleThresholdReqPerMin int
	IdleWindow             time.Duration
	MinimumLifespan        time.Duration
	DegradedWindow         time.Duration
	DegradedErrorPct       int

	// TrackedSeasons drives per-selection metrics and cache warming.
	TrackedSeasons []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Dataset struct {
		File      string `yaml:"file"`
		Top20File string `yaml:"top20_file"`
		Columns   struct {
			Station     string `yaml:"station"`
			Season      string `yaml:"season"`
			Date        string `yaml:"date"`
			Rides       string `yaml:"rides"`
			Temperature string `yaml:"temperature"`
		} `yaml:"columns"`
		CumulativeTempThreshold float64 `yaml:"cumulative_temp_threshold"`
		TopStationLimit         int     `yaml:"top_station_limit"`
		LabelMaxLength          int     `yaml:"label_max_length"`
	} `yaml:"dataset"`

	Assets struct {
		Dir                  string `yaml:"dir"`
		MapFile              string `yaml:"map_file"`
		IntroImage           string `yaml:"intro_image"`
		RecommendationsImage string `yaml:"recommendations_image"`
	} `yaml:"assets"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Warm      *bool  `yaml:"warm"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow         string `yaml:"overload_window"`
		OverloadThresholdPct   int    `yaml:"overload_threshold_pct"`
		IdleThresholdReqPerMin int    `yaml:"idle_threshold_req_per_min"`
		IdleWindow             string `yaml:"idle_window"`
		MinimumLifespan        string `yaml:"minimum_lifespan"`
		DegradedWindow         string `yaml:"degraded_window"`
		DegradedErrorPct       int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Metrics struct {
		TrackedSeasons []string `yaml:"tracked_seasons"`
	} `yaml:"metrics"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev).
// DATA_FILE, CACHE_BACKEND and MEMCACHED_ADDRS env vars override the file.
// Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.DataFile = strings.TrimSpace(os.Getenv("DATA_FILE"))
	if cfg.DataFile == "" {
		cfg.DataFile = strings.TrimSpace(fc.Dataset.File)
	}
	if cfg.DataFile == "" {
		cfg.DataFile = "reduced_data_to_plot.csv"
	}
	cfg.Top20File = strings.TrimSpace(fc.Dataset.Top20File)
	cfg.Columns = dataset.Columns{
		Station:     strings.TrimSpace(fc.Dataset.Columns.Station),
		Season:      strings.TrimSpace(fc.Dataset.Columns.Season),
		Date:        strings.TrimSpace(fc.Dataset.Columns.Date),
		Rides:       strings.TrimSpace(fc.Dataset.Columns.Rides),
		Temperature: strings.TrimSpace(fc.Dataset.Columns.Temperature),
	}
	cfg.CumulativeTempThreshold = fc.Dataset.CumulativeTempThreshold
	if cfg.CumulativeTempThreshold <= 0 {
		cfg.CumulativeTempThreshold = 100
	}
	cfg.TopStationLimit = fc.Dataset.TopStationLimit
	if cfg.TopStationLimit <= 0 {
		cfg.TopStationLimit = 20
	}
	cfg.LabelMaxLength = fc.Dataset.LabelMaxLength
	if cfg.LabelMaxLength <= 0 {
		cfg.LabelMaxLength = 28
	}

	cfg.AssetsDir = strings.TrimSpace(fc.Assets.Dir)
	if cfg.AssetsDir == "" {
		cfg.AssetsDir = "assets"
	}
	cfg.MapFile = strings.TrimSpace(fc.Assets.MapFile)
	cfg.IntroImage = strings.TrimSpace(fc.Assets.IntroImage)
	cfg.RecommendationsImage = strings.TrimSpace(fc.Assets.RecommendationsImage)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 5*time.Minute)
	cfg.WarmCache = true
	if fc.Cache.Warm != nil {
		cfg.WarmCache = *fc.Cache.Warm
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.IdleThresholdReqPerMin = fc.Lifecycle.IdleThresholdReqPerMin
	if cfg.IdleThresholdReqPerMin <= 0 {
		cfg.IdleThresholdReqPerMin = 5
	}
	cfg.IdleWindow = parseDuration(fc.Lifecycle.IdleWindow, 5*time.Minute)
	cfg.MinimumLifespan = parseDuration(fc.Lifecycle.MinimumLifespan, 5*time.Minute)
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}
	cfg.TrackedSeasons = fc.Metrics.TrackedSeasons

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.DataFile == "" {
		return fmt.Errorf("dataset.file is required")
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request.timeout must be positive")
	}
	return nil
}
