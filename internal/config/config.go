package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	CensusAPIKey  string
	CensusTimeout time.Duration
	TigerTimeout  time.Duration
	CacheSize     int

	// Mapbox basemap configuration for the interactive map artifacts.
	MapboxToken   string
	MapboxEnabled bool

	OutputDir       string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment (and an optional .env file),
// applying defaults where unset.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	censusTimeout, err := parseDuration("CENSUS_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	tigerTimeout, err := parseDuration("TIGER_TIMEOUT", "45s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		CensusAPIKey:  os.Getenv("CENSUS_API_KEY"),
		CensusTimeout: censusTimeout,
		TigerTimeout:  tigerTimeout,
		CacheSize:     parseCacheSize(),

		MapboxToken:   mapboxToken,
		MapboxEnabled: mapboxEnabled,

		OutputDir:       envOrDefault("OUTPUT_DIR", "artifacts"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.CensusAPIKey == "" {
		return nil, errors.New("CENSUS_API_KEY is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR must not be empty")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseCacheSize() int {
	if s := os.Getenv("CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 256
}
