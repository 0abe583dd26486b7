package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey      = "test-census-key"
	testMapboxToken = "pk.test-token"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CENSUS_API_KEY", testAPIKey)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, testAPIKey, cfg.CensusAPIKey)
	assert.Equal(t, 30*time.Second, cfg.CensusTimeout)
	assert.Equal(t, 45*time.Second, cfg.TigerTimeout)
	assert.Equal(t, 256, cfg.CacheSize)
	assert.False(t, cfg.MapboxEnabled)
	assert.Empty(t, cfg.MapboxToken)
	assert.Equal(t, "artifacts", cfg.OutputDir)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("CENSUS_API_KEY", testAPIKey)
	t.Setenv("CENSUS_TIMEOUT", "5s")
	t.Setenv("TIGER_TIMEOUT", "90s")
	t.Setenv("CACHE_SIZE", "32")
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("OUTPUT_DIR", "/tmp/artifacts")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.CensusTimeout)
	assert.Equal(t, 90*time.Second, cfg.TigerTimeout)
	assert.Equal(t, 32, cfg.CacheSize)
	assert.True(t, cfg.MapboxEnabled)
	assert.Equal(t, testMapboxToken, cfg.MapboxToken)
	assert.Equal(t, "/tmp/artifacts", cfg.OutputDir)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("CENSUS_API_KEY", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CENSUS_API_KEY")
}

func TestLoad_InvalidCensusTimeout(t *testing.T) {
	t.Setenv("CENSUS_API_KEY", testAPIKey)
	t.Setenv("CENSUS_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CENSUS_TIMEOUT")
}

func TestLoad_NegativeTigerTimeout(t *testing.T) {
	t.Setenv("CENSUS_API_KEY", testAPIKey)
	t.Setenv("TIGER_TIMEOUT", "-5s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TIGER_TIMEOUT")
}

func TestLoad_InvalidCacheSizeFallsBack(t *testing.T) {
	t.Setenv("CENSUS_API_KEY", testAPIKey)
	t.Setenv("CACHE_SIZE", "zero")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.CacheSize)
}

func TestLoad_MapboxEnabledWithoutToken(t *testing.T) {
	t.Setenv("CENSUS_API_KEY", testAPIKey)
	t.Setenv("MAPBOX_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TOKEN")
}

func TestLoad_MapboxTokenImpliesEnabled(t *testing.T) {
	t.Setenv("CENSUS_API_KEY", testAPIKey)
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.MapboxEnabled)
}

func TestLoad_MapboxExplicitlyDisabled(t *testing.T) {
	t.Setenv("CENSUS_API_KEY", testAPIKey)
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MapboxEnabled)
}
