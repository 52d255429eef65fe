package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/marketfeed/internal/config"
	"github.com/sawpanic/marketfeed/internal/pair"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.Venues[pair.Binance].Enabled)
	assert.Equal(t, "https://api.binance.com", cfg.Venues[pair.Binance].BaseURL)
}

func TestLoadParsesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketfeed.yaml")
	contents := []byte(`
metrics_addr: ":9090"
venues:
  binance:
    enabled: true
    base_url: https://api.binance.com
    ws_url: wss://stream.binance.com:9443
    rate_per_second: 5
    rate_burst: 2
    stream_timeout: 45s
`)
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Len(t, cfg.Venues, 1)
	assert.Equal(t, 5.0, cfg.Venues[pair.Binance].RatePerSecond)
}

func TestValidateRejectsNoEnabledVenues(t *testing.T) {
	cfg := config.Default()
	for ex, v := range cfg.Venues {
		v.Enabled = false
		cfg.Venues[ex] = v
	}
	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one venue must be enabled")
}

func TestValidateRejectsMissingWSURL(t *testing.T) {
	cfg := config.Default()
	v := cfg.Venues[pair.Okex]
	v.WSURL = ""
	cfg.Venues[pair.Okex] = v

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws_url is required")
}
