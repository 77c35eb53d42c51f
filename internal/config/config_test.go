package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "wss://s.altnet.rippletest.net:51233", cfg.Network.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.Network.RequestTimeout)
	assert.Equal(t, time.Second, cfg.Network.ReconnectInitialDelay)
	assert.Equal(t, 30*time.Second, cfg.Network.ReconnectMaxDelay)
	assert.Equal(t, 0, cfg.Network.MaxReconnectAttempts)
	assert.Equal(t, "https://faucet.altnet.rippletest.net/accounts", cfg.Wallet.FaucetURL)
	assert.Equal(t, int64(12), cfg.Payment.FeeDrops)
	assert.Equal(t, 20*time.Second, cfg.Payment.ValidationTimeout)
	assert.Equal(t, 50, cfg.Payment.MaxRecent)
	assert.Equal(t, uint32(4), cfg.Payment.LedgerWindow)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xrpltop.toml")
	content := `
[network]
endpoint = "ws://localhost:6006"
request_timeout = "5s"

[payment]
fee_drops = 20
validation_timeout = "45s"

[metrics]
enabled = true
listen = "127.0.0.1:9200"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:6006", cfg.Network.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Network.RequestTimeout)
	assert.Equal(t, int64(20), cfg.Payment.FeeDrops)
	assert.Equal(t, 45*time.Second, cfg.Payment.ValidationTimeout)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9200", cfg.Metrics.Listen)
	// Untouched sections keep their defaults.
	assert.Equal(t, 50, cfg.Payment.MaxRecent)
	assert.Equal(t, path, cfg.GetConfigPath())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("XRPLTOP_NETWORK_ENDPOINT", "wss://s1.ripple.com:443")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "wss://s1.ripple.com:443", cfg.Network.Endpoint)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty endpoint", func(c *Config) { c.Network.Endpoint = "" }, "endpoint cannot be empty"},
		{"http endpoint", func(c *Config) { c.Network.Endpoint = "http://example.com" }, "ws:// or wss://"},
		{"negative attempts", func(c *Config) { c.Network.MaxReconnectAttempts = -1 }, "cannot be negative"},
		{"empty faucet", func(c *Config) { c.Wallet.FaucetURL = "" }, "faucet_url"},
		{"zero fee", func(c *Config) { c.Payment.FeeDrops = 0 }, "fee_drops"},
		{"zero timeout", func(c *Config) { c.Payment.ValidationTimeout = 0 }, "validation_timeout"},
		{"zero history", func(c *Config) { c.Payment.MaxRecent = 0 }, "max_recent"},
		{"metrics without listen", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Listen = ""
		}, "metrics.listen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
