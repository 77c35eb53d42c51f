// Package config loads xrpltop configuration from defaults, an optional
// config file, and XRPLTOP_-prefixed environment variables, in that priority
// order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete runtime configuration.
type Config struct {
	Network NetworkConfig `mapstructure:"network"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
	Payment PaymentConfig `mapstructure:"payment"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Display DisplayConfig `mapstructure:"display"`

	configPath string
}

// NetworkConfig covers the websocket session.
type NetworkConfig struct {
	Endpoint              string        `mapstructure:"endpoint"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	ReconnectInitialDelay time.Duration `mapstructure:"reconnect_initial_delay"`
	ReconnectMaxDelay     time.Duration `mapstructure:"reconnect_max_delay"`
	MaxReconnectAttempts  int           `mapstructure:"max_reconnect_attempts"`
	EventBuffer           int           `mapstructure:"event_buffer"`
}

// WalletConfig covers faucet provisioning.
type WalletConfig struct {
	FaucetURL     string        `mapstructure:"faucet_url"`
	FaucetTimeout time.Duration `mapstructure:"faucet_timeout"`
}

// PaymentConfig covers payment submission and tracking.
type PaymentConfig struct {
	FeeDrops          int64         `mapstructure:"fee_drops"`
	ValidationTimeout time.Duration `mapstructure:"validation_timeout"`
	MaxRecent         int           `mapstructure:"max_recent"`
	LedgerWindow      uint32        `mapstructure:"ledger_window"`
}

// MetricsConfig covers the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// DisplayConfig covers snapshot rendering.
type DisplayConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// GetConfigPath returns the config file the configuration was loaded from,
// or empty when only defaults and environment applied.
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// setDefaults sets the testnet defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("network.endpoint", "wss://s.altnet.rippletest.net:51233")
	v.SetDefault("network.request_timeout", 10*time.Second)
	v.SetDefault("network.reconnect_initial_delay", time.Second)
	v.SetDefault("network.reconnect_max_delay", 30*time.Second)
	v.SetDefault("network.max_reconnect_attempts", 0) // 0 means retry forever
	v.SetDefault("network.event_buffer", 256)

	v.SetDefault("wallet.faucet_url", "https://faucet.altnet.rippletest.net/accounts")
	v.SetDefault("wallet.faucet_timeout", 30*time.Second)

	v.SetDefault("payment.fee_drops", 12)
	v.SetDefault("payment.validation_timeout", 20*time.Second)
	v.SetDefault("payment.max_recent", 50)
	v.SetDefault("payment.ledger_window", 4)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9109")

	v.SetDefault("display.refresh_interval", time.Second)
}

// Load builds the configuration. configPath may be empty, in which case only
// defaults and environment variables apply; a named file that does not exist
// is an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("XRPLTOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.configPath = configPath

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func Validate(cfg *Config) error {
	if cfg.Network.Endpoint == "" {
		return fmt.Errorf("network.endpoint cannot be empty")
	}
	if !strings.HasPrefix(cfg.Network.Endpoint, "ws://") && !strings.HasPrefix(cfg.Network.Endpoint, "wss://") {
		return fmt.Errorf("network.endpoint must be a ws:// or wss:// URL, got %q", cfg.Network.Endpoint)
	}
	if cfg.Network.MaxReconnectAttempts < 0 {
		return fmt.Errorf("network.max_reconnect_attempts cannot be negative")
	}
	if cfg.Wallet.FaucetURL == "" {
		return fmt.Errorf("wallet.faucet_url cannot be empty")
	}
	if cfg.Payment.FeeDrops <= 0 {
		return fmt.Errorf("payment.fee_drops must be positive, got %d", cfg.Payment.FeeDrops)
	}
	if cfg.Payment.ValidationTimeout <= 0 {
		return fmt.Errorf("payment.validation_timeout must be positive")
	}
	if cfg.Payment.MaxRecent <= 0 {
		return fmt.Errorf("payment.max_recent must be positive, got %d", cfg.Payment.MaxRecent)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen cannot be empty when metrics are enabled")
	}
	return nil
}
