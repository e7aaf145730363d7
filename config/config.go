// Package config loads RangeKeeper's YAML configuration, overlaid by a
// .env file and environment-variable overrides, grounded on the
// teacher's config/config.go.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rangekeeper/rangekeeper/internal/core"
)

// Config is RangeKeeper's complete process configuration: one process
// manages every pool listed in Pools, each backed by its own core.Engine.
type Config struct {
	Wallet  WalletConfig  `yaml:"wallet"`
	Pools   []PoolConfig  `yaml:"pools"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Chain   ChainConfig   `yaml:"chain"`
}

// WalletConfig holds the signing key and RPC endpoint shared by every
// pool this process manages. PrivateKeyHex is expected to arrive via the
// .env overlay or environment, never committed to the YAML file.
type WalletConfig struct {
	RPCURL        string `yaml:"rpc_url"`
	PrivateKeyHex string `yaml:"-"`
}

// ChainConfig controls polling cadence shared across pools.
type ChainConfig struct {
	PricefeedIntervalSeconds int `yaml:"pricefeed_interval_seconds"`
}

// StorageConfig controls where persisted state lives.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // path to the SQLite file, or ":memory:"
}

// PoolConfig is one managed pool's configuration, mirroring
// core.PoolConfig's fields in their YAML-serializable form.
type PoolConfig struct {
	PoolID        string `yaml:"pool_id"`
	WalletAddress string `yaml:"wallet_address"`
	Token0        string `yaml:"token0"`
	Token1        string `yaml:"token1"`
	Decimals0     uint8  `yaml:"decimals0"`
	Decimals1     uint8  `yaml:"decimals1"`
	FeeTier       int    `yaml:"fee_tier"`
	PoolAddress   string `yaml:"pool_address"`
	NftManager    string `yaml:"nft_manager"`
	SwapRouter    string `yaml:"swap_router"`

	RangeWidthPercent           float64 `yaml:"range_width_percent"`
	MinRebalanceIntervalMinutes int     `yaml:"min_rebalance_interval_minutes"`
	MaxGasCostUsd               float64 `yaml:"max_gas_cost_usd"`
	SlippageTolerancePercent    float64 `yaml:"slippage_tolerance_percent"`
	NativeTokenPriceUsd         float64 `yaml:"native_token_price_usd"`

	ExpectedPriceRatio    *float64 `yaml:"expected_price_ratio,omitempty"`
	DepegThresholdPercent float64  `yaml:"depeg_threshold_percent"`
	MaxTotalLossPercent   float64  `yaml:"max_total_loss_percent"`
}

// LogConfig controls the format and level of structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads path's YAML file, overlays a .env file if present, applies
// environment-variable overrides, and fills in defaults for anything
// left unset.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if cfg.Wallet.PrivateKeyHex == "" {
		return nil, fmt.Errorf("config.Load: WALLET_PRIVATE_KEY is required")
	}
	if cfg.Wallet.RPCURL == "" {
		return nil, fmt.Errorf("config.Load: wallet.rpc_url (or RPC_URL) is required")
	}
	if len(cfg.Pools) == 0 {
		return nil, fmt.Errorf("config.Load: at least one pool must be configured")
	}

	return &cfg, nil
}

// PricefeedInterval returns the configured pool-polling interval as a
// time.Duration.
func (c *Config) PricefeedInterval() time.Duration {
	return time.Duration(c.Chain.PricefeedIntervalSeconds) * time.Second
}

// DepegThreshold returns p's configured depeg threshold, or the 5%
// default, mirroring core.PoolConfig.DepegThreshold.
func (p PoolConfig) DepegThreshold() float64 {
	if p.DepegThresholdPercent <= 0 {
		return 5.0
	}
	return p.DepegThresholdPercent
}

// MaxTotalLoss returns p's configured cumulative-loss cap, or the 20%
// default, mirroring core.PoolConfig.MaxTotalLoss.
func (p PoolConfig) MaxTotalLoss() float64 {
	if p.MaxTotalLossPercent <= 0 {
		return 20.0
	}
	return p.MaxTotalLossPercent
}

// ToCore converts a YAML-loaded PoolConfig into the engine's own
// core.PoolConfig.
func (p PoolConfig) ToCore() core.PoolConfig {
	return core.PoolConfig{
		PoolID:        p.PoolID,
		WalletAddress: p.WalletAddress,
		Token0:        p.Token0,
		Token1:        p.Token1,
		Decimals0:     p.Decimals0,
		Decimals1:     p.Decimals1,
		FeeTier:       p.FeeTier,
		PoolAddress:   p.PoolAddress,
		NftManager:    p.NftManager,
		SwapRouter:    p.SwapRouter,

		RangeWidthPercent:           p.RangeWidthPercent,
		MinRebalanceIntervalMinutes: p.MinRebalanceIntervalMinutes,
		MaxGasCostUsd:               p.MaxGasCostUsd,
		SlippageTolerancePercent:    p.SlippageTolerancePercent,
		NativeTokenPriceUsd:         p.NativeTokenPriceUsd,

		ExpectedPriceRatio:    p.ExpectedPriceRatio,
		DepegThresholdPercent: p.DepegThresholdPercent,
		MaxTotalLossPercent:   p.MaxTotalLossPercent,
	}
}

// applyEnvOverrides overwrites config values with environment variables
// when present, after the teacher's applyEnvOverrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.Wallet.RPCURL = v
	}
	if v := os.Getenv("WALLET_PRIVATE_KEY"); v != "" {
		cfg.Wallet.PrivateKeyHex = v
	}
}

// setDefaults fills in sensible defaults for anything left unset, after
// the teacher's setDefaults.
func setDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "rangekeeper.db"
	}
	if cfg.Chain.PricefeedIntervalSeconds <= 0 {
		cfg.Chain.PricefeedIntervalSeconds = 15
	}
	for i := range cfg.Pools {
		p := &cfg.Pools[i]
		if p.RangeWidthPercent <= 0 {
			p.RangeWidthPercent = 5.0
		}
		if p.MinRebalanceIntervalMinutes <= 0 {
			p.MinRebalanceIntervalMinutes = 15
		}
		if p.SlippageTolerancePercent <= 0 {
			p.SlippageTolerancePercent = 0.5
		}
		if p.DepegThresholdPercent <= 0 {
			p.DepegThresholdPercent = 5.0
		}
		if p.MaxTotalLossPercent <= 0 {
			p.MaxTotalLossPercent = 20.0
		}
	}
}
