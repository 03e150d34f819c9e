package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rebalanceYAML = `
trading:
  strategy: rebalance
  order_interval_seconds: 60
rebalance:
  hold_asset: fdusd
  targets:
    BTC: 0.64
    ETH: 0.32
  tolerances:
    BTC: 0.2
    ETH: 0.2
  aliases:
    BTC: [ldbtc]
    ETH: [beth, ldeth]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfig_Rebalance(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, rebalanceYAML))
	require.NoError(t, err)

	assert.Equal(t, StrategyRebalance, cfg.Trading.Strategy)
	assert.Equal(t, "FDUSD", cfg.Rebalance.HoldAsset)
	assert.Equal(t, map[string]float64{"BTC": 0.64, "ETH": 0.32}, cfg.Rebalance.Targets)
	assert.Equal(t, []string{"BETH", "LDETH"}, cfg.Rebalance.Aliases["ETH"])

	// Defaults
	assert.Equal(t, 10.0, cfg.Rebalance.MinNotional)
	assert.Equal(t, 0.0001, cfg.Rebalance.PriceSkew)
	assert.Equal(t, 1, cfg.Trading.TickInterval)
	assert.Equal(t, float64(20), cfg.Binance.RateLimit)

	rc := cfg.RebalanceConfig()
	assert.InDelta(t, 0.04, rc.HoldWeight(), 1e-9)
}

func TestLoadConfig_RejectsInvalidWeights(t *testing.T) {
	body := `
trading:
  strategy: rebalance
rebalance:
  hold_asset: FDUSD
  targets:
    BTC: 0.8
    ETH: 0.4
  tolerances:
    BTC: 0.2
    ETH: 0.2
`
	_, err := LoadConfig(writeConfig(t, body))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadConfig_Burst(t *testing.T) {
	body := `
trading:
  strategy: burst
  trade_pairs: [btc-tusd]
  order_interval_seconds: 3
burst:
  volume_floor: 5
`
	cfg, err := LoadConfig(writeConfig(t, body))
	require.NoError(t, err)

	pairs, err := cfg.Pairs()
	require.NoError(t, err)
	assert.Equal(t, "BTCTUSD", pairs[0].Symbol())
	assert.Equal(t, 0.001, cfg.SignalConfig().ThresholdFraction)
	assert.Equal(t, 15, cfg.SignalConfig().WindowSize)
	assert.Equal(t, 5.0, cfg.BurstSizerConfig().VolumeFloor)
}

func TestLoadConfig_Perpetual(t *testing.T) {
	body := `
binance:
  futures: true
trading:
  strategy: perpetual
  trade_pairs: [bnb-usdt, ada-usdt]
perpetual:
  target_value: 2000
`
	cfg, err := LoadConfig(writeConfig(t, body))
	require.NoError(t, err)

	nc := cfg.NotionalConfig()
	assert.Equal(t, 2000.0, nc.TargetValue)
	assert.Equal(t, 0.01, nc.Threshold)
	assert.Equal(t, 0.001, nc.AdjustSkew)
	assert.Equal(t, 0.005, nc.BandSpread)
	assert.True(t, cfg.NeedsFutures())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func validMartingale() Config {
	return Config{
		Binance: Binance{Futures: true},
		Trading: Trading{Strategy: StrategyMartingale, TradePairs: []string{"BTC-USDT"}, TickInterval: 1, OrderIntervalSeconds: 60},
		Martingale: Martingale{
			Multiple:           2,
			TakeProfitFraction: 0.01,
			GridStepFraction:   0.01,
			EntryNotional:      30,
			MaxAddOnRounds:     6,
		},
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{name: "Valid martingale", mutate: func(c *Config) {}},
		{name: "Unknown strategy", mutate: func(c *Config) { c.Trading.Strategy = "grid" }, expectError: true},
		{name: "Zero tick interval", mutate: func(c *Config) { c.Trading.TickInterval = 0 }, expectError: true},
		{name: "Negative order interval", mutate: func(c *Config) { c.Trading.OrderIntervalSeconds = -1 }, expectError: true},
		{name: "Bad pair", mutate: func(c *Config) { c.Trading.TradePairs = []string{"BTCUSDT"} }, expectError: true},
		{name: "Martingale without pairs", mutate: func(c *Config) { c.Trading.TradePairs = nil }, expectError: true},
		{name: "Negative multiple", mutate: func(c *Config) { c.Martingale.Multiple = -2 }, expectError: true},
		{name: "Custom tiers", mutate: func(c *Config) {
			c.Martingale.GridTiers = []GridTier{{MinNotional: 0, Multiplier: 1}, {MinNotional: 1000, Multiplier: 2}}
		}},
		{name: "Martingale on spot", mutate: func(c *Config) { c.Binance.Futures = false }, expectError: true},
		{name: "Burst on futures", mutate: func(c *Config) {
			c.Trading.Strategy = StrategyBurst
			c.Burst = Burst{ThresholdFraction: 0.001, VolumeFloor: 5, VolumeDecay: 0.7, WindowSize: 15, SlippageStep: 0.1, MaxSlippageSteps: 50}
		}, expectError: true},
		{name: "Valid burst", mutate: func(c *Config) {
			c.Binance.Futures = false
			c.Trading.Strategy = StrategyBurst
			c.Burst = Burst{ThresholdFraction: 0.001, VolumeFloor: 5, VolumeDecay: 0.7, WindowSize: 15, SlippageStep: 0.1, MaxSlippageSteps: 50}
		}},
		{name: "Valid perpetual", mutate: func(c *Config) {
			c.Trading.Strategy = StrategyPerpetual
			c.Perpetual = Perpetual{TargetValue: 2000, Threshold: 0.01, AdjustSkew: 0.001, BandSpread: 0.005}
		}},
		{name: "Perpetual on spot", mutate: func(c *Config) {
			c.Binance.Futures = false
			c.Trading.Strategy = StrategyPerpetual
			c.Perpetual = Perpetual{TargetValue: 2000, Threshold: 0.01}
		}, expectError: true},
		{name: "Perpetual without target", mutate: func(c *Config) {
			c.Trading.Strategy = StrategyPerpetual
			c.Perpetual = Perpetual{Threshold: 0.01}
		}, expectError: true},
		{name: "Burst with two pairs", mutate: func(c *Config) {
			c.Binance.Futures = false
			c.Trading.Strategy = StrategyBurst
			c.Trading.TradePairs = []string{"BTC-USDT", "ETH-USDT"}
		}, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validMartingale()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.expectError {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMartingaleConfig_Tiers(t *testing.T) {
	cfg := validMartingale()
	assert.Len(t, cfg.MartingaleConfig().GridTiers, 4)

	cfg.Martingale.GridTiers = []GridTier{{MinNotional: 0, Multiplier: 1.2}}
	mc := cfg.MartingaleConfig()
	require.Len(t, mc.GridTiers, 1)
	assert.Equal(t, 1.2, mc.GridMultiplier(50))
}
