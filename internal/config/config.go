package config

import (
	"strings"

	"github.com/spf13/viper"

	"quant-trade-bot-go/internal/rebalance"
)

// Config holds all configuration for the application.
type Config struct {
	Binance    Binance    `mapstructure:"binance"`
	Trading    Trading    `mapstructure:"trading"`
	Logger     Logger     `mapstructure:"logger"`
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Rebalance  Rebalance  `mapstructure:"rebalance"`
	Burst      Burst      `mapstructure:"burst"`
	Martingale Martingale `mapstructure:"martingale"`
	Perpetual  Perpetual  `mapstructure:"perpetual"`
}

// Binance holds the configuration for the Binance API.
type Binance struct {
	ApiKey         string  `mapstructure:"apiKey"`
	SecretKey      string  `mapstructure:"secretKey"`
	Testnet        bool    `mapstructure:"testnet"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// Futures switches every call to the USD-M futures API. Required by, and
	// only allowed for, the martingale and perpetual strategies.
	Futures        bool    `mapstructure:"futures"`
	// Stream enables the bookTicker websocket for fresher top-of-book reads.
	Stream         bool    `mapstructure:"stream"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Trading holds the configuration for the decision loop.
type Trading struct {
	Strategy             string   `mapstructure:"strategy"`
	TradePairs           []string `mapstructure:"trade_pairs"`
	DryRun               bool     `mapstructure:"dry_run"`
	TickInterval         int      `mapstructure:"tick_interval"`
	OrderIntervalSeconds int      `mapstructure:"order_interval_seconds"`
	ApiPort              int      `mapstructure:"api_port"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`

	// Outputs are zap sink URLs or file paths; stderr when empty.
	Outputs []string `mapstructure:"outputs"`
}

// Rebalance holds target weights (fractions of 1) keyed by asset symbol.
type Rebalance struct {
	HoldAsset   string              `mapstructure:"hold_asset"`
	Targets     map[string]float64  `mapstructure:"targets"`
	Tolerances  map[string]float64  `mapstructure:"tolerances"`
	Aliases     map[string][]string `mapstructure:"aliases"`
	MinNotional float64             `mapstructure:"min_notional"`
	PriceSkew   float64             `mapstructure:"price_skew"`
}

// Burst holds the momentum sizer configuration.
type Burst struct {
	ThresholdFraction        float64 `mapstructure:"threshold_fraction"`
	VolumeFloor              float64 `mapstructure:"volume_floor"`
	VolumeDecay              float64 `mapstructure:"volume_decay"`
	WindowSize               int     `mapstructure:"window_size"`
	TradeLimit               int     `mapstructure:"trade_limit"`
	MinQuantity              float64 `mapstructure:"min_quantity"`
	SlippageStep             float64 `mapstructure:"slippage_step"`
	MaxSlippageSteps         int     `mapstructure:"max_slippage_steps"`
	RebalanceIntervalSeconds int     `mapstructure:"rebalance_interval_seconds"`
	InventoryFraction        float64 `mapstructure:"inventory_fraction"`
}

// GridTier maps an add-on notional to a grid step multiplier.
type GridTier struct {
	MinNotional float64 `mapstructure:"min_notional"`
	Multiplier  float64 `mapstructure:"multiplier"`
}

// Martingale holds the martingale grid sizer configuration.
type Martingale struct {
	Multiple           float64    `mapstructure:"multiple"`
	TakeProfitFraction float64    `mapstructure:"take_profit_fraction"`
	GridStepFraction   float64    `mapstructure:"grid_step_fraction"`
	EntryNotional      float64    `mapstructure:"entry_notional"`
	MinQuantity        float64    `mapstructure:"min_quantity"`
	GridTiers          []GridTier `mapstructure:"grid_tiers"`
	MaxAddOnRounds     int        `mapstructure:"max_add_on_rounds"`
	MaxAddOnNotional   float64    `mapstructure:"max_add_on_notional"`
}

// Perpetual holds each futures position at a fixed quote value.
type Perpetual struct {
	TargetValue float64 `mapstructure:"target_value"`
	Threshold   float64 `mapstructure:"threshold"`
	AdjustSkew  float64 `mapstructure:"adjust_skew"`
	BandSpread  float64 `mapstructure:"band_spread"`
}

// LoadConfig reads configuration from file or environment variables, then
// normalises and validates it.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		return
	}
	if err = v.Unmarshal(&config); err != nil {
		return
	}

	config.Normalize()
	err = config.Validate()
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("binance.rate_limit", 20)      // requests per second
	v.SetDefault("binance.rate_limit_burst", 5) // burst size

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("database.dsn", "trader.db")
	v.SetDefault("server.port", 8080)

	v.SetDefault("trading.strategy", StrategyRebalance)
	v.SetDefault("trading.tick_interval", 1)
	v.SetDefault("trading.order_interval_seconds", 60)
	v.SetDefault("trading.api_port", 8081)

	v.SetDefault("rebalance.min_notional", 10)
	v.SetDefault("rebalance.price_skew", 0.0001)

	v.SetDefault("burst.threshold_fraction", 0.001)
	v.SetDefault("burst.volume_floor", 5)
	v.SetDefault("burst.volume_decay", 0.7)
	v.SetDefault("burst.window_size", 15)
	v.SetDefault("burst.trade_limit", 15)
	v.SetDefault("burst.min_quantity", 0.00001)
	v.SetDefault("burst.slippage_step", 0.1)
	v.SetDefault("burst.max_slippage_steps", 50)
	v.SetDefault("burst.rebalance_interval_seconds", 10)
	v.SetDefault("burst.inventory_fraction", 0.01)

	v.SetDefault("martingale.multiple", 2)
	v.SetDefault("martingale.take_profit_fraction", 0.01)
	v.SetDefault("martingale.grid_step_fraction", 0.01)
	v.SetDefault("martingale.entry_notional", 30)
	v.SetDefault("martingale.max_add_on_rounds", 6)

	v.SetDefault("perpetual.threshold", 0.01)
	v.SetDefault("perpetual.adjust_skew", rebalance.DefaultNotionalAdjustSkew)
	v.SetDefault("perpetual.band_spread", rebalance.DefaultNotionalBandSpread)
}
