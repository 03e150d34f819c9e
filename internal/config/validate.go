package config

import (
	"errors"
	"fmt"
	"strings"

	"quant-trade-bot-go/internal/burst"
	"quant-trade-bot-go/internal/market"
	"quant-trade-bot-go/internal/martingale"
	"quant-trade-bot-go/internal/rebalance"
	"quant-trade-bot-go/internal/signal"
)

// Strategy names accepted by trading.strategy.
const (
	StrategyRebalance  = "rebalance"
	StrategyBurst      = "burst"
	StrategyMartingale = "martingale"
	StrategyPerpetual  = "perpetual"
)

// ErrInvalid wraps every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// Normalize upper-cases asset symbols. Viper lower-cases map keys, so targets
// written as BTC arrive as btc.
func (c *Config) Normalize() {
	c.Trading.Strategy = strings.ToLower(strings.TrimSpace(c.Trading.Strategy))
	for i, p := range c.Trading.TradePairs {
		c.Trading.TradePairs[i] = strings.ToUpper(strings.TrimSpace(p))
	}

	r := &c.Rebalance
	r.HoldAsset = strings.ToUpper(r.HoldAsset)
	r.Targets = upperKeys(r.Targets)
	r.Tolerances = upperKeys(r.Tolerances)
	if r.Aliases != nil {
		aliases := make(map[string][]string, len(r.Aliases))
		for asset, list := range r.Aliases {
			upper := make([]string, len(list))
			for i, a := range list {
				upper[i] = strings.ToUpper(a)
			}
			aliases[strings.ToUpper(asset)] = upper
		}
		r.Aliases = aliases
	}
}

func upperKeys(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}

// Validate checks the loop settings and the section of the selected strategy.
func (c Config) Validate() error {
	if c.Trading.TickInterval <= 0 {
		return fmt.Errorf("%w: trading.tick_interval must be positive", ErrInvalid)
	}
	if c.Trading.OrderIntervalSeconds < 0 {
		return fmt.Errorf("%w: trading.order_interval_seconds must not be negative", ErrInvalid)
	}
	if _, err := c.Pairs(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if wantFutures := c.NeedsFutures(); c.Binance.Futures != wantFutures {
		return fmt.Errorf("%w: binance.futures must be %t for the %s strategy", ErrInvalid, wantFutures, c.Trading.Strategy)
	}

	var err error
	switch c.Trading.Strategy {
	case StrategyRebalance:
		err = c.RebalanceConfig().Validate()
	case StrategyBurst:
		if len(c.Trading.TradePairs) != 1 {
			return fmt.Errorf("%w: burst strategy trades exactly one pair, got %d", ErrInvalid, len(c.Trading.TradePairs))
		}
		if err = c.SignalConfig().Validate(); err == nil {
			err = c.BurstSizerConfig().Validate()
		}
		if err == nil && (c.Burst.InventoryFraction < 0 || c.Burst.InventoryFraction >= 1) {
			err = fmt.Errorf("burst.inventory_fraction must be within [0,1)")
		}
	case StrategyMartingale:
		if len(c.Trading.TradePairs) == 0 {
			return fmt.Errorf("%w: martingale strategy needs at least one trade pair", ErrInvalid)
		}
		err = c.MartingaleConfig().Validate()
	case StrategyPerpetual:
		if len(c.Trading.TradePairs) == 0 {
			return fmt.Errorf("%w: perpetual strategy needs at least one trade pair", ErrInvalid)
		}
		err = c.NotionalConfig().Validate()
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalid, c.Trading.Strategy)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// NeedsFutures reports whether the selected strategy trades futures positions.
func (c Config) NeedsFutures() bool {
	return c.Trading.Strategy == StrategyMartingale || c.Trading.Strategy == StrategyPerpetual
}

// Pairs parses trading.trade_pairs.
func (c Config) Pairs() ([]market.Pair, error) {
	pairs := make([]market.Pair, 0, len(c.Trading.TradePairs))
	for _, s := range c.Trading.TradePairs {
		p, err := market.ParsePair(s)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// RebalanceConfig converts the rebalance section.
func (c Config) RebalanceConfig() rebalance.Config {
	return rebalance.Config{
		Targets:     c.Rebalance.Targets,
		Tolerances:  c.Rebalance.Tolerances,
		HoldAsset:   c.Rebalance.HoldAsset,
		MinNotional: c.Rebalance.MinNotional,
		PriceSkew:   c.Rebalance.PriceSkew,
	}
}

// SignalConfig converts the burst detector settings.
func (c Config) SignalConfig() signal.Config {
	return signal.Config{
		ThresholdFraction: c.Burst.ThresholdFraction,
		WindowSize:        c.Burst.WindowSize,
		VolumeDecay:       c.Burst.VolumeDecay,
	}
}

// BurstSizerConfig converts the burst sizer settings.
func (c Config) BurstSizerConfig() burst.Config {
	return burst.Config{
		VolumeFloor:      c.Burst.VolumeFloor,
		MinQuantity:      c.Burst.MinQuantity,
		SlippageStep:     c.Burst.SlippageStep,
		MaxSlippageSteps: c.Burst.MaxSlippageSteps,
	}
}

// MartingaleConfig converts the martingale section. Without configured tiers
// the default tier ladder is used.
func (c Config) MartingaleConfig() martingale.Config {
	tiers := martingale.DefaultTiers
	if len(c.Martingale.GridTiers) > 0 {
		tiers = make([]martingale.Tier, len(c.Martingale.GridTiers))
		for i, t := range c.Martingale.GridTiers {
			tiers[i] = martingale.Tier{MinNotional: t.MinNotional, Multiplier: t.Multiplier}
		}
	}
	return martingale.Config{
		Multiple:           c.Martingale.Multiple,
		TakeProfitFraction: c.Martingale.TakeProfitFraction,
		GridStepFraction:   c.Martingale.GridStepFraction,
		EntryNotional:      c.Martingale.EntryNotional,
		MinQuantity:        c.Martingale.MinQuantity,
		GridTiers:          tiers,
		MaxAddOnRounds:     c.Martingale.MaxAddOnRounds,
		MaxAddOnNotional:   c.Martingale.MaxAddOnNotional,
	}
}

// NotionalConfig converts the perpetual section.
func (c Config) NotionalConfig() rebalance.NotionalConfig {
	return rebalance.NotionalConfig{
		TargetValue: c.Perpetual.TargetValue,
		Threshold:   c.Perpetual.Threshold,
		AdjustSkew:  c.Perpetual.AdjustSkew,
		BandSpread:  c.Perpetual.BandSpread,
	}
}
