package rebalance

import (
	"fmt"
	"math"

	"quant-trade-bot-go/internal/market"
)

const (
	DefaultNotionalAdjustSkew = 0.001
	DefaultNotionalBandSpread = 0.005
)

// NotionalConfig holds every futures position at a fixed quote value.
// Threshold is both the half-width of the band around TargetValue and the
// share of TargetValue traded per order.
type NotionalConfig struct {
	TargetValue float64
	Threshold   float64
	// AdjustSkew prices the order that pulls a position back into the band.
	AdjustSkew float64
	// BandSpread prices the resting quotes placed while inside the band.
	BandSpread float64
}

// Validate checks the notional band settings.
func (c NotionalConfig) Validate() error {
	if c.TargetValue <= 0 {
		return fmt.Errorf("%w: target value must be positive, got %v", ErrInvalidConfig, c.TargetValue)
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("%w: threshold must be within (0,1), got %v", ErrInvalidConfig, c.Threshold)
	}
	if c.AdjustSkew < 0 || c.AdjustSkew >= 1 {
		return fmt.Errorf("%w: adjust skew must be within [0,1), got %v", ErrInvalidConfig, c.AdjustSkew)
	}
	if c.BandSpread < 0 || c.BandSpread >= 1 {
		return fmt.Errorf("%w: band spread must be within [0,1), got %v", ErrInvalidConfig, c.BandSpread)
	}
	return nil
}

// NotionalPlan is the outcome of HoldNotional for one position.
type NotionalPlan struct {
	Value   float64
	Intents []market.OrderIntent
}

// HoldNotional values the signed position amount at mid and returns the
// orders that keep it near TargetValue. Above the band it sells, below it
// buys, both skewed by AdjustSkew toward the passive side. Inside the band it
// quotes both sides BandSpread away from mid. Every order trades
// TargetValue*Threshold of quote value.
func HoldNotional(pair market.Pair, amount, mid float64, cfg NotionalConfig) NotionalPlan {
	if mid <= 0 || math.IsNaN(mid) {
		return NotionalPlan{}
	}
	plan := NotionalPlan{Value: amount * mid}
	qty := cfg.TargetValue * cfg.Threshold / mid
	order := func(side market.Side, price float64, purpose market.Purpose) market.OrderIntent {
		return market.OrderIntent{Pair: pair, Side: side, Price: price, Quantity: qty, Purpose: purpose}
	}

	switch {
	case plan.Value >= cfg.TargetValue*(1+cfg.Threshold):
		plan.Intents = []market.OrderIntent{
			order(market.SideSell, mid*(1+cfg.AdjustSkew), market.PurposeRebalance),
		}
	case plan.Value < cfg.TargetValue*(1-cfg.Threshold):
		plan.Intents = []market.OrderIntent{
			order(market.SideBuy, mid*(1-cfg.AdjustSkew), market.PurposeRebalance),
		}
	default:
		plan.Intents = []market.OrderIntent{
			order(market.SideSell, mid*(1+cfg.BandSpread), market.PurposeBandQuote),
			order(market.SideBuy, mid*(1-cfg.BandSpread), market.PurposeBandQuote),
		}
	}
	return plan
}
