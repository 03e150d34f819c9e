// Package rebalance keeps a portfolio's asset weights inside tolerance bands
// around configured targets.
package rebalance

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"quant-trade-bot-go/internal/market"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// WeightPrecision is the number of fractional digits current weights are rounded to.
	WeightPrecision = 4

	DefaultMinNotional = 10.0
	DefaultPriceSkew   = 0.0001

	weightSumTolerance = 1e-6
)

// ErrInvalidConfig wraps every target/tolerance validation failure.
var ErrInvalidConfig = errors.New("invalid rebalance configuration")

// Config holds target weights as fractions of total portfolio value.
// Targets may include the hold asset; when it is absent the hold asset
// receives the residual weight.
type Config struct {
	Targets     map[string]float64
	Tolerances  map[string]float64
	HoldAsset   string
	MinNotional float64
	PriceSkew   float64
}

// Validate checks the weight and tolerance invariants.
func (c Config) Validate() error {
	if c.HoldAsset == "" {
		return fmt.Errorf("%w: hold asset is required", ErrInvalidConfig)
	}
	tracked := c.TrackedAssets()
	if len(tracked) == 0 {
		return fmt.Errorf("%w: at least one tracked asset is required", ErrInvalidConfig)
	}

	var sum float64
	for asset, w := range c.Targets {
		if w < 0 || w > 1 || math.IsNaN(w) {
			return fmt.Errorf("%w: target for %s must be within [0,1], got %v", ErrInvalidConfig, asset, w)
		}
		sum += w
	}
	if _, explicit := c.Targets[c.HoldAsset]; explicit {
		if math.Abs(sum-1) > weightSumTolerance {
			return fmt.Errorf("%w: targets must sum to 1, got %v", ErrInvalidConfig, sum)
		}
	} else if sum > 1+weightSumTolerance {
		return fmt.Errorf("%w: tracked targets sum to %v, leaving no room for %s", ErrInvalidConfig, sum, c.HoldAsset)
	}

	for _, asset := range tracked {
		tol, ok := c.Tolerances[asset]
		if !ok {
			return fmt.Errorf("%w: missing tolerance for %s", ErrInvalidConfig, asset)
		}
		if tol < 0 || tol >= 1 || math.IsNaN(tol) {
			return fmt.Errorf("%w: tolerance for %s must be within [0,1), got %v", ErrInvalidConfig, asset, tol)
		}
	}
	if c.MinNotional < 0 {
		return fmt.Errorf("%w: min notional must not be negative", ErrInvalidConfig)
	}
	if c.PriceSkew < 0 || c.PriceSkew >= 1 {
		return fmt.Errorf("%w: price skew must be within [0,1), got %v", ErrInvalidConfig, c.PriceSkew)
	}
	return nil
}

// TrackedAssets returns the non-hold assets in sorted order.
func (c Config) TrackedAssets() []string {
	assets := make([]string, 0, len(c.Targets))
	for asset := range c.Targets {
		if asset != c.HoldAsset {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)
	return assets
}

// HoldWeight is the target weight of the hold asset.
func (c Config) HoldWeight() float64 {
	if w, ok := c.Targets[c.HoldAsset]; ok {
		return w
	}
	var sum float64
	for _, asset := range c.TrackedAssets() {
		sum += c.Targets[asset]
	}
	return math.Max(0, 1-sum)
}

// Quote is the price view of one asset against the hold asset.
type Quote struct {
	Mid float64
	Bid float64
	Ask float64
}

// Snapshot is the valued portfolio for one tick.
type Snapshot struct {
	// Values are quote-currency values of each tracked asset.
	Values map[string]float64
	Total  float64
	Quotes map[string]Quote
}

// Rebalancer compares a Snapshot against the configured targets. It keeps no
// state between calls.
type Rebalancer struct {
	cfg    Config
	logger *zap.Logger
}

// NewRebalancer validates cfg and returns a Rebalancer.
func NewRebalancer(cfg Config, logger *zap.Logger) (*Rebalancer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Rebalancer{cfg: cfg, logger: logger.Named("rebalancer")}, nil
}

// Config returns the validated configuration.
func (r *Rebalancer) Config() Config { return r.cfg }

// Weights returns the rounded current weight of each tracked asset.
func (r *Rebalancer) Weights(snap Snapshot) map[string]float64 {
	weights := make(map[string]float64, len(r.cfg.Targets))
	if snap.Total <= 0 {
		return weights
	}
	for _, asset := range r.cfg.TrackedAssets() {
		weights[asset] = roundWeight(snap.Values[asset] / snap.Total)
	}
	return weights
}

// Rebalance returns one intent per tracked asset whose weight left its band.
// Identical snapshots always produce identical intents.
func (r *Rebalancer) Rebalance(snap Snapshot) []market.OrderIntent {
	if snap.Total <= 0 {
		r.logger.Info("Portfolio has no value, skipping rebalance", zap.Float64("total_value", snap.Total))
		return nil
	}

	var intents []market.OrderIntent
	for _, asset := range r.cfg.TrackedAssets() {
		intent, ok := r.rebalanceAsset(asset, snap)
		if ok {
			intents = append(intents, intent)
		}
	}
	return intents
}

func (r *Rebalancer) rebalanceAsset(asset string, snap Snapshot) (market.OrderIntent, bool) {
	l := r.logger.With(zap.String("asset", asset))

	quote, ok := snap.Quotes[asset]
	if !ok || quote.Mid <= 0 {
		l.Info("No usable price for asset, skipping")
		return market.OrderIntent{}, false
	}

	target := r.cfg.Targets[asset]
	tol := r.cfg.Tolerances[asset]
	value := snap.Values[asset]
	weight := roundWeight(value / snap.Total)
	targetValue := target * snap.Total
	pair := market.Pair{Base: asset, Quote: r.cfg.HoldAsset}

	var intent market.OrderIntent
	switch {
	case weight >= target*(1+tol):
		intent = market.OrderIntent{
			Pair:     pair,
			Side:     market.SideSell,
			Price:    quote.Ask * (1 + r.cfg.PriceSkew),
			Quantity: (value - targetValue) / quote.Mid,
			Purpose:  market.PurposeRebalance,
		}
	case weight <= target*(1-tol):
		intent = market.OrderIntent{
			Pair:     pair,
			Side:     market.SideBuy,
			Price:    quote.Bid * (1 - r.cfg.PriceSkew),
			Quantity: (targetValue - value) / quote.Mid,
			Purpose:  market.PurposeRebalance,
		}
	default:
		l.Debug("Weight within band", zap.Float64("weight", weight), zap.Float64("target", target))
		return market.OrderIntent{}, false
	}

	if intent.Quantity <= 0 || intent.Price <= 0 || intent.Notional() <= r.cfg.MinNotional {
		l.Debug("Rebalance order below minimum notional, suppressed",
			zap.Float64("notional", intent.Notional()),
			zap.Float64("min_notional", r.cfg.MinNotional))
		return market.OrderIntent{}, false
	}

	l.Info("Weight outside band",
		zap.Float64("weight", weight),
		zap.Float64("target", target),
		zap.Float64("tolerance", tol),
		zap.String("side", string(intent.Side)),
		zap.Float64("quantity", intent.Quantity))
	return intent, true
}

func roundWeight(w float64) float64 {
	return decimal.NewFromFloat(w).Round(WeightPrecision).InexactFloat64()
}
