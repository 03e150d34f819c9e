package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quant-trade-bot-go/internal/config"
	"quant-trade-bot-go/internal/market"
	"quant-trade-bot-go/internal/metrics"
	"quant-trade-bot-go/internal/rebalance"
)

// PerpetualStrategy holds every configured futures position at a fixed quote
// value, trading back into the band when it drifts out and quoting both sides
// while it is inside.
type PerpetualStrategy struct {
	pairs []market.Pair
	cfg   rebalance.NotionalConfig
}

// NewPerpetualStrategy validates the perpetual section.
func NewPerpetualStrategy(cfg *config.Config, logger *zap.Logger) (*PerpetualStrategy, error) {
	pairs, err := cfg.Pairs()
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("perpetual strategy needs at least one trade pair")
	}
	nc := cfg.NotionalConfig()
	if err := nc.Validate(); err != nil {
		return nil, err
	}
	return &PerpetualStrategy{pairs: pairs, cfg: nc}, nil
}

func (s *PerpetualStrategy) Name() string { return config.StrategyPerpetual }

func (s *PerpetualStrategy) Pairs() []market.Pair { return s.pairs }

// Initialize checks that the data source reports positions.
func (s *PerpetualStrategy) Initialize(ctx context.Context, sc StrategyContext) error {
	for _, pair := range s.pairs {
		pos, err := sc.Market.OpenPosition(ctx, pair)
		if errors.Is(err, market.ErrNoPosition) {
			return fmt.Errorf("perpetual strategy needs a futures account: %w", err)
		}
		if err != nil {
			return fmt.Errorf("could not get position for %s: %w", pair, err)
		}
		sc.Logger.Info("Perpetual pair ready",
			zap.String("pair", pair.String()),
			zap.Float64("amount", pos.Amount),
			zap.Float64("target_value", s.cfg.TargetValue))
	}
	return nil
}

// Decide values each position at mid and plans its adjustment or band quotes.
func (s *PerpetualStrategy) Decide(ctx context.Context, sc StrategyContext, now time.Time) (Decision, error) {
	var d Decision
	for _, pair := range s.pairs {
		pos, err := sc.Market.OpenPosition(ctx, pair)
		if err != nil {
			return Decision{}, fmt.Errorf("could not get position for %s: %w", pair, err)
		}
		mid, err := sc.Market.MidPrice(ctx, pair)
		if err != nil {
			return Decision{}, fmt.Errorf("could not get mid price for %s: %w", pair, err)
		}

		plan := rebalance.HoldNotional(pair, pos.Amount, mid, s.cfg)
		metrics.SetPositionValue(pair.String(), plan.Value)
		sc.Logger.Debug("Position valued",
			zap.String("pair", pair.String()),
			zap.Float64("amount", pos.Amount),
			zap.Float64("mid", mid),
			zap.Float64("value", plan.Value),
			zap.Int("intents", len(plan.Intents)))
		d.Intents = append(d.Intents, plan.Intents...)
	}
	if len(d.Intents) == 0 {
		d.Note = "no price"
	}
	return d, nil
}
