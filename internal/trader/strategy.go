package trader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"quant-trade-bot-go/internal/config"
	"quant-trade-bot-go/internal/market"
)

// StrategyContext provides the strategy with access to the core components.
type StrategyContext struct {
	Logger *zap.Logger
	Cfg    *config.Config
	Market market.DataSource
	DB     *gorm.DB
}

// Decision is the outcome of one strategy tick.
type Decision struct {
	Intents []market.OrderIntent
	// Cooldown extends the wait before the next tick is due.
	Cooldown time.Duration
	// Note says why nothing was emitted, when that is the case.
	Note string
}

// Strategy defines the interface for a trading strategy.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Pairs lists the pairs whose open orders are cancelled before each tick.
	Pairs() []market.Pair

	// Initialize gives the strategy a chance to perform setup tasks.
	Initialize(ctx context.Context, sc StrategyContext) error

	// Decide observes the market and returns the intents for this tick.
	Decide(ctx context.Context, sc StrategyContext, now time.Time) (Decision, error)
}

// NewStrategy builds the strategy selected by trading.strategy.
func NewStrategy(cfg *config.Config, logger *zap.Logger) (Strategy, error) {
	var (
		s   Strategy
		err error
	)
	switch cfg.Trading.Strategy {
	case config.StrategyRebalance:
		s, err = NewRebalanceStrategy(cfg, logger)
	case config.StrategyBurst:
		s, err = NewBurstStrategy(cfg, logger)
	case config.StrategyMartingale:
		s, err = NewMartingaleStrategy(cfg, logger)
	case config.StrategyPerpetual:
		s, err = NewPerpetualStrategy(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Trading.Strategy)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s strategy: %w", cfg.Trading.Strategy, err)
	}
	return s, nil
}
