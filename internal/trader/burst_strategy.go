package trader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quant-trade-bot-go/internal/burst"
	"quant-trade-bot-go/internal/config"
	"quant-trade-bot-go/internal/market"
	"quant-trade-bot-go/internal/metrics"
	"quant-trade-bot-go/internal/signal"
)

// BurstStrategy trades one pair in the direction of short price bursts and
// keeps inventory balanced while the market is quiet.
type BurstStrategy struct {
	pair       market.Pair
	engine     *signal.Engine
	sizer      *burst.Sizer
	windowSize int
	tradeLimit int
	fraction   float64
	cooldown   time.Duration
}

// NewBurstStrategy builds the strategy for the single configured pair.
func NewBurstStrategy(cfg *config.Config, logger *zap.Logger) (*BurstStrategy, error) {
	pairs, err := cfg.Pairs()
	if err != nil {
		return nil, err
	}
	if len(pairs) != 1 {
		return nil, fmt.Errorf("burst strategy trades exactly one pair, got %d", len(pairs))
	}
	engine, err := signal.NewEngine(cfg.SignalConfig())
	if err != nil {
		return nil, err
	}
	sizer, err := burst.NewSizer(cfg.BurstSizerConfig(), logger)
	if err != nil {
		return nil, err
	}
	return &BurstStrategy{
		pair:       pairs[0],
		engine:     engine,
		sizer:      sizer,
		windowSize: cfg.Burst.WindowSize,
		tradeLimit: cfg.Burst.TradeLimit,
		fraction:   cfg.Burst.InventoryFraction,
		cooldown:   time.Duration(cfg.Burst.RebalanceIntervalSeconds) * time.Second,
	}, nil
}

func (s *BurstStrategy) Name() string { return config.StrategyBurst }

func (s *BurstStrategy) Pairs() []market.Pair { return []market.Pair{s.pair} }

// Initialize seeds the price window from the recent trade tape, oldest first.
// A tape shorter than the window is padded in front with the composite price.
func (s *BurstStrategy) Initialize(ctx context.Context, sc StrategyContext) error {
	trades, err := sc.Market.RecentTrades(ctx, s.pair, s.tradeLimit)
	if err != nil {
		return fmt.Errorf("could not get recent trades for %s: %w", s.pair, err)
	}
	if len(trades) > s.windowSize {
		trades = trades[len(trades)-s.windowSize:]
	}

	seed := make([]float64, 0, s.windowSize)
	if pad := s.windowSize - len(trades); pad > 0 {
		book, err := sc.Market.OrderBook(ctx, s.pair, quoteDepth)
		if err != nil {
			return fmt.Errorf("could not get order book for %s: %w", s.pair, err)
		}
		price, err := book.CompositePrice()
		if err != nil {
			return fmt.Errorf("could not seed price window for %s: %w", s.pair, err)
		}
		for i := 0; i < pad; i++ {
			seed = append(seed, price)
		}
	}
	for _, t := range trades {
		seed = append(seed, t.Price)
	}
	s.engine.Seed(seed)
	sc.Logger.Info("Burst strategy initialized",
		zap.String("pair", s.pair.String()),
		zap.Int("seed_trades", len(trades)),
		zap.Int("window", s.engine.History()))
	return nil
}

// Decide reads the book, trade tape and balances, then classifies the move and
// sizes an order. The window and round counter advance only after every read
// has succeeded.
func (s *BurstStrategy) Decide(ctx context.Context, sc StrategyContext, now time.Time) (Decision, error) {
	l := sc.Logger.With(zap.String("pair", s.pair.String()))

	book, err := sc.Market.OrderBook(ctx, s.pair, quoteDepth)
	if err != nil {
		return Decision{}, fmt.Errorf("could not get order book for %s: %w", s.pair, err)
	}
	price, err := book.CompositePrice()
	if err != nil {
		l.Warn("Order book too shallow, skipping tick", zap.Error(err))
		return Decision{Note: "order book too shallow"}, nil
	}
	trades, err := sc.Market.RecentTrades(ctx, s.pair, s.tradeLimit)
	if err != nil {
		return Decision{}, fmt.Errorf("could not get recent trades for %s: %w", s.pair, err)
	}
	balances, err := sc.Market.Balances(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("could not get balances: %w", err)
	}
	base, quote := balances[s.pair.Base], balances[s.pair.Quote]

	s.sizer.Observe()
	reading := s.engine.Update(price, market.TotalQty(trades))
	metrics.IncBurstSignal(reading.Signal.String())
	metrics.SetVolumeEstimate(s.pair.String(), reading.Volume)

	if reading.Signal == signal.None {
		intent, ok := burst.InventoryGuard(s.pair, reading.Latest, base.Total, quote.Total, s.fraction)
		if !ok {
			return Decision{Note: "no burst"}, nil
		}
		l.Info("Inventory outside bounds, rebalancing",
			zap.String("side", string(intent.Side)), zap.Float64("quantity", intent.Quantity))
		return Decision{Intents: []market.OrderIntent{intent}}, nil
	}

	l.Info("Burst detected",
		zap.String("signal", reading.Signal.String()),
		zap.Float64("price", reading.Latest),
		zap.Float64("burst_size", reading.BurstSize),
		zap.Float64("volume", reading.Volume))

	d := Decision{Cooldown: s.cooldown}
	res := s.sizer.Size(burst.Input{
		Pair:           s.pair,
		Reading:        reading,
		Book:           book,
		QuoteAvailable: quote.Available,
		BaseAvailable:  base.Available,
	})
	metrics.SetDampeningMultiplier(s.pair.String(), res.Multiplier())
	if !res.OK {
		d.Note = res.Reason
		return d, nil
	}

	// The window has already moved, so a failed re-sample ends the tick
	// without an order instead of failing it.
	after, err := sc.Market.OrderBook(ctx, s.pair, quoteDepth)
	if err != nil {
		l.Warn("Could not re-sample order book, dropping burst order", zap.Error(err))
		d.Note = "order book re-sample failed"
		return d, nil
	}
	intent, steps, ok := s.sizer.PenalizeSlippage(res.Intent, book.PressureQuotes(), after.PressureQuotes())
	if !ok {
		d.Note = fmt.Sprintf("below minimum quantity after %d slippage steps", steps)
		return d, nil
	}
	d.Intents = []market.OrderIntent{intent}
	return d, nil
}
