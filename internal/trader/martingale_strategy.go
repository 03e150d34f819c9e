package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quant-trade-bot-go/internal/config"
	"quant-trade-bot-go/internal/market"
	"quant-trade-bot-go/internal/martingale"
	"quant-trade-bot-go/internal/metrics"
)

// MartingaleStrategy runs an independent martingale grid on every configured
// pair. Add-on size grows by the configured multiple each round, so exposure
// is bounded only by the round and notional caps.
type MartingaleStrategy struct {
	pairs  []market.Pair
	sizers map[market.Pair]*martingale.Sizer
}

// NewMartingaleStrategy builds one sizer per pair.
func NewMartingaleStrategy(cfg *config.Config, logger *zap.Logger) (*MartingaleStrategy, error) {
	pairs, err := cfg.Pairs()
	if err != nil {
		return nil, err
	}
	s := &MartingaleStrategy{pairs: pairs, sizers: make(map[market.Pair]*martingale.Sizer, len(pairs))}
	for _, pair := range pairs {
		sizer, err := martingale.NewSizer(cfg.MartingaleConfig(), logger.With(zap.String("pair", pair.String())))
		if err != nil {
			return nil, err
		}
		s.sizers[pair] = sizer
	}
	return s, nil
}

func (s *MartingaleStrategy) Name() string { return config.StrategyMartingale }

func (s *MartingaleStrategy) Pairs() []market.Pair { return s.pairs }

// Initialize checks that the data source reports positions and primes each
// sizer with the current one.
func (s *MartingaleStrategy) Initialize(ctx context.Context, sc StrategyContext) error {
	for _, pair := range s.pairs {
		pos, err := sc.Market.OpenPosition(ctx, pair)
		if errors.Is(err, market.ErrNoPosition) {
			return fmt.Errorf("martingale strategy needs a futures account: %w", err)
		}
		if err != nil {
			return fmt.Errorf("could not get position for %s: %w", pair, err)
		}
		s.sizers[pair].Observe(pos)
		sc.Logger.Info("Martingale pair ready",
			zap.String("pair", pair.String()),
			zap.Float64("amount", pos.Amount),
			zap.Float64("entry_price", pos.EntryPrice))
	}
	return nil
}

// Decide plans entry, take-profit and add-on orders for every pair.
func (s *MartingaleStrategy) Decide(ctx context.Context, sc StrategyContext, now time.Time) (Decision, error) {
	var d Decision
	for _, pair := range s.pairs {
		pos, err := sc.Market.OpenPosition(ctx, pair)
		if err != nil {
			return Decision{}, fmt.Errorf("could not get position for %s: %w", pair, err)
		}
		sizer := s.sizers[pair]
		metrics.SetMartingaleRound(pair.String(), sizer.Observe(pos))

		book, err := sc.Market.OrderBook(ctx, pair, quoteDepth)
		if err != nil {
			return Decision{}, fmt.Errorf("could not get order book for %s: %w", pair, err)
		}
		plan := sizer.Plan(martingale.Input{
			Pair:     pair,
			Position: pos,
			BestBid:  book.BestBid(),
			BestAsk:  book.BestAsk(),
		})
		d.Intents = append(d.Intents, plan.Intents()...)
	}
	if len(d.Intents) == 0 {
		d.Note = "nothing to place"
	}
	return d, nil
}
