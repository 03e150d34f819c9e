package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"quant-trade-bot-go/internal/config"
	"quant-trade-bot-go/internal/market"
	"quant-trade-bot-go/internal/metrics"
	"quant-trade-bot-go/internal/rebalance"
)

// quoteDepth is the order book depth read for touch prices.
const quoteDepth = 5

// RebalanceStrategy keeps every tracked asset inside its weight band against
// the hold asset.
type RebalanceStrategy struct {
	rebalancer *rebalance.Rebalancer
	aliases    map[string][]string
	pairs      []market.Pair
}

// NewRebalanceStrategy builds the strategy from the rebalance section.
func NewRebalanceStrategy(cfg *config.Config, logger *zap.Logger) (*RebalanceStrategy, error) {
	rcfg := cfg.RebalanceConfig()
	r, err := rebalance.NewRebalancer(rcfg, logger)
	if err != nil {
		return nil, err
	}
	s := &RebalanceStrategy{rebalancer: r, aliases: cfg.Rebalance.Aliases}
	for _, asset := range rcfg.TrackedAssets() {
		s.pairs = append(s.pairs, market.Pair{Base: asset, Quote: rcfg.HoldAsset})
	}
	return s, nil
}

func (s *RebalanceStrategy) Name() string { return config.StrategyRebalance }

func (s *RebalanceStrategy) Pairs() []market.Pair { return s.pairs }

func (s *RebalanceStrategy) Initialize(ctx context.Context, sc StrategyContext) error {
	rcfg := s.rebalancer.Config()
	sc.Logger.Info("Rebalance strategy initialized",
		zap.String("hold_asset", rcfg.HoldAsset),
		zap.Strings("tracked", rcfg.TrackedAssets()),
		zap.Float64("hold_weight", rcfg.HoldWeight()))
	return nil
}

// Decide values the portfolio and returns the band-restoring intents.
func (s *RebalanceStrategy) Decide(ctx context.Context, sc StrategyContext, now time.Time) (Decision, error) {
	balances, err := sc.Market.Balances(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("could not get balances: %w", err)
	}

	quotes, err := fetchQuotes(ctx, sc.Market, s.pairs)
	if err != nil {
		return Decision{}, err
	}

	rcfg := s.rebalancer.Config()
	snap := rebalance.Valuate(rcfg, balances, s.aliases, quotes)
	for asset, w := range s.rebalancer.Weights(snap) {
		metrics.SetAssetWeight(asset, w)
	}
	sc.Logger.Debug("Portfolio valued", zap.Float64("total_value", snap.Total))

	intents := s.rebalancer.Rebalance(snap)
	d := Decision{Intents: intents}
	if len(intents) == 0 {
		d.Note = "all weights within band"
	}
	return d, nil
}

type pairQuote struct {
	asset string
	quote rebalance.Quote
	err   error
}

// fetchQuotes reads the touch and mid of every pair concurrently. The first
// error encountered is returned.
func fetchQuotes(ctx context.Context, src market.DataSource, pairs []market.Pair) (map[string]rebalance.Quote, error) {
	var wg sync.WaitGroup
	results := make(chan pairQuote, len(pairs))
	for _, p := range pairs {
		wg.Add(1)
		go func(pair market.Pair) {
			defer wg.Done()
			q, err := touchQuote(ctx, src, pair)
			results <- pairQuote{asset: pair.Base, quote: q, err: err}
		}(p)
	}
	wg.Wait()
	close(results)

	quotes := make(map[string]rebalance.Quote, len(pairs))
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		quotes[r.asset] = r.quote
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return quotes, nil
}

func touchQuote(ctx context.Context, src market.DataSource, pair market.Pair) (rebalance.Quote, error) {
	book, err := src.OrderBook(ctx, pair, quoteDepth)
	if err != nil {
		return rebalance.Quote{}, fmt.Errorf("could not get order book for %s: %w", pair, err)
	}
	mid, err := src.MidPrice(ctx, pair)
	if err != nil {
		return rebalance.Quote{}, fmt.Errorf("could not get mid price for %s: %w", pair, err)
	}
	return rebalance.Quote{Mid: mid, Bid: book.BestBid(), Ask: book.BestAsk()}, nil
}
