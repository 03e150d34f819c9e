package binance

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"quant-trade-bot-go/internal/market"
)

// streamMaxAge bounds how stale a streamed quote may be before MidPrice falls
// back to REST.
const streamMaxAge = 5 * time.Second

// Exchange adapts the REST client (and optionally the bookTicker stream) to
// market.DataSource and market.OrderRouter.
type Exchange struct {
	client  RestClientInterface
	stream  *BookTickerStream
	futures bool
	logger  *zap.Logger

	mu    sync.RWMutex
	rules map[string]SymbolInfo
}

var (
	_ market.DataSource  = (*Exchange)(nil)
	_ market.OrderRouter = (*Exchange)(nil)
)

// NewExchange wraps client. stream may be nil. futures must match the API the
// client talks to; it enables OpenPosition.
func NewExchange(client RestClientInterface, stream *BookTickerStream, futures bool, logger *zap.Logger) *Exchange {
	return &Exchange{
		client:  client,
		stream:  stream,
		futures: futures,
		logger:  logger.Named("exchange"),
		rules:   make(map[string]SymbolInfo),
	}
}

// LoadRules fetches and caches exchange info.
func (e *Exchange) LoadRules(ctx context.Context) error {
	info, err := e.client.GetExchangeInfo(ctx)
	if err != nil {
		return fmt.Errorf("could not get exchange info: %w", err)
	}
	e.mu.Lock()
	for _, s := range info.Symbols {
		e.rules[s.Symbol] = s
	}
	e.mu.Unlock()
	e.logger.Info("Cached exchange information for symbols", zap.Int("count", len(info.Symbols)))
	return nil
}

// Rule returns the cached symbol rules.
func (e *Exchange) Rule(symbol string) (SymbolInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[symbol]
	return r, ok
}

// MidPrice prefers a fresh streamed quote and falls back to the REST book ticker.
func (e *Exchange) MidPrice(ctx context.Context, pair market.Pair) (float64, error) {
	if e.stream != nil {
		if q, ok := e.stream.Latest(pair.Symbol(), streamMaxAge); ok {
			return q.Mid(), nil
		}
	}
	t, err := e.client.GetBookTicker(ctx, pair.Symbol())
	if err != nil {
		return 0, err
	}
	bid, err := strconv.ParseFloat(t.BidPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("parse bid %q: %w", t.BidPrice, err)
	}
	ask, err := strconv.ParseFloat(t.AskPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ask %q: %w", t.AskPrice, err)
	}
	return (bid + ask) / 2, nil
}

// OrderBook returns the top depth levels per side.
func (e *Exchange) OrderBook(ctx context.Context, pair market.Pair, depth int) (market.OrderBook, error) {
	raw, err := e.client.GetOrderBook(ctx, pair.Symbol(), depth)
	if err != nil {
		return market.OrderBook{}, err
	}
	bids, err := parseLevels(raw.Bids)
	if err != nil {
		return market.OrderBook{}, fmt.Errorf("parse bids: %w", err)
	}
	asks, err := parseLevels(raw.Asks)
	if err != nil {
		return market.OrderBook{}, fmt.Errorf("parse asks: %w", err)
	}
	return market.OrderBook{Bids: bids, Asks: asks}, nil
}

func parseLevels(raw [][2]string) ([]market.BookLevel, error) {
	levels := make([]market.BookLevel, 0, len(raw))
	for _, l := range raw {
		price, err := strconv.ParseFloat(l[0], 64)
		if err != nil {
			return nil, err
		}
		qty, err := strconv.ParseFloat(l[1], 64)
		if err != nil {
			return nil, err
		}
		levels = append(levels, market.BookLevel{Price: price, Size: qty})
	}
	return levels, nil
}

// RecentTrades returns the latest public trades.
func (e *Exchange) RecentTrades(ctx context.Context, pair market.Pair, limit int) ([]market.Trade, error) {
	raw, err := e.client.GetRecentTrades(ctx, pair.Symbol(), limit)
	if err != nil {
		return nil, err
	}
	trades := make([]market.Trade, 0, len(raw))
	for _, t := range raw {
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("parse trade price %q: %w", t.Price, err)
		}
		qty, err := strconv.ParseFloat(t.Qty, 64)
		if err != nil {
			return nil, fmt.Errorf("parse trade qty %q: %w", t.Qty, err)
		}
		trades = append(trades, market.Trade{Price: price, Qty: qty})
	}
	return trades, nil
}

// Balances returns every non-zero balance keyed by asset.
func (e *Exchange) Balances(ctx context.Context) (map[string]market.Balance, error) {
	acct, err := e.client.GetAccount(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]market.Balance, len(acct.Balances))
	for _, b := range acct.Balances {
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s free balance: %w", b.Asset, err)
		}
		locked, err := strconv.ParseFloat(b.Locked, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s locked balance: %w", b.Asset, err)
		}
		if free == 0 && locked == 0 {
			continue
		}
		out[b.Asset] = market.Balance{Total: free + locked, Available: free}
	}
	for _, a := range acct.Assets {
		wallet, err := strconv.ParseFloat(a.WalletBalance, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s wallet balance: %w", a.Asset, err)
		}
		available, err := strconv.ParseFloat(a.AvailableBalance, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s available balance: %w", a.Asset, err)
		}
		if wallet == 0 {
			continue
		}
		out[a.Asset] = market.Balance{Total: wallet, Available: available}
	}
	return out, nil
}

// OpenPosition returns the net futures position on the pair. Without futures
// access it returns market.ErrNoPosition.
func (e *Exchange) OpenPosition(ctx context.Context, pair market.Pair) (market.Position, error) {
	if !e.futures {
		return market.Position{}, market.ErrNoPosition
	}
	risks, err := e.client.GetPositionRisk(ctx, pair.Symbol())
	if err != nil {
		return market.Position{}, err
	}

	// Hedge mode reports LONG and SHORT separately; net them and carry the
	// entry price of the side that dominates.
	var pos market.Position
	var dominant float64
	for _, r := range risks {
		if r.Symbol != pair.Symbol() {
			continue
		}
		amt, err := strconv.ParseFloat(r.PositionAmt, 64)
		if err != nil {
			return market.Position{}, fmt.Errorf("parse position amount %q: %w", r.PositionAmt, err)
		}
		entry, err := strconv.ParseFloat(r.EntryPrice, 64)
		if err != nil {
			return market.Position{}, fmt.Errorf("parse entry price %q: %w", r.EntryPrice, err)
		}
		pos.Amount += amt
		if abs := absf(amt); abs > dominant {
			dominant = abs
			pos.EntryPrice = entry
		}
	}
	if pos.Amount == 0 {
		return market.Position{}, nil
	}
	return pos, nil
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Quantize snaps the intent to the symbol's lot and tick size and rejects it
// with ErrBelowFilters when it is no longer tradable.
func (e *Exchange) Quantize(intent market.OrderIntent) (market.OrderIntent, error) {
	rule, ok := e.Rule(intent.Pair.Symbol())
	if !ok {
		e.logger.Warn("No exchange rule found for symbol, using raw values", zap.String("symbol", intent.Pair.Symbol()))
		return intent, nil
	}
	qty := rule.QuantizeQuantity(intent.Quantity)
	price := rule.QuantizePrice(intent.Price, string(intent.Side))
	if err := rule.Check(qty, price); err != nil {
		return intent, err
	}
	intent.Quantity = qty.InexactFloat64()
	intent.Price = price.InexactFloat64()
	return intent, nil
}

// SubmitOrder places the intent as a LIMIT GTC order.
func (e *Exchange) SubmitOrder(ctx context.Context, intent market.OrderIntent) (string, error) {
	qty := decimal.NewFromFloat(intent.Quantity)
	price := decimal.NewFromFloat(intent.Price)
	if rule, ok := e.Rule(intent.Pair.Symbol()); ok {
		qty = rule.QuantizeQuantity(intent.Quantity)
		price = rule.QuantizePrice(intent.Price, string(intent.Side))
	}

	resp, err := e.client.CreateOrder(ctx, OrderRequest{
		Symbol:   intent.Pair.Symbol(),
		Side:     string(intent.Side),
		Quantity: qty.String(),
		Price:    price.String(),
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(resp.OrderID, 10), nil
}

// CancelAllActiveOrders cancels every open order on the pair.
func (e *Exchange) CancelAllActiveOrders(ctx context.Context, pair market.Pair) error {
	return e.client.CancelOpenOrders(ctx, pair.Symbol())
}
