package binance

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// codeUnknownOrder is returned when there is nothing to cancel.
const codeUnknownOrder = -2011

// APIError is the JSON error body Binance returns on 4xx responses.
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("binance error %d: %s", e.Code, e.Msg)
}

// ErrBelowFilters means an order fell under LOT_SIZE minQty or the minimum
// notional after quantization.
var ErrBelowFilters = errors.New("order below exchange filters")

// ExchangeInfoResponse represents the full response from the /exchangeInfo endpoint.
type ExchangeInfoResponse struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// SymbolInfo contains information about a specific trading symbol.
type SymbolInfo struct {
	Symbol     string   `json:"symbol"`
	Status     string   `json:"status"`
	BaseAsset  string   `json:"baseAsset"`
	QuoteAsset string   `json:"quoteAsset"`
	Filters    []Filter `json:"filters"`
}

// Filter represents a single filter for a symbol. Only LOT_SIZE,
// PRICE_FILTER and (MIN_)NOTIONAL are used.
type Filter struct {
	FilterType  string `json:"filterType"`
	MinQty      string `json:"minQty,omitempty"`
	MaxQty      string `json:"maxQty,omitempty"`
	StepSize    string `json:"stepSize,omitempty"`
	TickSize    string `json:"tickSize,omitempty"`
	MinNotional string `json:"minNotional,omitempty"`
}

func (s SymbolInfo) filterValue(get func(Filter) string, types ...string) decimal.Decimal {
	for _, f := range s.Filters {
		for _, t := range types {
			if f.FilterType != t {
				continue
			}
			if d, err := decimal.NewFromString(get(f)); err == nil {
				return d
			}
		}
	}
	return decimal.Zero
}

// StepSize is the LOT_SIZE quantity increment, zero when unknown.
func (s SymbolInfo) StepSize() decimal.Decimal {
	return s.filterValue(func(f Filter) string { return f.StepSize }, "LOT_SIZE")
}

// TickSize is the PRICE_FILTER price increment, zero when unknown.
func (s SymbolInfo) TickSize() decimal.Decimal {
	return s.filterValue(func(f Filter) string { return f.TickSize }, "PRICE_FILTER")
}

// MinQty is the LOT_SIZE minimum quantity.
func (s SymbolInfo) MinQty() decimal.Decimal {
	return s.filterValue(func(f Filter) string { return f.MinQty }, "LOT_SIZE")
}

// MinNotional is the smallest allowed price times quantity.
func (s SymbolInfo) MinNotional() decimal.Decimal {
	return s.filterValue(func(f Filter) string { return f.MinNotional }, "NOTIONAL", "MIN_NOTIONAL")
}

// QuantizeQuantity floors the quantity to the step size.
func (s SymbolInfo) QuantizeQuantity(qty float64) decimal.Decimal {
	q := decimal.NewFromFloat(qty)
	step := s.StepSize()
	if step.IsPositive() {
		q = q.Div(step).Floor().Mul(step)
	}
	return q
}

// QuantizePrice snaps the price to the tick size, rounding buys down and
// sells up so the order never crosses further than requested.
func (s SymbolInfo) QuantizePrice(price float64, side string) decimal.Decimal {
	p := decimal.NewFromFloat(price)
	tick := s.TickSize()
	if !tick.IsPositive() {
		return p
	}
	n := p.Div(tick)
	if side == OrderSideSell {
		n = n.Ceil()
	} else {
		n = n.Floor()
	}
	return n.Mul(tick)
}

// Check reports ErrBelowFilters when the quantized order is not tradable.
func (s SymbolInfo) Check(qty, price decimal.Decimal) error {
	if !qty.IsPositive() || qty.LessThan(s.MinQty()) {
		return fmt.Errorf("%w: %s quantity %s below min %s", ErrBelowFilters, s.Symbol, qty, s.MinQty())
	}
	if floor := s.MinNotional(); qty.Mul(price).LessThan(floor) {
		return fmt.Errorf("%w: %s notional %s below min %s", ErrBelowFilters, s.Symbol, qty.Mul(price), floor)
	}
	return nil
}
