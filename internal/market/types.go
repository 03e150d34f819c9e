package market

import (
	"errors"
	"fmt"
	"strings"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Purpose tags why an order intent was produced.
type Purpose string

const (
	PurposeRebalance  Purpose = "rebalance"
	PurposeTakeProfit Purpose = "take_profit"
	PurposeAddOn      Purpose = "add_on"
	PurposeBurstEntry Purpose = "burst_entry"
	PurposeEntry      Purpose = "entry"
	PurposeInventory  Purpose = "inventory"
	PurposeBandQuote  Purpose = "band_quote"
)

// Pair is a trading pair such as BTC-USDT.
type Pair struct {
	Base  string
	Quote string
}

// ParsePair parses "BASE-QUOTE" (case-insensitive) into a Pair.
func ParsePair(s string) (Pair, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(s)), "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("invalid trading pair %q, expected BASE-QUOTE", s)
	}
	return Pair{Base: parts[0], Quote: parts[1]}, nil
}

// String returns the BASE-QUOTE form.
func (p Pair) String() string {
	return p.Base + "-" + p.Quote
}

// Symbol returns the exchange symbol, e.g. BTCUSDT.
func (p Pair) Symbol() string {
	return p.Base + p.Quote
}

// OrderIntent is an instruction for the execution collaborator. It is never
// mutated after it has been handed out.
type OrderIntent struct {
	Pair     Pair
	Side     Side
	Price    float64
	Quantity float64
	Purpose  Purpose
}

// Notional is price times quantity in quote currency.
func (o OrderIntent) Notional() float64 {
	return o.Price * o.Quantity
}

// Balance holds the total and currently available amount of one asset.
type Balance struct {
	Total     float64
	Available float64
}

// Position is an open leveraged position. Amount is signed: positive is long,
// negative is short.
type Position struct {
	Amount     float64
	EntryPrice float64
}

func (p Position) IsFlat() bool  { return p.Amount == 0 }
func (p Position) IsLong() bool  { return p.Amount > 0 }
func (p Position) IsShort() bool { return p.Amount < 0 }

// Trade is one public trade print.
type Trade struct {
	Price float64
	Qty   float64
}

// TotalQty sums trade quantities.
func TotalQty(trades []Trade) float64 {
	var sum float64
	for _, t := range trades {
		sum += t.Qty
	}
	return sum
}

// ErrNoPosition is returned by data sources that cannot report leveraged positions.
var ErrNoPosition = errors.New("open positions are not available from this data source")
