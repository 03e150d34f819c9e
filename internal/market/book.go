package market

import "fmt"

// BookLevel is one price level of an order book.
type BookLevel struct {
	Price float64
	Size  float64
}

// OrderBook is a point-in-time view of the top levels. Bids are sorted best
// (highest) first, asks best (lowest) first.
type OrderBook struct {
	Bids []BookLevel
	Asks []BookLevel
}

// compositeWeights weight the first three bid+ask level pairs.
var compositeWeights = [3]float64{0.35, 0.10, 0.05}

func (b OrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

func (b OrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

// Mid returns the midpoint of the touch, or 0 if either side is empty.
func (b OrderBook) Mid() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid <= 0 || ask <= 0 {
		return 0
	}
	return (bid + ask) / 2
}

// Spread returns best ask minus best bid.
func (b OrderBook) Spread() float64 {
	return b.BestAsk() - b.BestBid()
}

// CompositePrice blends the first three levels on both sides into a smoothed
// reference price. The weights sum to 1 over the six prices.
func (b OrderBook) CompositePrice() (float64, error) {
	if len(b.Bids) < len(compositeWeights) || len(b.Asks) < len(compositeWeights) {
		return 0, fmt.Errorf("composite price needs %d levels per side, got %d bids and %d asks",
			len(compositeWeights), len(b.Bids), len(b.Asks))
	}
	var price float64
	for i, w := range compositeWeights {
		price += (b.Bids[i].Price + b.Asks[i].Price) * w
	}
	return price, nil
}

// Quotes is a pair of pressure-weighted quotes derived from the touch.
type Quotes struct {
	Ask float64
	Bid float64
}

// PressureQuotes leans each quote toward the opposite side of the touch using
// the 0.618/0.382 split, offset by one tick of 0.01.
func (b OrderBook) PressureQuotes() Quotes {
	bid, ask := b.BestBid(), b.BestAsk()
	return Quotes{
		Ask: bid*0.618 + ask*0.382 + 0.01,
		Bid: bid*0.382 + ask*0.618 - 0.01,
	}
}
