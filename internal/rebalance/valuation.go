package rebalance

import (
	"quant-trade-bot-go/internal/market"

	"github.com/shopspring/decimal"
)

// valuePrecision matches the precision asset values are reported with.
const valuePrecision = 4

// Holdings sums an asset's total balance with the balances of its aliases
// (wrapped or earn-product tokens that track the same asset).
func Holdings(balances map[string]market.Balance, asset string, aliases map[string][]string) float64 {
	total := balances[asset].Total
	for _, alias := range aliases[asset] {
		total += balances[alias].Total
	}
	return total
}

// Valuate builds a Snapshot for the tracked assets of cfg. Values are priced at
// each asset's mid; the total adds the hold asset (and its aliases) at par.
func Valuate(cfg Config, balances map[string]market.Balance, aliases map[string][]string, quotes map[string]Quote) Snapshot {
	snap := Snapshot{
		Values: make(map[string]float64, len(cfg.Targets)),
		Quotes: quotes,
	}
	total := decimal.NewFromFloat(Holdings(balances, cfg.HoldAsset, aliases))
	for _, asset := range cfg.TrackedAssets() {
		q, ok := quotes[asset]
		if !ok {
			continue
		}
		value := decimal.NewFromFloat(Holdings(balances, asset, aliases)).
			Mul(decimal.NewFromFloat(q.Mid)).
			Round(valuePrecision)
		snap.Values[asset] = value.InexactFloat64()
		total = total.Add(value)
	}
	snap.Total = total.InexactFloat64()
	return snap
}
