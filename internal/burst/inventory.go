package burst

import "quant-trade-bot-go/internal/market"

const (
	inventoryHigh     = 0.9
	inventoryLow      = 0.1
	inventoryPriceAdj = 0.0001
)

// InventoryGuard keeps the base share of a two-asset account inside
// [10%, 90%) of its value while no burst is active. It trades fraction of
// the total value, priced one hundredth of a percent through price.
func InventoryGuard(pair market.Pair, price, baseTotal, quoteTotal, fraction float64) (market.OrderIntent, bool) {
	if price <= 0 || fraction <= 0 {
		return market.OrderIntent{}, false
	}
	baseValue := baseTotal * price
	total := baseValue + quoteTotal
	if total <= 0 {
		return market.OrderIntent{}, false
	}

	intent := market.OrderIntent{
		Pair:     pair,
		Quantity: total / price * fraction,
		Purpose:  market.PurposeInventory,
	}
	switch share := baseValue / total; {
	case share >= inventoryHigh:
		intent.Side = market.SideSell
		intent.Price = price * (1 + inventoryPriceAdj)
	case share < inventoryLow:
		intent.Side = market.SideBuy
		intent.Price = price * (1 - inventoryPriceAdj)
	default:
		return market.OrderIntent{}, false
	}
	return intent, true
}
