package market

import "context"

// DataSource provides read-only market and account snapshots.
type DataSource interface {
	MidPrice(ctx context.Context, pair Pair) (float64, error)
	OrderBook(ctx context.Context, pair Pair, depth int) (OrderBook, error)
	RecentTrades(ctx context.Context, pair Pair, limit int) ([]Trade, error)
	Balances(ctx context.Context) (map[string]Balance, error)
	OpenPosition(ctx context.Context, pair Pair) (Position, error)
}

// OrderRouter turns intents into live orders.
type OrderRouter interface {
	// SubmitOrder places the intent and returns the exchange order id.
	SubmitOrder(ctx context.Context, intent OrderIntent) (string, error)
	// CancelAllActiveOrders cancels every open order on the pair.
	CancelAllActiveOrders(ctx context.Context, pair Pair) error
}
