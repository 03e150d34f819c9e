package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePair(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expected    Pair
		expectError bool
	}{
		{name: "Upper case", input: "BTC-USDT", expected: Pair{Base: "BTC", Quote: "USDT"}},
		{name: "Lower case with spaces", input: " eth-fdusd ", expected: Pair{Base: "ETH", Quote: "FDUSD"}},
		{name: "Missing quote", input: "BTC-", expectError: true},
		{name: "No separator", input: "BTCUSDT", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pair, err := ParsePair(tc.input)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, pair)
		})
	}
}

func TestPairFormatting(t *testing.T) {
	p := Pair{Base: "BTC", Quote: "TUSD"}
	assert.Equal(t, "BTC-TUSD", p.String())
	assert.Equal(t, "BTCTUSD", p.Symbol())
}

func testBook() OrderBook {
	return OrderBook{
		Bids: []BookLevel{{Price: 99.9, Size: 1}, {Price: 99.8, Size: 2}, {Price: 99.7, Size: 3}},
		Asks: []BookLevel{{Price: 100.1, Size: 1}, {Price: 100.2, Size: 2}, {Price: 100.3, Size: 3}},
	}
}

func TestOrderBook_Touch(t *testing.T) {
	b := testBook()
	assert.Equal(t, 99.9, b.BestBid())
	assert.Equal(t, 100.1, b.BestAsk())
	assert.InDelta(t, 100.0, b.Mid(), 1e-9)
	assert.InDelta(t, 0.2, b.Spread(), 1e-9)

	empty := OrderBook{}
	assert.Zero(t, empty.BestBid())
	assert.Zero(t, empty.Mid())
}

func TestOrderBook_CompositePrice(t *testing.T) {
	price, err := testBook().CompositePrice()
	require.NoError(t, err)
	// Symmetric book around 100: 200*0.35 + 200*0.1 + 200*0.05 = 100.
	assert.InDelta(t, 100.0, price, 1e-9)

	shallow := OrderBook{Bids: testBook().Bids[:2], Asks: testBook().Asks}
	_, err = shallow.CompositePrice()
	assert.Error(t, err)
}

func TestOrderBook_PressureQuotes(t *testing.T) {
	q := testBook().PressureQuotes()
	assert.InDelta(t, 99.9*0.618+100.1*0.382+0.01, q.Ask, 1e-9)
	assert.InDelta(t, 99.9*0.382+100.1*0.618-0.01, q.Bid, 1e-9)
}

func TestPositionAndNotional(t *testing.T) {
	assert.True(t, Position{}.IsFlat())
	assert.True(t, Position{Amount: 0.5}.IsLong())
	assert.True(t, Position{Amount: -0.5}.IsShort())

	intent := OrderIntent{Price: 200, Quantity: 0.25}
	assert.InDelta(t, 50.0, intent.Notional(), 1e-9)
	assert.InDelta(t, 3.5, TotalQty([]Trade{{Qty: 1}, {Qty: 2.5}}), 1e-9)
}
