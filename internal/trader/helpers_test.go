package trader

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"quant-trade-bot-go/internal/database"
	"quant-trade-bot-go/internal/market"
)

// MockVenue is a mock implementation of the Venue interface.
type MockVenue struct {
	mock.Mock
}

func (m *MockVenue) MidPrice(ctx context.Context, pair market.Pair) (float64, error) {
	args := m.Called(ctx, pair)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockVenue) OrderBook(ctx context.Context, pair market.Pair, depth int) (market.OrderBook, error) {
	args := m.Called(ctx, pair, depth)
	return args.Get(0).(market.OrderBook), args.Error(1)
}

func (m *MockVenue) RecentTrades(ctx context.Context, pair market.Pair, limit int) ([]market.Trade, error) {
	args := m.Called(ctx, pair, limit)
	return args.Get(0).([]market.Trade), args.Error(1)
}

func (m *MockVenue) Balances(ctx context.Context) (map[string]market.Balance, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]market.Balance), args.Error(1)
}

func (m *MockVenue) OpenPosition(ctx context.Context, pair market.Pair) (market.Position, error) {
	args := m.Called(ctx, pair)
	return args.Get(0).(market.Position), args.Error(1)
}

func (m *MockVenue) SubmitOrder(ctx context.Context, intent market.OrderIntent) (string, error) {
	args := m.Called(ctx, intent)
	return args.String(0), args.Error(1)
}

func (m *MockVenue) CancelAllActiveOrders(ctx context.Context, pair market.Pair) error {
	args := m.Called(ctx, pair)
	return args.Error(0)
}

func (m *MockVenue) Quantize(intent market.OrderIntent) (market.OrderIntent, error) {
	args := m.Called(intent)
	return args.Get(0).(market.OrderIntent), args.Error(1)
}

// stubStrategy replays canned decisions and counts Decide calls.
type stubStrategy struct {
	mu        sync.Mutex
	pairs     []market.Pair
	decisions []Decision
	errs      []error
	initErr   error
	calls     int
}

func (s *stubStrategy) Name() string         { return "stub" }
func (s *stubStrategy) Pairs() []market.Pair { return s.pairs }

func (s *stubStrategy) Initialize(ctx context.Context, sc StrategyContext) error {
	return s.initErr
}

func (s *stubStrategy) Decide(ctx context.Context, sc StrategyContext, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return Decision{}, s.errs[i]
	}
	if len(s.decisions) == 0 {
		return Decision{}, nil
	}
	if i >= len(s.decisions) {
		i = len(s.decisions) - 1
	}
	return s.decisions[i], nil
}

func (s *stubStrategy) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// setupDB opens a fresh in-memory journal for one test.
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every pooled connection would otherwise get its own empty database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

var (
	btcFDUSD = market.Pair{Base: "BTC", Quote: "FDUSD"}
	btcUSDT  = market.Pair{Base: "BTC", Quote: "USDT"}
)

// levels builds a three-level book symmetric around mid with the given half spread.
func levels(mid, half float64) market.OrderBook {
	return market.OrderBook{
		Bids: []market.BookLevel{{Price: mid - half, Size: 1}, {Price: mid - half - 0.1, Size: 2}, {Price: mid - half - 0.2, Size: 3}},
		Asks: []market.BookLevel{{Price: mid + half, Size: 1}, {Price: mid + half + 0.1, Size: 2}, {Price: mid + half + 0.2, Size: 3}},
	}
}
