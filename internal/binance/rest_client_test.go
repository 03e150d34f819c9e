package binance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"quant-trade-bot-go/internal/config"
)

// setupTestServer creates a new test server and a spot RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	return setupTestServerWithPaths(handler, spotPaths)
}

func setupTestServerWithPaths(handler http.Handler, paths map[string]string) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	rc := &RestClient{
		client:    resty.New().SetBaseURL(server.URL),
		paths:     paths,
		apiKey:    "test_api_key",
		secretKey: "test_secret_key",
		logger:    zap.NewNop(),
		limiter:   rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}

	return rc, server
}

func TestGetServerTime(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		expectedTime := time.Now().UnixMilli()
		mockResponse := fmt.Sprintf(`{"serverTime": %d}`, expectedTime)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v3/time", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(mockResponse))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		serverTime, err := rc.GetServerTime(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, expectedTime, serverTime)
	})

	t.Run("APIError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code": -1100, "msg": "Illegal characters"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		serverTime, err := rc.GetServerTime(context.Background())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get server time")
		assert.Contains(t, err.Error(), "request failed")
		assert.Equal(t, int64(0), serverTime)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := rc.GetServerTime(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGetOrderBook(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/depth", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lastUpdateId":1,"bids":[["100.10","2.5"],["100.00","1"]],"asks":[["100.20","3"]]}`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	book, err := rc.GetOrderBook(context.Background(), "BTCUSDT", 5)
	require.NoError(t, err)
	assert.Equal(t, [2]string{"100.10", "2.5"}, book.Bids[0])
	assert.Len(t, book.Bids, 2)
	assert.Len(t, book.Asks, 1)
}

func TestGetRecentTrades(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/trades", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"price":"100.1","qty":"0.5","time":1,"isBuyerMaker":true},{"id":2,"price":"100.2","qty":"1.5","time":2,"isBuyerMaker":false}]`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	trades, err := rc.GetRecentTrades(context.Background(), "BTCUSDT", 15)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "1.5", trades[1].Qty)
}

func TestGetAccount_IsSigned(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/account", r.URL.Path)
		assert.Equal(t, "test_api_key", r.Header.Get("X-MBX-APIKEY"))
		q := r.URL.Query()
		assert.NotEmpty(t, q.Get("timestamp"))
		assert.Equal(t, recvWindow, q.Get("recvWindow"))
		assert.Len(t, q.Get("signature"), 64)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"canTrade":true,"balances":[{"asset":"BTC","free":"1.5","locked":"0.5"}]}`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	acct, err := rc.GetAccount(context.Background())
	require.NoError(t, err)
	require.Len(t, acct.Balances, 1)
	assert.Equal(t, "BTC", acct.Balances[0].Asset)
}

func TestCreateOrder(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, err := url.ParseQuery(string(body))
		assert.NoError(t, err)
		assert.Equal(t, "BTCUSDT", form.Get("symbol"))
		assert.Equal(t, OrderTypeLimit, form.Get("type"))
		assert.Equal(t, TimeInForceGTC, form.Get("timeInForce"))
		assert.Equal(t, "0.012", form.Get("quantity"))
		assert.Equal(t, "99.5", form.Get("price"))
		assert.Len(t, form.Get("newClientOrderId"), 36)
		assert.NotEmpty(t, form.Get("signature"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","orderId":42,"status":"NEW","side":"BUY"}`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	resp, err := rc.CreateOrder(context.Background(), OrderRequest{
		Symbol: "BTCUSDT", Side: OrderSideBuy, Quantity: "0.012", Price: "99.5",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), resp.OrderID)
}

func TestCancelOpenOrders(t *testing.T) {
	testCases := []struct {
		name        string
		status      int
		body        string
		expectError bool
	}{
		{name: "Cancelled", status: http.StatusOK, body: `[]`},
		{name: "NothingOpen", status: http.StatusBadRequest, body: `{"code":-2011,"msg":"Unknown order sent."}`},
		{name: "Rejected", status: http.StatusBadRequest, body: `{"code":-1121,"msg":"Invalid symbol."}`, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/api/v3/openOrders", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			rc, server := setupTestServer(handler)
			defer server.Close()

			err := rc.CancelOpenOrders(context.Background(), "BTCUSDT")
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetPositionRisk(t *testing.T) {
	t.Run("Futures", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/fapi/v2/positionRisk", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","positionAmt":"0.010","entryPrice":"100.0","positionSide":"BOTH"}]`))
		})

		rc, server := setupTestServerWithPaths(handler, futuresPaths)
		defer server.Close()

		positions, err := rc.GetPositionRisk(context.Background(), "BTCUSDT")
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.Equal(t, "0.010", positions[0].PositionAmt)
	})

	t.Run("SpotUnsupported", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unexpected request to %s", r.URL.Path)
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.GetPositionRisk(context.Background(), "BTCUSDT")
		assert.ErrorIs(t, err, ErrUnsupported)
	})
}

func TestCancelOpenOrders_FuturesPath(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/fapi/v1/allOpenOrders", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"msg":"The operation of cancel all open order is done."}`))
	})

	rc, server := setupTestServerWithPaths(handler, futuresPaths)
	defer server.Close()

	assert.NoError(t, rc.CancelOpenOrders(context.Background(), "BTCUSDT"))
}

func TestNewRestClient(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     config.Binance
		baseURL string
		orders  string
	}{
		{name: "Spot", cfg: config.Binance{}, baseURL: spotBaseURL, orders: "/api/v3/order"},
		{name: "SpotTestnet", cfg: config.Binance{Testnet: true}, baseURL: spotTestnetBaseURL, orders: "/api/v3/order"},
		{name: "Futures", cfg: config.Binance{Futures: true}, baseURL: futuresBaseURL, orders: "/fapi/v1/order"},
		{name: "FuturesTestnet", cfg: config.Binance{Futures: true, Testnet: true}, baseURL: futuresTestnetBaseURL, orders: "/fapi/v1/order"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.ApiKey = "k"
			rc := NewRestClient(&tc.cfg, zap.NewNop())
			assert.Equal(t, tc.baseURL, rc.client.BaseURL)
			path, err := rc.endpoint(epOrder)
			assert.NoError(t, err)
			assert.Equal(t, tc.orders, path)
			assert.Equal(t, "k", rc.apiKey)
		})
	}
}
