package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func createMockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "btcusdt@bookTicker", r.URL.Query().Get("streams"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func TestBookTickerStream_ReceivesQuotes(t *testing.T) {
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"stream":"btcusdt@bookTicker","data":{"u":1,"s":"BTCUSDT","b":"99.5","B":"1","a":"100.5","A":"2"}}`))
		time.Sleep(300 * time.Millisecond)
	})
	defer server.Close()

	stream := newBookTickerStream(strings.Replace(server.URL, "http://", "ws://", 1), []string{"BTCUSDT"}, zap.NewNop())
	stream.ReadTimeout = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go stream.Run(ctx)

	require.Eventually(t, func() bool {
		_, ok := stream.Latest("BTCUSDT", time.Minute)
		return ok
	}, time.Second, 10*time.Millisecond)

	q, _ := stream.Latest("BTCUSDT", time.Minute)
	assert.Equal(t, 99.5, q.Bid)
	assert.Equal(t, 100.5, q.Ask)
	assert.Equal(t, 100.0, q.Mid())
}

func TestBookTickerStream_StaleQuote(t *testing.T) {
	stream := newBookTickerStream("ws://unused", []string{"BTCUSDT"}, zap.NewNop())
	now := time.Now()
	stream.now = func() time.Time { return now }
	require.NoError(t, stream.handle([]byte(`{"stream":"x","data":{"s":"BTCUSDT","b":"1","a":"3"}}`)))

	_, ok := stream.Latest("BTCUSDT", time.Second)
	assert.True(t, ok)

	stream.now = func() time.Time { return now.Add(2 * time.Second) }
	_, ok = stream.Latest("BTCUSDT", time.Second)
	assert.False(t, ok)

	_, ok = stream.Latest("ETHUSDT", time.Hour)
	assert.False(t, ok)
}

func TestExchange_MidPricePrefersStream(t *testing.T) {
	stream := newBookTickerStream("ws://unused", []string{"BTCUSDT"}, zap.NewNop())
	require.NoError(t, stream.handle([]byte(`{"data":{"s":"BTCUSDT","b":"200","a":"202"}}`)))

	client := new(MockRestClient)
	ex := NewExchange(client, stream, false, zap.NewNop())

	mid, err := ex.MidPrice(context.Background(), btcUSDT)
	require.NoError(t, err)
	assert.Equal(t, 201.0, mid)
	client.AssertNotCalled(t, "GetBookTicker", mock.Anything, mock.Anything)
}

func TestBookTickerStream_StopsOnCancel(t *testing.T) {
	stream := newBookTickerStream("ws://127.0.0.1:1", []string{"BTCUSDT"}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		stream.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestBookTickerStream_Backoff(t *testing.T) {
	stream := newBookTickerStream("ws://unused", []string{"BTCUSDT"}, zap.NewNop())

	testCases := []struct {
		retry    int
		expected time.Duration
	}{
		{retry: 0, expected: time.Second},
		{retry: 1, expected: 2 * time.Second},
		{retry: 4, expected: 16 * time.Second},
		{retry: 5, expected: maxStreamBackoff},
		{retry: 40, expected: maxStreamBackoff},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, stream.backoff(tc.retry), "retry %d", tc.retry)
	}
}

func TestBookTickerStream_BackoffResetsAfterConnect(t *testing.T) {
	var connects atomic.Int32
	// Every session drops right after the handshake.
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		connects.Add(1)
	})
	defer server.Close()

	stream := newBookTickerStream(strings.Replace(server.URL, "http://", "ws://", 1), []string{"BTCUSDT"}, zap.NewNop())
	stream.BaseBackoff = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stream.Run(ctx)

	// Growing delays would allow only six sessions in the first 1.3s.
	require.Eventually(t, func() bool {
		return connects.Load() >= 12
	}, time.Second, 10*time.Millisecond)
}
