package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	spotStreamURL           = "wss://stream.binance.com:9443/stream"
	spotTestnetStreamURL    = "wss://testnet.binance.vision/stream"
	futuresStreamURL        = "wss://fstream.binance.com/stream"
	futuresTestnetStreamURL = "wss://stream.binancefuture.com/stream"
	maxStreamBackoff        = 30 * time.Second
)

// Quote is a top-of-book snapshot received from the stream.
type Quote struct {
	Bid        float64
	Ask        float64
	ReceivedAt time.Time
}

// Mid returns the midpoint of the quote.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// bookTickerEvent is the data part of a combined <symbol>@bookTicker message.
type bookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   bookTickerEvent `json:"data"`
}

// BookTickerStream keeps the latest best bid/ask of a set of symbols from the
// Binance combined websocket stream, reconnecting with backoff.
type BookTickerStream struct {
	url    string
	logger *zap.Logger

	ReadTimeout time.Duration
	// BaseBackoff is the first reconnect delay. It doubles per failed attempt
	// up to maxStreamBackoff and resets once a connection is established.
	BaseBackoff time.Duration

	mu     sync.RWMutex
	quotes map[string]Quote
	now    func() time.Time
}

// NewBookTickerStream builds a stream for the given exchange symbols on the
// spot or futures market.
func NewBookTickerStream(symbols []string, testnet, futures bool, logger *zap.Logger) *BookTickerStream {
	var base string
	switch {
	case futures && testnet:
		base = futuresTestnetStreamURL
	case futures:
		base = futuresStreamURL
	case testnet:
		base = spotTestnetStreamURL
	default:
		base = spotStreamURL
	}
	return newBookTickerStream(base, symbols, logger)
}

func newBookTickerStream(base string, symbols []string, logger *zap.Logger) *BookTickerStream {
	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = strings.ToLower(s) + "@bookTicker"
	}
	return &BookTickerStream{
		url:         base + "?streams=" + strings.Join(names, "/"),
		logger:      logger.Named("book-ticker"),
		ReadTimeout: 60 * time.Second,
		BaseBackoff: time.Second,
		quotes:      make(map[string]Quote),
		now:         time.Now,
	}
}

// Latest returns the last quote for symbol if it is younger than maxAge.
func (s *BookTickerStream) Latest(symbol string, maxAge time.Duration) (Quote, bool) {
	s.mu.RLock()
	q, ok := s.quotes[symbol]
	s.mu.RUnlock()
	if !ok || s.now().Sub(q.ReceivedAt) > maxAge {
		return Quote{}, false
	}
	return q, true
}

// Run connects and consumes the stream until ctx is cancelled.
func (s *BookTickerStream) Run(ctx context.Context) {
	retry := 0
	for {
		if ctx.Err() != nil {
			return
		}

		connected, err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			retry = 0
		}

		delay := s.backoff(retry)
		s.logger.Warn("Stream disconnected, reconnecting",
			zap.Error(err),
			zap.Int("retry", retry),
			zap.Duration("delay", delay),
		)
		retry++

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *BookTickerStream) backoff(retry int) time.Duration {
	delay := s.BaseBackoff << min(retry, 5)
	if delay > maxStreamBackoff {
		delay = maxStreamBackoff
	}
	return delay
}

// consume reads until the connection fails. connected reports whether the
// dial succeeded before the error.
func (s *BookTickerStream) consume(ctx context.Context) (connected bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	// Unblock ReadMessage on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	s.logger.Info("Stream connected", zap.String("url", s.url))
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		if err := s.handle(msg); err != nil {
			s.logger.Debug("Skipping malformed stream message", zap.Error(err))
		}
	}
}

func (s *BookTickerStream) handle(msg []byte) error {
	var m combinedMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return err
	}
	bid, err := strconv.ParseFloat(m.Data.BidPrice, 64)
	if err != nil {
		return fmt.Errorf("bid price: %w", err)
	}
	ask, err := strconv.ParseFloat(m.Data.AskPrice, 64)
	if err != nil {
		return fmt.Errorf("ask price: %w", err)
	}

	s.mu.Lock()
	s.quotes[m.Data.Symbol] = Quote{Bid: bid, Ask: ask, ReceivedAt: s.now()}
	s.mu.Unlock()
	return nil
}
