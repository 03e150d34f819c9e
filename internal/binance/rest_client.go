package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"quant-trade-bot-go/internal/config"
)

const (
	spotBaseURL           = "https://api.binance.com"
	spotTestnetBaseURL    = "https://testnet.binance.vision"
	futuresBaseURL        = "https://fapi.binance.com"
	futuresTestnetBaseURL = "https://testnet.binancefuture.com"
	recvWindow            = "5000" // How long a request is valid in milliseconds
	OrderTypeLimit        = "LIMIT"
	TimeInForceGTC        = "GTC"
	OrderSideBuy          = "BUY"
	OrderSideSell         = "SELL"
)

// Logical endpoints, resolved per API by endpoint.
const (
	epTime         = "time"
	epExchangeInfo = "exchangeInfo"
	epDepth        = "depth"
	epTrades       = "trades"
	epBookTicker   = "bookTicker"
	epAccount      = "account"
	epOrder        = "order"
	epCancelAll    = "cancelAll"
	epPositionRisk = "positionRisk"
)

var spotPaths = map[string]string{
	epTime:         "/api/v3/time",
	epExchangeInfo: "/api/v3/exchangeInfo",
	epDepth:        "/api/v3/depth",
	epTrades:       "/api/v3/trades",
	epBookTicker:   "/api/v3/ticker/bookTicker",
	epAccount:      "/api/v3/account",
	epOrder:        "/api/v3/order",
	epCancelAll:    "/api/v3/openOrders",
}

var futuresPaths = map[string]string{
	epTime:         "/fapi/v1/time",
	epExchangeInfo: "/fapi/v1/exchangeInfo",
	epDepth:        "/fapi/v1/depth",
	epTrades:       "/fapi/v1/trades",
	epBookTicker:   "/fapi/v1/ticker/bookTicker",
	epAccount:      "/fapi/v2/account",
	epOrder:        "/fapi/v1/order",
	epCancelAll:    "/fapi/v1/allOpenOrders",
	epPositionRisk: "/fapi/v2/positionRisk",
}

// ErrUnsupported is returned for endpoints the selected API does not offer.
var ErrUnsupported = errors.New("endpoint not available on this API")

// RestClientInterface defines the interface for the Binance REST API client.
type RestClientInterface interface {
	GetServerTime(ctx context.Context) (int64, error)
	GetExchangeInfo(ctx context.Context) (*ExchangeInfoResponse, error)
	GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBookResponse, error)
	GetRecentTrades(ctx context.Context, symbol string, limit int) ([]RecentTrade, error)
	GetBookTicker(ctx context.Context, symbol string) (*BookTicker, error)
	GetAccount(ctx context.Context) (*AccountResponse, error)
	CreateOrder(ctx context.Context, order OrderRequest) (*CreateOrderResponse, error)
	CancelOpenOrders(ctx context.Context, symbol string) error
	GetPositionRisk(ctx context.Context, symbol string) ([]PositionRisk, error)
}

// RestClient is a client for either the Binance spot or the USD-M futures
// REST API. It implements the RestClientInterface.
type RestClient struct {
	client    *resty.Client
	paths     map[string]string
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Binance REST API client. cfg.Futures selects
// the USD-M futures API.
func NewRestClient(cfg *config.Binance, logger *zap.Logger) *RestClient {
	var baseURL string
	paths := spotPaths
	switch {
	case cfg.Futures && cfg.Testnet:
		baseURL, paths = futuresTestnetBaseURL, futuresPaths
	case cfg.Futures:
		baseURL, paths = futuresBaseURL, futuresPaths
	case cfg.Testnet:
		baseURL = spotTestnetBaseURL
	default:
		baseURL = spotBaseURL
	}
	if cfg.Testnet {
		logger.Warn("Using Binance Testnet", zap.Bool("futures", cfg.Futures))
	} else {
		logger.Info("Using Binance Production API", zap.Bool("futures", cfg.Futures))
	}

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:    resty.New().SetBaseURL(baseURL),
		paths:     paths,
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		logger:    logger,
		limiter:   limiter,
	}
}

func (c *RestClient) endpoint(name string) (string, error) {
	path, ok := c.paths[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	return path, nil
}

// sign creates a HMAC-SHA256 signature for the request.
func (c *RestClient) sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// signed stamps params with timestamp and recvWindow and returns the encoded
// query including its signature.
func (c *RestClient) signed(params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", recvWindow)
	query := params.Encode()
	return query + "&signature=" + c.sign(query)
}

// GetServerTime fetches the current server time from Binance.
// This is a good endpoint to test connectivity.
func (c *RestClient) GetServerTime(ctx context.Context) (int64, error) {
	type ServerTimeResponse struct {
		ServerTime int64 `json:"serverTime"`
	}

	req := c.client.R().
		SetResult(&ServerTimeResponse{})

	resp, err := c.doRequest(ctx, http.MethodGet, epTime, req)
	if err != nil {
		c.logger.Error("Failed to get server time", zap.Error(err))
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}

	result := resp.Result().(*ServerTimeResponse)
	return result.ServerTime, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, endpoint string, req *resty.Request) (*resty.Response, error) {
	path, err := c.endpoint(endpoint)
	if err != nil {
		return nil, err
	}
	var resp *resty.Response
	const maxRetries = 3

	req.SetContext(ctx)
	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("path", path))
		resp, err = req.Execute(method, path)

		if err == nil && !resp.IsError() {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && resp.StatusCode() != 0 {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 { // HTTP 429 or 418
				shouldRetry = true
				if seconds, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil && resp != nil {
		err = fmt.Errorf("status %s", resp.Status())
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// GetExchangeInfo fetches exchange trading rules and symbol information.
func (c *RestClient) GetExchangeInfo(ctx context.Context) (*ExchangeInfoResponse, error) {
	var exchangeInfo ExchangeInfoResponse

	req := c.client.R().
		SetResult(&exchangeInfo).
		SetHeader("Content-Type", "application/json")

	resp, err := c.doRequest(ctx, http.MethodGet, epExchangeInfo, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	return resp.Result().(*ExchangeInfoResponse), nil
}

// OrderBookResponse is the raw /depth payload. Levels are [price, qty] strings.
type OrderBookResponse struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// GetOrderBook fetches the top `limit` levels of the order book.
func (c *RestClient) GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBookResponse, error) {
	req := c.client.R().
		SetQueryParam("symbol", symbol).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&OrderBookResponse{})

	resp, err := c.doRequest(ctx, http.MethodGet, epDepth, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get order book for %s: %w", symbol, err)
	}
	return resp.Result().(*OrderBookResponse), nil
}

// RecentTrade is one public trade print from /trades.
type RecentTrade struct {
	ID           int64  `json:"id"`
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	Time         int64  `json:"time"`
	IsBuyerMaker bool   `json:"isBuyerMaker"`
}

// GetRecentTrades fetches the most recent public trades.
func (c *RestClient) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]RecentTrade, error) {
	var trades []RecentTrade

	req := c.client.R().
		SetQueryParam("symbol", symbol).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&trades)

	resp, err := c.doRequest(ctx, http.MethodGet, epTrades, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent trades for %s: %w", symbol, err)
	}
	return *resp.Result().(*[]RecentTrade), nil
}

// BookTicker is the best bid and ask of one symbol.
type BookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

// GetBookTicker fetches the best bid and ask for a symbol.
func (c *RestClient) GetBookTicker(ctx context.Context, symbol string) (*BookTicker, error) {
	req := c.client.R().
		SetQueryParam("symbol", symbol).
		SetResult(&BookTicker{})

	resp, err := c.doRequest(ctx, http.MethodGet, epBookTicker, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get book ticker for %s: %w", symbol, err)
	}
	return resp.Result().(*BookTicker), nil
}

// AccountBalance is one asset line of the spot account.
type AccountBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// FuturesAsset is one margin asset of the futures account.
type FuturesAsset struct {
	Asset            string `json:"asset"`
	WalletBalance    string `json:"walletBalance"`
	AvailableBalance string `json:"availableBalance"`
}

// AccountResponse is the signed account payload. The spot API fills
// Balances, the futures API fills Assets.
type AccountResponse struct {
	CanTrade bool             `json:"canTrade"`
	Balances []AccountBalance `json:"balances"`
	Assets   []FuturesAsset   `json:"assets"`
}

// GetAccount fetches the signed account snapshot.
func (c *RestClient) GetAccount(ctx context.Context) (*AccountResponse, error) {
	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(c.signed(url.Values{})).
		SetResult(&AccountResponse{})

	resp, err := c.doRequest(ctx, http.MethodGet, epAccount, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return resp.Result().(*AccountResponse), nil
}

// OrderRequest describes a LIMIT GTC order. Quantity and Price are already
// formatted to the symbol's lot and tick size.
type OrderRequest struct {
	Symbol   string
	Side     string
	Quantity string
	Price    string
}

// CreateOrderResponse represents the response from creating a new order.
type CreateOrderResponse struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	ClientOrderID       string `json:"clientOrderId"`
	TransactTime        int64  `json:"transactTime"`
	Price               string `json:"price"`
	OrigQuantity        string `json:"origQty"`
	ExecutedQuantity    string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
	TimeInForce         string `json:"timeInForce"`
	Type                string `json:"type"`
	Side                string `json:"side"`
}

// CreateOrder places a LIMIT GTC order tagged with a random client order id.
func (c *RestClient) CreateOrder(ctx context.Context, order OrderRequest) (*CreateOrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("side", order.Side)
	params.Set("type", OrderTypeLimit)
	params.Set("timeInForce", TimeInForceGTC)
	params.Set("quantity", order.Quantity)
	params.Set("price", order.Price)
	params.Set("newClientOrderId", uuid.NewString())

	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(c.signed(params)).
		SetResult(&CreateOrderResponse{})

	resp, err := c.doRequest(ctx, http.MethodPost, epOrder, req)
	if err != nil {
		c.logger.Error("Failed to create order after multiple attempts",
			zap.Error(err),
			zap.String("symbol", order.Symbol),
			zap.String("side", order.Side),
		)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	result := resp.Result().(*CreateOrderResponse)
	c.logger.Info("Successfully created order", zap.Any("order", result))
	return result, nil
}

// CancelOpenOrders cancels every open order on the symbol. The spot API
// answers -2011 when nothing is open, which is not an error here.
func (c *RestClient) CancelOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)

	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(c.signed(params))

	path, err := c.endpoint(epCancelAll)
	if err != nil {
		return err
	}
	req.SetContext(ctx)
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	resp, err := req.Execute(http.MethodDelete, path)
	if err != nil {
		return fmt.Errorf("failed to cancel open orders for %s: %w", symbol, err)
	}
	if resp.IsError() {
		var apiErr APIError
		if jerr := json.Unmarshal(resp.Body(), &apiErr); jerr == nil && apiErr.Code == codeUnknownOrder {
			return nil
		}
		return fmt.Errorf("failed to cancel open orders for %s: status %s: %s", symbol, resp.Status(), resp.String())
	}
	return nil
}

// PositionRisk is one USD-M futures position.
type PositionRisk struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	PositionSide     string `json:"positionSide"`
}

// GetPositionRisk fetches futures positions for the symbol. The spot API
// returns ErrUnsupported.
func (c *RestClient) GetPositionRisk(ctx context.Context, symbol string) ([]PositionRisk, error) {
	var positions []PositionRisk

	params := url.Values{}
	params.Set("symbol", symbol)

	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(c.signed(params)).
		SetResult(&positions)

	resp, err := c.doRequest(ctx, http.MethodGet, epPositionRisk, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get position risk for %s: %w", symbol, err)
	}
	return *resp.Result().(*[]PositionRisk), nil
}
