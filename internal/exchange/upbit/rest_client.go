package upbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"market-data-service/internal/logger"
	"market-data-service/internal/metrics"
	"market-data-service/internal/model"
)

const (
	DefaultBaseURL = "https://api.upbit.com/v1"
	DefaultTimeout = 10 * time.Second
	RequestTimeout = 3 * time.Second // context timeout per attempt
	BaseBackoff    = 100 * time.Millisecond
	MaxBackoff     = 2 * time.Second

	// MaxCandlesPerRequest is the venue's hard per-call candle limit.
	MaxCandlesPerRequest = 200

	priorityHeader = "X-Request-Priority"
)

var errRetryableStatus = errors.New("retryable http status")

// RestClient talks to the Upbit public REST API. It owns transport concerns:
// per-attempt timeouts, backoff retries and priority tagging. It implements
// provider.RemoteClient.
type RestClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint
}

// NewRestClient creates a REST client. Zero values fall back to defaults.
func NewRestClient(baseURL string, timeout time.Duration, maxRetries int) *RestClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &RestClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: uint(maxRetries),
	}
}

// GetTicker fetches the latest ticker for one symbol.
func (c *RestClient) GetTicker(ctx context.Context, symbol string, priority model.Priority) (model.Ticker, error) {
	tickers, err := c.GetTickers(ctx, []string{symbol}, priority)
	if err != nil {
		return model.Ticker{}, err
	}
	if len(tickers) == 0 {
		return model.Ticker{}, fmt.Errorf("no ticker returned for %s", symbol)
	}
	return tickers[0], nil
}

// GetTickers fetches tickers for several symbols in one call.
func (c *RestClient) GetTickers(ctx context.Context, symbols []string, priority model.Priority) ([]model.Ticker, error) {
	params := url.Values{"markets": {strings.Join(symbols, ",")}}

	var data []tickerData
	if err := c.getJSON(ctx, "ticker", "/ticker", params, priority, &data); err != nil {
		return nil, err
	}

	tickers := make([]model.Ticker, 0, len(data))
	for _, t := range data {
		tickers = append(tickers, t.toModel())
	}
	return tickers, nil
}

// GetOrderbook fetches an order book snapshot.
func (c *RestClient) GetOrderbook(ctx context.Context, symbol string, priority model.Priority) (model.Orderbook, error) {
	params := url.Values{"markets": {symbol}}

	var data []orderbookData
	if err := c.getJSON(ctx, "orderbook", "/orderbook", params, priority, &data); err != nil {
		return model.Orderbook{}, err
	}
	if len(data) == 0 {
		return model.Orderbook{}, fmt.Errorf("no orderbook returned for %s", symbol)
	}
	return data[0].toModel(), nil
}

// GetTrades fetches the most recent trades.
func (c *RestClient) GetTrades(ctx context.Context, symbol string, count int, priority model.Priority) ([]model.Trade, error) {
	params := url.Values{
		"market": {symbol},
		"count":  {strconv.Itoa(count)},
	}

	var data []tradeData
	if err := c.getJSON(ctx, "trades", "/trades/ticks", params, priority, &data); err != nil {
		return nil, err
	}

	trades := make([]model.Trade, 0, len(data))
	for _, t := range data {
		trades = append(trades, t.toModel())
	}
	return trades, nil
}

// GetCandles fetches candles for one venue-legal request. Count is capped at
// the venue limit; the request splitter guarantees callers never exceed it.
func (c *RestClient) GetCandles(ctx context.Context, symbol, timeframe string, count int, start, end time.Time, priority model.Priority) ([]model.Candle, error) {
	path, err := candlePath(timeframe)
	if err != nil {
		return nil, err
	}

	if count <= 0 || count > MaxCandlesPerRequest {
		if unit, ok := model.TimeframeDuration(timeframe); ok && !start.IsZero() && !end.IsZero() {
			count = int(end.Sub(start) / unit)
		}
		if count <= 0 || count > MaxCandlesPerRequest {
			count = MaxCandlesPerRequest
		}
	}

	params := url.Values{
		"market": {symbol},
		"count":  {strconv.Itoa(count)},
	}
	if !end.IsZero() {
		params.Set("to", end.UTC().Format("2006-01-02T15:04:05")+"Z")
	}

	var data []candleData
	if err := c.getJSON(ctx, "candles", path, params, priority, &data); err != nil {
		return nil, err
	}

	// The venue returns newest-first; callers expect ascending time order.
	candles := make([]model.Candle, 0, len(data))
	for i := len(data) - 1; i >= 0; i-- {
		candle, err := data[i].toModel(timeframe)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// getJSON performs one GET with retries and decodes the body into out.
func (c *RestClient) getJSON(ctx context.Context, operation, path string, params url.Values, priority model.Priority, out interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid URL for %s: %w", operation, err)
	}
	u.RawQuery = params.Encode()

	symbol := params.Get("market") + params.Get("markets")
	logger.LogRemoteRequest(ctx, operation, symbol, priority.String())

	var body []byte

	retryErr := retry.Do(
		func() error {
			reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
			defer cancel()

			b, err := c.doRequest(reqCtx, operation, symbol, u.String(), priority)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Attempts(c.maxRetries),
		retry.Delay(BaseBackoff),
		retry.MaxDelay(MaxBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetryableError),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.LogRemoteError(ctx, operation, symbol, err, int(n+1), int(c.maxRetries))
		}),
	)
	if retryErr != nil {
		metrics.RecordRemoteError(operation, "request_failed")
		return fmt.Errorf("%s request failed after retries: %w", operation, retryErr)
	}

	if err := json.Unmarshal(body, out); err != nil {
		metrics.RecordRemoteError(operation, "decode_failed")
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// doRequest executes one HTTP attempt and returns the raw body.
func (c *RestClient) doRequest(ctx context.Context, operation, symbol, rawURL string, priority model.Priority) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "market-data-service/1.0")
	req.Header.Set(priorityHeader, priority.String())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	metrics.RecordRemoteRequest(operation, resp.StatusCode, time.Since(start))
	logger.LogRemoteResponse(ctx, operation, symbol, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("HTTP %d from %s", resp.StatusCode, operation)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %v", errRetryableStatus, err)
		}
		return nil, err
	}

	return io.ReadAll(resp.Body)
}

// isRetryableError allows retries on network failures and retryable statuses
// (429 and 5xx); client errors fail immediately.
func isRetryableError(err error) bool {
	if errors.Is(err, errRetryableStatus) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset")
}
