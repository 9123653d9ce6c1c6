package upbit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-data-service/internal/logger"
)

func TestRestClient_GetTickers(t *testing.T) {
	var gotPriority string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ticker", r.URL.Path)
		assert.Equal(t, "KRW-BTC,KRW-ETH", r.URL.Query().Get("markets"))
		gotPriority = r.Header.Get("X-Request-Priority")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"market":"KRW-BTC","trade_price":50000000,"signed_change_rate":0.01,"high_price":51000000,"low_price":49000000,"acc_trade_volume_24h":1234.5,"timestamp":1704067200000},
			{"market":"KRW-ETH","trade_price":3000000,"timestamp":1704067200000}
		]`))
	}))
	defer srv.Close()

	c := NewRestClient(srv.URL, time.Second, 1)
	tickers, err := c.GetTickers(context.Background(), []string{"KRW-BTC", "KRW-ETH"}, 0)

	require.NoError(t, err)
	require.Len(t, tickers, 2)
	assert.Equal(t, "KRW-BTC", tickers[0].Symbol)
	assert.Equal(t, 50000000.0, tickers[0].TradePrice)
	assert.Equal(t, 0.01, tickers[0].ChangeRate)
	assert.Equal(t, 1234.5, tickers[0].AccTradeVolume24h)
	assert.Equal(t, "critical", gotPriority)
}

func TestRestClient_GetTickerEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewRestClient(srv.URL, time.Second, 1)
	_, err := c.GetTicker(context.Background(), "KRW-BTC", 0)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no ticker")
}

func TestRestClient_GetOrderbook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orderbook", r.URL.Path)
		w.Write([]byte(`[{
			"market":"KRW-BTC","timestamp":1704067200000,
			"total_ask_size":10.5,"total_bid_size":12.5,
			"orderbook_units":[
				{"ask_price":50000001,"bid_price":49999999,"ask_size":1,"bid_size":2}
			]
		}]`))
	}))
	defer srv.Close()

	c := NewRestClient(srv.URL, time.Second, 1)
	ob, err := c.GetOrderbook(context.Background(), "KRW-BTC", 0)

	require.NoError(t, err)
	assert.Equal(t, "KRW-BTC", ob.Symbol)
	require.Len(t, ob.Units, 1)
	assert.Equal(t, 50000001.0, ob.Units[0].AskPrice)
	assert.Equal(t, 10.5, ob.TotalAsk)
}

func TestRestClient_GetTrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/trades/ticks", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("count"))
		w.Write([]byte(`[
			{"market":"KRW-BTC","trade_price":50000000,"trade_volume":0.1,"ask_bid":"ASK","timestamp":1704067200000},
			{"market":"KRW-BTC","trade_price":49999000,"trade_volume":0.2,"ask_bid":"BID","timestamp":1704067100000}
		]`))
	}))
	defer srv.Close()

	c := NewRestClient(srv.URL, time.Second, 1)
	trades, err := c.GetTrades(context.Background(), "KRW-BTC", 50, 0)

	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "ask", trades[0].Side)
	assert.Equal(t, "bid", trades[1].Side)
}

func TestRestClient_GetCandlesAscendingOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/candles/minutes/60", r.URL.Path)
		// The venue returns newest-first.
		w.Write([]byte(`[
			{"market":"KRW-BTC","candle_date_time_utc":"2024-01-01T02:00:00","opening_price":3,"trade_price":3},
			{"market":"KRW-BTC","candle_date_time_utc":"2024-01-01T01:00:00","opening_price":2,"trade_price":2},
			{"market":"KRW-BTC","candle_date_time_utc":"2024-01-01T00:00:00","opening_price":1,"trade_price":1}
		]`))
	}))
	defer srv.Close()

	c := NewRestClient(srv.URL, time.Second, 1)
	candles, err := c.GetCandles(context.Background(), "KRW-BTC", "1h", 3, time.Time{}, time.Time{}, 0)

	require.NoError(t, err)
	require.Len(t, candles, 3)
	for i := 1; i < len(candles); i++ {
		assert.True(t, candles[i].Timestamp.After(candles[i-1].Timestamp),
			"candles must come back oldest-first")
	}
	assert.Equal(t, "1h", candles[0].Timeframe)
}

func TestRestClient_GetCandlesUnsupportedTimeframe(t *testing.T) {
	c := NewRestClient("http://localhost:1", time.Second, 1)

	_, err := c.GetCandles(context.Background(), "KRW-BTC", "2h", 10, time.Time{}, time.Time{}, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported timeframe")
}

func TestRestClient_RetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"market":"KRW-BTC","trade_price":1,"timestamp":1704067200000}]`))
	}))
	defer srv.Close()

	c := NewRestClient(srv.URL, time.Second, 3)
	tickers, err := c.GetTickers(context.Background(), []string{"KRW-BTC"}, 0)

	require.NoError(t, err)
	assert.Len(t, tickers, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRestClient_NoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewRestClient(srv.URL, time.Second, 3)
	_, err := c.GetTickers(context.Background(), []string{"KRW-BTC"}, 0)

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx responses must not be retried")
}

func TestRestClient_ExhaustedRetriesFail(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewRestClient(srv.URL, time.Second, 2)
	_, err := c.GetTickers(context.Background(), []string{"KRW-BTC"}, 0)

	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRestClient_LogsRequestAndResponse(t *testing.T) {
	hook := logtest.NewLocal(logger.GetLogger())
	defer hook.Reset()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"market":"KRW-BTC","trade_price":1,"timestamp":1704067200000}]`))
	}))
	defer srv.Close()

	c := NewRestClient(srv.URL, time.Second, 1)
	_, err := c.GetTickers(context.Background(), []string{"KRW-BTC"}, 0)
	require.NoError(t, err)

	events := map[string]bool{}
	for _, e := range hook.AllEntries() {
		if ev, ok := e.Data["event"].(string); ok {
			events[ev] = true
		}
	}
	assert.True(t, events["remote_request"], "outgoing calls must be logged")
	assert.True(t, events["remote_response"], "upstream responses must be logged")
}

func TestRestClient_Defaults(t *testing.T) {
	c := NewRestClient("", 0, 0)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, uint(3), c.maxRetries)
}
