package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-data-service/internal/model"
)

func testConfig() Config {
	return Config{
		TickerTTL:    time.Minute,
		OrderbookTTL: time.Minute,
		TradesTTL:    time.Minute,
		OverviewTTL:  time.Minute,
		MaxSize:      100,
	}
}

func TestRealtimeCache_TypedRoundTrips(t *testing.T) {
	rc := NewRealtimeCache(testConfig())

	ticker := model.Ticker{Symbol: "KRW-BTC", TradePrice: 50000000}
	rc.SetTicker("KRW-BTC", ticker, 0)
	got, ok := rc.GetTicker("KRW-BTC")
	require.True(t, ok)
	assert.Equal(t, ticker, got)

	ob := model.Orderbook{
		Symbol: "KRW-BTC",
		Units:  []model.OrderbookUnit{{AskPrice: 50000001, BidPrice: 49999999}},
	}
	rc.SetOrderbook("KRW-BTC", ob, 0)
	gotOB, ok := rc.GetOrderbook("KRW-BTC")
	require.True(t, ok)
	assert.Equal(t, ob, gotOB)

	trades := []model.Trade{{Symbol: "KRW-BTC", Price: 50000000, Side: "bid"}}
	rc.SetTrades("KRW-BTC", trades, 0)
	gotTrades, ok := rc.GetTrades("KRW-BTC")
	require.True(t, ok)
	assert.Equal(t, trades, gotTrades)

	ov := model.MarketOverview{Tickers: []model.Ticker{ticker}}
	rc.SetOverview("all", ov, 0)
	gotOV, ok := rc.GetOverview("all")
	require.True(t, ok)
	assert.Equal(t, ov, gotOV)
}

func TestRealtimeCache_TypesAreIsolated(t *testing.T) {
	rc := NewRealtimeCache(testConfig())

	rc.SetTicker("KRW-BTC", model.Ticker{Symbol: "KRW-BTC"}, 0)

	// The same key in a different typed cache is independent.
	_, ok := rc.GetOrderbook("KRW-BTC")
	assert.False(t, ok)
	_, ok = rc.GetTrades("KRW-BTC")
	assert.False(t, ok)
}

func TestRealtimeCache_BatchTickers(t *testing.T) {
	rc := NewRealtimeCache(testConfig())

	rc.SetTickers(map[string]model.Ticker{
		"KRW-BTC": {Symbol: "KRW-BTC"},
		"KRW-ETH": {Symbol: "KRW-ETH"},
	}, time.Minute)

	got := rc.GetTickers([]string{"KRW-BTC", "KRW-ETH", "KRW-XRP"})

	assert.Len(t, got, 2)
	assert.Contains(t, got, "KRW-BTC")
	assert.Contains(t, got, "KRW-ETH")
	assert.NotContains(t, got, "KRW-XRP", "batch lookups return only the fresh subset")
}

func TestRealtimeCache_InvalidateSymbol(t *testing.T) {
	rc := NewRealtimeCache(testConfig())

	rc.SetTicker("KRW-BTC", model.Ticker{Symbol: "KRW-BTC"}, 0)
	rc.SetOrderbook("KRW-BTC", model.Orderbook{Symbol: "KRW-BTC"}, 0)
	rc.SetTrades("KRW-BTC", []model.Trade{{Symbol: "KRW-BTC"}}, 0)
	rc.SetTicker("KRW-ETH", model.Ticker{Symbol: "KRW-ETH"}, 0)

	rc.InvalidateSymbol("KRW-BTC")

	_, ok := rc.GetTicker("KRW-BTC")
	assert.False(t, ok)
	_, ok = rc.GetOrderbook("KRW-BTC")
	assert.False(t, ok)
	_, ok = rc.GetTrades("KRW-BTC")
	assert.False(t, ok)

	_, ok = rc.GetTicker("KRW-ETH")
	assert.True(t, ok, "other symbols are untouched")
}

func TestRealtimeCache_MemoryUsageEstimate(t *testing.T) {
	rc := NewRealtimeCache(testConfig())
	assert.Equal(t, int64(0), rc.MemoryUsageEstimate())

	rc.SetTicker("KRW-BTC", model.Ticker{}, 0)
	rc.SetOrderbook("KRW-BTC", model.Orderbook{}, 0)
	rc.SetTrades("KRW-BTC", nil, 0)

	// The estimate is linear in the entry count.
	assert.Equal(t, int64(3*512), rc.MemoryUsageEstimate())
}

func TestRealtimeCache_DefaultTTLPerType(t *testing.T) {
	cfg := Config{
		TickerTTL:    1 * time.Second,
		OrderbookTTL: 5 * time.Second,
		TradesTTL:    30 * time.Second,
		OverviewTTL:  60 * time.Second,
		MaxSize:      10,
	}
	rc := NewRealtimeCache(cfg)

	assert.Equal(t, cfg.TickerTTL, rc.DefaultTTL(TypeTicker))
	assert.Equal(t, cfg.OrderbookTTL, rc.DefaultTTL(TypeOrderbook))
	assert.Equal(t, cfg.TradesTTL, rc.DefaultTTL(TypeTrades))
	assert.Equal(t, cfg.OverviewTTL, rc.DefaultTTL(TypeOverview))
	assert.Equal(t, cfg.TickerTTL, rc.DefaultTTL("unknown"))
}

func TestRealtimeCache_StatsSnapshot(t *testing.T) {
	rc := NewRealtimeCache(testConfig())

	rc.SetTicker("KRW-BTC", model.Ticker{}, 0)
	rc.GetTicker("KRW-BTC")
	rc.GetTicker("KRW-ETH")

	stats := rc.StatsSnapshot()
	require.Contains(t, stats, TypeTicker)
	assert.Equal(t, uint64(1), stats[TypeTicker].HitCount)
	assert.Equal(t, uint64(1), stats[TypeTicker].MissCount)
	assert.Equal(t, uint64(0), stats[TypeOrderbook].HitCount)
}

func TestRealtimeCache_CleanupExpired(t *testing.T) {
	rc := NewRealtimeCache(testConfig())

	rc.SetTicker("KRW-BTC", model.Ticker{}, 10*time.Millisecond)
	rc.SetOrderbook("KRW-BTC", model.Orderbook{}, 10*time.Millisecond)
	rc.SetTrades("KRW-BTC", nil, time.Minute)

	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 2, rc.CleanupExpired())
}
