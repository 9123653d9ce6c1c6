package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-data-service/internal/cache"
	"market-data-service/internal/model"
)

func newTestFacade() *cache.RealtimeCache {
	return cache.NewRealtimeCache(cache.Config{
		TickerTTL:    10 * time.Second,
		OrderbookTTL: 5 * time.Second,
		TradesTTL:    30 * time.Second,
		OverviewTTL:  60 * time.Second,
		MaxSize:      100,
	})
}

func TestCoordinator_HitRateEWMA(t *testing.T) {
	c := New(newTestFacade(), nil, Config{})

	c.RecordAccess(cache.TypeTicker, "KRW-BTC", true)
	p, ok := c.Pattern(cache.TypeTicker, "KRW-BTC")
	require.True(t, ok)
	assert.InDelta(t, 0.1, p.CacheHitRate, 1e-9)

	c.RecordAccess(cache.TypeTicker, "KRW-BTC", false)
	p, _ = c.Pattern(cache.TypeTicker, "KRW-BTC")
	assert.InDelta(t, 0.09, p.CacheHitRate, 1e-9)

	c.RecordAccess(cache.TypeTicker, "KRW-BTC", true)
	p, _ = c.Pattern(cache.TypeTicker, "KRW-BTC")
	assert.InDelta(t, 0.181, p.CacheHitRate, 1e-9)
}

func TestCoordinator_PatternsAreIndependentPerCacheType(t *testing.T) {
	c := New(newTestFacade(), nil, Config{})

	c.RecordAccess(cache.TypeTicker, "KRW-BTC", true)
	c.RecordAccess(cache.TypeOrderbook, "KRW-BTC", false)

	ticker, ok := c.Pattern(cache.TypeTicker, "KRW-BTC")
	require.True(t, ok)
	orderbook, ok := c.Pattern(cache.TypeOrderbook, "KRW-BTC")
	require.True(t, ok)

	assert.Equal(t, uint64(1), ticker.AccessCount)
	assert.Equal(t, uint64(1), orderbook.AccessCount)
	assert.Greater(t, ticker.CacheHitRate, orderbook.CacheHitRate)
}

func TestCoordinator_OptimalTTLNeedsThreeIntervals(t *testing.T) {
	facade := newTestFacade()
	c := New(facade, nil, Config{})
	base := facade.DefaultTTL(cache.TypeTicker)

	// No pattern at all: base TTL.
	assert.Equal(t, base, c.OptimalTTL(cache.TypeTicker, "KRW-BTC"))

	// Three accesses produce only two intervals: still base TTL.
	for i := 0; i < 3; i++ {
		c.RecordAccess(cache.TypeTicker, "KRW-BTC", true)
		time.Sleep(2 * time.Millisecond)
	}
	assert.Equal(t, base, c.OptimalTTL(cache.TypeTicker, "KRW-BTC"))
}

func TestCoordinator_OptimalTTLExtendsForHotSymbols(t *testing.T) {
	facade := newTestFacade()
	c := New(facade, nil, Config{})
	base := facade.DefaultTTL(cache.TypeTicker)

	// Rapid accesses with hits: the frequency factor saturates at 3.0 and
	// the hit-rate factor climbs, so the TTL should exceed the base.
	for i := 0; i < 20; i++ {
		c.RecordAccess(cache.TypeTicker, "KRW-BTC", true)
		time.Sleep(time.Millisecond)
	}

	ttl := c.OptimalTTL(cache.TypeTicker, "KRW-BTC")
	assert.Greater(t, ttl, base)
	assert.LessOrEqual(t, ttl, 5*base, "TTL may never exceed 5x the base")
}

func TestCoordinator_OptimalTTLClampedWithinBounds(t *testing.T) {
	facade := newTestFacade()
	c := New(facade, nil, Config{})
	base := facade.DefaultTTL(cache.TypeTicker)

	// All misses: the hit-rate factor floors at 0.3, frequency caps at 3.0,
	// so the result stays inside [0.1x, 5x] of the base.
	for i := 0; i < 10; i++ {
		c.RecordAccess(cache.TypeTicker, "KRW-BTC", false)
		time.Sleep(time.Millisecond)
	}

	ttl := c.OptimalTTL(cache.TypeTicker, "KRW-BTC")
	assert.GreaterOrEqual(t, ttl, time.Duration(float64(base)*0.1))
	assert.LessOrEqual(t, ttl, 5*base)
}

func TestCoordinator_PopularSymbols(t *testing.T) {
	c := New(newTestFacade(), nil, Config{PopularityThreshold: 3})

	for i := 0; i < 2; i++ {
		c.RecordAccess(cache.TypeTicker, "KRW-BTC", true)
	}
	assert.Empty(t, c.PopularSymbols())

	c.RecordAccess(cache.TypeTicker, "KRW-BTC", true)
	assert.Equal(t, []string{"KRW-BTC"}, c.PopularSymbols())

	// Crossing the threshold again must not duplicate the symbol.
	c.RecordAccess(cache.TypeTicker, "KRW-BTC", true)
	assert.Len(t, c.PopularSymbols(), 1)
}

func TestCoordinator_IntervalWindowIsBounded(t *testing.T) {
	c := New(newTestFacade(), nil, Config{})

	for i := 0; i < intervalWindow+20; i++ {
		c.RecordAccess(cache.TypeTicker, "KRW-BTC", true)
	}

	p, ok := c.Pattern(cache.TypeTicker, "KRW-BTC")
	require.True(t, ok)
	assert.Equal(t, uint64(intervalWindow+20), p.AccessCount)
	assert.LessOrEqual(t, len(p.intervals), intervalWindow)
}

type stubFetcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *stubFetcher) GetTicker(ctx context.Context, symbol string, priority model.Priority) (model.Ticker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, symbol)
	if s.err != nil {
		return model.Ticker{}, s.err
	}
	return model.Ticker{Symbol: symbol, TradePrice: 100}, nil
}

func TestCoordinator_PreloadPopularSymbols(t *testing.T) {
	facade := newTestFacade()
	fetcher := &stubFetcher{}
	c := New(facade, fetcher, Config{PopularityThreshold: 1})

	c.RecordAccess(cache.TypeTicker, "KRW-BTC", false)
	c.RecordAccess(cache.TypeTicker, "KRW-ETH", false)

	// One symbol is already cached and must be skipped.
	facade.SetTicker("KRW-ETH", model.Ticker{Symbol: "KRW-ETH"}, time.Minute)

	c.PreloadPopularSymbols(context.Background())

	assert.Equal(t, []string{"KRW-BTC"}, fetcher.calls)
	_, ok := facade.GetTicker("KRW-BTC")
	assert.True(t, ok, "preloaded ticker should be cached")
}

func TestCoordinator_PreloadToleratesFetchErrors(t *testing.T) {
	facade := newTestFacade()
	fetcher := &stubFetcher{err: errors.New("remote down")}
	c := New(facade, fetcher, Config{PopularityThreshold: 1})

	c.RecordAccess(cache.TypeTicker, "KRW-BTC", false)

	// Must not panic and must not cache anything.
	c.PreloadPopularSymbols(context.Background())
	_, ok := facade.GetTicker("KRW-BTC")
	assert.False(t, ok)
}

func TestCoordinator_OptimizeMemorySweepsExpired(t *testing.T) {
	facade := newTestFacade()
	c := New(facade, nil, Config{MemoryThreshold: 512}) // one entry over budget

	facade.SetTicker("KRW-BTC", model.Ticker{}, 5*time.Millisecond)
	facade.SetTicker("KRW-ETH", model.Ticker{}, time.Minute)
	time.Sleep(20 * time.Millisecond)

	c.OptimizeMemory(context.Background())

	_, ok := facade.GetTicker("KRW-ETH")
	assert.True(t, ok, "unexpired entries survive the sweep")
	assert.Equal(t, int64(512), facade.MemoryUsageEstimate())
}

func TestCoordinator_RunCycleWithoutRemote(t *testing.T) {
	c := New(newTestFacade(), nil, Config{})
	// Smoke: a full maintenance pass with no remote and empty caches.
	c.RunCycle(context.Background())
}
