package cache

import (
	"time"

	"market-data-service/internal/metrics"
	"market-data-service/internal/model"
)

// Cache type names shared with the coordinator and the monitor.
const (
	TypeTicker    = "ticker"
	TypeOrderbook = "orderbook"
	TypeTrades    = "trades"
	TypeOverview  = "overview"
)

// bytesPerEntry is the coarse per-entry cost used by MemoryUsageEstimate.
// The figure feeds policy heuristics only, not accounting.
const bytesPerEntry = 512

// Config carries per-type default TTLs and the shared capacity bound.
type Config struct {
	TickerTTL    time.Duration
	OrderbookTTL time.Duration
	TradesTTL    time.Duration
	OverviewTTL  time.Duration
	MaxSize      int
}

// DefaultConfig mirrors observed data volatility: tickers churn every second,
// whole-market overviews barely move inside a minute.
func DefaultConfig() Config {
	return Config{
		TickerTTL:    1 * time.Second,
		OrderbookTTL: 5 * time.Second,
		TradesTTL:    30 * time.Second,
		OverviewTTL:  60 * time.Second,
		MaxSize:      1000,
	}
}

// RealtimeCache is the typed facade over four TTL/LRU instances. Batch
// variants fan out to single-key operations; keys are independent and no
// atomicity holds across a batch.
type RealtimeCache struct {
	ticker    *TTLCache
	orderbook *TTLCache
	trades    *TTLCache
	overview  *TTLCache
}

// NewRealtimeCache builds the four typed caches.
func NewRealtimeCache(cfg Config) *RealtimeCache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	return &RealtimeCache{
		ticker:    NewTTLCache(TypeTicker, cfg.MaxSize, cfg.TickerTTL),
		orderbook: NewTTLCache(TypeOrderbook, cfg.MaxSize, cfg.OrderbookTTL),
		trades:    NewTTLCache(TypeTrades, cfg.MaxSize, cfg.TradesTTL),
		overview:  NewTTLCache(TypeOverview, cfg.MaxSize, cfg.OverviewTTL),
	}
}

// GetTicker returns the cached ticker for a symbol, if fresh.
func (rc *RealtimeCache) GetTicker(symbol string) (model.Ticker, bool) {
	v, ok := rc.ticker.Get(symbol)
	if !ok {
		return model.Ticker{}, false
	}
	return v.(model.Ticker), true
}

// SetTicker caches a ticker. ttl <= 0 applies the type default.
func (rc *RealtimeCache) SetTicker(symbol string, t model.Ticker, ttl time.Duration) {
	rc.ticker.SetWithTTL(symbol, t, ttl)
}

// GetTickers fans out to per-symbol lookups and returns the fresh subset.
func (rc *RealtimeCache) GetTickers(symbols []string) map[string]model.Ticker {
	result := make(map[string]model.Ticker)
	for _, symbol := range symbols {
		if t, ok := rc.GetTicker(symbol); ok {
			result[symbol] = t
		}
	}
	return result
}

// SetTickers fans out to per-symbol writes with a shared TTL.
func (rc *RealtimeCache) SetTickers(tickers map[string]model.Ticker, ttl time.Duration) {
	for symbol, t := range tickers {
		rc.SetTicker(symbol, t, ttl)
	}
}

// GetOrderbook returns the cached order book for a symbol, if fresh.
func (rc *RealtimeCache) GetOrderbook(symbol string) (model.Orderbook, bool) {
	v, ok := rc.orderbook.Get(symbol)
	if !ok {
		return model.Orderbook{}, false
	}
	return v.(model.Orderbook), true
}

// SetOrderbook caches an order book snapshot. ttl <= 0 applies the default.
func (rc *RealtimeCache) SetOrderbook(symbol string, ob model.Orderbook, ttl time.Duration) {
	rc.orderbook.SetWithTTL(symbol, ob, ttl)
}

// GetTrades returns the cached recent trades for a symbol, if fresh.
func (rc *RealtimeCache) GetTrades(symbol string) ([]model.Trade, bool) {
	v, ok := rc.trades.Get(symbol)
	if !ok {
		return nil, false
	}
	return v.([]model.Trade), true
}

// SetTrades caches recent trades. ttl <= 0 applies the default.
func (rc *RealtimeCache) SetTrades(symbol string, trades []model.Trade, ttl time.Duration) {
	rc.trades.SetWithTTL(symbol, trades, ttl)
}

// GetOverview returns the cached market overview, if fresh.
func (rc *RealtimeCache) GetOverview(key string) (model.MarketOverview, bool) {
	v, ok := rc.overview.Get(key)
	if !ok {
		return model.MarketOverview{}, false
	}
	return v.(model.MarketOverview), true
}

// SetOverview caches a market overview. ttl <= 0 applies the default.
func (rc *RealtimeCache) SetOverview(key string, ov model.MarketOverview, ttl time.Duration) {
	rc.overview.SetWithTTL(key, ov, ttl)
}

// InvalidateSymbol removes the symbol from all four caches.
func (rc *RealtimeCache) InvalidateSymbol(symbol string) {
	rc.ticker.Delete(symbol)
	rc.orderbook.Delete(symbol)
	rc.trades.Delete(symbol)
	rc.overview.Delete(symbol)
}

// CleanupExpired aggregates the four sub-caches' sweeps.
func (rc *RealtimeCache) CleanupExpired() int {
	removed := 0
	removed += rc.ticker.CleanupExpired()
	removed += rc.orderbook.CleanupExpired()
	removed += rc.trades.CleanupExpired()
	removed += rc.overview.CleanupExpired()
	return removed
}

// Clear empties all four caches.
func (rc *RealtimeCache) Clear() {
	rc.ticker.Clear()
	rc.orderbook.Clear()
	rc.trades.Clear()
	rc.overview.Clear()
}

// MemoryUsageEstimate returns a coarse linear estimate of resident cache
// memory: entries times a fixed per-entry cost.
func (rc *RealtimeCache) MemoryUsageEstimate() int64 {
	entries := rc.ticker.Len() + rc.orderbook.Len() + rc.trades.Len() + rc.overview.Len()
	estimate := int64(entries) * bytesPerEntry
	metrics.CacheMemoryEstimate.Set(float64(estimate))
	return estimate
}

// StatsSnapshot returns per-type counter snapshots.
func (rc *RealtimeCache) StatsSnapshot() map[string]Stats {
	return map[string]Stats{
		TypeTicker:    rc.ticker.Stats(),
		TypeOrderbook: rc.orderbook.Stats(),
		TypeTrades:    rc.trades.Stats(),
		TypeOverview:  rc.overview.Stats(),
	}
}

// DefaultTTL returns the base TTL for a cache type, used by the coordinator
// as the anchor for adaptive TTL computation.
func (rc *RealtimeCache) DefaultTTL(cacheType string) time.Duration {
	switch cacheType {
	case TypeTicker:
		return rc.ticker.DefaultTTL()
	case TypeOrderbook:
		return rc.orderbook.DefaultTTL()
	case TypeTrades:
		return rc.trades.DefaultTTL()
	case TypeOverview:
		return rc.overview.DefaultTTL()
	default:
		return rc.ticker.DefaultTTL()
	}
}
