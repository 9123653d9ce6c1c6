package coordinator

import (
	"context"
	"sync"
	"time"

	"market-data-service/internal/cache"
	"market-data-service/internal/logger"
	"market-data-service/internal/metrics"
	"market-data-service/internal/model"
)

const (
	// intervalWindow bounds the per-symbol inter-access interval history.
	intervalWindow = 50
	// minIntervalSamples is how many intervals must be observed before the
	// adaptive TTL deviates from the base TTL.
	minIntervalSamples = 3

	maxFrequencyFactor = 3.0
	minHitRateFactor   = 0.3
	minTTLFactor       = 0.1
	maxTTLFactor       = 5.0

	hitRateDecay = 0.9
)

// TickerFetcher is the slice of the remote collaborator the coordinator needs
// for best-effort preloading.
type TickerFetcher interface {
	GetTicker(ctx context.Context, symbol string, priority model.Priority) (model.Ticker, error)
}

// SymbolAccessPattern tracks how one symbol is accessed within one cache-type
// context. Created on first access, updated on every subsequent one, never
// deleted; the interval ring buffer bounds its memory.
type SymbolAccessPattern struct {
	Symbol          string
	AccessCount     uint64
	LastAccess      time.Time
	intervals       []float64 // ring buffer, seconds
	intervalPos     int
	intervalFull    bool
	AverageInterval float64 // seconds
	CacheHitRate    float64 // exponentially weighted
}

// observe records one access and the interval since the previous one.
func (p *SymbolAccessPattern) observe(now time.Time, hit bool) {
	if !p.LastAccess.IsZero() {
		interval := now.Sub(p.LastAccess).Seconds()
		if len(p.intervals) < intervalWindow {
			p.intervals = append(p.intervals, interval)
		} else {
			p.intervals[p.intervalPos] = interval
			p.intervalPos = (p.intervalPos + 1) % intervalWindow
			p.intervalFull = true
		}

		var sum float64
		for _, v := range p.intervals {
			sum += v
		}
		p.AverageInterval = sum / float64(len(p.intervals))
	}

	p.AccessCount++
	p.LastAccess = now

	if hit {
		p.CacheHitRate = p.CacheHitRate*hitRateDecay + (1 - hitRateDecay)
	} else {
		p.CacheHitRate = p.CacheHitRate * hitRateDecay
	}
}

func (p *SymbolAccessPattern) sampleCount() int {
	return len(p.intervals)
}

// Config holds coordinator tuning knobs.
type Config struct {
	PopularityThreshold int
	MemoryThreshold     int64
}

// Coordinator decides how long cached data should live per (cache-type,
// symbol) and drives periodic memory reclamation and preloading.
type Coordinator struct {
	mu       sync.Mutex
	patterns map[string]*SymbolAccessPattern // keyed cacheType:symbol
	popular  map[string]bool                 // keyed symbol

	facade *cache.RealtimeCache
	remote TickerFetcher
	cfg    Config
}

// New creates a coordinator bound to the realtime facade. remote may be nil;
// preloading is then a no-op.
func New(facade *cache.RealtimeCache, remote TickerFetcher, cfg Config) *Coordinator {
	if cfg.PopularityThreshold <= 0 {
		cfg.PopularityThreshold = 10
	}
	return &Coordinator{
		patterns: make(map[string]*SymbolAccessPattern),
		popular:  make(map[string]bool),
		facade:   facade,
		remote:   remote,
		cfg:      cfg,
	}
}

func patternKey(cacheType, symbol string) string {
	return cacheType + ":" + symbol
}

// RecordAccess updates the symbol's access pattern with one hit or miss.
func (c *Coordinator) RecordAccess(cacheType, symbol string, hit bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	key := patternKey(cacheType, symbol)
	p, ok := c.patterns[key]
	if !ok {
		p = &SymbolAccessPattern{Symbol: symbol}
		c.patterns[key] = p
	}
	p.observe(now, hit)

	if p.AccessCount >= uint64(c.cfg.PopularityThreshold) && !c.popular[symbol] {
		c.popular[symbol] = true
		metrics.PopularSymbols.Set(float64(len(c.popular)))
	}
}

// OptimalTTL computes the adaptive TTL for a (cache-type, symbol) pair.
// With fewer than 3 observed intervals the base TTL is returned unchanged;
// otherwise the base is scaled by access frequency and hit rate and clamped
// to [0.1x, 5x] of the base.
func (c *Coordinator) OptimalTTL(cacheType, symbol string) time.Duration {
	base := c.facade.DefaultTTL(cacheType)

	c.mu.Lock()
	p, ok := c.patterns[patternKey(cacheType, symbol)]
	if !ok || p.sampleCount() < minIntervalSamples || p.AverageInterval <= 0 {
		c.mu.Unlock()
		return base
	}
	avgInterval := p.AverageInterval
	hitRate := p.CacheHitRate
	c.mu.Unlock()

	frequencyFactor := base.Seconds() / avgInterval
	if frequencyFactor > maxFrequencyFactor {
		frequencyFactor = maxFrequencyFactor
	}

	hitRateFactor := hitRate
	if hitRateFactor < minHitRateFactor {
		hitRateFactor = minHitRateFactor
	}

	optimal := base.Seconds() * frequencyFactor * hitRateFactor

	if min := base.Seconds() * minTTLFactor; optimal < min {
		optimal = min
	}
	if max := base.Seconds() * maxTTLFactor; optimal > max {
		optimal = max
	}

	ttl := time.Duration(optimal * float64(time.Second))
	metrics.RecordAdaptiveTTL(cacheType, ttl)
	return ttl
}

// Pattern returns a copy of the access pattern for inspection, if present.
func (c *Coordinator) Pattern(cacheType, symbol string) (SymbolAccessPattern, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.patterns[patternKey(cacheType, symbol)]
	if !ok {
		return SymbolAccessPattern{}, false
	}
	cp := *p
	cp.intervals = append([]float64(nil), p.intervals...)
	return cp, true
}

// PopularSymbols returns the symbols currently flagged popular.
func (c *Coordinator) PopularSymbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	symbols := make([]string, 0, len(c.popular))
	for s := range c.popular {
		symbols = append(symbols, s)
	}
	return symbols
}

// OptimizeMemory sweeps expired entries when the facade's estimate exceeds
// the configured budget. There is no forced LRU purge below the expiry
// threshold; when the sweep is not enough the overrun is only logged.
func (c *Coordinator) OptimizeMemory(ctx context.Context) {
	if c.cfg.MemoryThreshold <= 0 {
		return
	}

	usage := c.facade.MemoryUsageEstimate()
	if usage <= c.cfg.MemoryThreshold {
		return
	}

	removed := c.facade.CleanupExpired()
	after := c.facade.MemoryUsageEstimate()

	logger.LogServiceEvent(ctx, "memory_optimization", "Expired-entry sweep completed", map[string]interface{}{
		"removed_entries": removed,
		"usage_before":    usage,
		"usage_after":     after,
		"threshold":       c.cfg.MemoryThreshold,
	})

	if after > c.cfg.MemoryThreshold {
		logger.GetLogger().WithFields(map[string]interface{}{
			"usage":     after,
			"threshold": c.cfg.MemoryThreshold,
		}).Warn("Cache memory still above threshold after expired-entry sweep")
	}
}

// PreloadPopularSymbols refreshes the ticker of every popular symbol that has
// no cached value, best effort. Failures are logged and skipped.
func (c *Coordinator) PreloadPopularSymbols(ctx context.Context) {
	if c.remote == nil {
		return
	}

	for _, symbol := range c.PopularSymbols() {
		if _, ok := c.facade.GetTicker(symbol); ok {
			continue
		}

		ticker, err := c.remote.GetTicker(ctx, symbol, model.PriorityLow)
		if err != nil {
			logger.GetLogger().WithFields(map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			}).Warn("Preload of popular symbol failed")
			continue
		}

		c.facade.SetTicker(symbol, ticker, c.OptimalTTL(cache.TypeTicker, symbol))
	}
}

// RunCycle performs one background maintenance pass: stats refresh, memory
// optimization, then preloading, in that order.
func (c *Coordinator) RunCycle(ctx context.Context) {
	stats := c.facade.StatsSnapshot()
	for cacheType, s := range stats {
		metrics.UpdateCacheSize(cacheType, s.Size)
	}

	c.OptimizeMemory(ctx)
	c.PreloadPopularSymbols(ctx)
}
