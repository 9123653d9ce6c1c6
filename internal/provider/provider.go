package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"market-data-service/internal/cache"
	"market-data-service/internal/coordinator"
	"market-data-service/internal/logger"
	"market-data-service/internal/metrics"
	"market-data-service/internal/model"
	"market-data-service/internal/monitor"
	"market-data-service/internal/splitter"
	"market-data-service/pkg/utils"
)

// Request kinds, used for metrics and logging labels.
const (
	kindTicker     = "ticker"
	kindTickers    = "tickers"
	kindOrderbook  = "orderbook"
	kindTrades     = "trades"
	kindCandles    = "candles"
	kindContinuous = "continuous_candles"
)

// Trade count bounds accepted by GetTrades.
const (
	defaultTradeCount = 100
	maxTradeCount     = 500
)

// coordinator context for candle access patterns; candles live in the store,
// not the realtime facade, but their access recency still feeds the
// coordinator.
const candleCacheType = "candles"

// overviewKey is the single overview-cache slot used by batch ticker lookups.
const overviewKey = "all"

// Provider is the single entry point for market-data requests. It is built
// once at process start with explicit dependencies; there is no package-level
// shared state.
type Provider struct {
	facade *cache.RealtimeCache
	coord  *coordinator.Coordinator
	split  *splitter.Splitter
	mon    *monitor.Monitor
	remote RemoteClient
	store  CandleStore // may be nil

	maxParallelism int
}

// New wires a provider. store may be nil when no persistent backend is
// configured.
func New(facade *cache.RealtimeCache, coord *coordinator.Coordinator, split *splitter.Splitter, mon *monitor.Monitor, remote RemoteClient, store CandleStore, maxParallelism int) *Provider {
	if maxParallelism <= 0 {
		maxParallelism = 5
	}
	return &Provider{
		facade:         facade,
		coord:          coord,
		split:          split,
		mon:            mon,
		remote:         remote,
		store:          store,
		maxParallelism: maxParallelism,
	}
}

// GetTicker returns the latest ticker for a symbol, cache first.
func (p *Provider) GetTicker(ctx context.Context, symbol string, priority model.Priority) (resp model.DataResponse) {
	start := time.Now()
	defer p.guard(ctx, kindTicker, symbol, start, &resp)

	if symbol == "" {
		return p.validationFailure(ctx, kindTicker, symbol, "symbol is required", start)
	}

	if ticker, ok := p.facade.GetTicker(symbol); ok {
		return p.cacheHit(ctx, kindTicker, cache.TypeTicker, symbol, ticker, 1, priority, start)
	}
	p.recordMiss(ctx, cache.TypeTicker, symbol, start)

	ticker, err := p.remote.GetTicker(ctx, symbol, priority)
	if err != nil {
		return p.remoteFailure(ctx, kindTicker, symbol, &model.RemoteFetchError{Operation: kindTicker, Symbol: symbol, Cause: err}, start)
	}

	ttl := p.coord.OptimalTTL(cache.TypeTicker, symbol)
	p.facade.SetTicker(symbol, ticker, ttl)

	return p.remoteSuccess(ctx, kindTicker, symbol, ticker, 1, priority, start)
}

// GetTickers returns tickers for a set of symbols, serving what the cache
// holds and fetching the remainder in one batch call.
func (p *Provider) GetTickers(ctx context.Context, symbols []string, priority model.Priority) (resp model.DataResponse) {
	start := time.Now()
	defer p.guard(ctx, kindTickers, overviewKey, start, &resp)

	if len(symbols) == 0 {
		return p.validationFailure(ctx, kindTickers, "", "at least one symbol is required", start)
	}
	for _, s := range symbols {
		if s == "" {
			return p.validationFailure(ctx, kindTickers, s, "empty symbol in batch", start)
		}
	}

	cached := p.facade.GetTickers(symbols)

	var missing []string
	for _, s := range symbols {
		if _, ok := cached[s]; !ok {
			missing = append(missing, s)
		}
	}

	if len(missing) == 0 {
		result := orderTickers(symbols, cached)
		for _, s := range symbols {
			p.coord.RecordAccess(cache.TypeTicker, s, true)
		}
		p.mon.RecordHit(model.SourceCache, overviewKey, time.Since(start))
		return p.success(ctx, kindTickers, overviewKey, model.SourceCache, true, result, len(result), priority, start)
	}

	fetched, err := p.remote.GetTickers(ctx, missing, priority)
	if err != nil {
		return p.remoteFailure(ctx, kindTickers, overviewKey, &model.RemoteFetchError{Operation: kindTickers, Symbol: overviewKey, Cause: err}, start)
	}

	for _, t := range fetched {
		ttl := p.coord.OptimalTTL(cache.TypeTicker, t.Symbol)
		p.facade.SetTicker(t.Symbol, t, ttl)
		cached[t.Symbol] = t
	}
	for _, s := range symbols {
		_, hit := cached[s]
		p.coord.RecordAccess(cache.TypeTicker, s, hit)
	}

	result := orderTickers(symbols, cached)
	p.mon.RecordMiss(model.SourceCache, overviewKey, time.Since(start))
	return p.remoteSuccess(ctx, kindTickers, overviewKey, result, len(result), priority, start)
}

// GetOrderbook returns an order book snapshot, cache first.
func (p *Provider) GetOrderbook(ctx context.Context, symbol string, priority model.Priority) (resp model.DataResponse) {
	start := time.Now()
	defer p.guard(ctx, kindOrderbook, symbol, start, &resp)

	if symbol == "" {
		return p.validationFailure(ctx, kindOrderbook, symbol, "symbol is required", start)
	}

	if ob, ok := p.facade.GetOrderbook(symbol); ok {
		return p.cacheHit(ctx, kindOrderbook, cache.TypeOrderbook, symbol, ob, len(ob.Units), priority, start)
	}
	p.recordMiss(ctx, cache.TypeOrderbook, symbol, start)

	ob, err := p.remote.GetOrderbook(ctx, symbol, priority)
	if err != nil {
		return p.remoteFailure(ctx, kindOrderbook, symbol, &model.RemoteFetchError{Operation: kindOrderbook, Symbol: symbol, Cause: err}, start)
	}

	ttl := p.coord.OptimalTTL(cache.TypeOrderbook, symbol)
	p.facade.SetOrderbook(symbol, ob, ttl)

	return p.remoteSuccess(ctx, kindOrderbook, symbol, ob, len(ob.Units), priority, start)
}

// GetTrades returns recent trades. count defaults to 100 and must stay within
// [1,500]; violations never reach the cache or remote layers.
func (p *Provider) GetTrades(ctx context.Context, symbol string, count int, priority model.Priority) (resp model.DataResponse) {
	start := time.Now()
	defer p.guard(ctx, kindTrades, symbol, start, &resp)

	if symbol == "" {
		return p.validationFailure(ctx, kindTrades, symbol, "symbol is required", start)
	}
	if count == 0 {
		count = defaultTradeCount
	}
	if count < 1 || count > maxTradeCount {
		return p.validationFailure(ctx, kindTrades, symbol,
			fmt.Sprintf("count %d outside legal range [1,%d]", count, maxTradeCount), start)
	}

	if trades, ok := p.facade.GetTrades(symbol); ok && len(trades) >= count {
		return p.cacheHit(ctx, kindTrades, cache.TypeTrades, symbol, trades[:count], count, priority, start)
	}
	p.recordMiss(ctx, cache.TypeTrades, symbol, start)

	trades, err := p.remote.GetTrades(ctx, symbol, count, priority)
	if err != nil {
		return p.remoteFailure(ctx, kindTrades, symbol, &model.RemoteFetchError{Operation: kindTrades, Symbol: symbol, Cause: err}, start)
	}

	ttl := p.coord.OptimalTTL(cache.TypeTrades, symbol)
	p.facade.SetTrades(symbol, trades, ttl)

	return p.remoteSuccess(ctx, kindTrades, symbol, trades, len(trades), priority, start)
}

// GetCandles returns historical candles: persistent store first, then the
// remote venue, splitting oversized requests into venue-legal chunks.
func (p *Provider) GetCandles(ctx context.Context, symbol, timeframe string, count int, startTime, endTime time.Time, priority model.Priority) (resp model.DataResponse) {
	start := time.Now()
	defer p.guard(ctx, kindCandles, symbol, start, &resp)

	if symbol == "" {
		return p.validationFailure(ctx, kindCandles, symbol, "symbol is required", start)
	}
	if timeframe == "" {
		return p.validationFailure(ctx, kindCandles, symbol, "timeframe is required", start)
	}
	if count < 0 {
		return p.validationFailure(ctx, kindCandles, symbol, "count must be > 0 when supplied", start)
	}
	if count == 0 && (startTime.IsZero() || endTime.IsZero()) {
		count = p.split.MaxPerRequest()
	}
	if !startTime.IsZero() && !endTime.IsZero() && !endTime.After(startTime) {
		return p.validationFailure(ctx, kindCandles, symbol, "end_time must be after start_time", start)
	}

	// Persistent store lookup. Partial coverage falls through to the venue.
	if p.store != nil {
		stored, err := p.store.GetCandles(ctx, symbol, timeframe, startTime, endTime, count)
		if err != nil {
			logger.GetLogger().WithFields(map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			}).Warn("Candle store lookup failed, falling through to remote")
		} else if storeCovers(stored, timeframe, count, startTime, endTime) {
			p.coord.RecordAccess(candleCacheType, symbol, true)
			p.mon.RecordHit(model.SourceStore, symbol, time.Since(start))
			return p.success(ctx, kindCandles, symbol, model.SourceStore, false, stored, len(stored), priority, start)
		}
		p.mon.RecordMiss(model.SourceStore, symbol, time.Since(start))
	}

	candles, err := p.fetchCandles(ctx, symbol, timeframe, count, startTime, endTime, priority)
	if err != nil {
		if model.IsSplitError(err) {
			return p.failure(ctx, kindCandles, symbol, model.SourceFailed, err, start)
		}
		return p.remoteFailure(ctx, kindCandles, symbol, err, start)
	}

	p.coord.RecordAccess(candleCacheType, symbol, false)

	// Write-back to the store is asynchronous; the caller never waits on it.
	if p.store != nil && len(candles) > 0 {
		go p.persistCandles(symbol, timeframe, candles)
	}

	return p.remoteSuccess(ctx, kindCandles, symbol, candles, len(candles), priority, start)
}

// GetContinuousCandles returns a gap-free candle series over [start,end).
// When includeEmpty is set, windows with no trades are filled with synthetic
// zero-volume candles carrying the previous close.
func (p *Provider) GetContinuousCandles(ctx context.Context, symbol, timeframe string, startTime, endTime time.Time, includeEmpty bool, priority model.Priority) (resp model.DataResponse) {
	start := time.Now()
	defer p.guard(ctx, kindContinuous, symbol, start, &resp)

	if symbol == "" {
		return p.validationFailure(ctx, kindContinuous, symbol, "symbol is required", start)
	}
	unit, ok := model.TimeframeDuration(timeframe)
	if !ok {
		return p.validationFailure(ctx, kindContinuous, symbol, fmt.Sprintf("unknown timeframe %q", timeframe), start)
	}
	if startTime.IsZero() || endTime.IsZero() || !endTime.After(startTime) {
		return p.validationFailure(ctx, kindContinuous, symbol, "a valid [start_time,end_time) range is required", start)
	}

	inner := p.GetCandles(ctx, symbol, timeframe, 0, startTime, endTime, priority)
	if !inner.Success {
		return inner
	}

	candles, _ := inner.Data.([]model.Candle)
	if includeEmpty {
		candles = fillGaps(symbol, timeframe, candles, startTime, endTime, unit)
	}

	inner.Data = candles
	inner.Metadata.RecordsCount = len(candles)
	return inner
}

// Report exposes the monitor's aggregate view for observability endpoints.
func (p *Provider) Report() monitor.Report {
	return p.mon.GenerateReport()
}

// CacheStats exposes the facade's per-type counters.
func (p *Provider) CacheStats() map[string]cache.Stats {
	return p.facade.StatsSnapshot()
}

// fetchCandles decomposes a request when needed and executes the chunks with
// bounded parallelism, then recomposes them fail-fast.
func (p *Provider) fetchCandles(ctx context.Context, symbol, timeframe string, count int, startTime, endTime time.Time, priority model.Priority) ([]model.Candle, error) {
	requestID := uuid.New().String()
	splits := p.split.Split(requestID, symbol, timeframe, count, startTime, endTime)

	if len(splits) == 1 {
		s := splits[0]
		candles, err := p.remote.GetCandles(ctx, s.Symbol, s.Timeframe, s.Count, s.StartTime, s.EndTime, priority)
		if err != nil {
			return nil, &model.RemoteFetchError{Operation: kindCandles, Symbol: symbol, Cause: err}
		}
		return candles, nil
	}

	if expected, calls := p.split.EstimatePerformance(splits); calls > 0 {
		logger.LogServiceEvent(ctx, "request_split", "Historical request decomposed", map[string]interface{}{
			"request_id":      requestID,
			"symbol":          symbol,
			"splits":          calls,
			"expected_ms":     expected.Milliseconds(),
			"max_parallelism": p.maxParallelism,
		})
	}

	results := make([]splitter.SplitResult, len(splits))
	sem := make(chan struct{}, p.maxParallelism)
	var wg sync.WaitGroup

	for i, s := range splits {
		wg.Add(1)
		go func(i int, s splitter.SplitRequest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			candles, err := p.remote.GetCandles(ctx, s.Symbol, s.Timeframe, s.Count, s.StartTime, s.EndTime, priority)
			results[i] = splitter.SplitResult{Request: s, Candles: candles, Err: err}
		}(i, s)
	}
	wg.Wait()

	return splitter.MergeCandles(results)
}

// persistCandles writes fetched candles to the store in the background.
func (p *Provider) persistCandles(symbol, timeframe string, candles []model.Candle) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	inserted, err := p.store.InsertCandles(ctx, symbol, timeframe, candles)
	if err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"symbol":    symbol,
			"timeframe": timeframe,
			"error":     err.Error(),
		}).Warn("Async candle persistence failed")
		return
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"symbol":    symbol,
		"timeframe": timeframe,
		"inserted":  inserted,
	}).Debug("Candles persisted")
}

// guard converts an escaped panic into a failure response so that no
// exception ever crosses the public boundary.
func (p *Provider) guard(ctx context.Context, kind, symbol string, start time.Time, resp *model.DataResponse) {
	if r := recover(); r != nil {
		err := fmt.Errorf("internal error: %v", r)
		logger.LogProviderRequest(ctx, kind, symbol, model.SourceError, false, time.Since(start), err)
		metrics.RecordProviderRequest(kind, model.SourceError, "failure", time.Since(start))
		p.mon.RecordError(model.SourceError, symbol, time.Since(start))
		*resp = model.NewErrorResponse(model.SourceError, err.Error())
	}
}

func (p *Provider) recordMiss(ctx context.Context, cacheType, symbol string, start time.Time) {
	logger.LogCacheOperation(ctx, cacheType, symbol, "get", false, time.Since(start))
	p.coord.RecordAccess(cacheType, symbol, false)
	p.mon.RecordMiss(model.SourceCache, symbol, time.Since(start))
}

// cacheHit finalizes a request served from the realtime facade.
func (p *Provider) cacheHit(ctx context.Context, kind, cacheType, symbol string, data interface{}, records int, priority model.Priority, start time.Time) model.DataResponse {
	logger.LogCacheOperation(ctx, cacheType, symbol, "get", true, time.Since(start))
	p.coord.RecordAccess(cacheType, symbol, true)
	p.mon.RecordHit(model.SourceCache, symbol, time.Since(start))
	return p.success(ctx, kind, symbol, model.SourceCache, true, data, records, priority, start)
}

// remoteSuccess finalizes a request served by the remote collaborator.
func (p *Provider) remoteSuccess(ctx context.Context, kind, symbol string, data interface{}, records int, priority model.Priority, start time.Time) model.DataResponse {
	p.mon.RecordHit(model.SourceRemote, symbol, time.Since(start))
	return p.success(ctx, kind, symbol, model.SourceRemote, false, data, records, priority, start)
}

func (p *Provider) success(ctx context.Context, kind, symbol, source string, cacheHit bool, data interface{}, records int, priority model.Priority, start time.Time) model.DataResponse {
	elapsed := time.Since(start)
	logger.LogProviderRequest(ctx, kind, symbol, source, cacheHit, elapsed, nil)
	metrics.RecordProviderRequest(kind, source, "success", elapsed)

	return model.DataResponse{
		Success: true,
		Data:    data,
		Metadata: model.ResponseMetadata{
			Source:         source,
			ResponseTimeMs: float64(elapsed.Microseconds()) / 1000.0,
			CacheHit:       cacheHit,
			RecordsCount:   records,
			Priority:       priority.String(),
		},
	}
}

func (p *Provider) validationFailure(ctx context.Context, kind, symbol, reason string, start time.Time) model.DataResponse {
	err := &model.ValidationError{Field: kind, Reason: reason}
	logger.LogProviderRequest(ctx, kind, symbol, model.SourceValidation, false, time.Since(start), err)
	metrics.RecordProviderRequest(kind, model.SourceValidation, "failure", time.Since(start))
	return model.NewErrorResponse(model.SourceValidation, err.Error())
}

func (p *Provider) remoteFailure(ctx context.Context, kind, symbol string, err error, start time.Time) model.DataResponse {
	return p.failure(ctx, kind, symbol, model.SourceFailed, err, start)
}

func (p *Provider) failure(ctx context.Context, kind, symbol, source string, err error, start time.Time) model.DataResponse {
	elapsed := time.Since(start)
	logger.LogProviderRequest(ctx, kind, symbol, source, false, elapsed, err)
	metrics.RecordProviderRequest(kind, source, "failure", elapsed)
	p.mon.RecordError(model.SourceRemote, symbol, elapsed)
	return model.NewErrorResponse(source, err.Error())
}

// storeCovers reports whether a store result fully satisfies the request: by
// row count when one was given, by window coverage for a pure time range. A
// partially warmed range must not mask real venue data.
func storeCovers(stored []model.Candle, timeframe string, count int, start, end time.Time) bool {
	if len(stored) == 0 {
		return false
	}
	if count > 0 {
		return len(stored) >= count
	}
	unit, ok := model.TimeframeDuration(timeframe)
	if !ok || start.IsZero() || end.IsZero() {
		return false
	}
	return len(stored) >= utils.WindowsBetween(start, end, unit)
}

// orderTickers returns tickers in the caller's symbol order, skipping any
// symbol the venue did not report.
func orderTickers(symbols []string, bySymbol map[string]model.Ticker) []model.Ticker {
	result := make([]model.Ticker, 0, len(symbols))
	for _, s := range symbols {
		if t, ok := bySymbol[s]; ok {
			result = append(result, t)
		}
	}
	return result
}

// fillGaps inserts synthetic zero-volume candles for every aligned window in
// [start,end) with no real candle. Synthetic candles carry the previous
// observed close as OHLC.
func fillGaps(symbol, timeframe string, candles []model.Candle, start, end time.Time, unit time.Duration) []model.Candle {
	byWindow := make(map[int64]model.Candle, len(candles))
	for _, c := range candles {
		byWindow[utils.AlignToWindow(c.Timestamp, unit).Unix()] = c
	}

	var filled []model.Candle
	var lastClose float64

	for cur := utils.AlignToWindow(start, unit); cur.Before(end); cur = cur.Add(unit) {
		if c, ok := byWindow[cur.Unix()]; ok {
			filled = append(filled, c)
			lastClose = c.Close
			continue
		}
		filled = append(filled, model.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			Open:      lastClose,
			High:      lastClose,
			Low:       lastClose,
			Close:     lastClose,
			Volume:    0,
			Timestamp: cur,
		})
	}
	return filled
}
