package splitter

import (
	"time"

	"market-data-service/internal/logger"
	"market-data-service/internal/metrics"
	"market-data-service/internal/model"
)

// Split strategies.
const (
	StrategyCount = "count"
	StrategyTime  = "time"
)

// maxSplits is a hard safety cap against runaway time ranges.
const maxSplits = 1000

// estimatedCallSeconds is the assumed cost of one remote call, used only by
// EstimatePerformance.
const estimatedCallSeconds = 0.5

// SplitRequest is one venue-legal sub-unit of an oversized historical query.
// Immutable once produced; consumed exactly once by the orchestrator.
type SplitRequest struct {
	OriginalID  string
	SplitIndex  int
	TotalSplits int
	Symbol      string
	Timeframe   string
	Count       int
	StartTime   time.Time
	EndTime     time.Time
	Strategy    string
}

// Splitter decomposes historical-data requests so that every remote call
// stays within the venue's per-call limit.
type Splitter struct {
	maxPerRequest  int
	maxParallelism int
}

// New creates a splitter. maxPerRequest defaults to 200 (the venue's candle
// limit), maxParallelism to 5.
func New(maxPerRequest, maxParallelism int) *Splitter {
	if maxPerRequest <= 0 {
		maxPerRequest = 200
	}
	if maxParallelism <= 0 {
		maxParallelism = 5
	}
	return &Splitter{
		maxPerRequest:  maxPerRequest,
		maxParallelism: maxParallelism,
	}
}

// MaxPerRequest returns the venue's per-call limit.
func (s *Splitter) MaxPerRequest() int {
	return s.maxPerRequest
}

// ShouldSplit reports whether a request exceeds the venue's per-call limit,
// either by explicit count or by the number of timeframe units its time range
// implies. An unknown timeframe never forces a split.
func (s *Splitter) ShouldSplit(symbol, timeframe string, count int, start, end time.Time) bool {
	if count > s.maxPerRequest {
		return true
	}

	if !start.IsZero() && !end.IsZero() && end.After(start) {
		unit, ok := model.TimeframeDuration(timeframe)
		if !ok {
			return false
		}
		units := int(end.Sub(start) / unit)
		return units > s.maxPerRequest
	}

	return false
}

// Split decomposes one logical request into an ordered sequence of venue-legal
// sub-requests. When no split is needed the original request is returned as a
// single element, unchanged.
func (s *Splitter) Split(requestID, symbol, timeframe string, count int, start, end time.Time) []SplitRequest {
	if !s.ShouldSplit(symbol, timeframe, count, start, end) {
		return s.single(requestID, symbol, timeframe, count, start, end)
	}

	if count > s.maxPerRequest {
		return s.splitByCount(requestID, symbol, timeframe, count, start, end)
	}

	unit, ok := model.TimeframeDuration(timeframe)
	if !ok {
		// Fail open: an unknown timeframe passes through unchanged.
		logger.GetLogger().WithFields(map[string]interface{}{
			"symbol":    symbol,
			"timeframe": timeframe,
		}).Warn("Unknown timeframe, request passed through unsplit")
		return s.single(requestID, symbol, timeframe, count, start, end)
	}

	return s.splitByTime(requestID, symbol, timeframe, start, end, unit)
}

// single wraps the original request as the only element of a decomposition.
func (s *Splitter) single(requestID, symbol, timeframe string, count int, start, end time.Time) []SplitRequest {
	return []SplitRequest{{
		OriginalID:  requestID,
		SplitIndex:  0,
		TotalSplits: 1,
		Symbol:      symbol,
		Timeframe:   timeframe,
		Count:       count,
		StartTime:   start,
		EndTime:     end,
		Strategy:    StrategyCount,
	}}
}

// splitByCount partitions count into ceil(count/max) chunks of max, the last
// chunk holding the remainder. Each chunk preserves the original time bounds.
func (s *Splitter) splitByCount(requestID, symbol, timeframe string, count int, start, end time.Time) []SplitRequest {
	total := (count + s.maxPerRequest - 1) / s.maxPerRequest
	splits := make([]SplitRequest, 0, total)

	remaining := count
	for i := 0; i < total; i++ {
		chunk := s.maxPerRequest
		if remaining < chunk {
			chunk = remaining
		}
		splits = append(splits, SplitRequest{
			OriginalID:  requestID,
			SplitIndex:  i,
			TotalSplits: total,
			Symbol:      symbol,
			Timeframe:   timeframe,
			Count:       chunk,
			StartTime:   start,
			EndTime:     end,
			Strategy:    StrategyCount,
		})
		remaining -= chunk
	}

	metrics.RecordSplit(StrategyCount, total)
	return splits
}

// splitByTime partitions [start,end) into contiguous non-overlapping windows
// each spanning at most maxPerRequest units. Collection stops at the safety
// cap; whatever was collected is returned.
func (s *Splitter) splitByTime(requestID, symbol, timeframe string, start, end time.Time, unit time.Duration) []SplitRequest {
	span := unit * time.Duration(s.maxPerRequest)
	var splits []SplitRequest

	for cur := start; cur.Before(end); cur = cur.Add(span) {
		if len(splits) >= maxSplits {
			logger.GetLogger().WithFields(map[string]interface{}{
				"symbol":    symbol,
				"timeframe": timeframe,
				"splits":    len(splits),
			}).Warn("Split safety cap reached, range truncated")
			break
		}

		windowEnd := cur.Add(span)
		if windowEnd.After(end) {
			windowEnd = end
		}

		splits = append(splits, SplitRequest{
			OriginalID: requestID,
			SplitIndex: len(splits),
			Symbol:     symbol,
			Timeframe:  timeframe,
			StartTime:  cur,
			EndTime:    windowEnd,
			Strategy:   StrategyTime,
		})
	}

	for i := range splits {
		splits[i].TotalSplits = len(splits)
	}

	metrics.RecordSplit(StrategyTime, len(splits))
	return splits
}

// EstimatePerformance models the expected wall time and call count of
// executing the splits with bounded parallelism.
func (s *Splitter) EstimatePerformance(splits []SplitRequest) (time.Duration, int) {
	calls := len(splits)
	if calls == 0 {
		return 0, 0
	}

	waves := (calls + s.maxParallelism - 1) / s.maxParallelism
	expected := time.Duration(float64(waves) * estimatedCallSeconds * float64(time.Second))
	return expected, calls
}
