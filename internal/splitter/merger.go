package splitter

import (
	"sort"

	"market-data-service/internal/logger"
	"market-data-service/internal/model"
)

// SplitResult pairs one executed sub-request with its outcome.
type SplitResult struct {
	Request SplitRequest
	Candles []model.Candle
	Err     error
}

// MergeCandles recomposes the results of a decomposed fetch into the single
// ordered list an unsplit call would have returned. The policy is fail-fast:
// if any sub-request failed, no partial data is returned.
func MergeCandles(results []SplitResult) ([]model.Candle, error) {
	if len(results) == 0 {
		return nil, nil
	}

	sorted := append([]SplitResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Request.SplitIndex < sorted[j].Request.SplitIndex
	})

	for _, r := range sorted {
		if r.Err != nil {
			return nil, &model.SplitError{
				SplitIndex:  r.Request.SplitIndex,
				TotalSplits: r.Request.TotalSplits,
				Cause:       r.Err,
			}
		}
	}

	total := 0
	for _, r := range sorted {
		total += len(r.Candles)
	}

	merged := make([]model.Candle, 0, total)
	for _, r := range sorted {
		merged = append(merged, r.Candles...)
	}

	if gaps := detectGaps(sorted); gaps > 0 {
		logger.GetLogger().WithFields(map[string]interface{}{
			"original_id": sorted[0].Request.OriginalID,
			"gaps":        gaps,
		}).Warn("Merged candle chunks are not contiguous")
	}

	return merged, nil
}

// detectGaps counts inter-chunk discontinuities for time-based splits: the
// first candle of a chunk should start within one timeframe unit of the last
// candle of the previous chunk.
func detectGaps(sorted []SplitResult) int {
	gaps := 0
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.Request.Strategy != StrategyTime {
			continue
		}
		if len(prev.Candles) == 0 || len(cur.Candles) == 0 {
			continue
		}

		unit, ok := model.TimeframeDuration(cur.Request.Timeframe)
		if !ok {
			continue
		}

		last := prev.Candles[len(prev.Candles)-1].Timestamp
		first := cur.Candles[0].Timestamp
		if first.Sub(last) > unit {
			gaps++
		}
	}
	return gaps
}
