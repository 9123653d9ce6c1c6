package splitter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-data-service/internal/model"
)

func candlesAt(start time.Time, unit time.Duration, n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{
			Symbol:    "KRW-BTC",
			Timeframe: "1h",
			Close:     float64(i),
			Timestamp: start.Add(time.Duration(i) * unit),
		}
	}
	return out
}

func TestMergeCandles_OrdersByIndex(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Results arrive out of order, as parallel execution produces them.
	results := []SplitResult{
		{
			Request: SplitRequest{SplitIndex: 2, TotalSplits: 3, Timeframe: "1h", Strategy: StrategyTime},
			Candles: candlesAt(base.Add(4*time.Hour), time.Hour, 2),
		},
		{
			Request: SplitRequest{SplitIndex: 0, TotalSplits: 3, Timeframe: "1h", Strategy: StrategyTime},
			Candles: candlesAt(base, time.Hour, 2),
		},
		{
			Request: SplitRequest{SplitIndex: 1, TotalSplits: 3, Timeframe: "1h", Strategy: StrategyTime},
			Candles: candlesAt(base.Add(2*time.Hour), time.Hour, 2),
		},
	}

	merged, err := MergeCandles(results)
	require.NoError(t, err)
	require.Len(t, merged, 6)

	for i := 1; i < len(merged); i++ {
		assert.True(t, merged[i].Timestamp.After(merged[i-1].Timestamp),
			"merged candles must be in ascending time order")
	}
}

func TestMergeCandles_FailFast(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cause := errors.New("remote timeout")

	results := []SplitResult{
		{
			Request: SplitRequest{SplitIndex: 0, TotalSplits: 3},
			Candles: candlesAt(base, time.Hour, 2),
		},
		{
			Request: SplitRequest{SplitIndex: 1, TotalSplits: 3},
			Err:     cause,
		},
		{
			Request: SplitRequest{SplitIndex: 2, TotalSplits: 3},
			Candles: candlesAt(base.Add(4*time.Hour), time.Hour, 2),
		},
	}

	merged, err := MergeCandles(results)
	assert.Nil(t, merged, "no partial data on failure")
	require.Error(t, err)

	var splitErr *model.SplitError
	require.ErrorAs(t, err, &splitErr)
	assert.Equal(t, 1, splitErr.SplitIndex)
	assert.Equal(t, 3, splitErr.TotalSplits)
	assert.ErrorIs(t, err, cause)
}

func TestMergeCandles_Empty(t *testing.T) {
	merged, err := MergeCandles(nil)
	assert.NoError(t, err)
	assert.Nil(t, merged)
}

func TestMergeCandles_SingleResult(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	results := []SplitResult{{
		Request: SplitRequest{SplitIndex: 0, TotalSplits: 1},
		Candles: candlesAt(base, time.Hour, 3),
	}}

	merged, err := MergeCandles(results)
	require.NoError(t, err)
	assert.Len(t, merged, 3)
}

func TestMergeCandles_EmptyChunksAreTolerated(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	results := []SplitResult{
		{
			Request: SplitRequest{SplitIndex: 0, TotalSplits: 2, Timeframe: "1h", Strategy: StrategyTime},
			Candles: candlesAt(base, time.Hour, 2),
		},
		{
			Request: SplitRequest{SplitIndex: 1, TotalSplits: 2, Timeframe: "1h", Strategy: StrategyTime},
			Candles: nil, // quiet market window
		},
	}

	merged, err := MergeCandles(results)
	require.NoError(t, err)
	assert.Len(t, merged, 2)
}
