package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_EmptyReport(t *testing.T) {
	m := New()
	report := m.GenerateReport()

	assert.Equal(t, uint64(0), report.TotalRecorded)
	assert.Equal(t, 0.0, report.OverallHitRate)
	assert.Empty(t, report.Sources)
	assert.Empty(t, report.Symbols)
	assert.Equal(t, 0.0, report.LatencyP50Ms)
}

func TestMonitor_HitRateAndCounts(t *testing.T) {
	m := New()

	for i := 0; i < 7; i++ {
		m.RecordHit("cache", "KRW-BTC", time.Millisecond)
	}
	for i := 0; i < 3; i++ {
		m.RecordMiss("cache", "KRW-BTC", 2*time.Millisecond)
	}
	m.RecordError("remote", "KRW-ETH", 5*time.Millisecond)

	report := m.GenerateReport()

	assert.Equal(t, uint64(11), report.TotalRecorded)
	assert.InDelta(t, 0.7, report.OverallHitRate, 1e-9, "errors do not dilute the hit rate")

	cacheStats, ok := report.Sources["cache"]
	require.True(t, ok)
	assert.Equal(t, uint64(7), cacheStats.Hits)
	assert.Equal(t, uint64(3), cacheStats.Misses)
	assert.Equal(t, uint64(0), cacheStats.Errors)

	remoteStats, ok := report.Sources["remote"]
	require.True(t, ok)
	assert.Equal(t, uint64(1), remoteStats.Errors)

	btc, ok := report.Symbols["KRW-BTC"]
	require.True(t, ok)
	assert.Equal(t, uint64(7), btc.Hits)
	assert.Equal(t, uint64(3), btc.Misses)
}

func TestMonitor_AvgLatencyPerSource(t *testing.T) {
	m := New()

	m.RecordHit("cache", "KRW-BTC", 2*time.Millisecond)
	m.RecordHit("cache", "KRW-BTC", 4*time.Millisecond)

	report := m.GenerateReport()
	assert.InDelta(t, 3.0, report.Sources["cache"].AvgLatencyMs, 0.01)
}

func TestMonitor_LatencyQuantiles(t *testing.T) {
	m := New()

	// 100 samples from 1ms to 100ms.
	for i := 1; i <= 100; i++ {
		m.RecordHit("remote", "KRW-BTC", time.Duration(i)*time.Millisecond)
	}

	report := m.GenerateReport()

	assert.Greater(t, report.LatencyP50Ms, 40.0)
	assert.Less(t, report.LatencyP50Ms, 60.0)
	assert.GreaterOrEqual(t, report.LatencyP95Ms, report.LatencyP50Ms)
	assert.GreaterOrEqual(t, report.LatencyP99Ms, report.LatencyP95Ms)
	assert.LessOrEqual(t, report.LatencyP99Ms, 100.0)
}

func TestMonitor_SampleWindowIsBounded(t *testing.T) {
	m := New()

	for i := 0; i < sampleWindow+500; i++ {
		m.RecordHit("cache", "KRW-BTC", time.Millisecond)
	}

	m.mu.Lock()
	n := len(m.samples)
	m.mu.Unlock()
	assert.Equal(t, sampleWindow, n)
}

func TestMonitor_ConcurrentRecording(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordHit("cache", "KRW-BTC", time.Millisecond)
				m.RecordMiss("remote", "KRW-ETH", time.Millisecond)
			}
		}()
	}
	wg.Wait()

	report := m.GenerateReport()
	assert.Equal(t, uint64(1600), report.TotalRecorded)
	assert.Equal(t, uint64(800), report.Sources["cache"].Hits)
	assert.Equal(t, uint64(800), report.Sources["remote"].Misses)
}
