package monitor

import (
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"gonum.org/v1/gonum/stat"

	"market-data-service/internal/logger"
	"market-data-service/internal/metrics"
)

// sampleWindow bounds the latency samples kept for quantile estimation.
const sampleWindow = 1024

// Outcome of one recorded operation.
const (
	outcomeHit   = "hit"
	outcomeMiss  = "miss"
	outcomeError = "error"
)

// SourceStats aggregates outcomes for one data source (cache, store, remote).
type SourceStats struct {
	Hits         uint64  `json:"hits"`
	Misses       uint64  `json:"misses"`
	Errors       uint64  `json:"errors"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`

	totalLatency time.Duration
}

// SymbolStats aggregates outcomes for one symbol.
type SymbolStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
}

// Report is an aggregate snapshot of everything the monitor has observed.
type Report struct {
	GeneratedAt    time.Time              `json:"generated_at"`
	OverallHitRate float64                `json:"overall_hit_rate"`
	TotalRecorded  uint64                 `json:"total_recorded"`
	Sources        map[string]SourceStats `json:"sources"`
	Symbols        map[string]SymbolStats `json:"symbols"`
	LatencyP50Ms   float64                `json:"latency_p50_ms"`
	LatencyP95Ms   float64                `json:"latency_p95_ms"`
	LatencyP99Ms   float64                `json:"latency_p99_ms"`
	ProcessRSS     uint64                 `json:"process_rss_bytes"`
}

// Monitor is a passive recorder of cache and remote operation outcomes. It
// never feeds errors back to callers: recording failures are swallowed and
// logged.
type Monitor struct {
	mu      sync.Mutex
	sources map[string]*SourceStats
	symbols map[string]*SymbolStats

	samples   []float64 // latency ring buffer, milliseconds
	samplePos int

	proc *process.Process
}

// New creates a monitor. The process handle is optional; without it the
// report's memory figure is zero.
func New() *Monitor {
	m := &Monitor{
		sources: make(map[string]*SourceStats),
		symbols: make(map[string]*SymbolStats),
		samples: make([]float64, 0, sampleWindow),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.GetLogger().WithField("error", err.Error()).Warn("Process handle unavailable, memory figures disabled")
	} else {
		m.proc = proc
	}
	return m
}

// RecordHit records a successful lookup against a source.
func (m *Monitor) RecordHit(source, symbol string, latency time.Duration) {
	m.record(source, symbol, outcomeHit, latency)
}

// RecordMiss records a lookup that found nothing.
func (m *Monitor) RecordMiss(source, symbol string, latency time.Duration) {
	m.record(source, symbol, outcomeMiss, latency)
}

// RecordError records a failed operation.
func (m *Monitor) RecordError(source, symbol string, latency time.Duration) {
	m.record(source, symbol, outcomeError, latency)
}

func (m *Monitor) record(source, symbol, outcome string, latency time.Duration) {
	// A recording failure must never reach the caller.
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().WithFields(map[string]interface{}{
				"source":  source,
				"symbol":  symbol,
				"outcome": outcome,
				"panic":   r,
			}).Error("Monitor recording failed")
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.sources[source]
	if !ok {
		src = &SourceStats{}
		m.sources[source] = src
	}
	sym, ok := m.symbols[symbol]
	if !ok {
		sym = &SymbolStats{}
		m.symbols[symbol] = sym
	}

	switch outcome {
	case outcomeHit:
		src.Hits++
		sym.Hits++
	case outcomeMiss:
		src.Misses++
		sym.Misses++
	case outcomeError:
		src.Errors++
		sym.Errors++
	}
	src.totalLatency += latency

	ms := float64(latency.Microseconds()) / 1000.0
	if len(m.samples) < sampleWindow {
		m.samples = append(m.samples, ms)
	} else {
		m.samples[m.samplePos] = ms
		m.samplePos = (m.samplePos + 1) % sampleWindow
	}
}

// GenerateReport produces an aggregate snapshot: hit rates, per-source and
// per-symbol breakdowns, latency quantiles and a process-memory figure.
func (m *Monitor) GenerateReport() Report {
	m.mu.Lock()

	report := Report{
		GeneratedAt: time.Now(),
		Sources:     make(map[string]SourceStats, len(m.sources)),
		Symbols:     make(map[string]SymbolStats, len(m.symbols)),
	}

	var hits, misses, errors uint64
	for name, src := range m.sources {
		cp := *src
		ops := cp.Hits + cp.Misses + cp.Errors
		if ops > 0 {
			cp.AvgLatencyMs = float64(cp.totalLatency.Microseconds()) / 1000.0 / float64(ops)
		}
		report.Sources[name] = cp
		hits += cp.Hits
		misses += cp.Misses
		errors += cp.Errors
	}
	for name, sym := range m.symbols {
		report.Symbols[name] = *sym
	}

	report.TotalRecorded = hits + misses + errors
	if hits+misses > 0 {
		report.OverallHitRate = float64(hits) / float64(hits+misses)
	}

	samples := append([]float64(nil), m.samples...)
	m.mu.Unlock()

	if len(samples) > 0 {
		sort.Float64s(samples)
		report.LatencyP50Ms = stat.Quantile(0.50, stat.Empirical, samples, nil)
		report.LatencyP95Ms = stat.Quantile(0.95, stat.Empirical, samples, nil)
		report.LatencyP99Ms = stat.Quantile(0.99, stat.Empirical, samples, nil)
	}

	if m.proc != nil {
		if info, err := m.proc.MemoryInfo(); err == nil {
			report.ProcessRSS = info.RSS
			metrics.ProcessResidentMemory.Set(float64(info.RSS))
		}
	}

	return report
}
