package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_data_http_requests_total",
			Help: "The total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_data_http_request_duration_seconds",
			Help:    "The HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Cache metrics, labelled per cache type (ticker/orderbook/trades/overview)
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_data_cache_hits_total",
			Help: "The total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_data_cache_misses_total",
			Help: "The total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_data_cache_evictions_total",
			Help: "The total number of LRU cache evictions",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "market_data_cache_size",
			Help: "The current number of entries per cache",
		},
		[]string{"cache_type"},
	)

	CacheMemoryEstimate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_data_cache_memory_estimate_bytes",
			Help: "Coarse linear estimate of realtime cache memory usage",
		},
	)

	// Remote exchange metrics
	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_data_remote_requests_total",
			Help: "The total number of remote exchange requests",
		},
		[]string{"operation", "status_code"},
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_data_remote_request_duration_seconds",
			Help:    "The remote exchange request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RemoteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_data_remote_errors_total",
			Help: "The total number of remote exchange errors",
		},
		[]string{"operation", "error_type"},
	)

	// Request splitter metrics
	SplitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_data_split_requests_total",
			Help: "The total number of decomposed historical requests",
		},
		[]string{"strategy"},
	)

	SplitChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "market_data_split_chunks",
			Help:    "The number of sub-requests per decomposition",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100, 250, 1000},
		},
	)

	// Provider metrics
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_data_provider_requests_total",
			Help: "The total number of provider requests",
		},
		[]string{"kind", "source", "status"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_data_provider_request_duration_seconds",
			Help:    "The provider request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Coordinator metrics
	AdaptiveTTLSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_data_adaptive_ttl_seconds",
			Help:    "The adaptive TTLs chosen by the cache coordinator",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"cache_type"},
	)

	PopularSymbols = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_data_popular_symbols",
			Help: "The number of symbols currently flagged popular",
		},
	)

	// Monitor metrics
	ProcessResidentMemory = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_data_process_resident_memory_bytes",
			Help: "Process RSS as sampled by the storage performance monitor",
		},
	)

	// Service info
	ServiceInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "market_data_service_info",
			Help: "Information about the market data service",
		},
		[]string{"version", "store_backend"},
	)
)

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit for one cache type
func RecordCacheHit(cacheType string) {
	CacheHitsTotal.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for one cache type
func RecordCacheMiss(cacheType string) {
	CacheMissesTotal.WithLabelValues(cacheType).Inc()
}

// RecordCacheEviction records an LRU eviction for one cache type
func RecordCacheEviction(cacheType string) {
	CacheEvictionsTotal.WithLabelValues(cacheType).Inc()
}

// UpdateCacheSize updates the per-cache entry count gauge
func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

// RecordRemoteRequest records remote exchange request metrics
func RecordRemoteRequest(operation string, statusCode int, duration time.Duration) {
	RemoteRequestsTotal.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	RemoteRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRemoteError records a remote exchange error
func RecordRemoteError(operation, errorType string) {
	RemoteErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordSplit records one request decomposition
func RecordSplit(strategy string, chunks int) {
	SplitRequestsTotal.WithLabelValues(strategy).Inc()
	SplitChunks.Observe(float64(chunks))
}

// RecordProviderRequest records a completed provider operation
func RecordProviderRequest(kind, source, status string, duration time.Duration) {
	ProviderRequestsTotal.WithLabelValues(kind, source, status).Inc()
	ProviderRequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordAdaptiveTTL records the TTL chosen for a write-back
func RecordAdaptiveTTL(cacheType string, ttl time.Duration) {
	AdaptiveTTLSeconds.WithLabelValues(cacheType).Observe(ttl.Seconds())
}

// SetServiceInfo sets service information
func SetServiceInfo(version, storeBackend string) {
	ServiceInfo.WithLabelValues(version, storeBackend).Set(1)
}
