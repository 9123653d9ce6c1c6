package middleware

import (
	"net/http"
	"time"

	"market-data-service/internal/metrics"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records HTTP request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // default status code
		}

		next.ServeHTTP(wrapped, r)

		metrics.RecordHTTPRequest(
			r.Method,
			getEndpoint(r.URL.Path),
			wrapped.statusCode,
			time.Since(start),
		)
	})
}

// getEndpoint normalizes URL paths to avoid high cardinality in metrics
func getEndpoint(path string) string {
	switch path {
	case "/api/v1/ticker", "/api/v1/tickers", "/api/v1/orderbook",
		"/api/v1/trades", "/api/v1/candles", "/api/v1/candles/continuous",
		"/api/v1/stats", "/health", "/metrics":
		return path
	default:
		if len(path) > 0 && path[0] == '/' {
			return "/unknown"
		}
		return path
	}
}
