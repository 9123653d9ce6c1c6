package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"market-data-service/internal/middleware"
)

// NewRouter builds the service's HTTP routing table.
func NewRouter(h *MarketHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware, middleware.MetricsMiddleware)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/ticker", h.HandleTicker).Methods(http.MethodGet)
	api.HandleFunc("/tickers", h.HandleTickers).Methods(http.MethodGet)
	api.HandleFunc("/orderbook", h.HandleOrderbook).Methods(http.MethodGet)
	api.HandleFunc("/trades", h.HandleTrades).Methods(http.MethodGet)
	api.HandleFunc("/candles", h.HandleCandles).Methods(http.MethodGet)
	api.HandleFunc("/candles/continuous", h.HandleContinuousCandles).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.HandleStats).Methods(http.MethodGet)

	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// CreateServer wraps the router in an http.Server with sane timeouts.
func CreateServer(h *MarketHandler, port string) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(h),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
