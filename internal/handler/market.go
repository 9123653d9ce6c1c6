package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"market-data-service/internal/model"
)

// MarketService is the slice of the provider the HTTP layer consumes.
type MarketService interface {
	GetTicker(ctx context.Context, symbol string, priority model.Priority) model.DataResponse
	GetTickers(ctx context.Context, symbols []string, priority model.Priority) model.DataResponse
	GetOrderbook(ctx context.Context, symbol string, priority model.Priority) model.DataResponse
	GetTrades(ctx context.Context, symbol string, count int, priority model.Priority) model.DataResponse
	GetCandles(ctx context.Context, symbol, timeframe string, count int, start, end time.Time, priority model.Priority) model.DataResponse
	GetContinuousCandles(ctx context.Context, symbol, timeframe string, start, end time.Time, includeEmpty bool, priority model.Priority) model.DataResponse
}

// MarketHandler handles HTTP requests for market-data endpoints.
type MarketHandler struct {
	service MarketService
	stats   func() (interface{}, interface{}) // (monitor report, cache stats)
}

// NewMarketHandler creates a market-data handler.
func NewMarketHandler(service MarketService, stats func() (interface{}, interface{})) *MarketHandler {
	return &MarketHandler{service: service, stats: stats}
}

// HandleTicker handles GET /api/v1/ticker?symbol=KRW-BTC
func (h *MarketHandler) HandleTicker(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	priority := parsePriority(r, model.PriorityHigh)

	resp := h.service.GetTicker(r.Context(), symbol, priority)
	h.writeResponse(w, resp)
}

// HandleTickers handles GET /api/v1/tickers?symbols=KRW-BTC,KRW-ETH
func (h *MarketHandler) HandleTickers(w http.ResponseWriter, r *http.Request) {
	symbols := parseSymbols(r)
	priority := parsePriority(r, model.PriorityHigh)

	resp := h.service.GetTickers(r.Context(), symbols, priority)
	h.writeResponse(w, resp)
}

// HandleOrderbook handles GET /api/v1/orderbook?symbol=KRW-BTC
func (h *MarketHandler) HandleOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	priority := parsePriority(r, model.PriorityHigh)

	resp := h.service.GetOrderbook(r.Context(), symbol, priority)
	h.writeResponse(w, resp)
}

// HandleTrades handles GET /api/v1/trades?symbol=KRW-BTC&count=100
func (h *MarketHandler) HandleTrades(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	count := parseInt(r, "count", 0)
	priority := parsePriority(r, model.PriorityNormal)

	resp := h.service.GetTrades(r.Context(), symbol, count, priority)
	h.writeResponse(w, resp)
}

// HandleCandles handles GET /api/v1/candles?symbol=&timeframe=&count=&start_time=&end_time=
func (h *MarketHandler) HandleCandles(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	timeframe := r.URL.Query().Get("timeframe")
	count := parseInt(r, "count", 0)
	start, end, err := parseTimeRange(r)
	if err != nil {
		h.writeResponse(w, model.NewErrorResponse(model.SourceValidation, err.Error()))
		return
	}
	priority := parsePriority(r, model.PriorityNormal)

	resp := h.service.GetCandles(r.Context(), symbol, timeframe, count, start, end, priority)
	h.writeResponse(w, resp)
}

// HandleContinuousCandles handles GET /api/v1/candles/continuous
func (h *MarketHandler) HandleContinuousCandles(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	timeframe := r.URL.Query().Get("timeframe")
	start, end, err := parseTimeRange(r)
	if err != nil {
		h.writeResponse(w, model.NewErrorResponse(model.SourceValidation, err.Error()))
		return
	}
	includeEmpty := r.URL.Query().Get("include_empty") == "true"
	priority := parsePriority(r, model.PriorityNormal)

	resp := h.service.GetContinuousCandles(r.Context(), symbol, timeframe, start, end, includeEmpty, priority)
	h.writeResponse(w, resp)
}

// HandleStats handles GET /api/v1/stats
func (h *MarketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	report, cacheStats := h.stats()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"performance": report,
		"caches":      cacheStats,
		"timestamp":   time.Now().Unix(),
	})
}

// HandleHealth handles the health check endpoint
func (h *MarketHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "market-data-service",
	})
}

// writeResponse maps a DataResponse onto an HTTP status and encodes it.
func (h *MarketHandler) writeResponse(w http.ResponseWriter, resp model.DataResponse) {
	w.Header().Set("Content-Type", "application/json")

	if !resp.Success {
		if resp.Metadata.Source == model.SourceValidation {
			w.WriteHeader(http.StatusBadRequest)
		} else {
			w.WriteHeader(http.StatusBadGateway)
		}
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// parseSymbols reads symbols from "symbol" (repeatable) and comma-separated
// "symbols" query parameters, de-duplicated and upper-cased.
func parseSymbols(r *http.Request) []string {
	var raw []string
	raw = append(raw, r.URL.Query()["symbol"]...)
	if joined := r.URL.Query().Get("symbols"); joined != "" {
		raw = append(raw, strings.Split(joined, ",")...)
	}

	seen := make(map[string]bool)
	symbols := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			symbols = append(symbols, s)
			seen[s] = true
		}
	}
	return symbols
}

func parseInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseTimeRange reads RFC3339 start_time/end_time parameters.
func parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	var start, end time.Time

	if v := r.URL.Query().Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, &model.ValidationError{Field: "start_time", Reason: "must be RFC3339"}
		}
		start = t
	}
	if v := r.URL.Query().Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, &model.ValidationError{Field: "end_time", Reason: "must be RFC3339"}
		}
		end = t
	}
	return start, end, nil
}

func parsePriority(r *http.Request, fallback model.Priority) model.Priority {
	switch strings.ToLower(r.URL.Query().Get("priority")) {
	case "critical":
		return model.PriorityCritical
	case "high":
		return model.PriorityHigh
	case "normal":
		return model.PriorityNormal
	case "low":
		return model.PriorityLow
	default:
		return fallback
	}
}
