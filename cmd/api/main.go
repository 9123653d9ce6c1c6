package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"market-data-service/internal/cache"
	"market-data-service/internal/config"
	"market-data-service/internal/coordinator"
	"market-data-service/internal/exchange/upbit"
	"market-data-service/internal/handler"
	"market-data-service/internal/logger"
	"market-data-service/internal/metrics"
	"market-data-service/internal/model"
	"market-data-service/internal/monitor"
	"market-data-service/internal/provider"
	"market-data-service/internal/scheduler"
	"market-data-service/internal/splitter"
	"market-data-service/internal/storage"
)

func main() {
	log.Println("Starting Market Data Service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.SetLogLevel(cfg.App.LogLevel)
	structuredLogger := logger.GetLogger()

	ctx := logger.WithRequestID(context.Background())
	structuredLogger.Info("Initializing service components...")

	// Realtime cache facade: four TTL/LRU caches tiered by data volatility.
	facade := cache.NewRealtimeCache(cache.Config{
		TickerTTL:    cfg.Cache.TickerTTL,
		OrderbookTTL: cfg.Cache.OrderbookTTL,
		TradesTTL:    cfg.Cache.TradesTTL,
		OverviewTTL:  cfg.Cache.OverviewTTL,
		MaxSize:      cfg.Cache.MaxSize,
	})

	restClient := upbit.NewRestClient(cfg.Upbit.BaseURL, cfg.Upbit.Timeout, cfg.Upbit.MaxRetries)

	coord := coordinator.New(facade, restClient, coordinator.Config{
		PopularityThreshold: cfg.Coordinator.PopularityThreshold,
		MemoryThreshold:     cfg.Coordinator.MemoryThreshold,
	})

	split := splitter.New(cfg.Splitter.MaxPerRequest, cfg.Splitter.MaxParallelism)
	mon := monitor.New()

	store, err := storage.NewStoreFromConfig(ctx, cfg.Storage)
	if err != nil {
		structuredLogger.WithField("error", err.Error()).Fatal("Failed to create candle store")
	}
	if closer, ok := store.(storage.Closer); ok {
		defer closer.Close()
	}
	structuredLogger.WithField("backend", cfg.Storage.Backend).Info("Candle store initialized")

	metrics.SetServiceInfo("1.0.0", cfg.Storage.Backend)

	dataProvider := provider.New(facade, coord, split, mon, restClient, store, cfg.Splitter.MaxParallelism)

	marketHandler := handler.NewMarketHandler(dataProvider, func() (interface{}, interface{}) {
		return dataProvider.Report(), dataProvider.CacheStats()
	})
	server := handler.CreateServer(marketHandler, cfg.Server.Port)

	structuredLogger.WithField("port", cfg.Server.Port).Info("Server starting")
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			structuredLogger.WithField("error", err.Error()).Fatal("Failed to start server")
		}
	}()

	// Live tickers stream straight into the facade with the adaptive TTL.
	var wsClient *upbit.WebSocketClient
	if cfg.Upbit.WebSocketEnabled {
		wsClient = upbit.NewWebSocketClient(cfg.Upbit.WebSocketURL, cfg.App.Symbols, cfg.Upbit.ReconnectDelay,
			func(t model.Ticker) {
				facade.SetTicker(t.Symbol, t, coord.OptimalTTL(cache.TypeTicker, t.Symbol))
			})
		if err := wsClient.Start(); err != nil {
			structuredLogger.WithField("error", err.Error()).Warn("Failed to start websocket stream, serving REST-only")
		} else {
			defer wsClient.Close()
		}
	}

	// Background maintenance: stats refresh, memory optimization, preloading.
	maintenance := scheduler.New(coord, cfg.Coordinator.OptimizeInterval)
	if err := maintenance.Start(); err != nil {
		structuredLogger.WithField("error", err.Error()).Fatal("Failed to start maintenance scheduler")
	}
	defer maintenance.Stop()

	structuredLogger.WithFields(map[string]interface{}{
		"port":    cfg.Server.Port,
		"symbols": cfg.App.Symbols,
		"endpoints": map[string]string{
			"ticker":  "/api/v1/ticker",
			"tickers": "/api/v1/tickers",
			"candles": "/api/v1/candles",
			"stats":   "/api/v1/stats",
			"health":  "/health",
			"metrics": "/metrics",
		},
	}).Info("Market Data Service is running")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	structuredLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.WithField("error", err.Error()).Error("Server forced to shutdown")
	}

	structuredLogger.Info("Server shutdown completed")
}
