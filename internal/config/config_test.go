package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, 1*time.Second, cfg.Cache.TickerTTL)
	assert.Equal(t, 5*time.Second, cfg.Cache.OrderbookTTL)
	assert.Equal(t, 30*time.Second, cfg.Cache.TradesTTL)
	assert.Equal(t, 60*time.Second, cfg.Cache.OverviewTTL)
	assert.Equal(t, 1000, cfg.Cache.MaxSize)

	assert.Equal(t, 10, cfg.Coordinator.PopularityThreshold)
	assert.Equal(t, int64(64*1024*1024), cfg.Coordinator.MemoryThreshold)

	assert.Equal(t, 200, cfg.Splitter.MaxPerRequest)
	assert.Equal(t, 5, cfg.Splitter.MaxParallelism)

	assert.Equal(t, "https://api.upbit.com/v1", cfg.Upbit.BaseURL)
	assert.Equal(t, "none", cfg.Storage.Backend)
	assert.Contains(t, cfg.App.Symbols, "KRW-BTC")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TICKER_TTL", "3s")
	t.Setenv("SPLITTER_MAX_PER_REQUEST", "100")
	t.Setenv("STORAGE_BACKEND", "redis")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Cache.TickerTTL)
	assert.Equal(t, 100, cfg.Splitter.MaxPerRequest)
	assert.Equal(t, "redis", cfg.Storage.Backend)
}
