package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Splitter    SplitterConfig    `mapstructure:"splitter"`
	Upbit       UpbitConfig       `mapstructure:"upbit"`
	Storage     StorageConfig     `mapstructure:"storage"`
	App         AppConfig         `mapstructure:"app"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CacheConfig holds realtime cache configuration. TTL defaults are tiered by
// data volatility: tickers churn every second, market overviews barely move.
type CacheConfig struct {
	TickerTTL    time.Duration `mapstructure:"ticker_ttl"`
	OrderbookTTL time.Duration `mapstructure:"orderbook_ttl"`
	TradesTTL    time.Duration `mapstructure:"trades_ttl"`
	OverviewTTL  time.Duration `mapstructure:"overview_ttl"`
	MaxSize      int           `mapstructure:"max_size"`
}

// CoordinatorConfig holds adaptive-TTL coordinator configuration
type CoordinatorConfig struct {
	PopularityThreshold int           `mapstructure:"popularity_threshold"`
	MemoryThreshold     int64         `mapstructure:"memory_threshold_bytes"`
	OptimizeInterval    time.Duration `mapstructure:"optimize_interval"`
}

// SplitterConfig holds historical-request splitter configuration
type SplitterConfig struct {
	MaxPerRequest  int `mapstructure:"max_per_request"`
	MaxParallelism int `mapstructure:"max_parallelism"`
}

// UpbitConfig holds remote exchange configuration
type UpbitConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	WebSocketURL     string        `mapstructure:"websocket_url"`
	WebSocketEnabled bool          `mapstructure:"websocket_enabled"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay"`
}

// StorageConfig holds persistent candle store configuration
type StorageConfig struct {
	Backend     string `mapstructure:"backend"` // "postgres", "redis" or "none"
	PostgresDSN string `mapstructure:"postgres_dsn"`
	Redis       RedisConfig
}

// RedisConfig holds Redis-related configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Symbols  []string `mapstructure:"symbols"`
	LogLevel string   `mapstructure:"log_level"`
}

// Load loads configuration from environment variables and defaults
func Load() (*Config, error) {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.shutdown_timeout", "30s")

	viper.SetDefault("cache.ticker_ttl", "1s")
	viper.SetDefault("cache.orderbook_ttl", "5s")
	viper.SetDefault("cache.trades_ttl", "30s")
	viper.SetDefault("cache.overview_ttl", "60s")
	viper.SetDefault("cache.max_size", 1000)

	viper.SetDefault("coordinator.popularity_threshold", 10)
	viper.SetDefault("coordinator.memory_threshold_bytes", 64*1024*1024)
	viper.SetDefault("coordinator.optimize_interval", "300s")

	// Upbit allows at most 200 candles per REST call
	viper.SetDefault("splitter.max_per_request", 200)
	viper.SetDefault("splitter.max_parallelism", 5)

	viper.SetDefault("upbit.base_url", "https://api.upbit.com/v1")
	viper.SetDefault("upbit.websocket_url", "wss://api.upbit.com/websocket/v1")
	viper.SetDefault("upbit.websocket_enabled", true)
	viper.SetDefault("upbit.timeout", "10s")
	viper.SetDefault("upbit.max_retries", 3)
	viper.SetDefault("upbit.reconnect_delay", "5s")

	viper.SetDefault("storage.backend", "none")
	viper.SetDefault("storage.postgres_dsn", "postgres://localhost:5432/marketdata?sslmode=disable")
	viper.SetDefault("storage.redis.addr", "localhost:6379")
	viper.SetDefault("storage.redis.password", "")
	viper.SetDefault("storage.redis.db", 0)

	viper.SetDefault("app.symbols", []string{"KRW-BTC", "KRW-ETH", "KRW-XRP"})
	viper.SetDefault("app.log_level", "info")

	// Bind environment variables
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("cache.ticker_ttl", "CACHE_TICKER_TTL")
	viper.BindEnv("cache.orderbook_ttl", "CACHE_ORDERBOOK_TTL")
	viper.BindEnv("cache.trades_ttl", "CACHE_TRADES_TTL")
	viper.BindEnv("cache.overview_ttl", "CACHE_OVERVIEW_TTL")
	viper.BindEnv("cache.max_size", "CACHE_MAX_SIZE")
	viper.BindEnv("coordinator.popularity_threshold", "COORDINATOR_POPULARITY_THRESHOLD")
	viper.BindEnv("coordinator.memory_threshold_bytes", "COORDINATOR_MEMORY_THRESHOLD_BYTES")
	viper.BindEnv("coordinator.optimize_interval", "COORDINATOR_OPTIMIZE_INTERVAL")
	viper.BindEnv("splitter.max_per_request", "SPLITTER_MAX_PER_REQUEST")
	viper.BindEnv("splitter.max_parallelism", "SPLITTER_MAX_PARALLELISM")
	viper.BindEnv("upbit.base_url", "UPBIT_BASE_URL")
	viper.BindEnv("upbit.websocket_url", "UPBIT_WEBSOCKET_URL")
	viper.BindEnv("upbit.websocket_enabled", "UPBIT_WEBSOCKET_ENABLED")
	viper.BindEnv("upbit.timeout", "UPBIT_TIMEOUT")
	viper.BindEnv("upbit.max_retries", "UPBIT_MAX_RETRIES")
	viper.BindEnv("upbit.reconnect_delay", "UPBIT_RECONNECT_DELAY")
	viper.BindEnv("storage.backend", "STORAGE_BACKEND")
	viper.BindEnv("storage.postgres_dsn", "STORAGE_POSTGRES_DSN")
	viper.BindEnv("storage.redis.addr", "REDIS_ADDR")
	viper.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	viper.BindEnv("storage.redis.db", "REDIS_DB")
	viper.BindEnv("app.symbols", "SYMBOLS")
	viper.BindEnv("app.log_level", "LOG_LEVEL")

	// Try to read from config file (optional)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Error reading config file: %v", err)
		}
		// Continue with environment variables and defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
