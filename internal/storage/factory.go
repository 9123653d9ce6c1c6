package storage

import (
	"context"
	"fmt"

	"market-data-service/internal/config"
	"market-data-service/internal/provider"
)

// Closer is implemented by store backends that hold connections.
type Closer interface {
	Close() error
}

// NewStoreFromConfig builds the configured candle store backend. The "none"
// backend returns a nil store: the provider then serves candles from the
// remote venue only.
func NewStoreFromConfig(ctx context.Context, cfg config.StorageConfig) (provider.CandleStore, error) {
	switch cfg.Backend {
	case "postgres":
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	case "redis":
		return NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
