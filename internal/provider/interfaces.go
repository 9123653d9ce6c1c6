package provider

import (
	"context"
	"time"

	"market-data-service/internal/model"
)

// RemoteClient is the remote market-data collaborator. Implementations own
// transport, authentication, outbound rate limiting and retries; a failure
// surfacing here is terminal for the request that triggered it.
type RemoteClient interface {
	GetTicker(ctx context.Context, symbol string, priority model.Priority) (model.Ticker, error)
	GetTickers(ctx context.Context, symbols []string, priority model.Priority) ([]model.Ticker, error)
	GetOrderbook(ctx context.Context, symbol string, priority model.Priority) (model.Orderbook, error)
	GetTrades(ctx context.Context, symbol string, count int, priority model.Priority) ([]model.Trade, error)
	GetCandles(ctx context.Context, symbol, timeframe string, count int, start, end time.Time, priority model.Priority) ([]model.Candle, error)
}

// CandleStore is the narrow repository interface over the persistent
// historical store.
type CandleStore interface {
	GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time, limit int) ([]model.Candle, error)
	InsertCandles(ctx context.Context, symbol, timeframe string, candles []model.Candle) (int, error)
}
