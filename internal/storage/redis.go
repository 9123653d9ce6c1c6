package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"market-data-service/internal/model"
)

// RedisStore keeps candles in time-sorted Redis sets, one per
// (symbol, timeframe). Useful as a lightweight shared store when no
// relational backend is deployed.
type RedisStore struct {
	rdb *redis.Client
}

type redisCandle struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	Ts     int64   `json:"ts"` // unix seconds, window start
}

// NewRedisStore creates a RedisStore and pings the server.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

func candleKey(symbol, timeframe string) string {
	return fmt.Sprintf("candles:%s:%s", symbol, timeframe)
}

// GetCandles returns candles in ascending time order, optionally bounded by
// [start,end) and a count limit.
func (r *RedisStore) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time, limit int) ([]model.Candle, error) {
	min, max := "-inf", "+inf"
	if !start.IsZero() {
		min = fmt.Sprintf("%d", start.Unix())
	}
	if !end.IsZero() {
		// end is exclusive
		max = fmt.Sprintf("(%d", end.Unix())
	}

	rangeBy := &redis.ZRangeBy{Min: min, Max: max}
	if limit > 0 {
		rangeBy.Count = int64(limit)
	}

	members, err := r.rdb.ZRangeByScore(ctx, candleKey(symbol, timeframe), rangeBy).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore: %w", err)
	}

	candles := make([]model.Candle, 0, len(members))
	for _, m := range members {
		var rc redisCandle
		if err := json.Unmarshal([]byte(m), &rc); err != nil {
			// A corrupt member should not poison the whole read.
			continue
		}
		candles = append(candles, model.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			Open:      rc.Open,
			High:      rc.High,
			Low:       rc.Low,
			Close:     rc.Close,
			Volume:    rc.Volume,
			Timestamp: time.Unix(rc.Ts, 0).UTC(),
		})
	}
	return candles, nil
}

// InsertCandles writes candles as sorted-set members scored by window start.
// Re-inserting a window replaces its member.
func (r *RedisStore) InsertCandles(ctx context.Context, symbol, timeframe string, candles []model.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	key := candleKey(symbol, timeframe)
	pipe := r.rdb.TxPipeline()

	for _, c := range candles {
		rc := redisCandle{
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
			Ts:     c.Timestamp.Unix(),
		}
		b, err := json.Marshal(rc)
		if err != nil {
			return 0, fmt.Errorf("marshal candle: %w", err)
		}
		// Drop any previous member for the same window before re-adding.
		pipe.ZRemRangeByScore(ctx, key, fmt.Sprintf("%d", rc.Ts), fmt.Sprintf("%d", rc.Ts))
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(rc.Ts), Member: string(b)})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("pipeline exec: %w", err)
	}
	return len(candles), nil
}
