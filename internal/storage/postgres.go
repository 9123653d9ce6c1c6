package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"market-data-service/internal/model"
)

// PostgresStore persists candles in PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE market_candles (
//	    symbol     TEXT             NOT NULL,
//	    timeframe  TEXT             NOT NULL,
//	    ts         TIMESTAMPTZ      NOT NULL,
//	    open       DOUBLE PRECISION NOT NULL,
//	    high       DOUBLE PRECISION NOT NULL,
//	    low        DOUBLE PRECISION NOT NULL,
//	    close      DOUBLE PRECISION NOT NULL,
//	    volume     DOUBLE PRECISION NOT NULL,
//	    PRIMARY KEY (symbol, timeframe, ts)
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a PostgreSQL connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool.
func (p *PostgresStore) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetCandles returns candles for a symbol and timeframe in ascending time
// order, optionally bounded by [start,end) and a row limit.
func (p *PostgresStore) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time, limit int) ([]model.Candle, error) {
	q := `
		SELECT symbol, timeframe, ts, open, high, low, close, volume
		FROM market_candles
		WHERE symbol = $1 AND timeframe = $2
	`
	args := []interface{}{symbol, timeframe}

	if !start.IsZero() {
		args = append(args, start)
		q += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !end.IsZero() {
		args = append(args, end)
		q += fmt.Sprintf(" AND ts < $%d", len(args))
	}
	q += " ORDER BY ts ASC"
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.Symbol, &c.Timeframe, &c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// InsertCandles upserts candles inside one transaction and returns how many
// rows were written.
func (p *PostgresStore) InsertCandles(ctx context.Context, symbol, timeframe string, candles []model.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	const q = `
		INSERT INTO market_candles (symbol, timeframe, ts, open, high, low, close, volume)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (symbol, timeframe, ts) DO UPDATE
		SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
		    close = EXCLUDED.close, volume = EXCLUDED.volume
	`

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert candle at %s: %w", c.Timestamp, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}
