package model

import "time"

// Ticker is the latest trade summary for one symbol.
type Ticker struct {
	Symbol            string    `json:"symbol"`
	TradePrice        float64   `json:"trade_price"`
	TradeVolume       float64   `json:"trade_volume"`
	ChangeRate        float64   `json:"change_rate"`
	High24h           float64   `json:"high_24h"`
	Low24h            float64   `json:"low_24h"`
	AccTradeVolume24h float64   `json:"acc_trade_volume_24h"`
	Timestamp         time.Time `json:"timestamp"`
}

// OrderbookUnit is one price level of an order book.
type OrderbookUnit struct {
	AskPrice float64 `json:"ask_price"`
	BidPrice float64 `json:"bid_price"`
	AskSize  float64 `json:"ask_size"`
	BidSize  float64 `json:"bid_size"`
}

// Orderbook is a point-in-time snapshot of a symbol's order book.
type Orderbook struct {
	Symbol    string          `json:"symbol"`
	Units     []OrderbookUnit `json:"units"`
	TotalAsk  float64         `json:"total_ask_size"`
	TotalBid  float64         `json:"total_bid_size"`
	Timestamp time.Time       `json:"timestamp"`
}

// Trade is one executed trade.
type Trade struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Side      string    `json:"side"` // "ask" or "bid"
	Timestamp time.Time `json:"timestamp"`
}

// Candle is one OHLCV bar for a symbol and timeframe.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"` // window start, UTC
}

// MarketOverview is an aggregate snapshot across many symbols, cached as a
// single unit.
type MarketOverview struct {
	Tickers     []Ticker  `json:"tickers"`
	GeneratedAt time.Time `json:"generated_at"`
}

// TimeframeDurations maps supported timeframe codes to their window length.
// "1M" is approximated as 30 days; venue month candles are calendar-aligned
// but the approximation only feeds split sizing, never candle boundaries.
var TimeframeDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
	"1M":  30 * 24 * time.Hour,
}

// TimeframeDuration returns the window length of a timeframe code.
func TimeframeDuration(timeframe string) (time.Duration, bool) {
	d, ok := TimeframeDurations[timeframe]
	return d, ok
}
