package upbit

import (
	"fmt"
	"time"

	"market-data-service/internal/model"
)

// tickerData is one element of the /ticker response.
type tickerData struct {
	Market            string  `json:"market"`
	TradePrice        float64 `json:"trade_price"`
	TradeVolume       float64 `json:"trade_volume"`
	SignedChangeRate  float64 `json:"signed_change_rate"`
	HighPrice         float64 `json:"high_price"`
	LowPrice          float64 `json:"low_price"`
	AccTradeVolume24h float64 `json:"acc_trade_volume_24h"`
	TimestampMs       int64   `json:"timestamp"`
}

func (t tickerData) toModel() model.Ticker {
	return model.Ticker{
		Symbol:            t.Market,
		TradePrice:        t.TradePrice,
		TradeVolume:       t.TradeVolume,
		ChangeRate:        t.SignedChangeRate,
		High24h:           t.HighPrice,
		Low24h:            t.LowPrice,
		AccTradeVolume24h: t.AccTradeVolume24h,
		Timestamp:         time.UnixMilli(t.TimestampMs).UTC(),
	}
}

// orderbookData is one element of the /orderbook response.
type orderbookData struct {
	Market       string  `json:"market"`
	TimestampMs  int64   `json:"timestamp"`
	TotalAskSize float64 `json:"total_ask_size"`
	TotalBidSize float64 `json:"total_bid_size"`
	Units        []struct {
		AskPrice float64 `json:"ask_price"`
		BidPrice float64 `json:"bid_price"`
		AskSize  float64 `json:"ask_size"`
		BidSize  float64 `json:"bid_size"`
	} `json:"orderbook_units"`
}

func (o orderbookData) toModel() model.Orderbook {
	units := make([]model.OrderbookUnit, 0, len(o.Units))
	for _, u := range o.Units {
		units = append(units, model.OrderbookUnit{
			AskPrice: u.AskPrice,
			BidPrice: u.BidPrice,
			AskSize:  u.AskSize,
			BidSize:  u.BidSize,
		})
	}
	return model.Orderbook{
		Symbol:    o.Market,
		Units:     units,
		TotalAsk:  o.TotalAskSize,
		TotalBid:  o.TotalBidSize,
		Timestamp: time.UnixMilli(o.TimestampMs).UTC(),
	}
}

// tradeData is one element of the /trades/ticks response.
type tradeData struct {
	Market      string  `json:"market"`
	TradePrice  float64 `json:"trade_price"`
	TradeVolume float64 `json:"trade_volume"`
	AskBid      string  `json:"ask_bid"` // "ASK" or "BID"
	TimestampMs int64   `json:"timestamp"`
}

func (t tradeData) toModel() model.Trade {
	side := "bid"
	if t.AskBid == "ASK" {
		side = "ask"
	}
	return model.Trade{
		Symbol:    t.Market,
		Price:     t.TradePrice,
		Volume:    t.TradeVolume,
		Side:      side,
		Timestamp: time.UnixMilli(t.TimestampMs).UTC(),
	}
}

// candleData is one element of a /candles/... response.
type candleData struct {
	Market             string  `json:"market"`
	CandleDateTimeUTC  string  `json:"candle_date_time_utc"`
	OpeningPrice       float64 `json:"opening_price"`
	HighPrice          float64 `json:"high_price"`
	LowPrice           float64 `json:"low_price"`
	TradePrice         float64 `json:"trade_price"`
	CandleAccVolume    float64 `json:"candle_acc_trade_volume"`
}

func (c candleData) toModel(timeframe string) (model.Candle, error) {
	ts, err := time.Parse("2006-01-02T15:04:05", c.CandleDateTimeUTC)
	if err != nil {
		return model.Candle{}, fmt.Errorf("parse candle time %q: %w", c.CandleDateTimeUTC, err)
	}
	return model.Candle{
		Symbol:    c.Market,
		Timeframe: timeframe,
		Open:      c.OpeningPrice,
		High:      c.HighPrice,
		Low:       c.LowPrice,
		Close:     c.TradePrice,
		Volume:    c.CandleAccVolume,
		Timestamp: ts.UTC(),
	}, nil
}

// candlePath maps a timeframe code to the venue's candle endpoint path.
func candlePath(timeframe string) (string, error) {
	switch timeframe {
	case "1m":
		return "/candles/minutes/1", nil
	case "3m":
		return "/candles/minutes/3", nil
	case "5m":
		return "/candles/minutes/5", nil
	case "15m":
		return "/candles/minutes/15", nil
	case "30m":
		return "/candles/minutes/30", nil
	case "1h":
		return "/candles/minutes/60", nil
	case "4h":
		return "/candles/minutes/240", nil
	case "1d":
		return "/candles/days", nil
	case "1w":
		return "/candles/weeks", nil
	case "1M":
		return "/candles/months", nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", timeframe)
	}
}

// wsTickerMessage is the websocket ticker payload.
type wsTickerMessage struct {
	Type              string  `json:"type"`
	Code              string  `json:"code"`
	TradePrice        float64 `json:"trade_price"`
	TradeVolume       float64 `json:"trade_volume"`
	SignedChangeRate  float64 `json:"signed_change_rate"`
	HighPrice         float64 `json:"high_price"`
	LowPrice          float64 `json:"low_price"`
	AccTradeVolume24h float64 `json:"acc_trade_volume_24h"`
	TimestampMs       int64   `json:"timestamp"`
}

func (m wsTickerMessage) toModel() model.Ticker {
	return model.Ticker{
		Symbol:            m.Code,
		TradePrice:        m.TradePrice,
		TradeVolume:       m.TradeVolume,
		ChangeRate:        m.SignedChangeRate,
		High24h:           m.HighPrice,
		Low24h:            m.LowPrice,
		AccTradeVolume24h: m.AccTradeVolume24h,
		Timestamp:         time.UnixMilli(m.TimestampMs).UTC(),
	}
}
