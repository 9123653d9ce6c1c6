package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"market-data-service/internal/logger"
	"market-data-service/internal/model"
)

const (
	DefaultWebSocketURL = "wss://api.upbit.com/websocket/v1"

	wsReadTimeout  = 90 * time.Second
	wsWriteTimeout = 10 * time.Second
	pingInterval   = 45 * time.Second
)

// TickerHandler receives every live ticker pushed by the venue.
type TickerHandler func(model.Ticker)

// WebSocketClient subscribes to the venue's ticker stream and forwards
// updates to a handler (typically a cache write-through). It reconnects with
// a fixed delay until closed.
type WebSocketClient struct {
	url            string
	symbols        []string
	reconnectDelay time.Duration
	onTicker       TickerHandler

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWebSocketClient creates a websocket subscriber for the given symbols.
func NewWebSocketClient(wsURL string, symbols []string, reconnectDelay time.Duration, onTicker TickerHandler) *WebSocketClient {
	if wsURL == "" {
		wsURL = DefaultWebSocketURL
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketClient{
		url:            wsURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		onTicker:       onTicker,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start connects and begins streaming. Reconnection runs until Close.
func (w *WebSocketClient) Start() error {
	if err := w.connect(); err != nil {
		return err
	}
	go w.run()
	return nil
}

// IsConnected reports the current connection state.
func (w *WebSocketClient) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Close stops the stream and tears down the connection.
func (w *WebSocketClient) Close() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

func (w *WebSocketClient) connect() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = wsWriteTimeout

	conn, _, err := dialer.Dial(w.url, nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}

	// Subscription frame: [{"ticket":...},{"type":"ticker","codes":[...]}]
	sub := []interface{}{
		map[string]string{"ticket": uuid.New().String()},
		map[string]interface{}{"type": "ticker", "codes": w.symbols},
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send subscription: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	logger.GetLogger().WithField("symbols", w.symbols).Info("Upbit websocket connected")
	return nil
}

// run reads messages until the context is cancelled, reconnecting on errors.
func (w *WebSocketClient) run() {
	go w.pingLoop()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			w.reconnect()
			continue
		}

		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			logger.GetLogger().WithField("error", err.Error()).Warn("Websocket read failed, reconnecting")
			w.reconnect()
			continue
		}

		w.handleMessage(payload)
	}
}

func (w *WebSocketClient) handleMessage(payload []byte) {
	var msg wsTickerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.GetLogger().WithField("error", err.Error()).Debug("Unparseable websocket message dropped")
		return
	}
	if msg.Type != "ticker" || msg.Code == "" {
		return
	}
	if w.onTicker != nil {
		w.onTicker(msg.toModel())
	}
}

func (w *WebSocketClient) reconnect() {
	w.mu.Lock()
	w.connected = false
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.mu.Unlock()

	select {
	case <-w.ctx.Done():
		return
	case <-time.After(w.reconnectDelay):
	}

	if err := w.connect(); err != nil {
		logger.GetLogger().WithField("error", err.Error()).Warn("Websocket reconnect failed")
	}
}

func (w *WebSocketClient) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			connected := w.connected
			w.mu.RUnlock()

			if !connected || conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.GetLogger().WithField("error", err.Error()).Debug("Websocket ping failed")
			}
		}
	}
}
