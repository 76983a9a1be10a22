package binance

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"futures_go/internal/domain"
	"futures_go/internal/infra"
)

const (
	streamPathPrefix  = "/ws/"
	keepAliveInterval = 30 * time.Minute
	streamReadTimeout = 10 * time.Minute
	handshakeTimeout  = 10 * time.Second

	reconnectMaxInterval = 60 * time.Second
)

// OrderUpdateHandler receives every decoded order update from the
// user-data stream. Called from the read goroutine; handlers that block
// stall the stream.
type OrderUpdateHandler func(update *domain.OrderUpdate)

// UserStreamWorker maintains the user-data WebSocket: it obtains a
// listen key over REST, dials the stream, keeps the key alive every 30
// minutes and reconnects with exponential backoff when the connection
// or the key dies. Only ORDER_TRADE_UPDATE frames are surfaced; other
// event types are ignored.
type UserStreamWorker struct {
	client    *Client
	streamURL string
	handler   OrderUpdateHandler
	logger    *slog.Logger

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewUserStreamWorker creates a worker bound to the given stream host.
// An empty streamURL targets the testnet.
func NewUserStreamWorker(client *Client, streamURL string, handler OrderUpdateHandler, logger *slog.Logger) *UserStreamWorker {
	if streamURL == "" {
		streamURL = StreamURLTestnet
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserStreamWorker{
		client:    client,
		streamURL: strings.TrimRight(streamURL, "/"),
		handler:   handler,
		logger:    logger.With("module", "user_stream"),
	}
}

// Connect starts the connection and keep-alive loops. It returns
// immediately; the first dial happens in the background and failures
// are retried with backoff.
func (w *UserStreamWorker) Connect(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return domain.ErrStreamAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(2)
	w.mu.Unlock()

	go w.connectionLoop(ctx)
	go w.keepAliveLoop(ctx)
	return nil
}

// connectionLoop dials, reads until failure and redials. The backoff
// resets after every successful connect so a stable stream always
// reconnects quickly.
func (w *UserStreamWorker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = reconnectMaxInterval

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			infra.GlobalMetrics.RecordStreamReconnect()
			wait := bo.NextBackOff()
			w.logger.Warn("stream connect failed",
				slog.Any("error", err),
				slog.Duration("retry_in", wait),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		bo.Reset()
		w.readLoop(ctx)

		select {
		case <-ctx.Done():
			return
		default:
			infra.GlobalMetrics.RecordStreamReconnect()
			w.logger.Warn("stream disconnected, reconnecting")
		}
	}
}

// connect obtains a fresh listen key and dials the stream endpoint.
func (w *UserStreamWorker) connect(ctx context.Context) error {
	listenKey, err := w.client.CreateListenKey(ctx)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.streamURL+streamPathPrefix+listenKey, nil)
	if err != nil {
		return domain.NewNetworkError("stream dial", err)
	}

	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		w.writeMu.Lock()
		defer w.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	infra.GlobalMetrics.SetStreamConnected(true)

	w.logger.Info("user-data stream connected")
	return nil
}

// readLoop consumes frames until the connection breaks or the context
// ends.
func (w *UserStreamWorker) readLoop(ctx context.Context) {
	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()
	if conn == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			w.closeConnection()
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			w.logger.Warn("stream read failed", slog.Any("error", err))
			w.closeConnection()
			return
		}
		w.handleMessage(message)
	}
}

// handleMessage routes one frame by its event type. A listenKeyExpired
// notice tears the connection down so the loop redials with a new key.
func (w *UserStreamWorker) handleMessage(message []byte) {
	var header streamEventHeader
	if err := json.Unmarshal(message, &header); err != nil {
		w.logger.Warn("unparseable stream frame", slog.Any("error", err))
		return
	}

	switch header.Event {
	case "ORDER_TRADE_UPDATE":
		var event orderTradeUpdateEvent
		if err := json.Unmarshal(message, &event); err != nil {
			w.logger.Warn("bad order update frame", slog.Any("error", err))
			return
		}
		update, err := event.toDomain()
		if err != nil {
			w.logger.Warn("bad order update frame", slog.Any("error", err))
			return
		}
		infra.GlobalMetrics.RecordStreamEvent()
		w.logger.Debug("order update",
			slog.String("symbol", update.Symbol),
			slog.Int64("order_id", update.OrderID),
			slog.String("status", update.Status),
		)
		if w.handler != nil {
			w.handler(update)
		}
	case "listenKeyExpired":
		w.logger.Warn("listen key expired, reconnecting")
		w.closeConnection()
	default:
		// Other user-data events (balance, margin calls) are not consumed.
	}
}

// keepAliveLoop extends the listen key every 30 minutes while connected.
// A failed keep-alive is logged and left to the expiry notice: the
// connection loop replaces the key on redial anyway.
func (w *UserStreamWorker) keepAliveLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.IsConnected() {
				continue
			}
			if err := w.client.KeepAliveListenKey(ctx); err != nil {
				w.logger.Warn("listen key keep-alive failed", slog.Any("error", err))
				continue
			}
			w.logger.Debug("listen key kept alive")
		}
	}
}

func (w *UserStreamWorker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	if w.connected {
		w.connected = false
		infra.GlobalMetrics.SetStreamConnected(false)
	}
}

// Disconnect stops both loops, closes the listen key server side and
// waits for the goroutines to exit. Safe to call more than once.
func (w *UserStreamWorker) Disconnect() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	ctx, releaseCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer releaseCtx()
	if err := w.client.CloseListenKey(ctx); err != nil {
		w.logger.Warn("listen key close failed", slog.Any("error", err))
	}

	w.closeConnection()
	w.wg.Wait()
	w.logger.Info("user-data stream stopped")
}

// IsConnected reports whether a stream connection is currently live.
func (w *UserStreamWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}
