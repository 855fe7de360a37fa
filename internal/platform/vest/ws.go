package vest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voltrade/revbot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// Stream is the WebSocket client for the account order stream. It manages
// the connection lifecycle and delivers order fills and cancellations on a
// buffered channel. Events are never dropped; the reader blocks when the
// consumer falls behind.
type Stream struct {
	wsURL   string
	account string
	logger  *slog.Logger

	symbols []string
	prices  domain.PriceCache

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	events chan domain.FillEvent
	done   chan struct{}
}

// NewStream creates a stream client for the given WebSocket URL and account.
//
// wsURL is the stream endpoint, e.g. "wss://wsprod.vest.exchange/ws".
func NewStream(wsURL, account string, logger *slog.Logger) *Stream {
	return &Stream{
		wsURL:   wsURL,
		account: account,
		logger:  logger.With(slog.String("component", "vest_stream")),
		events:  make(chan domain.FillEvent, 128),
		done:    make(chan struct{}),
	}
}

// WithTickers additionally subscribes the stream to mark-price tickers for
// the given symbols and writes every update into the cache. This is the
// writer side of the mark-price cache the lifecycle manager reads.
func (s *Stream) WithTickers(symbols []string, prices domain.PriceCache) *Stream {
	s.symbols = symbols
	s.prices = prices
	return s
}

// Events returns the channel order updates are delivered on.
func (s *Stream) Events() <-chan domain.FillEvent {
	return s.events
}

// Connect establishes the WebSocket connection and subscribes to the
// account's order channel.
func (s *Stream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vest/stream: client closed")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("vest/stream: connect: %w", err)
	}
	s.conn = conn

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := s.sendCommand(wsCommand{
		Method: "SUBSCRIBE",
		Params: []string{"orders:" + s.account},
		ID:     1,
	}); err != nil {
		conn.Close()
		return fmt.Errorf("vest/stream: subscribe: %w", err)
	}

	if len(s.symbols) > 0 && s.prices != nil {
		params := make([]string, 0, len(s.symbols))
		for _, sym := range s.symbols {
			params = append(params, "tickers:"+sym)
		}
		if err := s.sendCommand(wsCommand{
			Method: "SUBSCRIBE",
			Params: params,
			ID:     2,
		}); err != nil {
			conn.Close()
			return fmt.Errorf("vest/stream: subscribe tickers: %w", err)
		}
	}

	// Both loops live exactly as long as this connection: the read loop
	// closes connDone on exit, which stops the matching ping loop.
	connDone := make(chan struct{})
	go s.readLoop(conn, connDone)
	go s.pingLoop(conn, connDone)

	return nil
}

// Close shuts down the connection and stops the read loop. The events
// channel stays open so buffered events can still be drained.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	if s.conn != nil {
		_ = s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return s.conn.Close()
	}
	return nil
}

// sendCommand sends a JSON command. Caller must hold s.mu.
func (s *Stream) sendCommand(cmd wsCommand) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads messages from its connection and pushes order events to
// the events channel. On disconnect it reconnects with exponential backoff.
func (s *Stream) readLoop(conn *websocket.Conn, connDone chan struct{}) {
	defer close(connDone)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Warn("stream read failed, reconnecting", slog.String("error", err.Error()))
			s.reconnect()
			return // the new connection starts its own loops
		}

		s.handleMessage(message)
	}
}

// pingLoop sends periodic pings on its connection until the stream closes
// or the connection's read loop ends.
func (s *Stream) pingLoop(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-connDone:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw stream message and forwards order events.
func (s *Stream) handleMessage(raw []byte) {
	var envelope wsEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return // drop unparseable frames
	}
	if envelope.Channel == "tickers" {
		s.handleTicker(raw)
		return
	}
	if envelope.Channel != "orders" {
		return
	}

	var update wsOrderUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		s.logger.Warn("malformed order update", slog.String("error", err.Error()))
		return
	}
	ev, err := update.toFillEvent()
	if err != nil {
		s.logger.Warn("unusable order update", slog.String("error", err.Error()))
		return
	}
	if ev.Filled == nil && ev.Cancelled == nil {
		return // intermediate states are not interesting
	}

	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// handleTicker writes a mark-price update into the price cache. A cache
// write failure only loses a fallback price, so it is logged and dropped.
func (s *Stream) handleTicker(raw []byte) {
	if s.prices == nil {
		return
	}

	var tick wsTicker
	if err := json.Unmarshal(raw, &tick); err != nil {
		s.logger.Warn("malformed ticker update", slog.String("error", err.Error()))
		return
	}
	price, err := fromX18(tick.MarkPrice)
	if err != nil {
		s.logger.Warn("unusable ticker update",
			slog.String("symbol", tick.Symbol),
			slog.String("error", err.Error()),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.prices.SetPrice(ctx, tick.Symbol, price, time.UnixMilli(tick.Timestamp).UTC()); err != nil {
		s.logger.Warn("price cache write failed",
			slog.String("symbol", tick.Symbol),
			slog.String("error", err.Error()),
		)
	}
}

// reconnect re-establishes the connection with exponential backoff. It
// blocks until successful or the stream is closed.
func (s *Stream) reconnect() {
	delay := reconnectDelay
	for {
		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := s.Connect(ctx)
		cancel()
		if err == nil {
			s.logger.Info("stream reconnected")
			return
		}
		s.logger.Warn("stream reconnect failed", slog.String("error", err.Error()))

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
