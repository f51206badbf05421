package hyperliquid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MessageHandler consumes messages for one subscribed channel.
type MessageHandler func(msg WSMessage)

// Errors returned by the WebSocket manager.
var (
	ErrNotConnected  = errors.New("hyperliquid: websocket not connected")
	ErrAlreadyClosed = errors.New("hyperliquid: websocket manager closed")
)

// WSConfig configures the WebSocket manager.
type WSConfig struct {
	URL                  string
	HeartbeatInterval    time.Duration
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
	WriteTimeout         time.Duration
}

func (c *WSConfig) applyDefaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 5 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

type subEntry struct {
	sub     Subscription
	handler MessageHandler
}

// EventSink receives operational events for the dashboard log viewer.
// Implemented by store.EventLogger.
type EventSink interface {
	Info(message string, args ...any)
	Warn(message string, args ...any)
	Error(message string, err error)
}

// WSManager maintains one WebSocket connection to Hyperliquid, routes
// channel messages to registered handlers, and resubscribes everything
// after a reconnect.
type WSManager struct {
	cfg    WSConfig
	logger *slog.Logger
	events EventSink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Connection state
	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	closed    bool

	// Write serialization
	writeMu sync.Mutex

	// Subscription registry, keyed by subscription identity
	subsMu sync.RWMutex
	subs   map[string]subEntry
}

// NewWSManager creates a WebSocket manager. Start must be called before
// any feed is delivered.
func NewWSManager(cfg WSConfig, logger *slog.Logger) *WSManager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &WSManager{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[string]subEntry),
	}
}

// SetEvents routes connection lifecycle events to the system log. Must
// be called before Start.
func (m *WSManager) SetEvents(sink EventSink) {
	m.events = sink
}

func subKey(sub Subscription) string {
	return fmt.Sprintf("%s|%s|%s|%s", sub.Type, sub.Coin, sub.Interval, sub.User)
}

// Start connects and begins the read and heartbeat loops.
func (m *WSManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	m.mu.Unlock()

	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.connect(); err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}

	m.logger.Info("hyperliquid websocket connected", "url", m.cfg.URL)
	return nil
}

// Stop closes the connection and waits for loops to exit, bounded by
// the given context.
func (m *WSManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.connected = false
	conn := m.conn
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("websocket shutdown timeout, forcing close")
	}

	m.logger.Info("hyperliquid websocket stopped")
	return nil
}

// IsConnected reports whether the connection is currently up.
func (m *WSManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// SubscriptionCount returns the number of registered subscriptions.
func (m *WSManager) SubscriptionCount() int {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	return len(m.subs)
}

// Subscribe registers a handler for a feed and sends the subscribe
// command if connected. The registration survives reconnects.
func (m *WSManager) Subscribe(sub Subscription, handler MessageHandler) error {
	m.subsMu.Lock()
	m.subs[subKey(sub)] = subEntry{sub: sub, handler: handler}
	m.subsMu.Unlock()

	if !m.IsConnected() {
		// Sent on (re)connect instead.
		return nil
	}
	return m.sendCommand(wsCommand{Method: "subscribe", Subscription: &sub})
}

// Unsubscribe removes a feed registration and notifies the server.
func (m *WSManager) Unsubscribe(sub Subscription) error {
	m.subsMu.Lock()
	delete(m.subs, subKey(sub))
	m.subsMu.Unlock()

	if !m.IsConnected() {
		return nil
	}
	return m.sendCommand(wsCommand{Method: "unsubscribe", Subscription: &sub})
}

// connect dials the server, resubscribes all registered feeds, and
// starts the read and heartbeat loops.
func (m *WSManager) connect() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(m.ctx, m.cfg.URL, nil)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.connected = true
	m.mu.Unlock()

	m.resubscribeAll()

	m.wg.Add(2)
	go m.readLoop(conn)
	go m.heartbeatLoop(conn)

	return nil
}

// resubscribeAll replays every registered subscription.
func (m *WSManager) resubscribeAll() {
	m.subsMu.RLock()
	entries := make([]Subscription, 0, len(m.subs))
	for _, e := range m.subs {
		entries = append(entries, e.sub)
	}
	m.subsMu.RUnlock()

	for _, sub := range entries {
		if err := m.sendCommand(wsCommand{Method: "subscribe", Subscription: &sub}); err != nil {
			m.logger.Warn("resubscribe failed",
				"type", sub.Type,
				"coin", sub.Coin,
				"error", err,
			)
		}
	}
	if len(entries) > 0 {
		m.logger.Info("resubscribed feeds", "count", len(entries))
	}
}

func (m *WSManager) sendCommand(cmd wsCommand) error {
	m.mu.RLock()
	conn := m.conn
	connected := m.connected
	m.mu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads messages until the connection fails, then triggers a
// reconnect.
func (m *WSManager) readLoop(conn *websocket.Conn) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-m.ctx.Done():
				return
			default:
			}

			m.mu.Lock()
			m.connected = false
			closed := m.closed
			m.mu.Unlock()

			if closed {
				return
			}

			m.logger.Warn("websocket read error", "error", err)
			m.wg.Add(1)
			go m.reconnect()
			return
		}

		m.dispatch(data)
	}
}

// dispatch routes one raw message to the handlers registered for its
// channel.
func (m *WSManager) dispatch(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		m.logger.Debug("unparseable websocket message", "error", err)
		return
	}

	switch msg.Channel {
	case "", "pong", "subscriptionResponse":
		return
	}

	m.subsMu.RLock()
	handlers := make([]MessageHandler, 0, 2)
	for _, e := range m.subs {
		if e.sub.Type == msg.Channel && e.handler != nil {
			handlers = append(handlers, e.handler)
		}
	}
	m.subsMu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}

// heartbeatLoop sends the application-level ping the server expects.
func (m *WSManager) heartbeatLoop(conn *websocket.Conn) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			current := m.conn
			connected := m.connected
			m.mu.RUnlock()

			// A replaced connection means this loop is stale.
			if !connected || current != conn {
				return
			}

			if err := m.sendCommand(wsCommand{Method: "ping"}); err != nil {
				m.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}

// reconnect retries the connection with linearly increasing delay until
// it succeeds or the attempt budget is exhausted.
func (m *WSManager) reconnect() {
	defer m.wg.Done()

	for attempt := 1; attempt <= m.cfg.MaxReconnectAttempts; attempt++ {
		delay := time.Duration(attempt) * m.cfg.ReconnectBaseDelay

		m.logger.Info("reconnecting websocket",
			"attempt", attempt,
			"max_attempts", m.cfg.MaxReconnectAttempts,
			"delay", delay,
		)
		if m.events != nil {
			m.events.Warn("websocket reconnecting (attempt %d/%d)",
				attempt, m.cfg.MaxReconnectAttempts)
		}

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		if m.conn != nil {
			m.conn.Close()
		}
		m.mu.Unlock()

		if err := m.connect(); err != nil {
			m.logger.Warn("reconnection failed", "attempt", attempt, "error", err)
			continue
		}

		m.logger.Info("websocket reconnected", "attempt", attempt)
		if m.events != nil {
			m.events.Info("websocket reconnected after %d attempt(s)", attempt)
		}
		return
	}

	m.logger.Error("websocket reconnection abandoned",
		"attempts", m.cfg.MaxReconnectAttempts,
	)
	if m.events != nil {
		m.events.Error("websocket reconnection abandoned", nil)
	}
}
