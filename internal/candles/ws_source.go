package candles

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"strategy-lab/internal/domain"
)

// WSSourceConfig configures WebSocket streaming behavior.
type WSSourceConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default streaming configuration.
func DefaultWSConfig() WSSourceConfig {
	return WSSourceConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// candleSubscription identifies what a subscriber asked for, kept so the
// stream can be re-established after a reconnect.
type candleSubscription struct {
	Symbol    string
	Timeframe string
}

// CandleUpdate is one streamed candle with its subscription key.
type CandleUpdate struct {
	Symbol    string
	Timeframe string
	Candle    domain.Candle
}

// WSSource streams live candles over a WebSocket connection. It
// reconnects with exponential backoff and resubscribes automatically.
type WSSource struct {
	endpoint string
	provider string
	config   WSSourceConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	subs   map[int64]chan CandleUpdate
	subsMu sync.RWMutex

	// active stores subscription keys for resubscription after reconnect
	active   map[int64]candleSubscription
	activeMu sync.RWMutex

	// pending maps request ID to channel waiting for a subscription ID
	pending   map[uint64]chan int64
	pendingMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewWSSource connects to a streaming endpoint and starts the read and
// ping loops.
func NewWSSource(ctx context.Context, endpoint, provider string, config *WSSourceConfig) (*WSSource, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if provider == "" {
		provider = "ws"
	}

	s := &WSSource{
		endpoint: endpoint,
		provider: provider,
		config:   cfg,
		subs:     make(map[int64]chan CandleUpdate),
		active:   make(map[int64]candleSubscription),
		pending:  make(map[uint64]chan int64),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()

	return s, nil
}

// Provider returns the provider name for provenance attribution.
func (s *WSSource) Provider() string { return s.provider }

func (s *WSSource) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	s.conn = conn
	return nil
}

// Subscribe opens a candle stream for symbol/timeframe. The returned
// channel is closed when the source shuts down.
func (s *WSSource) Subscribe(ctx context.Context, symbol, timeframe string) (<-chan CandleUpdate, error) {
	key := candleSubscription{Symbol: symbol, Timeframe: timeframe}

	subID, err := s.sendSubscribe(ctx, key)
	if err != nil {
		return nil, err
	}

	// Large buffer absorbs bursts; sends block rather than drop.
	ch := make(chan CandleUpdate, 4096)
	s.subsMu.Lock()
	s.subs[subID] = ch
	s.subsMu.Unlock()

	s.activeMu.Lock()
	s.active[subID] = key
	s.activeMu.Unlock()

	return ch, nil
}

func (s *WSSource) sendSubscribe(ctx context.Context, key candleSubscription) (int64, error) {
	if s.closed.Load() {
		return 0, fmt.Errorf("source closed")
	}

	reqID := s.requestID.Add(1)
	req := wsRequest{
		Op:        "subscribe",
		ID:        reqID,
		Symbol:    key.Symbol,
		Timeframe: key.Timeframe,
	}

	confirmCh := make(chan int64, 1)
	s.pendingMu.Lock()
	s.pending[reqID] = confirmCh
	s.pendingMu.Unlock()

	dropPending := func() {
		s.pendingMu.Lock()
		delete(s.pending, reqID)
		s.pendingMu.Unlock()
	}

	s.connMu.Lock()
	if s.conn == nil {
		s.connMu.Unlock()
		dropPending()
		return 0, fmt.Errorf("not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	err := s.conn.WriteJSON(req)
	s.connMu.Unlock()
	if err != nil {
		dropPending()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(30 * time.Second):
		dropPending()
		return 0, fmt.Errorf("subscription timeout after 30s")
	case <-s.done:
		return 0, fmt.Errorf("source closed")
	case <-ctx.Done():
		dropPending()
		return 0, ctx.Err()
	}
}

// Close closes the connection and all subscription channels.
func (s *WSSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.subsMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subsMu.Unlock()

	s.pendingMu.Lock()
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *WSSource) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay *= 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = s.config.ReconnectDelay
		s.handleMessage(message)
	}
}

func (s *WSSource) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		// Will retry on the next read error.
		return
	}

	s.resubscribeAll()
}

func (s *WSSource) resubscribeAll() {
	s.activeMu.RLock()
	keys := make(map[int64]candleSubscription, len(s.active))
	for id, key := range s.active {
		keys[id] = key
	}
	s.activeMu.RUnlock()

	for oldSubID, key := range keys {
		s.subsMu.RLock()
		ch, ok := s.subs[oldSubID]
		s.subsMu.RUnlock()
		if !ok {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newSubID, err := s.sendSubscribe(ctx, key)
		cancel()
		if err != nil {
			// Keep the old mapping; the next reconnect retries.
			continue
		}

		s.subsMu.Lock()
		delete(s.subs, oldSubID)
		s.subs[newSubID] = ch
		s.subsMu.Unlock()

		s.activeMu.Lock()
		delete(s.active, oldSubID)
		s.active[newSubID] = key
		s.activeMu.Unlock()
	}
}

func (s *WSSource) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch msg.Op {
	case "subscribed":
		s.pendingMu.Lock()
		ch, ok := s.pending[msg.ID]
		if ok {
			delete(s.pending, msg.ID)
		}
		s.pendingMu.Unlock()
		if ok {
			select {
			case ch <- msg.Subscription:
			default:
			}
		}

	case "candle":
		if msg.Candle == nil {
			return
		}
		s.subsMu.RLock()
		ch, ok := s.subs[msg.Subscription]
		s.subsMu.RUnlock()
		if !ok {
			return
		}
		update := CandleUpdate{
			Symbol:    msg.Symbol,
			Timeframe: msg.Timeframe,
			Candle:    *msg.Candle,
		}
		// Block until delivered so no candle is dropped.
		select {
		case ch <- update:
		case <-s.done:
		}
	}
}

func (s *WSSource) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				// On failure the read loop detects the dead connection.
				s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}

// Streaming message shapes.

type wsRequest struct {
	Op        string `json:"op"`
	ID        uint64 `json:"id"`
	Symbol    string `json:"symbol,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
}

type wsMessage struct {
	Op           string         `json:"op"`
	ID           uint64         `json:"id,omitempty"`
	Subscription int64          `json:"subscription,omitempty"`
	Symbol       string         `json:"symbol,omitempty"`
	Timeframe    string         `json:"timeframe,omitempty"`
	Candle       *domain.Candle `json:"candle,omitempty"`
}
