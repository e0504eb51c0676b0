package candles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// candleTestServer acks subscribe requests and lets tests push candles
// to subscribers.
type candleTestServer struct {
	server *httptest.Server

	mu        sync.Mutex
	conn      *websocket.Conn
	nextSubID int64
	subs      map[int64]candleSubscription
}

func newCandleTestServer(t *testing.T) *candleTestServer {
	t.Helper()

	s := &candleTestServer{subs: make(map[int64]candleSubscription)}
	upgrader := websocket.Upgrader{}

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Op != "subscribe" {
				continue
			}
			s.mu.Lock()
			s.nextSubID++
			subID := s.nextSubID
			s.subs[subID] = candleSubscription{Symbol: req.Symbol, Timeframe: req.Timeframe}
			s.mu.Unlock()

			conn.WriteJSON(wsMessage{Op: "subscribed", ID: req.ID, Subscription: subID})
		}
	}))
	t.Cleanup(s.server.Close)

	return s
}

func (s *candleTestServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *candleTestServer) push(t *testing.T, subID int64, candle domain.Candle) {
	t.Helper()

	s.mu.Lock()
	conn := s.conn
	key := s.subs[subID]
	s.mu.Unlock()
	if conn == nil {
		t.Fatal("no client connected")
	}

	err := conn.WriteJSON(wsMessage{
		Op:           "candle",
		Subscription: subID,
		Symbol:       key.Symbol,
		Timeframe:    key.Timeframe,
		Candle:       &candle,
	})
	if err != nil {
		t.Fatalf("push candle: %v", err)
	}
}

func TestWSSourceSubscribeAndStream(t *testing.T) {
	server := newCandleTestServer(t)

	source, err := NewWSSource(context.Background(), server.url(), "stream", nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer source.Close()

	ch, err := source.Subscribe(context.Background(), "SOL-USD", "1m")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	want := domain.Candle{Timestamp: 1700000000000, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 5000}
	server.push(t, 1, want)

	select {
	case update := <-ch:
		if update.Symbol != "SOL-USD" || update.Timeframe != "1m" {
			t.Errorf("update key = %s/%s, want SOL-USD/1m", update.Symbol, update.Timeframe)
		}
		if update.Candle != want {
			t.Errorf("candle = %+v, want %+v", update.Candle, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for candle")
	}
}

func TestWSSourceCloseClosesSubscriptions(t *testing.T) {
	server := newCandleTestServer(t)

	source, err := NewWSSource(context.Background(), server.url(), "stream", nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	ch, err := source.Subscribe(context.Background(), "SOL-USD", "1m")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := source.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after Close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("subscription channel not closed")
	}

	// Close is idempotent.
	if err := source.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

// recordingCandleStore captures InsertBulk calls.
type recordingCandleStore struct {
	mu      sync.Mutex
	batches [][]domain.Candle
}

var _ storage.CandleStore = (*recordingCandleStore)(nil)

func (s *recordingCandleStore) InsertBulk(_ context.Context, _, _ string, candles []domain.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]domain.Candle, len(candles))
	copy(batch, candles)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordingCandleStore) GetByRange(_ context.Context, _, _ string, _, _ int64) ([]domain.Candle, error) {
	return nil, nil
}

func (s *recordingCandleStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushesBatches(t *testing.T) {
	server := newCandleTestServer(t)

	source, err := NewWSSource(context.Background(), server.url(), "stream", nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer source.Close()

	store := &recordingCandleStore{}
	collector := NewCollector(source, store,
		WithBatchSize(2),
		WithFlushInterval(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- collector.Collect(ctx, "SOL-USD", "1m")
	}()

	// Let the subscription register before pushing.
	deadline := time.Now().Add(5 * time.Second)
	for {
		server.mu.Lock()
		ready := len(server.subs) == 1
		server.mu.Unlock()
		if ready {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	for i := int64(0); i < 3; i++ {
		server.push(t, 1, domain.Candle{Timestamp: 1700000000000 + i*60000, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1})
	}

	// First two candles fill a batch and flush immediately.
	deadline = time.Now().Add(5 * time.Second)
	for store.total() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("flushed %d candles, want >= 2", store.total())
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Cancellation flushes the trailing partial batch.
	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("collect returned %v, want context.Canceled", err)
	}
	if store.total() != 3 {
		t.Errorf("stored %d candles, want 3 after final flush", store.total())
	}
}
