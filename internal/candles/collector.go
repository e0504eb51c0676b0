package candles

import (
	"context"
	"log"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// Collector consumes a live candle stream and flushes batches into a
// candle store so later backtests can read from cache.
type Collector struct {
	source *WSSource
	store  storage.CandleStore
	logger *log.Logger

	batchSize     int
	flushInterval time.Duration
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithBatchSize sets how many candles accumulate before a flush.
func WithBatchSize(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithFlushInterval sets the maximum age of a pending batch.
func WithFlushInterval(d time.Duration) CollectorOption {
	return func(c *Collector) {
		if d > 0 {
			c.flushInterval = d
		}
	}
}

// WithCollectorLogger sets the logger.
func WithCollectorLogger(l *log.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCollector creates a collector over a connected stream source.
func NewCollector(source *WSSource, store storage.CandleStore, opts ...CollectorOption) *Collector {
	c := &Collector{
		source:        source,
		store:         store,
		logger:        log.New(log.Writer(), "[collector] ", log.LstdFlags),
		batchSize:     200,
		flushInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect subscribes to symbol/timeframe and writes incoming candles to
// the store in batches until the context is cancelled or the stream
// closes. The final partial batch is flushed on exit.
func (c *Collector) Collect(ctx context.Context, symbol, timeframe string) error {
	ch, err := c.source.Subscribe(ctx, symbol, timeframe)
	if err != nil {
		return err
	}

	batch := make([]domain.Candle, 0, c.batchSize)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := c.store.InsertBulk(ctx, symbol, timeframe, batch); err != nil {
			c.logger.Printf("flush %d candles for %s/%s: %v", len(batch), symbol, timeframe, err)
			return
		}
		batch = batch[:0]
	}

	// The final flush runs after cancellation, so it gets its own deadline.
	finalFlush := func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		flush(flushCtx)
	}

	for {
		select {
		case <-ctx.Done():
			finalFlush()
			return ctx.Err()
		case update, ok := <-ch:
			if !ok {
				finalFlush()
				return nil
			}
			batch = append(batch, update.Candle)
			if len(batch) >= c.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}
