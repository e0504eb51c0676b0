package storage

import (
	"context"

	"strategy-lab/internal/domain"
)

// TradeStore provides access to simulated trade storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// GetByStrategy retrieves all trades for a strategy, ordered by entry_time ASC, trade_id ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.Trade, error)
}

// SummaryStore provides access to strategy summary storage.
type SummaryStore interface {
	// Insert adds a new summary. Returns ErrDuplicateKey if (strategy_id, run_id) exists.
	Insert(ctx context.Context, s *domain.AlgoSummary) error

	// GetByKey retrieves a summary by strategy and run. Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, strategyID, runID string) (*domain.AlgoSummary, error)

	// GetByStrategy retrieves all summaries for a strategy.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.AlgoSummary, error)

	// GetAll retrieves all summaries.
	GetAll(ctx context.Context) ([]*domain.AlgoSummary, error)
}

// CandleStore caches fetched candle series keyed by (symbol, timeframe).
type CandleStore interface {
	// InsertBulk adds candles for a symbol/timeframe. Duplicate timestamps
	// are deduplicated by the backend, not rejected.
	InsertBulk(ctx context.Context, symbol, timeframe string, candles []domain.Candle) error

	// GetByRange retrieves candles within [start, end] (inclusive), ordered by timestamp ASC.
	GetByRange(ctx context.Context, symbol, timeframe string, start, end int64) ([]domain.Candle, error)
}
