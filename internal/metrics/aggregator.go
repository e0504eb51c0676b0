package metrics

import (
	"context"
	"errors"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// ErrNoTrades is returned when no trades are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// Aggregator computes strategy summaries from stored trades.
type Aggregator struct {
	tradeStore   storage.TradeStore
	summaryStore storage.SummaryStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(tradeStore storage.TradeStore, summaryStore storage.SummaryStore) *Aggregator {
	return &Aggregator{
		tradeStore:   tradeStore,
		summaryStore: summaryStore,
	}
}

// ComputeSummary loads a strategy's trades and computes its summary.
// Returns ErrNoTrades when the strategy has no stored trades.
func (a *Aggregator) ComputeSummary(ctx context.Context, strategyID, runID string) (*domain.AlgoSummary, error) {
	trades, err := a.tradeStore.GetByStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}

	summary := ComputeSummary(strategyID, trades)
	summary.RunID = runID
	return summary, nil
}

// ComputeAndStore computes and persists a summary.
// Returns storage.ErrDuplicateKey if the (strategy_id, run_id) summary exists.
func (a *Aggregator) ComputeAndStore(ctx context.Context, strategyID, runID string) (*domain.AlgoSummary, error) {
	summary, err := a.ComputeSummary(ctx, strategyID, runID)
	if err != nil {
		return nil, err
	}

	if err := a.summaryStore.Insert(ctx, summary); err != nil {
		return nil, err
	}

	return summary, nil
}
