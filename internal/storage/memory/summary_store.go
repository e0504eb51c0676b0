package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// SummaryStore is an in-memory implementation of storage.SummaryStore.
type SummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AlgoSummary // keyed by composite key
}

// NewSummaryStore creates a new in-memory summary store.
func NewSummaryStore() *SummaryStore {
	return &SummaryStore{
		data: make(map[string]*domain.AlgoSummary),
	}
}

// summaryKey generates a unique key for a summary.
func summaryKey(strategyID, runID string) string {
	return fmt.Sprintf("%s|%s", strategyID, runID)
}

// Insert adds a new summary. Returns ErrDuplicateKey if (strategy_id, run_id) exists.
func (s *SummaryStore) Insert(_ context.Context, summary *domain.AlgoSummary) error {
	if summary == nil || summary.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	key := summaryKey(summary.StrategyID, summary.RunID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = copySummary(summary)
	return nil
}

// GetByKey retrieves a summary by strategy and run. Returns ErrNotFound if not exists.
func (s *SummaryStore) GetByKey(_ context.Context, strategyID, runID string) (*domain.AlgoSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, exists := s.data[summaryKey(strategyID, runID)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copySummary(summary), nil
}

// GetByStrategy retrieves all summaries for a strategy, ordered by run_id ASC.
func (s *SummaryStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.AlgoSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AlgoSummary
	for _, summary := range s.data {
		if summary.StrategyID == strategyID {
			result = append(result, copySummary(summary))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

// GetAll retrieves all summaries, ordered by strategy_id, run_id ASC.
func (s *SummaryStore) GetAll(_ context.Context) ([]*domain.AlgoSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.AlgoSummary, 0, len(s.data))
	for _, summary := range s.data {
		result = append(result, copySummary(summary))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StrategyID != result[j].StrategyID {
			return result[i].StrategyID < result[j].StrategyID
		}
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

// copySummary deep-copies a summary so callers cannot mutate stored state.
func copySummary(s *domain.AlgoSummary) *domain.AlgoSummary {
	out := *s

	if s.ExitDistribution != nil {
		out.ExitDistribution = make(map[string]int, len(s.ExitDistribution))
		for k, v := range s.ExitDistribution {
			out.ExitDistribution[k] = v
		}
	}
	if s.Monthly != nil {
		out.Monthly = make([]domain.MonthlyStats, len(s.Monthly))
		copy(out.Monthly, s.Monthly)
	}
	if s.BestDay != nil {
		day := *s.BestDay
		out.BestDay = &day
	}
	if s.WorstDay != nil {
		day := *s.WorstDay
		out.WorstDay = &day
	}

	return &out
}

var _ storage.SummaryStore = (*SummaryStore)(nil)
