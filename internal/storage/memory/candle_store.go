package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.Candle // series key -> timestamp -> candle
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]map[int64]domain.Candle),
	}
}

// seriesKey generates a unique key for a candle series.
func seriesKey(symbol, timeframe string) string {
	return fmt.Sprintf("%s|%s", symbol, timeframe)
}

// InsertBulk adds candles for a symbol/timeframe. A candle with an
// existing timestamp replaces the stored one, so re-fetches deduplicate.
func (s *CandleStore) InsertBulk(_ context.Context, symbol, timeframe string, candles []domain.Candle) error {
	if symbol == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	key := seriesKey(symbol, timeframe)

	s.mu.Lock()
	defer s.mu.Unlock()

	series, exists := s.data[key]
	if !exists {
		series = make(map[int64]domain.Candle, len(candles))
		s.data[key] = series
	}
	for _, c := range candles {
		series[c.Timestamp] = c
	}

	return nil
}

// GetByRange retrieves candles within [start, end] inclusive, ordered by timestamp ASC.
func (s *CandleStore) GetByRange(_ context.Context, symbol, timeframe string, start, end int64) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, exists := s.data[seriesKey(symbol, timeframe)]
	if !exists {
		return nil, nil
	}

	var result []domain.Candle
	for ts, c := range series {
		if ts >= start && ts <= end {
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
