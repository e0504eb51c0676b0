package clickhouse

import (
	"context"
	"fmt"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
// The candles table is a ReplacingMergeTree keyed by (symbol, timeframe,
// timestamp), so re-inserting a candle overwrites rather than duplicates.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds candles for a symbol/timeframe. Duplicate timestamps are
// deduplicated by the merge engine, not rejected.
func (s *CandleStore) InsertBulk(ctx context.Context, symbol, timeframe string, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	start := time.Now()
	err := s.insertBulk(ctx, symbol, timeframe, candles)
	observability.RecordDBQuery("clickhouse", "insert_candles_bulk", time.Since(start).Seconds(), err)
	return err
}

func (s *CandleStore) insertBulk(ctx context.Context, symbol, timeframe string, candles []domain.Candle) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, timeframe, timestamp, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			symbol, timeframe, c.Timestamp,
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRange retrieves candles within [start, end] (inclusive), ordered by
// timestamp ASC. FINAL collapses unmerged duplicate rows at read time.
func (s *CandleStore) GetByRange(ctx context.Context, symbol, timeframe string, start, end int64) ([]domain.Candle, error) {
	query := `
		SELECT timestamp, open, high, low, close, volume
		FROM candles FINAL
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	began := time.Now()
	rows, err := s.conn.Query(ctx, query, symbol, timeframe, start, end)
	if err != nil {
		observability.RecordDBQuery("clickhouse", "get_candles_by_range", time.Since(began).Seconds(), err)
		return nil, fmt.Errorf("query candles by range: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	observability.RecordDBQuery("clickhouse", "get_candles_by_range", time.Since(began).Seconds(), err)
	return candles, err
}

// chRows abstracts driver.Rows for scan helpers.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// scanCandles scans multiple rows.
func scanCandles(rows chRows) ([]domain.Candle, error) {
	var candles []domain.Candle

	for rows.Next() {
		var c domain.Candle

		err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
