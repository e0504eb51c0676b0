package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
)

func testCandles(startTs int64, n int) []domain.Candle {
	out := make([]domain.Candle, n)
	price := 100.0
	for i := range out {
		out[i] = domain.Candle{
			Timestamp: startTs + int64(i)*60000,
			Open:      price,
			High:      price * 1.01,
			Low:       price * 0.99,
			Close:     price * 1.005,
			Volume:    1000 + float64(i),
		}
		price *= 1.005
	}
	return out
}

func TestCandleStore_InsertAndGetByRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	candles := testCandles(1700000000000, 5)
	require.NoError(t, store.InsertBulk(ctx, "SOL-USD", "1m", candles))

	// Inclusive on both ends: candles 1..3.
	got, err := store.GetByRange(ctx, "SOL-USD", "1m", 1700000060000, 1700000180000)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, candles[1].Timestamp, got[0].Timestamp)
	assert.InDelta(t, candles[1].Open, got[0].Open, 1e-9)
	assert.InDelta(t, candles[1].Volume, got[0].Volume, 1e-9)
	assert.Equal(t, candles[3].Timestamp, got[2].Timestamp)
}

func TestCandleStore_DuplicateTimestampsDeduplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	candles := testCandles(1700000000000, 3)
	require.NoError(t, store.InsertBulk(ctx, "SOL-USD", "1m", candles))
	// Re-insert the same series; the replacing engine must collapse it.
	require.NoError(t, store.InsertBulk(ctx, "SOL-USD", "1m", candles))

	got, err := store.GetByRange(ctx, "SOL-USD", "1m", 0, 1800000000000)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCandleStore_SeriesAreIsolated(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	require.NoError(t, store.InsertBulk(ctx, "SOL-USD", "1m", testCandles(1700000000000, 3)))
	require.NoError(t, store.InsertBulk(ctx, "SOL-USD", "5m", testCandles(1700000000000, 2)))
	require.NoError(t, store.InsertBulk(ctx, "ETH-USD", "1m", testCandles(1700000000000, 4)))

	got, err := store.GetByRange(ctx, "SOL-USD", "1m", 0, 1800000000000)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = store.GetByRange(ctx, "ETH-USD", "1m", 0, 1800000000000)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestCandleStore_EmptyRangeAndEmptyInsert(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	require.NoError(t, store.InsertBulk(ctx, "SOL-USD", "1m", nil))

	got, err := store.GetByRange(ctx, "SOL-USD", "1m", 0, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}
