package memory

import (
	"context"
	"errors"
	"testing"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

func testTrade(id, strategyID string, entryTime int64) *domain.Trade {
	return &domain.Trade{
		TradeID:    id,
		StrategyID: strategyID,
		EntryTime:  entryTime,
		PnlNet:     1.5,
	}
}

func TestTradeStoreInsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewTradeStore()

	trade := testTrade("t1", "trail_10", 1000)
	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.StrategyID != "trail_10" || got.EntryTime != 1000 {
		t.Errorf("got %+v", got)
	}

	// Returned value is a copy; mutating it must not affect the store.
	got.PnlNet = -99
	again, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.PnlNet != 1.5 {
		t.Errorf("stored trade mutated through returned copy: %f", again.PnlNet)
	}
}

func TestTradeStoreDuplicateKey(t *testing.T) {
	ctx := context.Background()
	store := NewTradeStore()

	if err := store.Insert(ctx, testTrade("t1", "s", 1)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, testTrade("t1", "s", 2)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeStoreInsertBulkAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewTradeStore()

	// Intra-batch duplicate fails the whole batch.
	err := store.InsertBulk(ctx, []*domain.Trade{
		testTrade("t1", "s", 1),
		testTrade("t1", "s", 2),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "t1"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("failed batch must not partially insert")
	}

	if err := store.InsertBulk(ctx, []*domain.Trade{
		testTrade("t1", "s", 1),
		testTrade("t2", "s", 2),
	}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
}

func TestTradeStoreGetByStrategyOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewTradeStore()

	err := store.InsertBulk(ctx, []*domain.Trade{
		testTrade("t3", "trail_10", 3000),
		testTrade("t1", "trail_10", 1000),
		testTrade("t2", "trail_10", 2000),
		testTrade("x1", "other", 500),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	trades, err := store.GetByStrategy(ctx, "trail_10")
	if err != nil {
		t.Fatalf("GetByStrategy failed: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("got %d trades, want 3", len(trades))
	}
	for i, want := range []string{"t1", "t2", "t3"} {
		if trades[i].TradeID != want {
			t.Errorf("trades[%d] = %s, want %s", i, trades[i].TradeID, want)
		}
	}
}

func TestTradeStoreInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := NewTradeStore()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil trade: expected ErrInvalidInput, got %v", err)
	}
	if err := store.Insert(ctx, &domain.Trade{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty trade_id: expected ErrInvalidInput, got %v", err)
	}
}
