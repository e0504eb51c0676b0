package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_id, strategy_id,
	entry_time, entry_exec_price, exit_time, exit_exec_price, exit_reason,
	high_water_mark_price, dual_trigger_bar, candles_held,
	pnl_pct, fees_pct, slippage_pct, pnl_net
`

const insertTradeQuery = `
	INSERT INTO trades (
		trade_id, strategy_id,
		entry_time, entry_exec_price, exit_time, exit_exec_price, exit_reason,
		high_water_mark_price, dual_trigger_bar, candles_held,
		pnl_pct, fees_pct, slippage_pct, pnl_net
	) VALUES (
		$1, $2,
		$3, $4, $5, $6, $7,
		$8, $9, $10,
		$11, $12, $13, $14
	)
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, insertTradeQuery, tradeArgs(t)...)
	observe("insert_trade", start, err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	start := time.Now()
	err := s.insertBulk(ctx, trades)
	observe("insert_trades_bulk", start, err)
	return err
}

func (s *TradeStore) insertBulk(ctx context.Context, trades []*domain.Trade) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if _, err := tx.Exec(ctx, insertTradeQuery, tradeArgs(t)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE trade_id = $1`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	observe("get_trade_by_id", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetByStrategy retrieves all trades for a strategy, ordered by entry time.
func (s *TradeStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE strategy_id = $1
		ORDER BY entry_time ASC, trade_id ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		observe("get_trades_by_strategy", start, err)
		return nil, fmt.Errorf("get trades by strategy: %w", err)
	}
	defer rows.Close()

	trades, err := scanTrades(rows)
	observe("get_trades_by_strategy", start, err)
	return trades, err
}

func tradeArgs(t *domain.Trade) []any {
	return []any{
		t.TradeID, t.StrategyID,
		t.EntryTime, t.EntryExecPrice, t.ExitTime, t.ExitExecPrice, t.ExitReason,
		t.HighWaterMarkPrice, t.DualTriggerBar, t.CandlesHeld,
		t.PnlPct, t.FeesPct, t.SlippagePct, t.PnlNet,
	}
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade

	err := row.Scan(
		&t.TradeID, &t.StrategyID,
		&t.EntryTime, &t.EntryExecPrice, &t.ExitTime, &t.ExitExecPrice, &t.ExitReason,
		&t.HighWaterMarkPrice, &t.DualTriggerBar, &t.CandlesHeld,
		&t.PnlPct, &t.FeesPct, &t.SlippagePct, &t.PnlNet,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
