package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// SummaryStore implements storage.SummaryStore using PostgreSQL.
// Nested aggregates (exit distribution, monthly buckets, best/worst day)
// are stored as JSONB.
type SummaryStore struct {
	pool *Pool
}

// NewSummaryStore creates a new SummaryStore.
func NewSummaryStore(pool *Pool) *SummaryStore {
	return &SummaryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SummaryStore = (*SummaryStore)(nil)

const summaryColumns = `
	strategy_id, run_id,
	total_trades, wins, losses, win_rate,
	profit_factor, expectancy_pct, total_return_pct, sharpe_ratio, max_drawdown_pct,
	exit_distribution, dual_trigger_bars, expiry_exits_below_entry,
	monthly, best_day, worst_day
`

// Insert adds a new summary. Returns ErrDuplicateKey if (strategy_id, run_id) exists.
func (s *SummaryStore) Insert(ctx context.Context, summary *domain.AlgoSummary) error {
	query := `
		INSERT INTO algo_summaries (
			strategy_id, run_id,
			total_trades, wins, losses, win_rate,
			profit_factor, expectancy_pct, total_return_pct, sharpe_ratio, max_drawdown_pct,
			exit_distribution, dual_trigger_bars, expiry_exits_below_entry,
			monthly, best_day, worst_day
		) VALUES (
			$1, $2,
			$3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17
		)
	`

	exitDist, err := json.Marshal(summary.ExitDistribution)
	if err != nil {
		return fmt.Errorf("marshal exit distribution: %w", err)
	}
	monthly, err := json.Marshal(summary.Monthly)
	if err != nil {
		return fmt.Errorf("marshal monthly stats: %w", err)
	}
	bestDay, err := marshalDay(summary.BestDay)
	if err != nil {
		return err
	}
	worstDay, err := marshalDay(summary.WorstDay)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = s.pool.Exec(ctx, query,
		summary.StrategyID, summary.RunID,
		summary.TotalTrades, summary.Wins, summary.Losses, summary.WinRate,
		summary.ProfitFactor, summary.ExpectancyPct, summary.TotalReturnPct, summary.SharpeRatio, summary.MaxDrawdownPct,
		exitDist, summary.DualTriggerBars, summary.ExpiryExitsBelowEntry,
		monthly, bestDay, worstDay,
	)
	observe("insert_summary", start, err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// GetByKey retrieves a summary by strategy and run. Returns ErrNotFound if not exists.
func (s *SummaryStore) GetByKey(ctx context.Context, strategyID, runID string) (*domain.AlgoSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM algo_summaries WHERE strategy_id = $1 AND run_id = $2`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, strategyID, runID)
	summary, err := scanSummary(row)
	observe("get_summary_by_key", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get summary by key: %w", err)
	}
	return summary, nil
}

// GetByStrategy retrieves all summaries for a strategy, ordered by run_id.
func (s *SummaryStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.AlgoSummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM algo_summaries
		WHERE strategy_id = $1
		ORDER BY run_id ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		observe("get_summaries_by_strategy", start, err)
		return nil, fmt.Errorf("get summaries by strategy: %w", err)
	}
	defer rows.Close()

	summaries, err := scanSummaries(rows)
	observe("get_summaries_by_strategy", start, err)
	return summaries, err
}

// GetAll retrieves all summaries.
func (s *SummaryStore) GetAll(ctx context.Context) ([]*domain.AlgoSummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM algo_summaries
		ORDER BY strategy_id ASC, run_id ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		observe("get_all_summaries", start, err)
		return nil, fmt.Errorf("get all summaries: %w", err)
	}
	defer rows.Close()

	summaries, err := scanSummaries(rows)
	observe("get_all_summaries", start, err)
	return summaries, err
}

func marshalDay(day *domain.DayStats) ([]byte, error) {
	if day == nil {
		return nil, nil
	}
	data, err := json.Marshal(day)
	if err != nil {
		return nil, fmt.Errorf("marshal day stats: %w", err)
	}
	return data, nil
}

// scanSummary scans a single row into an AlgoSummary.
func scanSummary(row pgx.Row) (*domain.AlgoSummary, error) {
	var summary domain.AlgoSummary
	var exitDist, monthly, bestDay, worstDay []byte

	err := row.Scan(
		&summary.StrategyID, &summary.RunID,
		&summary.TotalTrades, &summary.Wins, &summary.Losses, &summary.WinRate,
		&summary.ProfitFactor, &summary.ExpectancyPct, &summary.TotalReturnPct, &summary.SharpeRatio, &summary.MaxDrawdownPct,
		&exitDist, &summary.DualTriggerBars, &summary.ExpiryExitsBelowEntry,
		&monthly, &bestDay, &worstDay,
	)
	if err != nil {
		return nil, err
	}

	if len(exitDist) > 0 {
		if err := json.Unmarshal(exitDist, &summary.ExitDistribution); err != nil {
			return nil, fmt.Errorf("unmarshal exit distribution: %w", err)
		}
	}
	if len(monthly) > 0 {
		if err := json.Unmarshal(monthly, &summary.Monthly); err != nil {
			return nil, fmt.Errorf("unmarshal monthly stats: %w", err)
		}
	}
	if len(bestDay) > 0 {
		summary.BestDay = &domain.DayStats{}
		if err := json.Unmarshal(bestDay, summary.BestDay); err != nil {
			return nil, fmt.Errorf("unmarshal best day: %w", err)
		}
	}
	if len(worstDay) > 0 {
		summary.WorstDay = &domain.DayStats{}
		if err := json.Unmarshal(worstDay, summary.WorstDay); err != nil {
			return nil, fmt.Errorf("unmarshal worst day: %w", err)
		}
	}

	return &summary, nil
}

// scanSummaries scans multiple rows into a slice of AlgoSummary.
func scanSummaries(rows pgx.Rows) ([]*domain.AlgoSummary, error) {
	var summaries []*domain.AlgoSummary

	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}

	return summaries, nil
}
