// Package walkforward re-scores chronological out-of-sample folds to
// check that a strategy's edge holds outside the data it was tuned on.
package walkforward

import (
	"sort"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/metrics"
)

// Default fold configuration.
const (
	DefaultFolds            = 5
	DefaultMinProfitFactor  = 1.0
	DefaultMinExpectancyPct = 0.0
)

// Validator splits trades into chronological folds and scores each fold
// on its validate set only.
type Validator struct {
	folds            int
	minProfitFactor  float64
	minExpectancyPct float64
}

// Option configures a Validator.
type Option func(*Validator)

// WithFolds sets the number of chronological segments.
func WithFolds(k int) Option {
	return func(v *Validator) {
		if k > 1 {
			v.folds = k
		}
	}
}

// WithMinimums sets the per-fold pass thresholds.
func WithMinimums(profitFactor, expectancyPct float64) Option {
	return func(v *Validator) {
		v.minProfitFactor = profitFactor
		v.minExpectancyPct = expectancyPct
	}
}

// NewValidator creates a walkforward validator.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		folds:            DefaultFolds,
		minProfitFactor:  DefaultMinProfitFactor,
		minExpectancyPct: DefaultMinExpectancyPct,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate splits the strategy's trades into k contiguous chronological
// segments. The first segment has no prior data to train on, so segments
// 2..k become the scored folds: each trains on everything before it and
// validates on itself. Folds never overlap and train+validate per fold
// never exceeds the total trade count.
func (v *Validator) Validate(strategyID string, trades []*domain.Trade) *domain.WalkforwardSummary {
	summary := &domain.WalkforwardSummary{StrategyID: strategyID}

	n := len(trades)
	if n == 0 {
		return summary
	}

	sorted := make([]*domain.Trade, n)
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EntryTime != sorted[j].EntryTime {
			return sorted[i].EntryTime < sorted[j].EntryTime
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	for seg := 1; seg < v.folds; seg++ {
		start := seg * n / v.folds
		end := (seg + 1) * n / v.folds
		if start >= end {
			continue
		}

		validate := sorted[start:end]
		foldSummary := metrics.ComputeSummary(strategyID, validate)

		pass := foldSummary.ProfitFactor > v.minProfitFactor &&
			foldSummary.ExpectancyPct > v.minExpectancyPct

		summary.Folds = append(summary.Folds, domain.FoldResult{
			Fold:           seg,
			TrainTrades:    start,
			ValidateTrades: end - start,
			WinRate:        foldSummary.WinRate,
			ProfitFactor:   foldSummary.ProfitFactor,
			ExpectancyPct:  foldSummary.ExpectancyPct,
			TotalReturnPct: foldSummary.TotalReturnPct,
			Pass:           pass,
		})
		if pass {
			summary.PassFolds++
		}
	}

	if len(summary.Folds) > 0 {
		summary.PassRate = float64(summary.PassFolds) / float64(len(summary.Folds))
	}

	return summary
}
