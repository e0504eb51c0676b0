package reporting

import (
	"context"
	"fmt"
	"time"

	"strategy-lab/internal/decision"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/execadjust"
	"strategy-lab/internal/metrics"
	"strategy-lab/internal/robustness"
	"strategy-lab/internal/storage"
	"strategy-lab/internal/walkforward"
)

// Generator produces run reports from stored trades.
type Generator struct {
	tradeStore storage.TradeStore
	classifier *robustness.Classifier
	validator  *walkforward.Validator
	evaluator  *decision.Evaluator
	adjuster   execadjust.Adjuster
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator over a trade store.
func NewGenerator(tradeStore storage.TradeStore) *Generator {
	return &Generator{
		tradeStore: tradeStore,
		classifier: robustness.NewClassifier(),
		validator:  walkforward.NewValidator(),
		evaluator:  decision.NewEvaluator(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithAdjuster enables the execution-adjusted section.
func (g *Generator) WithAdjuster(a execadjust.Adjuster) *Generator {
	g.adjuster = a
	return g
}

// GenerateInput carries per-run context the stores do not hold.
type GenerateInput struct {
	StrategyID string
	RunID      string
	// Prior enables the execution-adjusted section when an adjuster is set.
	Prior *execadjust.ReliabilityPrior
	// Provenance is attached verbatim when present.
	Provenance *domain.ProvenanceReport
}

// Generate loads the strategy's trades and assembles the full report:
// summary, checkpoint consistency, walkforward folds and the gate verdict.
func (g *Generator) Generate(ctx context.Context, input GenerateInput) (*Report, error) {
	trades, err := g.tradeStore.GetByStrategy(ctx, input.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("load trades for %s: %w", input.StrategyID, err)
	}

	return g.Build(input, trades), nil
}

// Build assembles a report from an already-loaded trade set.
func (g *Generator) Build(input GenerateInput, trades []*domain.Trade) *Report {
	summary := metrics.ComputeSummary(input.StrategyID, trades)
	summary.RunID = input.RunID

	consistency := g.classifier.Classify(input.StrategyID, trades)
	wf := g.validator.Validate(input.StrategyID, trades)

	// A run with no trades has no comparison row to evaluate.
	var row *decision.ComparisonRow
	if summary.TotalTrades > 0 {
		row = &decision.ComparisonRow{
			StrategyID:          input.StrategyID,
			ProfitFactor:        summary.ProfitFactor,
			ExpectancyPct:       summary.ExpectancyPct,
			Trades:              summary.TotalTrades,
			MinPosFrac:          consistency.MinPosFrac,
			WalkforwardPassRate: wf.PassRate,
		}
	}
	gate := g.evaluator.Evaluate(row)
	if input.Provenance != nil {
		gate = g.evaluator.ApplyProvenanceVeto(gate, input.Provenance)
	}

	report := &Report{
		GeneratedAt: g.now(),
		StrategyID:  input.StrategyID,
		RunID:       input.RunID,
		Summary:     summary,
		Consistency: consistency,
		Walkforward: wf,
		Gate:        gate,
		Provenance:  input.Provenance,
	}

	if g.adjuster != nil && input.Prior != nil {
		report.ExecutionAdjusted = g.adjuster.Adjust(summary, *input.Prior)
	}

	return report
}
