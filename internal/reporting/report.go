package reporting

import (
	"time"

	"strategy-lab/internal/decision"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/execadjust"
)

// Report is the full validation report for one strategy run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	StrategyID  string
	RunID       string

	// Core backtest metrics
	Summary *domain.AlgoSummary

	// Robustness evidence
	Consistency *domain.ConsistencyRow
	Walkforward *domain.WalkforwardSummary

	// Promotion gate outcome
	Gate *decision.GateResult

	// Advisory live-execution view; never feeds the gate
	ExecutionAdjusted *execadjust.Adjusted

	// Data provenance
	Provenance *domain.ProvenanceReport
}
