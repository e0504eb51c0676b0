package decision

import "strategy-lab/internal/domain"

// ComparisonRow is the merged metrics row the gate evaluates. A missing
// row (nil) disables the strategy outright.
type ComparisonRow struct {
	StrategyID          string
	ProfitFactor        float64
	ExpectancyPct       float64
	Trades              int
	MinPosFrac          float64
	WalkforwardPassRate float64
}

// CriterionResult represents pass/fail for one gate.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// GateResult contains the final status with the gate checklist.
type GateResult struct {
	StrategyID string
	Status     domain.StatusLabel
	Action     string
	Reason     string
	Gates      []CriterionResult
}
