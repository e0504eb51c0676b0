package decision

import (
	"fmt"
	"strings"

	"strategy-lab/internal/domain"
)

// Gate thresholds. Strict AND of all five.
const (
	MinProfitFactor        = 1.15
	MinExpectancyPct       = 0.0
	MinTrades              = 100
	MinPosFrac             = 0.70
	MinWalkforwardPassRate = 0.60
)

// Evaluator applies the promotion gate to comparison rows.
type Evaluator struct{}

// NewEvaluator creates a new promotion gate evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate decides promote / keep-experimental / disable for one strategy.
// The decision is monotonic in every gate metric: improving any one metric
// with the rest fixed never moves the result away from promotion.
func (e *Evaluator) Evaluate(row *ComparisonRow) *GateResult {
	if row == nil {
		return &GateResult{
			Status: domain.StatusExperimentalDisabled,
			Action: domain.ActionDisableExperimental,
			Reason: "no comparison row generated",
		}
	}

	gates := e.evaluateGates(row)

	if row.ProfitFactor <= 1 || row.ExpectancyPct <= 0 {
		return &GateResult{
			StrategyID: row.StrategyID,
			Status:     domain.StatusExperimentalDisabled,
			Action:     domain.ActionDisableExperimental,
			Reason:     "losing or non-positive expectancy",
			Gates:      gates,
		}
	}

	allPass := true
	for _, g := range gates {
		if !g.Pass {
			allPass = false
			break
		}
	}

	if allPass {
		return &GateResult{
			StrategyID: row.StrategyID,
			Status:     domain.StatusProven,
			Action:     domain.ActionPromoteToProven,
			Reason:     "all promotion gates passed",
			Gates:      gates,
		}
	}

	return &GateResult{
		StrategyID: row.StrategyID,
		Status:     domain.StatusExperimental,
		Action:     domain.ActionKeepExperimental,
		Reason:     "insufficient robustness for promotion gate",
		Gates:      gates,
	}
}

// ApplyProvenanceVeto downgrades a promotion when required data-source
// coverage is incomplete. Fail-closed: layered on top of the statistical
// gates, never a replacement for them. Non-promotions pass through.
func (e *Evaluator) ApplyProvenanceVeto(result *GateResult, report *domain.ProvenanceReport) *GateResult {
	if result.Action != domain.ActionPromoteToProven {
		return result
	}
	if report == nil || report.CoverageComplete {
		return result
	}

	vetoed := *result
	vetoed.Status = domain.StatusExperimental
	vetoed.Action = domain.ActionKeepExperimental
	if len(report.RequiredMissing) > 0 {
		vetoed.Reason = fmt.Sprintf("provenance coverage incomplete: missing providers %s",
			strings.Join(report.RequiredMissing, ", "))
	} else {
		vetoed.Reason = "provenance coverage incomplete: no provider requests recorded"
	}
	return &vetoed
}

// evaluateGates evaluates the 5 promotion gates.
func (e *Evaluator) evaluateGates(row *ComparisonRow) []CriterionResult {
	gates := make([]CriterionResult, 5)

	gates[0] = CriterionResult{
		Name:      "Profit factor",
		Threshold: "> 1.15",
		Actual:    fmt.Sprintf("%.4f", row.ProfitFactor),
		Pass:      row.ProfitFactor > MinProfitFactor,
	}

	gates[1] = CriterionResult{
		Name:      "Expectancy",
		Threshold: "> 0",
		Actual:    fmt.Sprintf("%.4f%%", row.ExpectancyPct),
		Pass:      row.ExpectancyPct > MinExpectancyPct,
	}

	gates[2] = CriterionResult{
		Name:      "Trade count",
		Threshold: ">= 100",
		Actual:    fmt.Sprintf("%d", row.Trades),
		Pass:      row.Trades >= MinTrades,
	}

	gates[3] = CriterionResult{
		Name:      "Checkpoint stability",
		Threshold: ">= 0.70",
		Actual:    fmt.Sprintf("%.4f", row.MinPosFrac),
		Pass:      row.MinPosFrac >= MinPosFrac,
	}

	gates[4] = CriterionResult{
		Name:      "Walkforward pass rate",
		Threshold: ">= 0.60",
		Actual:    fmt.Sprintf("%.4f", row.WalkforwardPassRate),
		Pass:      row.WalkforwardPassRate >= MinWalkforwardPassRate,
	}

	return gates
}
