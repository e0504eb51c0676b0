package reporting

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// RenderMarkdown renders a run report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Strategy Validation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Strategy: %s | Run: %s\n\n", r.StrategyID, r.RunID))

	// Backtest Summary
	sb.WriteString("## Backtest Summary\n\n")
	if r.Summary != nil && r.Summary.TotalTrades > 0 {
		s := r.Summary
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", s.TotalTrades))
		sb.WriteString(fmt.Sprintf("| Wins / Losses | %d / %d |\n", s.Wins, s.Losses))
		sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", s.WinRate))
		sb.WriteString(fmt.Sprintf("| Profit Factor | %s |\n", formatFloat(s.ProfitFactor)))
		sb.WriteString(fmt.Sprintf("| Expectancy %% | %.4f |\n", s.ExpectancyPct))
		sb.WriteString(fmt.Sprintf("| Total Return %% | %.4f |\n", s.TotalReturnPct))
		sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.4f |\n", s.SharpeRatio))
		sb.WriteString(fmt.Sprintf("| Max Drawdown %% | %.4f |\n", s.MaxDrawdownPct))
		sb.WriteString(fmt.Sprintf("| Dual-Trigger Bars | %d |\n", s.DualTriggerBars))
		sb.WriteString(fmt.Sprintf("| Expiry Exits Below Entry | %d |\n", s.ExpiryExitsBelowEntry))
		sb.WriteString("\n")

		// Exit distribution
		sb.WriteString("### Exit Distribution\n\n")
		sb.WriteString("| Exit Reason | Count |\n")
		sb.WriteString("|-------------|-------|\n")
		for _, reason := range sortedKeys(s.ExitDistribution) {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", reason, s.ExitDistribution[reason]))
		}
		sb.WriteString("\n")

		// Monthly breakdown
		if len(s.Monthly) > 0 {
			sb.WriteString("### Monthly Breakdown\n\n")
			sb.WriteString("| Month | Trades | Wins | Net PnL % |\n")
			sb.WriteString("|-------|--------|------|-----------|\n")
			for _, m := range s.Monthly {
				sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f |\n", m.Month, m.Trades, m.Wins, m.NetPnlPct))
			}
			sb.WriteString("\n")
		}

		if s.BestDay != nil && s.WorstDay != nil {
			sb.WriteString(fmt.Sprintf("Best day: %s (%.4f%% over %d trades) | Worst day: %s (%.4f%% over %d trades)\n\n",
				s.BestDay.Day, s.BestDay.NetPnlPct, s.BestDay.Trades,
				s.WorstDay.Day, s.WorstDay.NetPnlPct, s.WorstDay.Trades))
		}
	} else {
		sb.WriteString("No trades generated.\n\n")
	}

	// Checkpoint Consistency
	sb.WriteString("## Checkpoint Consistency\n\n")
	if r.Consistency != nil && len(r.Consistency.Checkpoints) > 0 {
		sb.WriteString("| Checkpoint | Positive Fraction |\n")
		sb.WriteString("|-----------|-------------------|\n")
		for _, cp := range r.Consistency.Checkpoints {
			sb.WriteString(fmt.Sprintf("| %d | %.4f |\n", cp.Checkpoint, cp.PosFrac))
		}
		sb.WriteString(fmt.Sprintf("\nMin: %.4f | Avg: %.4f | Sample band: %s\n\n",
			r.Consistency.MinPosFrac, r.Consistency.AvgPosFrac, r.Consistency.SampleBand))
	} else {
		sb.WriteString("No consistency data available.\n\n")
	}

	// Walkforward
	sb.WriteString("## Walkforward Validation\n\n")
	if r.Walkforward != nil && len(r.Walkforward.Folds) > 0 {
		sb.WriteString("| Fold | Train Trades | Validate Trades | Win Rate | Profit Factor | Expectancy % | Status |\n")
		sb.WriteString("|------|--------------|-----------------|----------|---------------|--------------|--------|\n")
		for _, f := range r.Walkforward.Folds {
			status := "FAIL"
			if f.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %d | %d | %d | %.4f | %s | %.4f | %s |\n",
				f.Fold, f.TrainTrades, f.ValidateTrades, f.WinRate,
				formatFloat(f.ProfitFactor), f.ExpectancyPct, status))
		}
		sb.WriteString(fmt.Sprintf("\nPass rate: %.4f (%d of %d folds)\n\n",
			r.Walkforward.PassRate, r.Walkforward.PassFolds, len(r.Walkforward.Folds)))
	} else {
		sb.WriteString("No walkforward data available.\n\n")
	}

	// Promotion Gate
	sb.WriteString("## Promotion Gate\n\n")
	if r.Gate != nil {
		if len(r.Gate.Gates) > 0 {
			sb.WriteString("| Gate | Threshold | Actual | Status |\n")
			sb.WriteString("|------|-----------|--------|--------|\n")
			for _, g := range r.Gate.Gates {
				status := "FAIL"
				if g.Pass {
					status = "PASS"
				}
				sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", g.Name, g.Threshold, g.Actual, status))
			}
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("**Status: %s** | Action: %s\n\nReason: %s\n\n",
			r.Gate.Status, r.Gate.Action, r.Gate.Reason))
	} else {
		sb.WriteString("No gate evaluation available.\n\n")
	}

	// Execution-Adjusted View
	if r.ExecutionAdjusted != nil {
		a := r.ExecutionAdjusted
		sb.WriteString("## Execution-Adjusted View (advisory)\n\n")
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Execution Reliability %% | %.2f |\n", a.ExecutionReliabilityPct))
		sb.WriteString(fmt.Sprintf("| No-Route Rate | %.4f |\n", a.NoRouteRate))
		sb.WriteString(fmt.Sprintf("| Unresolved Rate | %.4f |\n", a.UnresolvedRate))
		sb.WriteString(fmt.Sprintf("| Adjusted Expectancy %% | %.4f |\n", a.ExecutionAdjustedExpectancy))
		sb.WriteString(fmt.Sprintf("| Adjusted Net PnL %% | %.4f |\n", a.ExecutionAdjustedNetPnlPct))
		sb.WriteString(fmt.Sprintf("| Adjuster | %s |\n", a.AdjusterVersion))
		sb.WriteString("\n")
		if len(a.DegradedReasons) > 0 {
			sb.WriteString("Degraded:\n")
			for _, reason := range a.DegradedReasons {
				sb.WriteString(fmt.Sprintf("- %s\n", reason))
			}
			sb.WriteString("\n")
		}
	}

	// Provenance
	sb.WriteString("## Data Provenance\n\n")
	if r.Provenance != nil && r.Provenance.TotalRequests > 0 {
		sb.WriteString("| Provider | Requests | Avg Duration ms |\n")
		sb.WriteString("|----------|----------|-----------------|\n")
		for _, p := range r.Provenance.Providers {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.1f |\n", p.Provider, p.Requests, p.AvgDurationMs))
		}
		sb.WriteString("\n")
		if r.Provenance.CoverageComplete {
			sb.WriteString("Coverage: complete.\n\n")
		} else {
			sb.WriteString(fmt.Sprintf("Coverage: INCOMPLETE. Missing providers: %s\n\n",
				strings.Join(r.Provenance.RequiredMissing, ", ")))
		}
	} else {
		sb.WriteString("No provider requests recorded.\n\n")
	}

	return sb.String()
}

// formatFloat renders +Inf profit factors readably.
func formatFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "Inf"
	}
	return fmt.Sprintf("%.4f", v)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
