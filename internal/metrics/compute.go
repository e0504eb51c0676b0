package metrics

import (
	"math"
	"sort"
	"time"

	"strategy-lab/internal/domain"
)

// ComputeSummary calculates the full AlgoSummary from a strategy's trades.
// Trades are sorted by EntryTime ASC, TradeID ASC before computing
// order-dependent metrics (MaxDrawdown, monthly breakdown).
// A nil or empty trade set yields a zero summary with ProfitFactor 0.
func ComputeSummary(strategyID string, trades []*domain.Trade) *domain.AlgoSummary {
	n := len(trades)
	if n == 0 {
		return &domain.AlgoSummary{
			StrategyID:       strategyID,
			ExitDistribution: map[string]int{},
		}
	}

	// Sort trades deterministically by EntryTime ASC, TradeID ASC
	sorted := make([]*domain.Trade, n)
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EntryTime != sorted[j].EntryTime {
			return sorted[i].EntryTime < sorted[j].EntryTime
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	wins := 0
	losses := 0
	winSum := 0.0
	lossSum := 0.0
	dualTriggers := 0
	expiryBelowEntry := 0
	exitDist := make(map[string]int)

	netPnls := make([]float64, n)
	for i, t := range sorted {
		netPnls[i] = t.PnlNet
		exitDist[t.ExitReason]++

		if t.PnlNet > 0 {
			wins++
			winSum += t.PnlNet
		} else {
			losses++
			lossSum += t.PnlNet
		}
		if t.DualTriggerBar {
			dualTriggers++
		}
		if t.ExitReason == domain.ExitReasonExpired && t.PnlPct < 0 {
			expiryBelowEntry++
		}
	}

	mean := computeMean(netPnls)
	stddev := computeStddev(netPnls, mean)

	summary := &domain.AlgoSummary{
		StrategyID:            strategyID,
		TotalTrades:           n,
		Wins:                  wins,
		Losses:                losses,
		WinRate:               computeWinRate(wins, n),
		ProfitFactor:          computeProfitFactor(winSum, lossSum, wins),
		ExpectancyPct:         mean,
		TotalReturnPct:        computeSum(netPnls),
		SharpeRatio:           computeSharpe(mean, stddev),
		MaxDrawdownPct:        computeMaxDrawdown(netPnls),
		ExitDistribution:      exitDist,
		DualTriggerBars:       dualTriggers,
		ExpiryExitsBelowEntry: expiryBelowEntry,
		Monthly:               computeMonthly(sorted),
	}

	summary.BestDay, summary.WorstDay = computeBestWorstDay(sorted)

	return summary
}

// computeProfitFactor = sum(winPct) / abs(sum(lossPct)).
// +Inf when losses sum to zero and wins exist; 0 when no trades won or lost anything.
func computeProfitFactor(winSum, lossSum float64, wins int) float64 {
	if lossSum == 0 {
		if wins > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return winSum / math.Abs(lossSum)
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return computeSum(values) / float64(len(values))
}

func computeSum(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computeSharpe = mean / stddev, guarded against a zero stddev.
func computeSharpe(mean, stddev float64) float64 {
	if stddev == 0 {
		return 0
	}
	return mean / stddev
}

// computeMaxDrawdown calculates worst peak-to-trough on the cumulative
// net-PnL equity curve. Values must be in chronological order.
func computeMaxDrawdown(netPnls []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, v := range netPnls {
		cumulative += v
		if cumulative > peak {
			peak = cumulative
		}
		drawdown := peak - cumulative
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// computeMonthly buckets trades by UTC calendar month of entry time.
// Trades must be in chronological order; output preserves that order.
func computeMonthly(sorted []*domain.Trade) []domain.MonthlyStats {
	var months []domain.MonthlyStats
	index := make(map[string]int)

	for _, t := range sorted {
		month := time.UnixMilli(t.EntryTime).UTC().Format("2006-01")
		i, ok := index[month]
		if !ok {
			i = len(months)
			index[month] = i
			months = append(months, domain.MonthlyStats{Month: month})
		}
		months[i].Trades++
		if t.PnlNet > 0 {
			months[i].Wins++
		}
		months[i].NetPnlPct += t.PnlNet
	}

	return months
}

// computeBestWorstDay finds the calendar days (UTC) with the highest and
// lowest total net PnL. Ties resolve to the earliest day.
func computeBestWorstDay(sorted []*domain.Trade) (*domain.DayStats, *domain.DayStats) {
	var days []domain.DayStats
	index := make(map[string]int)

	for _, t := range sorted {
		day := time.UnixMilli(t.EntryTime).UTC().Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			i = len(days)
			index[day] = i
			days = append(days, domain.DayStats{Day: day})
		}
		days[i].Trades++
		days[i].NetPnlPct += t.PnlNet
	}

	if len(days) == 0 {
		return nil, nil
	}

	best := days[0]
	worst := days[0]
	for _, d := range days[1:] {
		if d.NetPnlPct > best.NetPnlPct {
			best = d
		}
		if d.NetPnlPct < worst.NetPnlPct {
			worst = d
		}
	}

	return &best, &worst
}
