// Package robustness classifies strategies into sample-size confidence
// bands from positive-trade fractions at fixed checkpoints.
package robustness

import (
	"sort"

	"strategy-lab/internal/domain"
)

// Checkpoints are the fixed trade-count prefixes scanned for stability.
var Checkpoints = []int{10, 25, 50, 100, 250, 500, 1000}

// Band thresholds. Tunable policy, not a structural invariant.
const (
	RobustMinTrades  = 1000
	RobustMinPosFrac = 0.50
	MediumMinTrades  = 100
)

// Classifier assigns sample bands from checkpoint stability.
type Classifier struct{}

// NewClassifier creates a new robustness classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify computes the consistency row for one strategy's trades.
// Trades are sorted chronologically before the checkpoint scan so the
// prefixes reflect the order the trades actually happened.
func (c *Classifier) Classify(strategyID string, trades []*domain.Trade) *domain.ConsistencyRow {
	n := len(trades)

	sorted := make([]*domain.Trade, n)
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EntryTime != sorted[j].EntryTime {
			return sorted[i].EntryTime < sorted[j].EntryTime
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	// Running positive count lets each checkpoint reuse the prefix sum.
	positives := make([]int, n+1)
	for i, t := range sorted {
		positives[i+1] = positives[i]
		if t.PnlNet > 0 {
			positives[i+1]++
		}
	}

	var stats []domain.CheckpointStat
	for _, cp := range Checkpoints {
		if cp > n {
			break
		}
		stats = append(stats, domain.CheckpointStat{
			Checkpoint: cp,
			PosFrac:    float64(positives[cp]) / float64(cp),
		})
	}

	// Too few trades for even the first checkpoint: the whole set is the
	// only evidence available.
	if len(stats) == 0 && n > 0 {
		stats = append(stats, domain.CheckpointStat{
			Checkpoint: n,
			PosFrac:    float64(positives[n]) / float64(n),
		})
	}

	minFrac := 0.0
	avgFrac := 0.0
	if len(stats) > 0 {
		minFrac = stats[0].PosFrac
		sum := 0.0
		for _, s := range stats {
			if s.PosFrac < minFrac {
				minFrac = s.PosFrac
			}
			sum += s.PosFrac
		}
		avgFrac = sum / float64(len(stats))
	}

	return &domain.ConsistencyRow{
		StrategyID:  strategyID,
		TotalTrades: n,
		Checkpoints: stats,
		MinPosFrac:  minFrac,
		AvgPosFrac:  avgFrac,
		SampleBand:  classifyBand(n, minFrac),
	}
}

// classifyBand maps trade count and stability to a sample band.
func classifyBand(totalTrades int, minPosFrac float64) domain.SampleBand {
	switch {
	case totalTrades >= RobustMinTrades && minPosFrac >= RobustMinPosFrac:
		return domain.SampleBandRobust
	case totalTrades >= MediumMinTrades:
		return domain.SampleBandMedium
	default:
		return domain.SampleBandThin
	}
}
