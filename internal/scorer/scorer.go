// Package scorer merges multiple attempts' summaries per strategy and
// ranks the merged aggregates for final promotion comparison.
package scorer

import (
	"encoding/json"
	"math"
	"sort"

	"strategy-lab/internal/decision"
	"strategy-lab/internal/domain"
)

// Composite score weights. Drawdown enters as a penalty.
const (
	weightExpectancy   = 10.0
	weightProfitFactor = 5.0
	weightSharpe       = 2.0
	weightDrawdown     = 0.1

	// profitFactorCap bounds the score contribution of a lossless
	// aggregate so +Inf profit factors rank high but finite.
	profitFactorCap = 10.0
)

// Aggregate is the trade-count-weighted merge of one strategy's attempts.
type Aggregate struct {
	StrategyID     string  `json:"strategy_id"`
	Family         string  `json:"family,omitempty"`
	Attempts       int     `json:"attempts"`
	Trades         int     `json:"trades"`
	WinRate        float64 `json:"win_rate"`
	ExpectancyPct  float64 `json:"expectancy_pct"`
	ProfitFactor   float64 `json:"profit_factor"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	NetPnlPct      float64 `json:"net_pnl_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// ScoredAggregate is an aggregate with its composite rank score.
type ScoredAggregate struct {
	Aggregate
	Score float64 `json:"score"`
}

// MarshalJSON keeps a lossless aggregate's +Inf profit factor
// representable in payloads.
func (a Aggregate) MarshalJSON() ([]byte, error) {
	type alias Aggregate
	return json.Marshal(struct {
		alias
		ProfitFactor domain.JSONFloat `json:"profit_factor"`
	}{alias: alias(a), ProfitFactor: domain.JSONFloat(a.ProfitFactor)})
}

// UnmarshalJSON restores non-finite profit factors.
func (a *Aggregate) UnmarshalJSON(data []byte) error {
	type alias Aggregate
	aux := struct {
		*alias
		ProfitFactor domain.JSONFloat `json:"profit_factor"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.ProfitFactor = float64(aux.ProfitFactor)
	return nil
}

// MarshalJSON splices the score into the aggregate's encoding; the
// embedded Aggregate marshaler would otherwise drop it.
func (s ScoredAggregate) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(s.Aggregate)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	score, err := json.Marshal(domain.JSONFloat(s.Score))
	if err != nil {
		return nil, err
	}
	fields["score"] = score

	return json.Marshal(fields)
}

// UnmarshalJSON restores the aggregate and its score.
func (s *ScoredAggregate) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &s.Aggregate); err != nil {
		return err
	}

	aux := struct {
		Score domain.JSONFloat `json:"score"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Score = float64(aux.Score)
	return nil
}

// PromotionVerdict is the gate outcome for a merged aggregate.
type PromotionVerdict struct {
	Promoted bool   `json:"promoted"`
	Reason   string `json:"reason"`
}

// AggregateRunSummaries merges attempts' summaries into one aggregate.
// Counts sum; rate metrics are weighted by each attempt's trade count;
// drawdown takes the worst attempt (merging equity curves across attempts
// would need the raw trades). Attempts with zero trades contribute nothing.
func AggregateRunSummaries(strategyID, family string, attempts []*domain.AlgoSummary) *Aggregate {
	agg := &Aggregate{
		StrategyID: strategyID,
		Family:     family,
		Attempts:   len(attempts),
	}

	var (
		weightSum     float64
		winRateSum    float64
		expectancySum float64
		sharpeSum     float64

		finitePfWeight float64
		finitePfSum    float64
		hasInfPf       bool
	)

	for _, a := range attempts {
		if a == nil || a.TotalTrades == 0 {
			continue
		}
		w := float64(a.TotalTrades)

		agg.Trades += a.TotalTrades
		agg.NetPnlPct += a.TotalReturnPct
		if a.MaxDrawdownPct > agg.MaxDrawdownPct {
			agg.MaxDrawdownPct = a.MaxDrawdownPct
		}

		weightSum += w
		winRateSum += a.WinRate * w
		expectancySum += a.ExpectancyPct * w
		sharpeSum += a.SharpeRatio * w

		if math.IsInf(a.ProfitFactor, 1) {
			hasInfPf = true
		} else {
			finitePfWeight += w
			finitePfSum += a.ProfitFactor * w
		}
	}

	if weightSum == 0 {
		return agg
	}

	agg.WinRate = winRateSum / weightSum
	agg.ExpectancyPct = expectancySum / weightSum
	agg.SharpeRatio = sharpeSum / weightSum

	switch {
	case finitePfWeight > 0:
		agg.ProfitFactor = finitePfSum / finitePfWeight
	case hasInfPf:
		agg.ProfitFactor = math.Inf(1)
	}

	return agg
}

// ScoreStrategySet ranks aggregates by composite score, descending.
// Ties break on strategy id for deterministic output.
func ScoreStrategySet(aggregates []*Aggregate) []ScoredAggregate {
	scored := make([]ScoredAggregate, 0, len(aggregates))
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		scored = append(scored, ScoredAggregate{
			Aggregate: *agg,
			Score:     compositeScore(agg),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].StrategyID < scored[j].StrategyID
	})

	return scored
}

// compositeScore blends expectancy, profit factor edge, sharpe and a
// drawdown penalty.
func compositeScore(agg *Aggregate) float64 {
	pf := agg.ProfitFactor
	if pf > profitFactorCap {
		pf = profitFactorCap
	}

	return weightExpectancy*agg.ExpectancyPct +
		weightProfitFactor*(pf-1) +
		weightSharpe*agg.SharpeRatio -
		weightDrawdown*agg.MaxDrawdownPct
}

// EvaluatePromotion applies the promotion gates to a merged aggregate.
// minPosFrac and walkforwardPassRate come from the strategy's robustness
// artifacts, which are computed over the full trade set rather than
// per-attempt summaries.
func EvaluatePromotion(agg *Aggregate, minPosFrac, walkforwardPassRate float64) PromotionVerdict {
	evaluator := decision.NewEvaluator()

	var row *decision.ComparisonRow
	if agg != nil && agg.Trades > 0 {
		row = &decision.ComparisonRow{
			StrategyID:          agg.StrategyID,
			ProfitFactor:        agg.ProfitFactor,
			ExpectancyPct:       agg.ExpectancyPct,
			Trades:              agg.Trades,
			MinPosFrac:          minPosFrac,
			WalkforwardPassRate: walkforwardPassRate,
		}
	}

	result := evaluator.Evaluate(row)
	return PromotionVerdict{
		Promoted: result.Action == domain.ActionPromoteToProven,
		Reason:   result.Reason,
	}
}
