package scorer

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"strategy-lab/internal/domain"
)

func summary(trades int, winRate, expectancy, pf, drawdown, totalReturn, sharpe float64) *domain.AlgoSummary {
	return &domain.AlgoSummary{
		TotalTrades:    trades,
		WinRate:        winRate,
		ExpectancyPct:  expectancy,
		ProfitFactor:   pf,
		MaxDrawdownPct: drawdown,
		TotalReturnPct: totalReturn,
		SharpeRatio:    sharpe,
	}
}

func TestAggregateRunSummariesWeightedMerge(t *testing.T) {
	// 3000 trades at winRate 0.52 merged with 2500 at 0.40:
	// trades = 5500
	// winRate = (0.52*3000 + 0.40*2500) / 5500 = (1560 + 1000) / 5500 = 0.46545...
	a := summary(3000, 0.52, 0.08, 1.2, 12, 240, 0.3)
	b := summary(2500, 0.40, 0.02, 1.05, 20, 50, 0.1)

	agg := AggregateRunSummaries("s1", "trailing", []*domain.AlgoSummary{a, b})

	if agg.Trades != 5500 {
		t.Errorf("trades = %d, want 5500", agg.Trades)
	}
	wantWinRate := (0.52*3000 + 0.40*2500) / 5500
	if math.Abs(agg.WinRate-wantWinRate) > 1e-12 {
		t.Errorf("winRate = %f, want %f", agg.WinRate, wantWinRate)
	}
	wantExpectancy := (0.08*3000 + 0.02*2500) / 5500
	if math.Abs(agg.ExpectancyPct-wantExpectancy) > 1e-12 {
		t.Errorf("expectancyPct = %f, want %f", agg.ExpectancyPct, wantExpectancy)
	}
	// Worst drawdown wins; net PnL sums.
	if agg.MaxDrawdownPct != 20 {
		t.Errorf("maxDrawdownPct = %f, want 20", agg.MaxDrawdownPct)
	}
	if math.Abs(agg.NetPnlPct-290) > 1e-12 {
		t.Errorf("netPnlPct = %f, want 290", agg.NetPnlPct)
	}
}

func TestAggregateRunSummariesSkipsEmptyAttempts(t *testing.T) {
	agg := AggregateRunSummaries("s1", "", []*domain.AlgoSummary{
		summary(100, 0.5, 0.1, 1.3, 5, 10, 0.2),
		summary(0, 0, 0, 0, 0, 0, 0),
		nil,
	})

	if agg.Trades != 100 {
		t.Errorf("trades = %d, want 100", agg.Trades)
	}
	if math.Abs(agg.WinRate-0.5) > 1e-12 {
		t.Errorf("winRate = %f, want 0.5 (empty attempts must not dilute)", agg.WinRate)
	}
}

func TestAggregateRunSummariesInfProfitFactor(t *testing.T) {
	// All attempts lossless: merged PF stays +Inf.
	lossless := AggregateRunSummaries("s1", "", []*domain.AlgoSummary{
		summary(10, 1, 1, math.Inf(1), 0, 10, 1),
		summary(20, 1, 2, math.Inf(1), 0, 40, 1),
	})
	if !math.IsInf(lossless.ProfitFactor, 1) {
		t.Errorf("profitFactor = %f, want +Inf", lossless.ProfitFactor)
	}

	// One attempt with real losses anchors the merge to finite evidence.
	mixed := AggregateRunSummaries("s1", "", []*domain.AlgoSummary{
		summary(10, 1, 1, math.Inf(1), 0, 10, 1),
		summary(90, 0.5, 0.1, 1.4, 8, 9, 0.2),
	})
	if math.IsInf(mixed.ProfitFactor, 1) {
		t.Errorf("profitFactor = %f, want finite when losses exist", mixed.ProfitFactor)
	}
	if math.Abs(mixed.ProfitFactor-1.4) > 1e-12 {
		t.Errorf("profitFactor = %f, want 1.4 from the finite attempt", mixed.ProfitFactor)
	}
}

func TestScoreStrategySetRanking(t *testing.T) {
	// The merged strong strategy must outrank a marginal single-attempt one.
	strong := AggregateRunSummaries("strong", "", []*domain.AlgoSummary{
		summary(3000, 0.52, 0.08, 1.2, 12, 240, 0.3),
		summary(2500, 0.50, 0.06, 1.18, 10, 150, 0.25),
	})
	marginal := AggregateRunSummaries("marginal", "", []*domain.AlgoSummary{
		summary(800, 0.48, 0.01, 1.07, 15, 8, 0.05),
	})

	scored := ScoreStrategySet([]*Aggregate{marginal, strong})

	if len(scored) != 2 {
		t.Fatalf("scored = %d, want 2", len(scored))
	}
	if scored[0].StrategyID != "strong" {
		t.Errorf("top strategy = %s, want strong", scored[0].StrategyID)
	}
	if scored[0].Score < scored[1].Score {
		t.Errorf("ranking not descending: %f < %f", scored[0].Score, scored[1].Score)
	}
}

func TestScoreStrategySetInfProfitFactorStaysFinite(t *testing.T) {
	lossless := &Aggregate{StrategyID: "s1", Trades: 50, ProfitFactor: math.Inf(1), ExpectancyPct: 1}

	scored := ScoreStrategySet([]*Aggregate{lossless})
	if math.IsInf(scored[0].Score, 0) || math.IsNaN(scored[0].Score) {
		t.Errorf("score = %f, want finite", scored[0].Score)
	}
}

func TestScoredAggregateJSONRoundTrip(t *testing.T) {
	scored := ScoreStrategySet([]*Aggregate{
		{StrategyID: "s1", Family: "bracket", Trades: 50, ProfitFactor: math.Inf(1), ExpectancyPct: 1},
	})

	data, err := json.Marshal(scored[0])
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"profit_factor":"Infinity"`) {
		t.Errorf("encoded = %s, want profit_factor as \"Infinity\"", data)
	}
	if !strings.Contains(string(data), `"score":`) {
		t.Errorf("encoded = %s, want the score spliced in", data)
	}

	var decoded ScoredAggregate
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !math.IsInf(decoded.ProfitFactor, 1) {
		t.Errorf("profitFactor = %f, want +Inf restored", decoded.ProfitFactor)
	}
	if decoded.Score != scored[0].Score {
		t.Errorf("score = %f, want %f", decoded.Score, scored[0].Score)
	}
	if decoded.StrategyID != "s1" || decoded.Trades != 50 {
		t.Errorf("fields lost in round trip: %+v", decoded)
	}
}

func TestEvaluatePromotionOnMergedAggregate(t *testing.T) {
	strong := AggregateRunSummaries("s1", "", []*domain.AlgoSummary{
		summary(3000, 0.52, 0.08, 1.2, 12, 240, 0.3),
		summary(2500, 0.50, 0.06, 1.18, 10, 150, 0.25),
	})

	verdict := EvaluatePromotion(strong, 0.75, 0.8)
	if !verdict.Promoted {
		t.Errorf("strong aggregate should promote, got reason %q", verdict.Reason)
	}

	// Same aggregate with weak robustness evidence stays experimental.
	verdict = EvaluatePromotion(strong, 0.4, 0.8)
	if verdict.Promoted {
		t.Error("weak checkpoint stability must block promotion")
	}

	// Nil / empty aggregates behave like a missing comparison row.
	verdict = EvaluatePromotion(nil, 1, 1)
	if verdict.Promoted {
		t.Error("nil aggregate must not promote")
	}
	if verdict.Reason != "no comparison row generated" {
		t.Errorf("reason = %q", verdict.Reason)
	}
}
