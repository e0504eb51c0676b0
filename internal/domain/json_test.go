package domain

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestAlgoSummaryJSONInfiniteProfitFactor(t *testing.T) {
	summary := &AlgoSummary{
		StrategyID:   "s1",
		RunID:        "run-1",
		TotalTrades:  10,
		Wins:         10,
		WinRate:      1,
		ProfitFactor: math.Inf(1),
	}

	data, err := json.Marshal(summary)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"profit_factor":"Infinity"`) {
		t.Errorf("encoded = %s, want profit_factor as \"Infinity\"", data)
	}

	var decoded AlgoSummary
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !math.IsInf(decoded.ProfitFactor, 1) {
		t.Errorf("profitFactor = %f, want +Inf restored", decoded.ProfitFactor)
	}
	if decoded.StrategyID != "s1" || decoded.TotalTrades != 10 {
		t.Errorf("fields lost in round trip: %+v", decoded)
	}
}

func TestAlgoSummaryJSONFiniteProfitFactor(t *testing.T) {
	summary := &AlgoSummary{StrategyID: "s1", TotalTrades: 4, ProfitFactor: 2.5}

	data, err := json.Marshal(summary)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"profit_factor":2.5`) {
		t.Errorf("encoded = %s, want numeric profit_factor", data)
	}

	var decoded AlgoSummary
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.ProfitFactor != 2.5 {
		t.Errorf("profitFactor = %f, want 2.5", decoded.ProfitFactor)
	}
}

func TestWalkforwardSummaryJSONInfiniteFold(t *testing.T) {
	wf := &WalkforwardSummary{
		StrategyID: "s1",
		Folds: []FoldResult{
			{Fold: 2, ValidateTrades: 5, ProfitFactor: math.Inf(1), Pass: true},
			{Fold: 3, ValidateTrades: 5, ProfitFactor: 1.4, Pass: true},
		},
		PassFolds: 2,
		PassRate:  1,
	}

	data, err := json.Marshal(wf)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded WalkforwardSummary
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(decoded.Folds) != 2 {
		t.Fatalf("folds = %d, want 2", len(decoded.Folds))
	}
	if !math.IsInf(decoded.Folds[0].ProfitFactor, 1) {
		t.Errorf("fold 2 profitFactor = %f, want +Inf", decoded.Folds[0].ProfitFactor)
	}
	if decoded.Folds[1].ProfitFactor != 1.4 {
		t.Errorf("fold 3 profitFactor = %f, want 1.4", decoded.Folds[1].ProfitFactor)
	}
}
