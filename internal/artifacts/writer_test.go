package artifacts

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"strategy-lab/internal/decision"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/ledger"
	"strategy-lab/internal/reporting"
)

func testReport(runID string) *reporting.Report {
	return &reporting.Report{
		GeneratedAt: time.UnixMilli(1700000000000).UTC(),
		StrategyID:  "trail_10",
		RunID:       runID,
		Summary: &domain.AlgoSummary{
			StrategyID:       "trail_10",
			RunID:            runID,
			TotalTrades:      2,
			Wins:             1,
			Losses:           1,
			ExitDistribution: map[string]int{domain.ExitReasonTakeProfit: 1, domain.ExitReasonStopLoss: 1},
		},
		Consistency: &domain.ConsistencyRow{StrategyID: "trail_10", SampleBand: domain.SampleBandThin},
		Walkforward: &domain.WalkforwardSummary{StrategyID: "trail_10"},
		Gate: &decision.GateResult{
			StrategyID: "trail_10",
			Status:     domain.StatusExperimental,
			Action:     domain.ActionKeepExperimental,
			Reason:     "insufficient robustness for promotion gate",
		},
	}
}

func TestWriterWritesCompleteBundle(t *testing.T) {
	root := t.TempDir()
	writer := NewWriter(root, WithClock(func() time.Time { return time.UnixMilli(1700000005000) }))

	trades := []*domain.Trade{
		{TradeID: "t1", StrategyID: "trail_10", EntryTime: 1, PnlNet: 1},
		{TradeID: "t2", StrategyID: "trail_10", EntryTime: 2, PnlNet: -1},
	}

	ref, err := writer.Write(testReport("run-1"), trades)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if ref.RunID != "run-1" || ref.EvidenceRunID != "run-1" {
		t.Errorf("ref run ids = %+v", ref)
	}
	if ref.TradesCsvPath == "" {
		t.Error("trades csv must be declared when trades are written")
	}
	if !ledger.ArtifactRefComplete(ref) {
		t.Error("freshly written bundle must be complete")
	}

	// Manifest lists and hashes every written file.
	manifestBytes, err := os.ReadFile(ref.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.GeneratedAt != 1700000005000 {
		t.Errorf("generatedAt = %d, want clock stamp", manifest.GeneratedAt)
	}
	for _, name := range []string{"evidence.json", "report.md", "trades.csv"} {
		sum, ok := manifest.Files[name]
		if !ok {
			t.Errorf("manifest missing %s", name)
			continue
		}
		if len(sum) != 64 {
			t.Errorf("%s hash length = %d, want sha256 hex", name, len(sum))
		}
	}

	// Evidence round-trips.
	evidenceBytes, err := os.ReadFile(ref.EvidencePath)
	if err != nil {
		t.Fatalf("read evidence: %v", err)
	}
	var evidence Evidence
	if err := json.Unmarshal(evidenceBytes, &evidence); err != nil {
		t.Fatalf("decode evidence: %v", err)
	}
	if evidence.Summary == nil || evidence.Summary.TotalTrades != 2 {
		t.Errorf("evidence summary = %+v", evidence.Summary)
	}
	if evidence.Gate == nil || evidence.Gate.Status != domain.StatusExperimental {
		t.Errorf("evidence gate = %+v", evidence.Gate)
	}
}

func TestWriterLosslessRunEncodesInfiniteProfitFactor(t *testing.T) {
	// A run with wins and no losses carries a +Inf profit factor, which
	// plain encoding/json rejects. The bundle must still be written.
	writer := NewWriter(t.TempDir())

	report := testReport("run-inf")
	report.Summary.Losses = 0
	report.Summary.Wins = 2
	report.Summary.ProfitFactor = math.Inf(1)
	report.Walkforward.Folds = []domain.FoldResult{
		{Fold: 2, ValidateTrades: 1, ProfitFactor: math.Inf(1), Pass: true},
	}

	ref, err := writer.Write(report, nil)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	evidenceBytes, err := os.ReadFile(ref.EvidencePath)
	if err != nil {
		t.Fatalf("read evidence: %v", err)
	}
	var evidence Evidence
	if err := json.Unmarshal(evidenceBytes, &evidence); err != nil {
		t.Fatalf("decode evidence: %v", err)
	}
	if !math.IsInf(evidence.Summary.ProfitFactor, 1) {
		t.Errorf("summary profitFactor = %f, want +Inf restored", evidence.Summary.ProfitFactor)
	}
	if !math.IsInf(evidence.Walkforward.Folds[0].ProfitFactor, 1) {
		t.Errorf("fold profitFactor = %f, want +Inf restored", evidence.Walkforward.Folds[0].ProfitFactor)
	}
}

func TestWriterWithoutTrades(t *testing.T) {
	writer := NewWriter(t.TempDir())

	ref, err := writer.Write(testReport("run-2"), nil)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if ref.TradesCsvPath != "" {
		t.Error("no trades: csv must not be declared")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(ref.ManifestPath), "trades.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Error("no trades: csv file must not exist")
	}
	if !ledger.ArtifactRefComplete(ref) {
		t.Error("bundle without declared csv must still be complete")
	}
}

func TestWriterRejectsMissingRunID(t *testing.T) {
	writer := NewWriter(t.TempDir())

	if _, err := writer.Write(&reporting.Report{}, nil); !errors.Is(err, domain.ErrArtifactIncomplete) {
		t.Errorf("expected ErrArtifactIncomplete, got %v", err)
	}
}
