package ledger

import (
	"testing"

	"strategy-lab/internal/domain"
)

func newTestLedger() *domain.CampaignLedger {
	return New("camp-1",
		domain.CampaignDefaults{TargetTrades: 500, Mode: "full"},
		[]StrategySpec{
			{StrategyID: "trail_10", Family: "trailing"},
			{StrategyID: "tp_sl_5_3", Family: "bracket", TargetTrades: 1000},
		},
		1700000000000,
	)
}

func TestNewInitializesZeroProgress(t *testing.T) {
	l := newTestLedger()

	if l.Phase != domain.PhaseBaseline {
		t.Errorf("phase = %s, want baseline", l.Phase)
	}
	if len(l.Strategies) != 2 {
		t.Fatalf("strategies = %d, want 2", len(l.Strategies))
	}
	// Per-strategy target overrides the default; otherwise default applies.
	if l.Strategies["trail_10"].TargetTrades != 500 {
		t.Errorf("trail_10 target = %d, want default 500", l.Strategies["trail_10"].TargetTrades)
	}
	if l.Strategies["tp_sl_5_3"].TargetTrades != 1000 {
		t.Errorf("tp_sl_5_3 target = %d, want 1000", l.Strategies["tp_sl_5_3"].TargetTrades)
	}
	if l.Strategies["trail_10"].CumulativeTrades != 0 {
		t.Error("new ledger must start with zero progress")
	}
}

func TestUpsertAttemptAppendsRunOnce(t *testing.T) {
	l := newTestLedger()

	attempt := &domain.Attempt{RunID: "run-1", StrategyID: "trail_10", Status: domain.AttemptRunning}
	UpsertAttempt(l, attempt)

	// Re-upsert with a new status must not duplicate the run id.
	attempt.Status = domain.AttemptCompleted
	UpsertAttempt(l, attempt)

	if len(l.RunsByStrategy["trail_10"]) != 1 {
		t.Errorf("runsByStrategy = %v, want one entry", l.RunsByStrategy["trail_10"])
	}
	if l.Attempts["run-1"].Status != domain.AttemptCompleted {
		t.Errorf("attempt status = %s, want completed", l.Attempts["run-1"].Status)
	}
}

func TestMarkAttemptResult(t *testing.T) {
	l := newTestLedger()
	UpsertAttempt(l, &domain.Attempt{RunID: "run-1", StrategyID: "trail_10", Status: domain.AttemptRunning})

	if err := MarkAttemptResult(l, "run-1", domain.AttemptCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Marking twice must not double-count.
	if err := MarkAttemptResult(l, "run-1", domain.AttemptCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(l.CompletedRunIDs) != 1 || l.CompletedRunIDs[0] != "run-1" {
		t.Errorf("completedRunIDs = %v, want [run-1]", l.CompletedRunIDs)
	}

	if err := MarkAttemptResult(l, "missing", domain.AttemptFailed); err == nil {
		t.Error("expected error for unknown run id")
	}

	// Failed attempts never join the completed list.
	UpsertAttempt(l, &domain.Attempt{RunID: "run-2", StrategyID: "trail_10", Status: domain.AttemptRunning})
	if err := MarkAttemptResult(l, "run-2", domain.AttemptFailed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(l.CompletedRunIDs) != 1 {
		t.Errorf("failed run must not be counted completed: %v", l.CompletedRunIDs)
	}
}

func TestUpdateStrategyProgressMonotonic(t *testing.T) {
	l := newTestLedger()

	if err := UpdateStrategyProgress(l, "trail_10", 120, 120); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := UpdateStrategyProgress(l, "trail_10", 80, 200); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A stale attempt reporting lower cumulative progress must not roll back.
	if err := UpdateStrategyProgress(l, "trail_10", 50, 150); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	progress := l.Strategies["trail_10"]
	if progress.CumulativeTrades != 200 {
		t.Errorf("cumulativeTrades = %d, want 200 (monotonic)", progress.CumulativeTrades)
	}
	if progress.AchievedTrades != 50 {
		t.Errorf("achievedTrades = %d, want 50 (latest attempt)", progress.AchievedTrades)
	}

	if err := UpdateStrategyProgress(l, "missing", 1, 1); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestRecordGateOutcome(t *testing.T) {
	l := newTestLedger()

	if err := RecordGateOutcome(l, "trail_10", true, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RecordGateOutcome(l, "trail_10", true, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	progress := l.Strategies["trail_10"]
	if progress.Passes != 2 {
		t.Errorf("passes = %d, want 2", progress.Passes)
	}
	if !progress.Promoted {
		t.Error("promotion must stick after a promoting gate outcome")
	}

	// An insufficient strategy can pass folds but never promote.
	if err := MarkInsufficient(l, "tp_sl_5_3", "expansion ladder exhausted at 40/1000 trades"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RecordGateOutcome(l, "tp_sl_5_3", true, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Strategies["tp_sl_5_3"].Promoted {
		t.Error("insufficient strategy must not promote")
	}

	if err := RecordGateOutcome(l, "missing", true, true); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestMarkInsufficientForcesPromotedFalse(t *testing.T) {
	l := newTestLedger()
	l.Strategies["trail_10"].Promoted = true

	if err := MarkInsufficient(l, "trail_10", "expansion ladder exhausted at 60/500 trades"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	progress := l.Strategies["trail_10"]
	if progress.Promoted {
		t.Error("markInsufficient must force promoted=false")
	}
	if progress.InsufficiencyReason == "" {
		t.Error("insufficiency reason must be non-empty")
	}
	if len(l.InsufficientStrategies) != 1 || l.InsufficientStrategies[0] != "trail_10" {
		t.Errorf("insufficientStrategies = %v", l.InsufficientStrategies)
	}

	// Idempotent.
	if err := MarkInsufficient(l, "trail_10", "still insufficient"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(l.InsufficientStrategies) != 1 {
		t.Errorf("duplicate insufficiency entries: %v", l.InsufficientStrategies)
	}
}
