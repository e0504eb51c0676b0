// Package ledger holds the resumable orchestration state for a campaign.
// Mutations are plain functions over the ledger value; persistence is the
// caller's job (save after every mutation, see Store).
package ledger

import (
	"fmt"

	"strategy-lab/internal/domain"
)

// StrategySpec declares one strategy to track in a new campaign.
type StrategySpec struct {
	StrategyID   string
	Family       string
	TargetTrades int
}

// New initializes a campaign ledger with zero progress.
func New(campaignID string, defaults domain.CampaignDefaults, strategies []StrategySpec, createdAt int64) *domain.CampaignLedger {
	l := &domain.CampaignLedger{
		CampaignID:     campaignID,
		Phase:          domain.PhaseBaseline,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
		Defaults:       defaults,
		Strategies:     make(map[string]*domain.StrategyProgress, len(strategies)),
		Attempts:       make(map[string]*domain.Attempt),
		RunsByStrategy: make(map[string][]string),
	}

	for _, s := range strategies {
		target := s.TargetTrades
		if target == 0 {
			target = defaults.TargetTrades
		}
		l.Strategies[s.StrategyID] = &domain.StrategyProgress{
			StrategyID:   s.StrategyID,
			Family:       s.Family,
			TargetTrades: target,
		}
	}

	return l
}

// SetPhase advances the orchestration phase.
func SetPhase(l *domain.CampaignLedger, phase string) {
	l.Phase = phase
}

// UpsertAttempt records a new or updated attempt. A first-seen run_id is
// appended to the strategy's run list; re-upserts update in place.
func UpsertAttempt(l *domain.CampaignLedger, attempt *domain.Attempt) {
	if _, exists := l.Attempts[attempt.RunID]; !exists {
		l.RunsByStrategy[attempt.StrategyID] = append(l.RunsByStrategy[attempt.StrategyID], attempt.RunID)
	}
	copied := *attempt
	l.Attempts[attempt.RunID] = &copied
}

// MarkAttemptResult transitions an attempt to completed or failed.
// Completion appends to CompletedRunIDs exactly once.
func MarkAttemptResult(l *domain.CampaignLedger, runID, status string) error {
	attempt, exists := l.Attempts[runID]
	if !exists {
		return fmt.Errorf("unknown run %s", runID)
	}

	attempt.Status = status
	if status != domain.AttemptCompleted {
		return nil
	}

	for _, id := range l.CompletedRunIDs {
		if id == runID {
			return nil
		}
	}
	l.CompletedRunIDs = append(l.CompletedRunIDs, runID)
	return nil
}

// UpdateStrategyProgress accumulates trade counts across attempts.
// CumulativeTrades is monotonically non-decreasing: a lower value from a
// stale attempt never rolls progress back.
func UpdateStrategyProgress(l *domain.CampaignLedger, strategyID string, achievedTrades, cumulativeTrades int) error {
	progress, exists := l.Strategies[strategyID]
	if !exists {
		return fmt.Errorf("unknown strategy %s", strategyID)
	}

	progress.AchievedTrades = achievedTrades
	if cumulativeTrades > progress.CumulativeTrades {
		progress.CumulativeTrades = cumulativeTrades
	}
	return nil
}

// RecordGateOutcome updates a strategy's pass count and promotion flag
// from a gate evaluation. Promotion never sticks on a strategy already
// marked insufficient.
func RecordGateOutcome(l *domain.CampaignLedger, strategyID string, passed, promoted bool) error {
	progress, exists := l.Strategies[strategyID]
	if !exists {
		return fmt.Errorf("unknown strategy %s", strategyID)
	}

	if passed {
		progress.Passes++
	}
	if promoted && progress.InsufficiencyReason == "" {
		progress.Promoted = true
	}
	return nil
}

// AppendArtifactRef records a run's output bundle locations.
func AppendArtifactRef(l *domain.CampaignLedger, ref domain.ArtifactRef) {
	l.ArtifactIndex = append(l.ArtifactIndex, ref)
}

// MarkInsufficient terminally marks a strategy that exhausted its expansion
// ladder: recorded in InsufficientStrategies, reason set, promotion forced
// off regardless of prior state.
func MarkInsufficient(l *domain.CampaignLedger, strategyID, reason string) error {
	progress, exists := l.Strategies[strategyID]
	if !exists {
		return fmt.Errorf("unknown strategy %s", strategyID)
	}

	progress.InsufficiencyReason = reason
	progress.Promoted = false

	for _, id := range l.InsufficientStrategies {
		if id == strategyID {
			return nil
		}
	}
	l.InsufficientStrategies = append(l.InsufficientStrategies, strategyID)
	return nil
}
