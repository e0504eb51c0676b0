package domain

import "errors"

// Failure taxonomy. Attempt-level failures wrap one of these sentinels so
// the orchestrator can classify without string matching.
var (
	// ErrConfigInvalid means a strategy config failed validation before simulation.
	ErrConfigInvalid = errors.New("config invalid")

	// ErrDataUnavailable means the candle source failed or timed out.
	// The attempt is marked failed; the campaign continues.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrStrictModeViolation means only synthetic/client-supplied candles were
	// available while strictNoSynthetic was set. Rejected, never retried.
	ErrStrictModeViolation = errors.New("strict mode violation: synthetic candles rejected")

	// ErrInsufficientTrades means the expansion ladder was exhausted without
	// reaching the strategy's target trade count.
	ErrInsufficientTrades = errors.New("insufficient trades")

	// ErrProvenanceIncomplete means required data-source coverage was not met.
	// Downgrades a promotion decision; never aborts a run.
	ErrProvenanceIncomplete = errors.New("provenance incomplete")

	// ErrArtifactIncomplete means one or more required output files are missing.
	ErrArtifactIncomplete = errors.New("artifact incomplete")
)
