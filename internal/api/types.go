// Package api exposes the backtest pipeline over HTTP: a single
// validation endpoint plus health and metrics.
package api

import (
	"strategy-lab/internal/decision"
	"strategy-lab/internal/domain"
)

// StrategyRequest is one strategy configuration to validate.
type StrategyRequest struct {
	StrategyID      string  `json:"strategy_id"`
	Family          string  `json:"family,omitempty"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	TakeProfitPct   float64 `json:"take_profit_pct"`
	TrailingStopPct float64 `json:"trailing_stop_pct,omitempty"`
	MaxHoldCandles  int     `json:"max_hold_candles"`
	SlippagePct     float64 `json:"slippage_pct,omitempty"`
	FeePct          float64 `json:"fee_pct,omitempty"`
}

// BacktestRequest is the request body for POST /backtest. The type is
// closed: unknown fields are rejected at decode time so typos fail loud.
type BacktestRequest struct {
	Strategies []StrategyRequest `json:"strategies"`

	// Data selection: either a symbol fetched through the configured
	// source, or candles supplied inline.
	Symbol    string          `json:"symbol,omitempty"`
	Timeframe string          `json:"timeframe,omitempty"`
	Candles   []domain.Candle `json:"candles,omitempty"`

	Mode         string `json:"mode,omitempty"`
	DataScale    string `json:"data_scale,omitempty"`
	SourcePolicy string `json:"source_policy,omitempty"`

	// StrictNoSynthetic defaults to true: candles must come from a real
	// provider unless the caller explicitly opts out.
	StrictNoSynthetic *bool `json:"strict_no_synthetic,omitempty"`
}

// Strict reports the effective strict-mode setting.
func (r *BacktestRequest) Strict() bool {
	return r.StrictNoSynthetic == nil || *r.StrictNoSynthetic
}

// StrategyResult is the per-strategy outcome inside a response.
type StrategyResult struct {
	StrategyID  string                     `json:"strategy_id"`
	Summary     *domain.AlgoSummary        `json:"summary"`
	Consistency *domain.ConsistencyRow     `json:"consistency"`
	Walkforward *domain.WalkforwardSummary `json:"walkforward"`
	Gate        *decision.GateResult       `json:"gate"`

	ExecutionReliabilityPct     float64  `json:"execution_reliability_pct,omitempty"`
	NoRouteRate                 float64  `json:"no_route_rate,omitempty"`
	UnresolvedRate              float64  `json:"unresolved_rate,omitempty"`
	ExecutionAdjustedExpectancy float64  `json:"execution_adjusted_expectancy_pct,omitempty"`
	ExecutionAdjustedNetPnlPct  float64  `json:"execution_adjusted_net_pnl_pct,omitempty"`
	DegradedReasons             []string `json:"degraded_reasons,omitempty"`
}

// BacktestResponse is the response body for POST /backtest.
type BacktestResponse struct {
	RunID       string                   `json:"run_id"`
	Provider    string                   `json:"provider"`
	CandleCount int                      `json:"candle_count"`
	Results     []*StrategyResult        `json:"results"`
	Provenance  *domain.ProvenanceReport `json:"provenance,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
