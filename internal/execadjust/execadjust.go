// Package execadjust discounts backtest results by observed live
// execution reliability. The adjusted numbers are advisory context for
// reports and API responses; promotion gates never read them.
package execadjust

import "strategy-lab/internal/domain"

// Degradation thresholds that flag a venue as unhealthy.
const (
	minHealthyReliabilityPct = 90.0
	maxHealthyNoRouteRate    = 0.05
	maxHealthyUnresolvedRate = 0.05
)

// ReliabilityPrior captures live execution quality for a venue:
// ReliabilityPct is the fraction of intended fills that executed,
// NoRouteRate the fraction of orders with no route at all, and
// UnresolvedRate the fraction whose outcome could not be confirmed.
type ReliabilityPrior struct {
	ReliabilityPct float64 `json:"reliability_pct"`
	NoRouteRate    float64 `json:"no_route_rate"`
	UnresolvedRate float64 `json:"unresolved_rate"`
	Version        string  `json:"version"`
}

// Adjusted carries the reliability-discounted view of a summary.
type Adjusted struct {
	ExecutionReliabilityPct     float64  `json:"execution_reliability_pct"`
	NoRouteRate                 float64  `json:"no_route_rate"`
	UnresolvedRate              float64  `json:"unresolved_rate"`
	ExecutionAdjustedExpectancy float64  `json:"execution_adjusted_expectancy_pct"`
	ExecutionAdjustedNetPnlPct  float64  `json:"execution_adjusted_net_pnl_pct"`
	DegradedReasons             []string `json:"degraded_reasons,omitempty"`
	AdjusterVersion             string   `json:"adjuster_version"`
}

// Adjuster turns a backtest summary plus a reliability prior into
// adjusted metrics. Implementations are versioned so report consumers
// can tell which discount model produced a number.
type Adjuster interface {
	Version() string
	Adjust(summary *domain.AlgoSummary, prior ReliabilityPrior) *Adjusted
}

// FillDiscountAdjuster is the v1 model: every trade's PnL is scaled by
// the probability it would actually have filled and resolved live.
type FillDiscountAdjuster struct{}

// NewFillDiscountAdjuster returns the v1 adjuster.
func NewFillDiscountAdjuster() *FillDiscountAdjuster {
	return &FillDiscountAdjuster{}
}

var _ Adjuster = (*FillDiscountAdjuster)(nil)

// Version identifies the discount model.
func (a *FillDiscountAdjuster) Version() string { return "fill-discount/v1" }

// Adjust scales expectancy and net PnL by the effective fill
// probability: reliability net of no-route and unresolved orders.
// A nil summary yields a zeroed adjustment carrying only the prior.
func (a *FillDiscountAdjuster) Adjust(summary *domain.AlgoSummary, prior ReliabilityPrior) *Adjusted {
	adjusted := &Adjusted{
		ExecutionReliabilityPct: prior.ReliabilityPct,
		NoRouteRate:             prior.NoRouteRate,
		UnresolvedRate:          prior.UnresolvedRate,
		AdjusterVersion:         a.Version(),
		DegradedReasons:         degradedReasons(prior),
	}
	if summary == nil {
		return adjusted
	}

	p := fillProbability(prior)
	adjusted.ExecutionAdjustedExpectancy = summary.ExpectancyPct * p
	adjusted.ExecutionAdjustedNetPnlPct = summary.TotalReturnPct * p
	return adjusted
}

// fillProbability clamps each component into [0,1] before combining so
// a junk prior cannot inflate results.
func fillProbability(prior ReliabilityPrior) float64 {
	reliability := clamp01(prior.ReliabilityPct / 100)
	routed := clamp01(1 - prior.NoRouteRate)
	resolved := clamp01(1 - prior.UnresolvedRate)
	return reliability * routed * resolved
}

func degradedReasons(prior ReliabilityPrior) []string {
	var reasons []string
	if prior.ReliabilityPct < minHealthyReliabilityPct {
		reasons = append(reasons, "execution reliability below 90%")
	}
	if prior.NoRouteRate > maxHealthyNoRouteRate {
		reasons = append(reasons, "no-route rate above 5%")
	}
	if prior.UnresolvedRate > maxHealthyUnresolvedRate {
		reasons = append(reasons, "unresolved outcome rate above 5%")
	}
	return reasons
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
