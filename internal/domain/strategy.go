package domain

// TrailingDisabledPct is the sentinel threshold above which the trailing
// stop never fires. A retrace of 99% from peak is unreachable in practice,
// so configs use >= 99 to mean "disabled".
const TrailingDisabledPct = 99.0

// EntrySignalFunc decides whether a strategy enters on the given candle.
// index is the candle's position within the replayed series.
type EntrySignalFunc func(candle Candle, index int) bool

// StrategyConfig is the full parameter set for one strategy run.
// All percentage fields are expressed in percent (1.5 means 1.5%).
type StrategyConfig struct {
	StrategyID      string
	Family          string
	StopLossPct     float64
	TakeProfitPct   float64
	TrailingStopPct float64
	MaxHoldCandles  int
	SlippagePct     float64
	FeePct          float64
	MinScore        float64
	MinLiquidityUsd float64
	EntrySignal     EntrySignalFunc
}

// TrailingEnabled reports whether the trailing stop can fire.
func (c *StrategyConfig) TrailingEnabled() bool {
	return c.TrailingStopPct > 0 && c.TrailingStopPct < TrailingDisabledPct
}
