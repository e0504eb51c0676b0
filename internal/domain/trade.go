package domain

// Exit reasons for completed trades.
const (
	ExitReasonStopLoss   = "sl_hit"
	ExitReasonTakeProfit = "tp_hit"
	ExitReasonTrailStop  = "trail_stop"
	ExitReasonExpired    = "expired"
	ExitReasonEndOfData  = "end_of_data"
)

// Trade is one completed simulated position. Execution prices already
// include slippage (buy = raw*(1+slip), sell = raw*(1-slip)); PnlPct is
// computed purely from execution prices so slippage is never deducted twice.
// Fees are the only separate deduction: FeesPct = FeePct*2, PnlNet = PnlPct - FeesPct.
type Trade struct {
	TradeID    string `json:"trade_id"`
	StrategyID string `json:"strategy_id"`

	EntryTime      int64   `json:"entry_time"`
	EntryExecPrice float64 `json:"entry_exec_price"`
	ExitTime       int64   `json:"exit_time"`
	ExitExecPrice  float64 `json:"exit_exec_price"`
	ExitReason     string  `json:"exit_reason"`

	HighWaterMarkPrice float64 `json:"high_water_mark_price"`
	DualTriggerBar     bool    `json:"dual_trigger_bar"`
	CandlesHeld        int     `json:"candles_held"`

	PnlPct      float64 `json:"pnl_pct"`
	FeesPct     float64 `json:"fees_pct"`
	SlippagePct float64 `json:"slippage_pct"`
	PnlNet      float64 `json:"pnl_net"`
}
