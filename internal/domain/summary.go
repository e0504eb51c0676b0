package domain

// MonthlyStats is the per-calendar-month slice of a strategy's trades.
// Month is formatted "2006-01" in UTC.
type MonthlyStats struct {
	Month     string  `json:"month"`
	Trades    int     `json:"trades"`
	Wins      int     `json:"wins"`
	NetPnlPct float64 `json:"net_pnl_pct"`
}

// DayStats is one calendar day's aggregate net PnL. Day is "2006-01-02" UTC.
type DayStats struct {
	Day       string  `json:"day"`
	Trades    int     `json:"trades"`
	NetPnlPct float64 `json:"net_pnl_pct"`
}

// AlgoSummary is the aggregate over one strategy's trade set for one run.
// Immutable once computed; recomputed wholesale on each run.
type AlgoSummary struct {
	StrategyID string `json:"strategy_id"`
	RunID      string `json:"run_id,omitempty"`

	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`

	// ProfitFactor is +Inf when losses sum to zero and at least one win
	// exists, 0 when there are no trades.
	ProfitFactor   float64 `json:"profit_factor"`
	ExpectancyPct  float64 `json:"expectancy_pct"`
	TotalReturnPct float64 `json:"total_return_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`

	ExitDistribution      map[string]int `json:"exit_distribution"`
	DualTriggerBars       int            `json:"dual_trigger_bars"`
	ExpiryExitsBelowEntry int            `json:"expiry_exits_below_entry"`

	Monthly  []MonthlyStats `json:"monthly,omitempty"`
	BestDay  *DayStats      `json:"best_day,omitempty"`
	WorstDay *DayStats      `json:"worst_day,omitempty"`
}
