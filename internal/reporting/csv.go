package reporting

import (
	"fmt"
	"strings"

	"strategy-lab/internal/domain"
)

// RenderTradesCSV renders a trade list as CSV string.
func RenderTradesCSV(trades []*domain.Trade) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,strategy_id,entry_time,entry_exec_price,exit_time,exit_exec_price,")
	sb.WriteString("exit_reason,high_water_mark_price,dual_trigger_bar,candles_held,")
	sb.WriteString("pnl_pct,fees_pct,slippage_pct,pnl_net\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%.8f,%d,%.8f,%s,%.8f,%t,%d,%.6f,%.6f,%.6f,%.6f\n",
			t.TradeID,
			t.StrategyID,
			t.EntryTime,
			t.EntryExecPrice,
			t.ExitTime,
			t.ExitExecPrice,
			t.ExitReason,
			t.HighWaterMarkPrice,
			t.DualTriggerBar,
			t.CandlesHeld,
			t.PnlPct,
			t.FeesPct,
			t.SlippagePct,
			t.PnlNet,
		))
	}

	return sb.String()
}
