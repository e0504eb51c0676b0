// Package simulator replays candle sequences against a strategy config,
// producing completed trades with slippage embedded in execution prices.
package simulator

import (
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
)

// Simulate runs one strategy over one candle series.
// State machine: flat -> (entry signal) -> open -> (exit condition) -> flat.
// Only one position is open at a time; entry re-arms on the candle after an
// exit. A series too short for even one entry yields zero trades.
func Simulate(candles []domain.Candle, config *domain.StrategyConfig) ([]*domain.Trade, error) {
	if err := validateConfig(candles, config); err != nil {
		return nil, err
	}

	var trades []*domain.Trade
	n := len(candles)

	for i := 0; i < n-1; i++ {
		if !config.EntrySignal(candles[i], i) {
			continue
		}

		trade := runPosition(candles, config, i)
		trades = append(trades, trade)

		// Re-arm on the candle after the exit.
		exitIdx := i + trade.CandlesHeld
		i = exitIdx
	}

	return trades, nil
}

// runPosition opens at candle i and iterates until an exit condition fires.
// The series guarantees at least one candle after i, and end_of_data forces
// liquidation on the final candle, so an exit always exists.
func runPosition(candles []domain.Candle, config *domain.StrategyConfig, i int) *domain.Trade {
	entryRef := candles[i].Close
	entryExec := entryRef * (1 + config.SlippagePct/100)

	slPrice := entryExec * (1 - config.StopLossPct/100)
	tpPrice := entryExec * (1 + config.TakeProfitPct/100)

	hwm := entryExec
	n := len(candles)

	for j := i + 1; j < n; j++ {
		c := candles[j]

		// 1. High-water mark updates before any exit check.
		if c.High > hwm {
			hwm = c.High
		}

		slBreached := c.Low <= slPrice
		tpBreached := c.High >= tpPrice

		switch {
		case slBreached && tpBreached:
			// Intrabar path unknown: assume the loss path happened first.
			return closeTrade(config, i, j, entryExec, slPrice, hwm, domain.ExitReasonStopLoss, true, candles)
		case tpBreached:
			return closeTrade(config, i, j, entryExec, tpPrice, hwm, domain.ExitReasonTakeProfit, false, candles)
		case slBreached:
			return closeTrade(config, i, j, entryExec, slPrice, hwm, domain.ExitReasonStopLoss, false, candles)
		}

		if config.TrailingEnabled() && hwm > 0 {
			retracePct := (hwm - c.Low) / hwm * 100
			if retracePct >= config.TrailingStopPct {
				trailPrice := hwm * (1 - config.TrailingStopPct/100)
				return closeTrade(config, i, j, entryExec, trailPrice, hwm, domain.ExitReasonTrailStop, false, candles)
			}
		}

		if j-i >= config.MaxHoldCandles {
			return closeTrade(config, i, j, entryExec, c.Close, hwm, domain.ExitReasonExpired, false, candles)
		}

		if j == n-1 {
			return closeTrade(config, i, j, entryExec, c.Close, hwm, domain.ExitReasonEndOfData, false, candles)
		}
	}

	// Unreachable: the loop always exits via end_of_data on the final candle.
	panic("simulator: position left open")
}

// closeTrade finalizes a trade at exit reference price exitRef on candle j.
// Slippage is embedded exactly once, in the execution prices; fees are the
// only separate deduction.
func closeTrade(config *domain.StrategyConfig, i, j int, entryExec, exitRef, hwm float64, reason string, dualTrigger bool, candles []domain.Candle) *domain.Trade {
	exitExec := exitRef * (1 - config.SlippagePct/100)

	pnlPct := (exitExec - entryExec) / entryExec * 100
	feesPct := config.FeePct * 2

	return &domain.Trade{
		TradeID:            idhash.ComputeTradeID(config.StrategyID, candles[i].Timestamp, i),
		StrategyID:         config.StrategyID,
		EntryTime:          candles[i].Timestamp,
		EntryExecPrice:     entryExec,
		ExitTime:           candles[j].Timestamp,
		ExitExecPrice:      exitExec,
		ExitReason:         reason,
		HighWaterMarkPrice: hwm,
		DualTriggerBar:     dualTrigger,
		CandlesHeld:        j - i,
		PnlPct:             pnlPct,
		FeesPct:            feesPct,
		SlippagePct:        config.SlippagePct,
		PnlNet:             pnlPct - feesPct,
	}
}

// validateConfig rejects malformed inputs before simulation.
func validateConfig(candles []domain.Candle, config *domain.StrategyConfig) error {
	if config == nil {
		return fmt.Errorf("%w: nil config", domain.ErrConfigInvalid)
	}
	if config.EntrySignal == nil {
		return fmt.Errorf("%w: entry signal required", domain.ErrConfigInvalid)
	}
	if config.StopLossPct <= 0 {
		return fmt.Errorf("%w: stopLossPct must be > 0, got %.4f", domain.ErrConfigInvalid, config.StopLossPct)
	}
	if config.TakeProfitPct <= 0 {
		return fmt.Errorf("%w: takeProfitPct must be > 0, got %.4f", domain.ErrConfigInvalid, config.TakeProfitPct)
	}
	if config.MaxHoldCandles <= 0 {
		return fmt.Errorf("%w: maxHoldCandles must be > 0, got %d", domain.ErrConfigInvalid, config.MaxHoldCandles)
	}
	if len(candles) == 0 {
		return fmt.Errorf("%w: empty candle series", domain.ErrConfigInvalid)
	}
	return nil
}
