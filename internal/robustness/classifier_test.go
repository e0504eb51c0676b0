package robustness

import (
	"math"
	"testing"

	"strategy-lab/internal/domain"
)

// makeTrades builds n trades where every winEvery-th trade is positive.
func makeTrades(n, winEvery int) []*domain.Trade {
	trades := make([]*domain.Trade, n)
	for i := 0; i < n; i++ {
		pnl := -1.0
		if winEvery > 0 && i%winEvery == 0 {
			pnl = 2.0
		}
		trades[i] = &domain.Trade{
			TradeID:   string(rune('a'+i%26)) + "_" + string(rune('0'+i%10)),
			EntryTime: int64(1000 * (i + 1)),
			PnlNet:    pnl,
		}
	}
	return trades
}

func allWinners(n int) []*domain.Trade {
	trades := make([]*domain.Trade, n)
	for i := 0; i < n; i++ {
		trades[i] = &domain.Trade{
			TradeID:   string(rune('a' + i%26)),
			EntryTime: int64(1000 * (i + 1)),
			PnlNet:    1.0,
		}
	}
	return trades
}

func TestClassifyCheckpointFractions(t *testing.T) {
	// 100 trades, every 5th positive. 5 divides each reached checkpoint
	// (10, 25, 50, 100), so posFrac is exactly 0.2 at all of them.
	c := NewClassifier()
	row := c.Classify("s1", makeTrades(100, 5))

	if len(row.Checkpoints) != 4 {
		t.Fatalf("checkpoints = %d, want 4", len(row.Checkpoints))
	}
	for _, cp := range row.Checkpoints {
		if math.Abs(cp.PosFrac-0.2) > 1e-9 {
			t.Errorf("checkpoint %d posFrac = %f, want 0.2", cp.Checkpoint, cp.PosFrac)
		}
	}
	if math.Abs(row.MinPosFrac-0.2) > 1e-9 || math.Abs(row.AvgPosFrac-0.2) > 1e-9 {
		t.Errorf("min/avg = %f/%f, want 0.2/0.2", row.MinPosFrac, row.AvgPosFrac)
	}
}

func TestClassifyBands(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		name   string
		trades []*domain.Trade
		want   domain.SampleBand
	}{
		{"thin below 100 trades", allWinners(50), domain.SampleBandThin},
		{"medium at 100 trades", allWinners(100), domain.SampleBandMedium},
		{"robust at 1000 stable trades", allWinners(1000), domain.SampleBandRobust},
		{"unstable 1000 trades stay medium", makeTrades(1000, 4), domain.SampleBandMedium},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := c.Classify("s1", tc.trades)
			if row.SampleBand != tc.want {
				t.Errorf("band = %s, want %s (minPosFrac=%f, trades=%d)",
					row.SampleBand, tc.want, row.MinPosFrac, row.TotalTrades)
			}
		})
	}
}

func TestClassifyFewTradesUsesWholeSet(t *testing.T) {
	c := NewClassifier()
	row := c.Classify("s1", makeTrades(4, 2))

	if len(row.Checkpoints) != 1 {
		t.Fatalf("checkpoints = %d, want 1 fallback checkpoint", len(row.Checkpoints))
	}
	if row.Checkpoints[0].Checkpoint != 4 {
		t.Errorf("fallback checkpoint = %d, want 4", row.Checkpoints[0].Checkpoint)
	}
	if row.SampleBand != domain.SampleBandThin {
		t.Errorf("band = %s, want THIN", row.SampleBand)
	}
}

func TestClassifyEmpty(t *testing.T) {
	c := NewClassifier()
	row := c.Classify("s1", nil)

	if row.TotalTrades != 0 || len(row.Checkpoints) != 0 {
		t.Errorf("empty input should produce zero row, got %+v", row)
	}
	if row.SampleBand != domain.SampleBandThin {
		t.Errorf("band = %s, want THIN", row.SampleBand)
	}
}
