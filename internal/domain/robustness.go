package domain

// SampleBand is the trade-count confidence tier for a strategy.
type SampleBand string

const (
	SampleBandRobust SampleBand = "ROBUST"
	SampleBandMedium SampleBand = "MEDIUM"
	SampleBandThin   SampleBand = "THIN"
)

// StatusLabel is the promotion status assigned by the gate evaluator.
type StatusLabel string

const (
	StatusProven               StatusLabel = "PROVEN"
	StatusExperimental         StatusLabel = "EXPERIMENTAL"
	StatusExperimentalDisabled StatusLabel = "EXPERIMENTAL_DISABLED"
)

// Promotion actions paired with status labels.
const (
	ActionPromoteToProven     = "promote_to_proven"
	ActionKeepExperimental    = "keep_experimental"
	ActionDisableExperimental = "disable_experimental"
)

// CheckpointStat is the positive-trade fraction at one sample checkpoint.
type CheckpointStat struct {
	Checkpoint int     `json:"checkpoint"`
	PosFrac    float64 `json:"pos_frac"`
}

// ConsistencyRow is the per-strategy robustness artifact.
type ConsistencyRow struct {
	StrategyID  string           `json:"strategy_id"`
	TotalTrades int              `json:"total_trades"`
	Checkpoints []CheckpointStat `json:"checkpoints"`
	MinPosFrac  float64          `json:"min_pos_frac"`
	AvgPosFrac  float64          `json:"avg_pos_frac"`
	SampleBand  SampleBand       `json:"sample_band"`
}

// FoldResult is one walkforward fold's out-of-sample score.
type FoldResult struct {
	Fold           int     `json:"fold"`
	TrainTrades    int     `json:"train_trades"`
	ValidateTrades int     `json:"validate_trades"`
	WinRate        float64 `json:"win_rate"`
	ProfitFactor   float64 `json:"profit_factor"`
	ExpectancyPct  float64 `json:"expectancy_pct"`
	TotalReturnPct float64 `json:"total_return_pct"`
	Pass           bool    `json:"pass"`
}

// WalkforwardSummary is the per-strategy walkforward artifact.
type WalkforwardSummary struct {
	StrategyID string       `json:"strategy_id"`
	Folds      []FoldResult `json:"folds"`
	PassFolds  int          `json:"pass_folds"`
	PassRate   float64      `json:"pass_rate"`
}
