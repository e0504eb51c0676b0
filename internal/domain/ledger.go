package domain

// Campaign phases.
const (
	PhaseBaseline  = "baseline"
	PhaseExpansion = "expansion"
)

// Attempt statuses.
const (
	AttemptRunning   = "running"
	AttemptCompleted = "completed"
	AttemptFailed    = "failed"
)

// StrategyProgress tracks one strategy's cumulative state within a campaign.
// CumulativeTrades is monotonically non-decreasing across attempts.
type StrategyProgress struct {
	StrategyID          string `json:"strategy_id"`
	Family              string `json:"family,omitempty"`
	TargetTrades        int    `json:"target_trades"`
	AchievedTrades      int    `json:"achieved_trades"`
	CumulativeTrades    int    `json:"cumulative_trades"`
	Passes              int    `json:"passes"`
	Promoted            bool   `json:"promoted"`
	InsufficiencyReason string `json:"insufficiency_reason,omitempty"`
}

// Attempt is one backtest run dispatched within a campaign.
type Attempt struct {
	RunID        string `json:"run_id"`
	StrategyID   string `json:"strategy_id"`
	StartedAt    int64  `json:"started_at"`
	Status       string `json:"status"`
	SourcePolicy string `json:"source_policy,omitempty"`
	MaxTokens    int    `json:"max_tokens,omitempty"`
	Mode         string `json:"mode,omitempty"`
	DataScale    string `json:"data_scale,omitempty"`
}

// ArtifactRef locates one run's output bundle on disk. Manifest, evidence
// and report are always required for completeness; the trades CSV only when
// its path is declared.
type ArtifactRef struct {
	RunID         string `json:"run_id"`
	EvidenceRunID string `json:"evidence_run_id,omitempty"`
	ManifestPath  string `json:"manifest_path"`
	EvidencePath  string `json:"evidence_path"`
	ReportPath    string `json:"report_path"`
	TradesCsvPath string `json:"trades_csv_path,omitempty"`
}

// CampaignLedger is the root orchestration aggregate for one campaign.
// It is mutated only through the ledger package's operations and persisted
// after every mutation.
type CampaignLedger struct {
	CampaignID             string                      `json:"campaign_id"`
	Phase                  string                      `json:"phase"`
	CreatedAt              int64                       `json:"created_at"`
	UpdatedAt              int64                       `json:"updated_at"`
	Defaults               CampaignDefaults            `json:"defaults"`
	Strategies             map[string]*StrategyProgress `json:"strategies"`
	Attempts               map[string]*Attempt         `json:"attempts"`
	RunsByStrategy         map[string][]string         `json:"runs_by_strategy"`
	CompletedRunIDs        []string                    `json:"completed_run_ids"`
	ArtifactIndex          []ArtifactRef               `json:"artifact_index"`
	InsufficientStrategies []string                    `json:"insufficient_strategies"`
}

// CampaignDefaults carry campaign-wide run parameters.
type CampaignDefaults struct {
	TargetTrades int    `json:"target_trades"`
	Mode         string `json:"mode,omitempty"`
	SourcePolicy string `json:"source_policy,omitempty"`
	DataScale    string `json:"data_scale,omitempty"`
}
