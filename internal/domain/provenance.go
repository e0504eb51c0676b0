package domain

// ProviderRequest is one logged request to an external data provider.
type ProviderRequest struct {
	Provider   string `json:"provider"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
}

// ProviderStats is the per-provider aggregate over a request log.
type ProviderStats struct {
	Provider      string      `json:"provider"`
	Requests      int         `json:"requests"`
	StatusCounts  map[int]int `json:"status_counts"`
	AvgDurationMs float64     `json:"avg_duration_ms"`
}

// ProvenanceReport summarizes which providers supplied data for a run.
// CoverageComplete requires at least one request overall and no required
// provider below the per-provider minimum.
type ProvenanceReport struct {
	TotalRequests    int             `json:"total_requests"`
	Providers        []ProviderStats `json:"providers"`
	RequiredMissing  []string        `json:"required_missing,omitempty"`
	CoverageComplete bool            `json:"coverage_complete"`
}
