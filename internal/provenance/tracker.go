// Package provenance records which external data providers actually
// supplied data for a run, and whether required coverage was met.
package provenance

import (
	"sort"
	"sync"
	"time"

	"strategy-lab/internal/domain"
)

// DefaultMinRequests is the per-provider coverage floor.
const DefaultMinRequests = 1

// Tracker accumulates a provider request log. Safe for concurrent use by
// parallel fetches within one run.
type Tracker struct {
	mu          sync.Mutex
	requests    []domain.ProviderRequest
	required    []string
	minRequests int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMinRequests sets the minimum requests a required provider must serve.
func WithMinRequests(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.minRequests = n
		}
	}
}

// NewTracker creates a tracker with the given required providers.
func NewTracker(required []string, opts ...Option) *Tracker {
	t := &Tracker{
		required:    append([]string(nil), required...),
		minRequests: DefaultMinRequests,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record logs one provider request.
func (t *Tracker) Record(provider string, statusCode int, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, domain.ProviderRequest{
		Provider:   provider,
		StatusCode: statusCode,
		DurationMs: duration.Milliseconds(),
	})
}

// Report aggregates the log into per-provider stats and a coverage verdict.
func (t *Tracker) Report() *domain.ProvenanceReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return BuildReport(t.requests, t.required, t.minRequests)
}

// BuildReport aggregates a request log. coverage_complete requires at
// least one request overall and every required provider at or above
// minRequests.
func BuildReport(requests []domain.ProviderRequest, required []string, minRequests int) *domain.ProvenanceReport {
	byProvider := make(map[string]*domain.ProviderStats)
	durations := make(map[string]int64)

	for _, r := range requests {
		stats, ok := byProvider[r.Provider]
		if !ok {
			stats = &domain.ProviderStats{
				Provider:     r.Provider,
				StatusCounts: make(map[int]int),
			}
			byProvider[r.Provider] = stats
		}
		stats.Requests++
		stats.StatusCounts[r.StatusCode]++
		durations[r.Provider] += r.DurationMs
	}

	// Sorted for deterministic report output.
	names := make([]string, 0, len(byProvider))
	for name := range byProvider {
		names = append(names, name)
	}
	sort.Strings(names)

	providers := make([]domain.ProviderStats, 0, len(names))
	for _, name := range names {
		stats := byProvider[name]
		stats.AvgDurationMs = float64(durations[name]) / float64(stats.Requests)
		providers = append(providers, *stats)
	}

	var missing []string
	for _, name := range required {
		stats, ok := byProvider[name]
		if !ok || stats.Requests < minRequests {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)

	return &domain.ProvenanceReport{
		TotalRequests:    len(requests),
		Providers:        providers,
		RequiredMissing:  missing,
		CoverageComplete: len(requests) > 0 && len(missing) == 0,
	}
}
