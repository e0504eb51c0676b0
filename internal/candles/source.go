// Package candles provides candle data sources for backtests: an HTTP
// fetcher with retries, a streaming WebSocket source for live capture,
// and a deterministic synthetic generator for dry runs.
package candles

import (
	"context"

	"strategy-lab/internal/domain"
)

// SyntheticProvider is the provider name reported by generated data.
// Strict no-synthetic mode rejects results carrying it.
const SyntheticProvider = "synthetic"

// FetchResult carries fetched candles together with the provider that
// served them, so provenance can be attributed per request.
type FetchResult struct {
	Candles  []domain.Candle
	Provider string
}

// Source fetches candles for a symbol and timeframe. Implementations
// must honor context cancellation.
type Source interface {
	Fetch(ctx context.Context, symbol, timeframe string) (*FetchResult, error)
}

// IsSynthetic reports whether a provider name denotes generated data.
func IsSynthetic(provider string) bool {
	return provider == SyntheticProvider
}
