package candles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/retry"
)

// RequestObserver is invoked once per HTTP attempt with the provider
// name, response status (0 on transport error) and round-trip duration.
// The provenance tracker plugs in here.
type RequestObserver func(provider string, statusCode int, duration time.Duration)

// HTTPSourceConfig configures an HTTP candle source.
type HTTPSourceConfig struct {
	// Endpoint is the base URL of the candle API.
	Endpoint string
	// Provider is the name reported in fetch results and provenance.
	Provider string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
}

// HTTPSource fetches candles over HTTP with bounded retries. Rate
// limits and server errors are retried; other client errors are not.
type HTTPSource struct {
	config   HTTPSourceConfig
	client   *http.Client
	policy   *retry.Policy
	observer RequestObserver
}

// HTTPSourceOption configures an HTTPSource.
type HTTPSourceOption func(*HTTPSource)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p *retry.Policy) HTTPSourceOption {
	return func(s *HTTPSource) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithRequestObserver registers a per-attempt observer.
func WithRequestObserver(fn RequestObserver) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.observer = fn
	}
}

// NewHTTPSource creates an HTTP candle source.
func NewHTTPSource(config HTTPSourceConfig, opts ...HTTPSourceOption) *HTTPSource {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Provider == "" {
		config.Provider = "http"
	}

	s := &HTTPSource{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		policy: retry.NewPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Source = (*HTTPSource)(nil)

// candlesResponse is the wire shape of the candle API.
type candlesResponse struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Candles   []domain.Candle `json:"candles"`
}

// Fetch retrieves candles for symbol/timeframe, retrying transient
// failures. A persistent failure wraps domain.ErrDataUnavailable.
func (s *HTTPSource) Fetch(ctx context.Context, symbol, timeframe string) (*FetchResult, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", domain.ErrDataUnavailable)
	}
	// A malformed mint address can never resolve; fail before the wire.
	if LooksLikeMint(symbol) {
		if err := ValidateMint(symbol); err != nil {
			return nil, err
		}
	}

	reqURL, err := s.buildURL(symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}

	var result *FetchResult
	err = s.policy.Do(ctx, func(ctx context.Context) error {
		fetched, err := s.fetchOnce(ctx, reqURL)
		if err != nil {
			return err
		}
		result = fetched
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s/%s from %s: %v",
			domain.ErrDataUnavailable, symbol, timeframe, s.config.Provider, err)
	}
	return result, nil
}

func (s *HTTPSource) buildURL(symbol, timeframe string) (string, error) {
	u, err := url.Parse(s.config.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("symbol", symbol)
	if timeframe != "" {
		q.Set("timeframe", timeframe)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *HTTPSource) fetchOnce(ctx context.Context, reqURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.observe(0, time.Since(start))
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	s.observe(resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
		if retry.RetryableStatus(resp.StatusCode) {
			return nil, err
		}
		return nil, retry.Permanent(err)
	}

	var decoded candlesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode response: %w", err))
	}

	return &FetchResult{Candles: decoded.Candles, Provider: s.config.Provider}, nil
}

func (s *HTTPSource) observe(statusCode int, duration time.Duration) {
	if s.observer != nil {
		s.observer(s.config.Provider, statusCode, duration)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
