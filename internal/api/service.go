package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"strategy-lab/internal/candles"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/execadjust"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/provenance"
	"strategy-lab/internal/reporting"
	"strategy-lab/internal/simulator"
	"strategy-lab/internal/storage"
)

// inlineProvider names candle data supplied in the request body.
const inlineProvider = "inline"

// Service runs validation backtests end to end: candle resolution,
// simulation, metrics, robustness checks and the promotion gate.
type Service struct {
	source      candles.Source
	tradeStore  storage.TradeStore
	generator   *reporting.Generator
	adjuster    execadjust.Adjuster
	prior       *execadjust.ReliabilityPrior
	required    []string
	entrySignal domain.EntrySignalFunc
	logger      *log.Logger
	now         func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTradeStore persists simulated trades per run.
func WithTradeStore(store storage.TradeStore) ServiceOption {
	return func(s *Service) { s.tradeStore = store }
}

// WithAdjuster enables execution-adjusted metrics in responses.
func WithAdjuster(a execadjust.Adjuster, prior *execadjust.ReliabilityPrior) ServiceOption {
	return func(s *Service) {
		s.adjuster = a
		s.prior = prior
	}
}

// WithRequiredProviders sets the providers provenance coverage demands.
func WithRequiredProviders(providers []string) ServiceOption {
	return func(s *Service) { s.required = providers }
}

// WithEntrySignal replaces the default always-enter signal.
func WithEntrySignal(fn domain.EntrySignalFunc) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.entrySignal = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServiceClock sets the clock, for deterministic run ids in tests.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a backtest service over a candle source.
func NewService(source candles.Source, opts ...ServiceOption) *Service {
	s := &Service{
		source:      source,
		entrySignal: func(domain.Candle, int) bool { return true },
		logger:      log.New(log.Writer(), "[api] ", log.LstdFlags),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.generator = reporting.NewGenerator(s.tradeStore).WithClock(s.now)
	if s.adjuster != nil {
		s.generator = s.generator.WithAdjuster(s.adjuster)
	}
	return s
}

// RunBacktest validates the request, resolves candles and runs every
// requested strategy against them.
func (s *Service) RunBacktest(ctx context.Context, req *BacktestRequest) (*BacktestResponse, error) {
	start := s.now()

	resp, err := s.runBacktest(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordBacktest(status, time.Since(start).Seconds())
	return resp, err
}

func (s *Service) runBacktest(ctx context.Context, req *BacktestRequest) (*BacktestResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	tracker := provenance.NewTracker(s.required)

	series, provider, err := s.resolveCandles(ctx, req, tracker)
	if err != nil {
		return nil, err
	}

	// Strict mode fails closed: without real provider data there is
	// nothing trustworthy to validate against.
	if req.Strict() && (provider == inlineProvider || candles.IsSynthetic(provider)) {
		return nil, fmt.Errorf("%w: provider %q rejected, real provider data required",
			domain.ErrStrictModeViolation, provider)
	}

	runID := idhash.ComputeRunID("api", req.Strategies[0].StrategyID, s.now().UnixMilli(), 0)
	report := tracker.Report()

	resp := &BacktestResponse{
		RunID:       runID,
		Provider:    provider,
		CandleCount: len(series),
		Provenance:  report,
	}

	for _, strategyReq := range req.Strategies {
		result, err := s.runStrategy(ctx, runID, strategyReq, series, report)
		if err != nil {
			return nil, err
		}
		resp.Results = append(resp.Results, result)
	}

	return resp, nil
}

func (s *Service) runStrategy(ctx context.Context, runID string, req StrategyRequest, series []domain.Candle, report *domain.ProvenanceReport) (*StrategyResult, error) {
	config := &domain.StrategyConfig{
		StrategyID:      req.StrategyID,
		Family:          req.Family,
		StopLossPct:     req.StopLossPct,
		TakeProfitPct:   req.TakeProfitPct,
		TrailingStopPct: req.TrailingStopPct,
		MaxHoldCandles:  req.MaxHoldCandles,
		SlippagePct:     req.SlippagePct,
		FeePct:          req.FeePct,
		EntrySignal:     s.entrySignal,
	}
	if config.TrailingStopPct == 0 {
		config.TrailingStopPct = domain.TrailingDisabledPct
	}

	trades, err := simulator.Simulate(series, config)
	if err != nil {
		return nil, err
	}
	observability.RecordTradesSimulated(len(trades))

	if s.tradeStore != nil {
		if err := s.persistTrades(ctx, trades); err != nil {
			return nil, err
		}
	}

	runReport := s.generator.Build(reporting.GenerateInput{
		StrategyID: req.StrategyID,
		RunID:      runID,
		Prior:      s.prior,
		Provenance: report,
	}, trades)

	result := &StrategyResult{
		StrategyID:  req.StrategyID,
		Summary:     runReport.Summary,
		Consistency: runReport.Consistency,
		Walkforward: runReport.Walkforward,
		Gate:        runReport.Gate,
	}
	if adjusted := runReport.ExecutionAdjusted; adjusted != nil {
		result.ExecutionReliabilityPct = adjusted.ExecutionReliabilityPct
		result.NoRouteRate = adjusted.NoRouteRate
		result.UnresolvedRate = adjusted.UnresolvedRate
		result.ExecutionAdjustedExpectancy = adjusted.ExecutionAdjustedExpectancy
		result.ExecutionAdjustedNetPnlPct = adjusted.ExecutionAdjustedNetPnlPct
		result.DegradedReasons = adjusted.DegradedReasons
	}

	return result, nil
}

// persistTrades tolerates duplicate keys so re-running the same request
// does not fail: trade ids are deterministic over strategy and entry.
func (s *Service) persistTrades(ctx context.Context, trades []*domain.Trade) error {
	for _, t := range trades {
		err := s.tradeStore.Insert(ctx, t)
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("persist trade %s: %w", t.TradeID, err)
		}
	}
	return nil
}

func (s *Service) resolveCandles(ctx context.Context, req *BacktestRequest, tracker *provenance.Tracker) ([]domain.Candle, string, error) {
	if len(req.Candles) > 0 {
		return req.Candles, inlineProvider, nil
	}

	start := time.Now()
	result, err := s.source.Fetch(ctx, req.Symbol, req.Timeframe)
	if err != nil {
		return nil, "", err
	}
	tracker.Record(result.Provider, 200, time.Since(start))

	if len(result.Candles) == 0 {
		return nil, "", fmt.Errorf("%w: provider %s returned no candles for %s/%s",
			domain.ErrDataUnavailable, result.Provider, req.Symbol, req.Timeframe)
	}
	return result.Candles, result.Provider, nil
}

func validateRequest(req *BacktestRequest) error {
	if req == nil {
		return fmt.Errorf("%w: empty request", domain.ErrConfigInvalid)
	}
	if len(req.Strategies) == 0 {
		return fmt.Errorf("%w: at least one strategy required", domain.ErrConfigInvalid)
	}
	seen := make(map[string]struct{}, len(req.Strategies))
	for i, strategy := range req.Strategies {
		if strategy.StrategyID == "" {
			return fmt.Errorf("%w: strategies[%d] missing strategy_id", domain.ErrConfigInvalid, i)
		}
		if _, dup := seen[strategy.StrategyID]; dup {
			return fmt.Errorf("%w: duplicate strategy_id %s", domain.ErrConfigInvalid, strategy.StrategyID)
		}
		seen[strategy.StrategyID] = struct{}{}
	}
	if len(req.Candles) == 0 && req.Symbol == "" {
		return fmt.Errorf("%w: either candles or symbol required", domain.ErrConfigInvalid)
	}
	if req.Symbol != "" && candles.LooksLikeMint(req.Symbol) {
		if err := candles.ValidateMint(req.Symbol); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
		}
	}
	return nil
}
