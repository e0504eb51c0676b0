// Package campaign orchestrates multi-strategy validation campaigns.
// It coordinates: candle fetch → simulation → metrics → gate → artifacts,
// with resumable progress tracked in the campaign ledger.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"strategy-lab/internal/artifacts"
	"strategy-lab/internal/candles"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/ledger"
	"strategy-lab/internal/metrics"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/reporting"
	"strategy-lab/internal/retry"
	"strategy-lab/internal/scorer"
	"strategy-lab/internal/simulator"
	"strategy-lab/internal/storage"
)

// DataScale is one rung of the expansion ladder: the fraction of the
// fetched series an attempt simulates over.
type DataScale struct {
	Name     string
	Fraction float64
}

// DefaultLadder escalates from a quarter of the data to the full series.
var DefaultLadder = []DataScale{
	{Name: "quarter", Fraction: 0.25},
	{Name: "half", Fraction: 0.5},
	{Name: "full", Fraction: 1.0},
}

// StrategyPlan declares one strategy the campaign validates.
type StrategyPlan struct {
	Config       domain.StrategyConfig
	TargetTrades int
}

// Options for creating a Runner.
type Options struct {
	CampaignID string
	Symbol     string
	Timeframe  string

	Defaults   domain.CampaignDefaults
	Strategies []StrategyPlan

	// Required collaborators
	Source      candles.Source
	TradeStore  storage.TradeStore
	LedgerStore *ledger.Store

	// Optional collaborators. A SummaryStore enables per-attempt summary
	// persistence and the final merged leaderboard.
	SummaryStore   storage.SummaryStore
	ArtifactWriter *artifacts.Writer
	RetryPolicy    *retry.Policy

	// Ladder defaults to DefaultLadder.
	Ladder []DataScale

	// Concurrency bounds parallel strategies within a family batch.
	Concurrency int
	// BaseTimeout is the first-rung attempt timeout. Deeper rungs get
	// proportionally more time: base * (1 + depth/concurrency).
	BaseTimeout time.Duration

	// DegradedThreshold flags the campaign degraded when the completed
	// attempt ratio falls below it. Defaults to 0.5.
	DegradedThreshold float64

	StrictNoSynthetic bool
	Verbose           bool
}

// RunResult contains results from a campaign run.
type RunResult struct {
	StrategiesRun     int
	AttemptsCompleted int
	AttemptsFailed    int
	Promoted          int
	Insufficient      int
	Errors            []string

	// CompletedRatio is completed / (completed + failed) attempts.
	// Degraded is set when it falls below the configured threshold.
	CompletedRatio float64
	Degraded       bool

	// Leaderboard ranks strategies by composite score over their merged
	// attempt summaries. Only populated when a SummaryStore is configured.
	Leaderboard []scorer.ScoredAggregate
}

// Runner executes a campaign over its strategy plans.
type Runner struct {
	opts       Options
	generator  *reporting.Generator
	aggregator *metrics.Aggregator
	policy     *retry.Policy
	logger     *log.Logger
	now        func() time.Time

	// mu serializes ledger mutation and persistence.
	mu         sync.Mutex
	ledger     *domain.CampaignLedger
	attemptSeq atomic.Int64
	expanded   atomic.Bool
}

// New creates a campaign runner.
func New(opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.BaseTimeout <= 0 {
		opts.BaseTimeout = 2 * time.Minute
	}
	if len(opts.Ladder) == 0 {
		opts.Ladder = DefaultLadder
	}
	if opts.DegradedThreshold <= 0 {
		opts.DegradedThreshold = 0.5
	}

	policy := opts.RetryPolicy
	if policy == nil {
		policy = retry.NewPolicy()
	}

	r := &Runner{
		opts:      opts,
		generator: reporting.NewGenerator(opts.TradeStore),
		policy:    policy,
		logger:    log.New(log.Writer(), "[campaign] ", log.LstdFlags),
		now:       func() time.Time { return time.Now().UTC() },
	}
	if opts.SummaryStore != nil {
		r.aggregator = metrics.NewAggregator(opts.TradeStore, opts.SummaryStore)
	}
	return r
}

// WithClock sets a custom clock, for deterministic run ids in tests.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run executes the campaign: every strategy walks the expansion ladder
// until its trade target is met or the ladder is exhausted. Strategies
// are dispatched in family batches, concurrently within each batch.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	if err := r.loadOrCreateLedger(); err != nil {
		return nil, err
	}

	result := &RunResult{StrategiesRun: len(r.opts.Strategies)}
	var resultMu sync.Mutex

	for _, batch := range r.familyBatches() {
		sem := make(chan struct{}, r.opts.Concurrency)
		var wg sync.WaitGroup

		for _, plan := range batch {
			wg.Add(1)
			sem <- struct{}{}
			go func(plan StrategyPlan) {
				defer wg.Done()
				defer func() { <-sem }()

				outcome := r.runStrategy(ctx, plan)

				resultMu.Lock()
				result.AttemptsCompleted += outcome.completed
				result.AttemptsFailed += outcome.failed
				if outcome.promoted {
					result.Promoted++
				}
				if outcome.insufficient {
					result.Insufficient++
				}
				result.Errors = append(result.Errors, outcome.errors...)
				resultMu.Unlock()
			}(plan)
		}

		wg.Wait()

		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}

	if total := result.AttemptsCompleted + result.AttemptsFailed; total > 0 {
		result.CompletedRatio = float64(result.AttemptsCompleted) / float64(total)
		result.Degraded = result.CompletedRatio < r.opts.DegradedThreshold
		if result.Degraded {
			r.log("campaign %s degraded: completed ratio %.2f below %.2f",
				r.opts.CampaignID, result.CompletedRatio, r.opts.DegradedThreshold)
		}
	}

	if r.opts.SummaryStore != nil {
		leaderboard, err := r.buildLeaderboard(ctx)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("leaderboard: %v", err))
		} else {
			result.Leaderboard = leaderboard
		}
	}

	r.log("campaign %s done: %d strategies, %d attempts completed, %d failed, %d promoted, %d insufficient",
		r.opts.CampaignID, result.StrategiesRun, result.AttemptsCompleted,
		result.AttemptsFailed, result.Promoted, result.Insufficient)

	return result, nil
}

// buildLeaderboard merges every strategy's per-run summaries into one
// aggregate and ranks the set by composite score. Each run's summary is
// a snapshot of the strategy's cumulative evidence at that rung, so the
// trade-weighted merge leans on the later, larger snapshots.
func (r *Runner) buildLeaderboard(ctx context.Context) ([]scorer.ScoredAggregate, error) {
	aggregates := make([]*scorer.Aggregate, 0, len(r.opts.Strategies))
	for _, plan := range r.opts.Strategies {
		strategyID := plan.Config.StrategyID

		summaries, err := r.opts.SummaryStore.GetByStrategy(ctx, strategyID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load summaries for %s: %w", strategyID, err)
		}
		if len(summaries) == 0 {
			continue
		}

		aggregates = append(aggregates, scorer.AggregateRunSummaries(strategyID, plan.Config.Family, summaries))
	}

	scored := scorer.ScoreStrategySet(aggregates)
	for _, s := range scored {
		r.log("leaderboard %s: score %.4f over %d trades", s.StrategyID, s.Score, s.Trades)
	}
	return scored, nil
}

// familyBatches groups strategy plans by family, preserving plan order
// within a family and first-seen order across families.
func (r *Runner) familyBatches() [][]StrategyPlan {
	index := make(map[string]int)
	var batches [][]StrategyPlan

	for _, plan := range r.opts.Strategies {
		family := plan.Config.Family
		i, seen := index[family]
		if !seen {
			i = len(batches)
			index[family] = i
			batches = append(batches, nil)
		}
		batches[i] = append(batches[i], plan)
	}

	return batches
}

type strategyOutcome struct {
	completed    int
	failed       int
	promoted     bool
	insufficient bool
	errors       []string
}

func (r *Runner) runStrategy(ctx context.Context, plan StrategyPlan) strategyOutcome {
	var outcome strategyOutcome

	strategyID := plan.Config.StrategyID
	target := plan.TargetTrades
	if target == 0 {
		target = r.opts.Defaults.TargetTrades
	}

	// A resumed ledger may already hold a terminal verdict for this
	// strategy. Insufficiency is terminal: no automatic retries.
	if progress := r.strategyProgress(strategyID); progress != nil {
		if progress.InsufficiencyReason != "" {
			outcome.insufficient = true
			r.log("strategy %s skipped: already insufficient (%s)", strategyID, progress.InsufficiencyReason)
			return outcome
		}
		if target > 0 && progress.CumulativeTrades >= target {
			outcome.promoted = progress.Promoted
			r.log("strategy %s skipped: target already met (%d/%d trades)",
				strategyID, progress.CumulativeTrades, target)
			return outcome
		}
	}

	cumulative := 0
	for depth, scale := range r.opts.Ladder {
		if ctx.Err() != nil {
			return outcome
		}
		if depth > 0 {
			r.markExpansionPhase()
		}

		start := r.now()
		achieved, promoted, err := r.runAttempt(ctx, plan, depth, scale)
		duration := time.Since(start).Seconds()

		if err != nil {
			outcome.failed++
			outcome.errors = append(outcome.errors, fmt.Sprintf("%s@%s: %v", strategyID, scale.Name, err))
			observability.RecordAttempt(strategyID, domain.AttemptFailed, duration)
			observability.RecordDegradedAttempt()
			// Config and strict-mode failures repeat identically at
			// every rung; stop the ladder.
			if errors.Is(err, domain.ErrConfigInvalid) || errors.Is(err, domain.ErrStrictModeViolation) {
				break
			}
			continue
		}

		outcome.completed++
		outcome.promoted = outcome.promoted || promoted
		observability.RecordAttempt(strategyID, domain.AttemptCompleted, duration)
		if promoted {
			observability.RecordPromotion()
		}

		cumulative = r.cumulativeTrades(ctx, strategyID, achieved)
		if cumulative >= target {
			return outcome
		}
	}

	if cumulative < target {
		outcome.insufficient = true
		// Insufficiency revokes any interim promotion.
		outcome.promoted = false
		reason := fmt.Sprintf("expansion ladder exhausted at %d/%d trades", cumulative, target)
		r.mutateLedger(func(l *domain.CampaignLedger) error {
			return ledger.MarkInsufficient(l, strategyID, reason)
		})
		r.log("strategy %s insufficient: %s", strategyID, reason)
	}

	return outcome
}

// runAttempt executes one ladder rung: fetch, simulate, persist, report.
// Returns the trades achieved in this attempt and whether the gate promoted.
func (r *Runner) runAttempt(ctx context.Context, plan StrategyPlan, depth int, scale DataScale) (int, bool, error) {
	strategyID := plan.Config.StrategyID
	seq := int(r.attemptSeq.Add(1))
	startedAt := r.now().UnixMilli()
	runID := idhash.ComputeRunID(r.opts.CampaignID, strategyID, startedAt, seq)

	attempt := &domain.Attempt{
		RunID:        runID,
		StrategyID:   strategyID,
		StartedAt:    startedAt,
		Status:       domain.AttemptRunning,
		SourcePolicy: r.opts.Defaults.SourcePolicy,
		Mode:         r.opts.Defaults.Mode,
		DataScale:    scale.Name,
	}
	r.mutateLedger(func(l *domain.CampaignLedger) error {
		ledger.UpsertAttempt(l, attempt)
		return nil
	})

	// Deeper rungs simulate over more data and get more time.
	timeout := time.Duration(float64(r.opts.BaseTimeout) * (1 + float64(depth)/float64(r.opts.Concurrency)))
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var trades []*domain.Trade
	err := r.policy.Do(attemptCtx, func(ctx context.Context) error {
		fetched, err := r.fetchWindow(ctx, scale)
		if err != nil {
			return err
		}

		simulated, err := r.simulate(fetched, plan)
		if err != nil {
			return retry.Permanent(err)
		}
		trades = simulated
		return nil
	})
	if err != nil {
		r.mutateLedger(func(l *domain.CampaignLedger) error {
			return ledger.MarkAttemptResult(l, runID, domain.AttemptFailed)
		})
		return 0, false, err
	}

	observability.RecordTradesSimulated(len(trades))

	if err := r.persistTrades(ctx, trades); err != nil {
		r.mutateLedger(func(l *domain.CampaignLedger) error {
			return ledger.MarkAttemptResult(l, runID, domain.AttemptFailed)
		})
		return 0, false, err
	}

	// Report and gate over everything stored so far, not just this attempt.
	stored, err := r.opts.TradeStore.GetByStrategy(ctx, strategyID)
	if err != nil {
		return 0, false, fmt.Errorf("load stored trades: %w", err)
	}
	report := r.generator.Build(reporting.GenerateInput{StrategyID: strategyID, RunID: runID}, stored)
	promoted := report.Gate != nil && report.Gate.Action == domain.ActionPromoteToProven

	if r.aggregator != nil {
		if _, err := r.aggregator.ComputeAndStore(ctx, strategyID, runID); err != nil &&
			!errors.Is(err, storage.ErrDuplicateKey) && !errors.Is(err, metrics.ErrNoTrades) {
			return 0, false, fmt.Errorf("store run summary: %w", err)
		}
	}

	var ref *domain.ArtifactRef
	if r.opts.ArtifactWriter != nil {
		written, err := r.opts.ArtifactWriter.Write(report, trades)
		if err != nil {
			return 0, false, fmt.Errorf("write artifacts: %w", err)
		}
		ref = &written
	}

	r.mutateLedger(func(l *domain.CampaignLedger) error {
		if err := ledger.MarkAttemptResult(l, runID, domain.AttemptCompleted); err != nil {
			return err
		}
		if err := ledger.UpdateStrategyProgress(l, strategyID, len(trades), len(stored)); err != nil {
			return err
		}
		if ref != nil {
			ledger.AppendArtifactRef(l, *ref)
		}
		return ledger.RecordGateOutcome(l, strategyID, promoted, promoted)
	})

	gateStatus := "none"
	if report.Gate != nil {
		gateStatus = string(report.Gate.Status)
	}
	r.log("attempt %s for %s at scale %s: %d trades, gate %s",
		runID, strategyID, scale.Name, len(trades), gateStatus)

	return len(trades), promoted, nil
}

// fetchWindow fetches the symbol's series and trims it to the rung's
// fraction. Windows are prefixes of the series: candle indexing stays
// stable across rungs, so an expanded window re-derives identical trade
// ids for the overlap and the duplicate-tolerant persist dedups them.
func (r *Runner) fetchWindow(ctx context.Context, scale DataScale) ([]domain.Candle, error) {
	result, err := r.opts.Source.Fetch(ctx, r.opts.Symbol, r.opts.Timeframe)
	if err != nil {
		return nil, err
	}

	if r.opts.StrictNoSynthetic && candles.IsSynthetic(result.Provider) {
		return nil, retry.Permanent(fmt.Errorf("%w: provider %q", domain.ErrStrictModeViolation, result.Provider))
	}
	if len(result.Candles) == 0 {
		return nil, fmt.Errorf("%w: empty series for %s/%s", domain.ErrDataUnavailable, r.opts.Symbol, r.opts.Timeframe)
	}

	series := result.Candles
	keep := int(float64(len(series)) * scale.Fraction)
	if keep < 2 {
		keep = len(series)
	}
	return series[:keep], nil
}

func (r *Runner) simulate(series []domain.Candle, plan StrategyPlan) ([]*domain.Trade, error) {
	config := plan.Config
	if config.EntrySignal == nil {
		config.EntrySignal = func(domain.Candle, int) bool { return true }
	}
	return simulator.Simulate(series, &config)
}

// persistTrades tolerates duplicates: deterministic trade ids mean an
// expanded window re-simulates trades an earlier rung already stored.
func (r *Runner) persistTrades(ctx context.Context, trades []*domain.Trade) error {
	for _, t := range trades {
		err := r.opts.TradeStore.Insert(ctx, t)
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("persist trade %s: %w", t.TradeID, err)
		}
	}
	return nil
}

func (r *Runner) cumulativeTrades(ctx context.Context, strategyID string, fallback int) int {
	stored, err := r.opts.TradeStore.GetByStrategy(ctx, strategyID)
	if err != nil {
		return fallback
	}
	return len(stored)
}

func (r *Runner) loadOrCreateLedger() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	loaded, err := r.opts.LedgerStore.Load(r.opts.CampaignID)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	if loaded != nil {
		r.ledger = loaded
		return nil
	}

	specs := make([]ledger.StrategySpec, 0, len(r.opts.Strategies))
	for _, plan := range r.opts.Strategies {
		specs = append(specs, ledger.StrategySpec{
			StrategyID:   plan.Config.StrategyID,
			Family:       plan.Config.Family,
			TargetTrades: plan.TargetTrades,
		})
	}

	r.ledger = ledger.New(r.opts.CampaignID, r.opts.Defaults, specs, r.now().UnixMilli())
	if err := r.opts.LedgerStore.Save(r.ledger); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	observability.RecordLedgerSave()
	return nil
}

// strategyProgress returns a copy of the ledger's view of one strategy,
// or nil when the strategy is not tracked yet.
func (r *Runner) strategyProgress(strategyID string) *domain.StrategyProgress {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ledger == nil {
		return nil
	}
	progress, ok := r.ledger.Strategies[strategyID]
	if !ok || progress == nil {
		return nil
	}
	snapshot := *progress
	return &snapshot
}

func (r *Runner) markExpansionPhase() {
	if r.expanded.Swap(true) {
		return
	}
	r.mutateLedger(func(l *domain.CampaignLedger) error {
		ledger.SetPhase(l, domain.PhaseExpansion)
		return nil
	})
}

// mutateLedger applies a mutation and persists the snapshot atomically
// with respect to other attempts.
func (r *Runner) mutateLedger(fn func(l *domain.CampaignLedger) error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := fn(r.ledger); err != nil {
		r.log("ledger mutation: %v", err)
		return
	}
	if err := r.opts.LedgerStore.Save(r.ledger); err != nil {
		r.log("ledger save: %v", err)
		return
	}
	observability.RecordLedgerSave()
}

func (r *Runner) log(format string, args ...interface{}) {
	if r.opts.Verbose {
		r.logger.Printf(format, args...)
	}
}
