// Package main runs a validation campaign: every strategy in the plan
// walks the data expansion ladder until its trade target is met, with
// resumable progress in the campaign ledger.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"strategy-lab/internal/artifacts"
	"strategy-lab/internal/campaign"
	"strategy-lab/internal/candles"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/ledger"
	"strategy-lab/internal/storage"
	"strategy-lab/internal/storage/memory"
	"strategy-lab/internal/storage/migrations"
	pgstore "strategy-lab/internal/storage/postgres"
)

// campaignFile is the JSON plan the campaign runs from.
type campaignFile struct {
	CampaignID string                  `json:"campaign_id"`
	Symbol     string                  `json:"symbol"`
	Timeframe  string                  `json:"timeframe"`
	Defaults   domain.CampaignDefaults `json:"defaults"`
	Strategies []strategyEntry         `json:"strategies"`
}

type strategyEntry struct {
	StrategyID      string  `json:"strategy_id"`
	Family          string  `json:"family"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	TakeProfitPct   float64 `json:"take_profit_pct"`
	TrailingStopPct float64 `json:"trailing_stop_pct"`
	MaxHoldCandles  int     `json:"max_hold_candles"`
	SlippagePct     float64 `json:"slippage_pct"`
	FeePct          float64 `json:"fee_pct"`
	TargetTrades    int     `json:"target_trades"`
}

func main() {
	configPath := flag.String("config", "", "Campaign plan JSON file (required)")

	// Candle source
	candlesEndpoint := flag.String("candles-endpoint", os.Getenv("CANDLES_ENDPOINT"), "Candle provider HTTP endpoint")
	candlesProvider := flag.String("candles-provider", "primary", "Candle provider name")
	candlesAPIKey := flag.String("candles-api-key", os.Getenv("CANDLES_API_KEY"), "Candle provider API key")
	syntheticSeed := flag.Int64("synthetic-seed", 0, "Use the synthetic candle source with this seed (testing only)")
	syntheticCount := flag.Int("synthetic-count", 5000, "Synthetic series length")
	strict := flag.Bool("strict-no-synthetic", true, "Reject synthetic candles")

	// Storage
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory trade storage")

	// Output and orchestration
	ledgerDir := flag.String("ledger-dir", "ledger", "Directory for campaign ledger snapshots")
	outputDir := flag.String("output-dir", "output", "Directory for artifact bundles")
	concurrency := flag.Int("concurrency", 4, "Parallel strategies within a family batch")
	baseTimeout := flag.Duration("base-timeout", 2*time.Minute, "First-rung attempt timeout")
	verbose := flag.Bool("verbose", true, "Verbose progress logging")

	flag.Parse()

	logger := log.New(os.Stdout, "[campaign] ", log.LstdFlags)

	if *configPath == "" {
		logger.Fatal("--config is required")
	}
	if *candlesEndpoint == "" && *syntheticSeed == 0 {
		logger.Fatal("--candles-endpoint is required (or --synthetic-seed for testing)")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	plan, err := loadCampaignFile(*configPath)
	if err != nil {
		logger.Fatalf("load campaign plan: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Candle source
	var source candles.Source
	if *candlesEndpoint != "" {
		source = candles.NewHTTPSource(candles.HTTPSourceConfig{
			Endpoint: *candlesEndpoint,
			Provider: *candlesProvider,
			APIKey:   *candlesAPIKey,
		})
	} else {
		logger.Println("WARNING: using synthetic candle source")
		source = candles.NewSyntheticSource(*syntheticSeed, *syntheticCount)
	}

	// Storage
	var tradeStore storage.TradeStore = memory.NewTradeStore()
	var summaryStore storage.SummaryStore = memory.NewSummaryStore()
	if !*useMemory {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("apply postgres migrations: %v", err)
		}
		tradeStore = pgstore.NewTradeStore(pool)
		summaryStore = pgstore.NewSummaryStore(pool)
	}

	runner := campaign.New(campaign.Options{
		CampaignID:        plan.CampaignID,
		Symbol:            plan.Symbol,
		Timeframe:         plan.Timeframe,
		Defaults:          plan.Defaults,
		Strategies:        buildPlans(plan),
		Source:            source,
		TradeStore:        tradeStore,
		SummaryStore:      summaryStore,
		LedgerStore:       ledger.NewStore(*ledgerDir),
		ArtifactWriter:    artifacts.NewWriter(*outputDir),
		Concurrency:       *concurrency,
		BaseTimeout:       *baseTimeout,
		StrictNoSynthetic: *strict,
		Verbose:           *verbose,
	})

	logger.Printf("Running campaign %s: %d strategies over %s/%s",
		plan.CampaignID, len(plan.Strategies), plan.Symbol, plan.Timeframe)

	result, err := runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("campaign failed: %v", err)
	}

	printResult(result)
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}

func loadCampaignFile(path string) (*campaignFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var plan campaignFile
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&plan); err != nil {
		return nil, err
	}

	if plan.CampaignID == "" {
		return nil, fmt.Errorf("campaign_id is required")
	}
	if plan.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if len(plan.Strategies) == 0 {
		return nil, fmt.Errorf("at least one strategy is required")
	}
	if plan.Timeframe == "" {
		plan.Timeframe = "1m"
	}

	return &plan, nil
}

func buildPlans(plan *campaignFile) []campaign.StrategyPlan {
	plans := make([]campaign.StrategyPlan, 0, len(plan.Strategies))
	for _, s := range plan.Strategies {
		trailing := s.TrailingStopPct
		if trailing == 0 {
			trailing = domain.TrailingDisabledPct
		}
		plans = append(plans, campaign.StrategyPlan{
			Config: domain.StrategyConfig{
				StrategyID:      s.StrategyID,
				Family:          s.Family,
				StopLossPct:     s.StopLossPct,
				TakeProfitPct:   s.TakeProfitPct,
				TrailingStopPct: trailing,
				MaxHoldCandles:  s.MaxHoldCandles,
				SlippagePct:     s.SlippagePct,
				FeePct:          s.FeePct,
			},
			TargetTrades: s.TargetTrades,
		})
	}
	return plans
}

func printResult(r *campaign.RunResult) {
	fmt.Println()
	fmt.Println("=== Campaign Result ===")
	fmt.Printf("Strategies:          %d\n", r.StrategiesRun)
	fmt.Printf("Attempts completed:  %d\n", r.AttemptsCompleted)
	fmt.Printf("Attempts failed:     %d\n", r.AttemptsFailed)
	fmt.Printf("Promoted:            %d\n", r.Promoted)
	fmt.Printf("Insufficient:        %d\n", r.Insufficient)
	fmt.Printf("Completed ratio:     %.2f", r.CompletedRatio)
	if r.Degraded {
		fmt.Print("  (DEGRADED)")
	}
	fmt.Println()

	if len(r.Leaderboard) > 0 {
		fmt.Println()
		fmt.Println("Leaderboard:")
		for i, s := range r.Leaderboard {
			fmt.Printf("  %2d. %-24s score %8.4f  trades %5d  expectancy %+.4f%%  pf %.2f\n",
				i+1, s.StrategyID, s.Score, s.Trades, s.ExpectancyPct, s.ProfitFactor)
		}
	}

	if len(r.Errors) > 0 {
		fmt.Println()
		fmt.Println("Errors:")
		for _, e := range r.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}
