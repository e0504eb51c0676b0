// Package main runs a single strategy backtest from the command line:
// fetch candles, simulate, and print the validation report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strategy-lab/internal/artifacts"
	"strategy-lab/internal/candles"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/execadjust"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/provenance"
	"strategy-lab/internal/reporting"
	"strategy-lab/internal/simulator"
	"strategy-lab/internal/storage/memory"
)

func main() {
	strategyID := flag.String("strategy-id", "", "Strategy identifier (required)")
	family := flag.String("family", "", "Strategy family label")

	// Strategy parameters
	stopLossPct := flag.Float64("stop-loss-pct", 0, "Stop loss percent (required)")
	takeProfitPct := flag.Float64("take-profit-pct", 0, "Take profit percent (required)")
	trailingStopPct := flag.Float64("trailing-stop-pct", 0, "Trailing stop percent (0 disables)")
	maxHoldCandles := flag.Int("max-hold-candles", 0, "Max candles to hold a position (required)")
	slippagePct := flag.Float64("slippage-pct", 0, "Slippage percent per side")
	feePct := flag.Float64("fee-pct", 0, "Fee percent per side")

	// Candle source
	symbol := flag.String("symbol", "", "Symbol to fetch, e.g. SOL-USD")
	timeframe := flag.String("timeframe", "1m", "Candle timeframe")
	candlesEndpoint := flag.String("candles-endpoint", os.Getenv("CANDLES_ENDPOINT"), "Candle provider HTTP endpoint")
	candlesProvider := flag.String("candles-provider", "primary", "Candle provider name")
	candlesAPIKey := flag.String("candles-api-key", os.Getenv("CANDLES_API_KEY"), "Candle provider API key")
	syntheticSeed := flag.Int64("synthetic-seed", 0, "Use the synthetic candle source with this seed (testing only)")
	syntheticCount := flag.Int("synthetic-count", 1000, "Synthetic series length")

	// Execution reliability prior
	reliabilityPct := flag.Float64("reliability-pct", 0, "Execution reliability prior in percent (0 disables the adjusted view)")
	noRouteRate := flag.Float64("no-route-rate", 0, "No-route rate prior")
	unresolvedRate := flag.Float64("unresolved-rate", 0, "Unresolved-fill rate prior")

	// Output
	outputDir := flag.String("output-dir", "", "Write the artifact bundle (evidence, report, trades CSV) to this directory")
	outputJSON := flag.Bool("json", false, "Print evidence JSON instead of the markdown report")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *strategyID == "" {
		logger.Fatal("--strategy-id is required")
	}
	if *stopLossPct <= 0 || *takeProfitPct <= 0 || *maxHoldCandles <= 0 {
		logger.Fatal("--stop-loss-pct, --take-profit-pct and --max-hold-candles must be > 0")
	}
	if *symbol == "" && *syntheticSeed == 0 {
		logger.Fatal("--symbol is required (or --synthetic-seed for testing)")
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

	// Candle source with provenance tracking
	tracker := provenance.NewTracker(nil)
	var source candles.Source
	if *candlesEndpoint != "" {
		source = candles.NewHTTPSource(candles.HTTPSourceConfig{
			Endpoint: *candlesEndpoint,
			Provider: *candlesProvider,
			APIKey:   *candlesAPIKey,
		})
	} else {
		source = candles.NewSyntheticSource(*syntheticSeed, *syntheticCount)
	}

	fetchStart := time.Now()
	fetched, err := source.Fetch(ctx, *symbol, *timeframe)
	if err != nil {
		logger.Fatalf("fetch candles: %v", err)
	}
	tracker.Record(fetched.Provider, 200, time.Since(fetchStart))
	logger.Printf("Fetched %d candles from %s", len(fetched.Candles), fetched.Provider)

	// Simulate
	trailing := *trailingStopPct
	if trailing == 0 {
		trailing = domain.TrailingDisabledPct
	}
	config := &domain.StrategyConfig{
		StrategyID:      *strategyID,
		Family:          *family,
		StopLossPct:     *stopLossPct,
		TakeProfitPct:   *takeProfitPct,
		TrailingStopPct: trailing,
		MaxHoldCandles:  *maxHoldCandles,
		SlippagePct:     *slippagePct,
		FeePct:          *feePct,
		EntrySignal:     func(domain.Candle, int) bool { return true },
	}

	trades, err := simulator.Simulate(fetched.Candles, config)
	if err != nil {
		logger.Fatalf("simulate: %v", err)
	}
	logger.Printf("Simulated %d trades", len(trades))

	// Report
	runID := idhash.ComputeRunID("cli", *strategyID, time.Now().UnixMilli(), 0)
	generator := reporting.NewGenerator(memory.NewTradeStore())
	if *reliabilityPct > 0 {
		generator = generator.WithAdjuster(execadjust.NewFillDiscountAdjuster())
	}

	input := reporting.GenerateInput{
		StrategyID: *strategyID,
		RunID:      runID,
		Provenance: tracker.Report(),
	}
	if *reliabilityPct > 0 {
		input.Prior = &execadjust.ReliabilityPrior{
			ReliabilityPct: *reliabilityPct,
			NoRouteRate:    *noRouteRate,
			UnresolvedRate: *unresolvedRate,
		}
	}
	report := generator.Build(input, trades)

	if *outputDir != "" {
		ref, err := artifacts.NewWriter(*outputDir).Write(report, trades)
		if err != nil {
			logger.Fatalf("write artifacts: %v", err)
		}
		logger.Printf("Artifact bundle written: %s", ref.ManifestPath)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Println(reporting.RenderMarkdown(report))
	}
}
