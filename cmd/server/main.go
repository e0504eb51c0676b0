// Package main runs the backtest HTTP service:
// - POST /backtest: simulate strategies over fetched or inline candles
// - /healthz, /metrics: liveness and Prometheus metrics
// - optional WebSocket candle collector feeding the candle cache
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"strategy-lab/internal/api"
	"strategy-lab/internal/candles"
	"strategy-lab/internal/execadjust"
	"strategy-lab/internal/storage"
	chstore "strategy-lab/internal/storage/clickhouse"
	"strategy-lab/internal/storage/memory"
	"strategy-lab/internal/storage/migrations"
	pgstore "strategy-lab/internal/storage/postgres"
)

func main() {
	loadEnvFile()

	addr := flag.String("addr", ":8080", "HTTP listen address")

	// Candle source
	candlesEndpoint := flag.String("candles-endpoint", os.Getenv("CANDLES_ENDPOINT"), "Candle provider HTTP endpoint")
	candlesProvider := flag.String("candles-provider", "primary", "Candle provider name recorded in provenance")
	candlesAPIKey := flag.String("candles-api-key", os.Getenv("CANDLES_API_KEY"), "Candle provider API key")
	syntheticSeed := flag.Int64("synthetic-seed", 0, "Use the synthetic candle source with this seed (testing only)")
	syntheticCount := flag.Int("synthetic-count", 1000, "Synthetic series length")

	// Storage
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	// Streaming collector
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("CANDLES_WS_ENDPOINT"), "Candle provider WebSocket endpoint (optional)")
	wsSymbols := flag.String("ws-symbols", "", "Comma-separated symbols to stream, e.g. SOL-USD,ETH-USD")
	wsTimeframe := flag.String("ws-timeframe", "1m", "Timeframe for streamed candles")

	// Execution reliability prior (advisory adjusted view)
	reliabilityPct := flag.Float64("reliability-pct", 0, "Execution reliability prior in percent (0 disables the adjusted view)")
	noRouteRate := flag.Float64("no-route-rate", 0, "No-route rate prior")
	unresolvedRate := flag.Float64("unresolved-rate", 0, "Unresolved-fill rate prior")

	requiredProviders := flag.String("required-providers", "", "Comma-separated providers required for provenance coverage")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	if *candlesEndpoint == "" && *syntheticSeed == 0 {
		logger.Fatal("--candles-endpoint is required (or --synthetic-seed for testing)")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
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
		logger.Println("WARNING: using synthetic candle source, strict-mode requests will be rejected")
		source = candles.NewSyntheticSource(*syntheticSeed, *syntheticCount)
	}

	// Stores
	var tradeStore storage.TradeStore = memory.NewTradeStore()
	var candleStore storage.CandleStore = memory.NewCandleStore()

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

		if *clickhouseDSN != "" {
			conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
			if err != nil {
				logger.Fatalf("apply clickhouse migrations: %v", err)
			}
			defer conn.Close()
			candleStore = chstore.NewCandleStore(conn)
		}
	}

	// Service
	opts := []api.ServiceOption{
		api.WithTradeStore(tradeStore),
		api.WithLogger(logger),
	}
	if *reliabilityPct > 0 {
		opts = append(opts, api.WithAdjuster(execadjust.NewFillDiscountAdjuster(), &execadjust.ReliabilityPrior{
			ReliabilityPct: *reliabilityPct,
			NoRouteRate:    *noRouteRate,
			UnresolvedRate: *unresolvedRate,
		}))
	}
	if *requiredProviders != "" {
		opts = append(opts, api.WithRequiredProviders(splitList(*requiredProviders)))
	}
	service := api.NewService(source, opts...)

	// Optional streaming collector
	if *wsEndpoint != "" && *wsSymbols != "" {
		startCollector(ctx, logger, *wsEndpoint, *candlesProvider, *wsSymbols, *wsTimeframe, candleStore)
	}

	server := &http.Server{
		Addr:    *addr,
		Handler: api.NewServer(service, logger).Routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("Listening on %s", *addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}
	logger.Println("Shutdown complete")
}

// startCollector streams live candles into the candle cache, one
// collector goroutine per symbol.
func startCollector(ctx context.Context, logger *log.Logger, endpoint, provider, symbols, timeframe string, store storage.CandleStore) {
	ws, err := candles.NewWSSource(ctx, endpoint, provider, nil)
	if err != nil {
		logger.Fatalf("connect candle websocket: %v", err)
	}

	collector := candles.NewCollector(ws, store,
		candles.WithCollectorLogger(log.New(os.Stdout, "[collector] ", log.LstdFlags)))

	for _, symbol := range splitList(symbols) {
		go func(symbol string) {
			if err := collector.Collect(ctx, symbol, timeframe); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("collector %s/%s: %v", symbol, timeframe, err)
			}
		}(symbol)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
