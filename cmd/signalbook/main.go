package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jwtly10/signalbook/internal/account"
	"github.com/jwtly10/signalbook/internal/backtest"
	"github.com/jwtly10/signalbook/internal/config"
	"github.com/jwtly10/signalbook/internal/gateway"
	"github.com/jwtly10/signalbook/internal/indicator"
	"github.com/jwtly10/signalbook/internal/live"
	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/marketdata"
	"github.com/jwtly10/signalbook/internal/metrics"
	"github.com/jwtly10/signalbook/internal/optimizer"
	"github.com/jwtly10/signalbook/internal/report"
	"github.com/jwtly10/signalbook/internal/risk"
	sig "github.com/jwtly10/signalbook/internal/signal"
	"github.com/jwtly10/signalbook/internal/sizing"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var logger = logging.New("main")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "run-backtest":
		err = runBacktest(ctx, args[1:], stdout)
	case "scan":
		err = runScan(ctx, args[1:], stdout)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return exitUsage
	}

	var usageErr usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usageErr):
		fmt.Fprintln(stderr, usageErr.Error())
		return exitUsage
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
}

type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage:
  signalbook run-backtest -symbols BTCUSDT,ETHUSDT -from 2024-01-01 -to 2024-06-01 -iterations 200 [-config cfg.yaml] [-out result.json] [-seed 42]
  signalbook scan -symbols BTCUSDT [-config cfg.yaml]`)
}

func runBacktest(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run-backtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "path to YAML config")
	symbols := fs.String("symbols", "", "comma separated symbols")
	from := fs.String("from", "", "window start (YYYY-MM-DD or RFC3339)")
	to := fs.String("to", "", "window end, exclusive (YYYY-MM-DD or RFC3339)")
	iterations := fs.Int("iterations", 0, "parameter sets to evaluate")
	workers := fs.Int("workers", 0, "parallel evaluations")
	seed := fs.Uint64("seed", 0, "sampling seed")
	out := fs.String("out", "", "write the JSON record here instead of stdout")
	pine := fs.String("pine", "", "write TradingView markers for the best run here")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	set := visited(fs)

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.Log); err != nil {
		return err
	}

	if set["symbols"] {
		cfg.Symbols = config.SplitList(*symbols)
	}
	if set["iterations"] {
		cfg.Optimizer.Iterations = *iterations
	}
	if set["workers"] {
		cfg.Optimizer.Workers = *workers
	}
	if set["seed"] {
		cfg.Optimizer.Seed = *seed
	}
	if set["out"] {
		cfg.Report.Output = *out
	}
	if set["pine"] {
		cfg.Report.PinePath = *pine
	}

	window, err := parseWindow(*from, *to)
	if err != nil {
		return err
	}
	if err := optimizer.Validate(cfg.Symbols, window, cfg.Optimizer.Ranges, cfg.Optimizer.Iterations); err != nil {
		return err
	}

	source, err := newSource(cfg)
	if err != nil {
		return err
	}
	rec := metrics.New()
	stopMetrics := serveMetrics(cfg.Metrics.Addr, rec)
	defer stopMetrics()

	logger.Info("Starting backtest optimization",
		"symbols", cfg.Symbols,
		"from", window.From,
		"to", window.To,
		"iterations", cfg.Optimizer.Iterations)

	opt := optimizer.New(source, cfg.Base(),
		optimizer.WithWorkers(cfg.Optimizer.Workers),
		optimizer.WithSeed(cfg.Optimizer.Seed),
		optimizer.WithTimeout(cfg.Optimizer.Timeout),
		optimizer.WithScoreConfig(cfg.Optimizer.Score),
		optimizer.WithObserver(rec),
	)
	state, err := opt.Optimize(ctx, cfg.Symbols, window, cfg.Optimizer.Ranges, cfg.Optimizer.Iterations)
	if err != nil {
		return err
	}

	record := report.NewRecord(report.RunInfo{
		Symbols:    cfg.Symbols,
		Window:     window,
		Iterations: cfg.Optimizer.Iterations,
		Seed:       cfg.Optimizer.Seed,
	}, state)

	if cfg.Report.Output == "" || cfg.Report.Output == "-" {
		if err := report.WriteJSON(stdout, record); err != nil {
			return err
		}
	} else {
		if err := report.WriteFile(cfg.Report.Output, record); err != nil {
			return err
		}
		if state.Best != nil {
			state.Best.Result.Print()
			backtest.Results{Trades: state.Best.Trades, Result: state.Best.Result}.PrintTrades()
		}
	}

	if state.Best != nil {
		if err := report.DumpPineScript(state.Best.Trades, cfg.Report.PinePath); err != nil {
			logger.Error("Pine script dump failed", "error", err)
		}
	} else {
		logger.Warn("No parameter set reached the minimum trade count", "min_trades", cfg.Optimizer.Score.MinTrades)
	}

	if cfg.Report.ClickHouse.DSN != "" {
		if err := storeRecord(ctx, cfg.Report.ClickHouse, record); err != nil {
			// The record is already written; a storage failure should not fail the run.
			logger.Error("Failed to store record in ClickHouse", "error", err)
		}
	}

	logger.Info("Backtest optimization complete", "run_id", record.RunID, "has_best", record.HasBest, "score", record.Score)
	return nil
}

func runScan(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "path to YAML config")
	symbols := fs.String("symbols", "", "comma separated symbols")
	balance := fs.Float64("balance", 0, "paper account starting balance")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	set := visited(fs)

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.Log); err != nil {
		return err
	}
	if set["symbols"] {
		cfg.Symbols = config.SplitList(*symbols)
	}
	if set["balance"] {
		cfg.Account.StartingBalance = *balance
	}
	if len(cfg.Symbols) == 0 {
		return optimizer.ErrNoSymbols
	}

	source, err := newSource(cfg)
	if err != nil {
		return err
	}
	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	claims, closeClaims, err := newClaims(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeClaims()

	rec := metrics.New()
	stopMetrics := serveMetrics(cfg.Metrics.Addr, rec)
	defer stopMetrics()

	scanner := live.NewScanner(live.Deps{
		Source:     source,
		Indicators: indicator.NewEngine(cfg.IndicatorConfig()),
		Scorer:     sig.NewScorer(cfg.ScoringConfig()),
		Sizer:      sizing.NewSizer(cfg.SizingConfig()),
		Gate:       risk.NewGate(cfg.RiskConfig()),
		Claims:     claims,
		Account:    account.NewAccount(cfg.Account.StartingBalance),
		Publisher:  publisher,
		Simulation: cfg.SimConfig(),
		Metrics:    rec,
	})

	results := scanner.Scan(ctx, cfg.Symbols)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func newSource(cfg *config.Config) (marketdata.BarSource, error) {
	switch cfg.MarketData.Source {
	case "oanda":
		return marketdata.NewOandaSource(cfg.MarketData.Oanda, nil), nil
	case "csv", "":
		return marketdata.NewCSVSource(cfg.MarketData.CSVDir), nil
	}
	return nil, fmt.Errorf("unknown market data source %q", cfg.MarketData.Source)
}

func newPublisher(cfg *config.Config) (gateway.Publisher, error) {
	if cfg.Gateway.Type == "kafka" {
		return gateway.NewKafkaPublisher(cfg.Gateway.Kafka)
	}
	return gateway.NewLogPublisher(), nil
}

func newClaims(ctx context.Context, cfg *config.Config) (risk.Claims, func(), error) {
	if cfg.Claims.Type != "redis" {
		return risk.NewMemoryClaims(), func() {}, nil
	}
	rc, err := risk.NewRedisClaims(ctx, cfg.Claims.Redis)
	if err != nil {
		return nil, nil, err
	}
	return rc, func() { _ = rc.Close() }, nil
}

func storeRecord(ctx context.Context, cfg report.ClickHouseConfig, record report.Record) error {
	store, err := report.NewClickHouseStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateTable(ctx); err != nil {
		return err
	}
	return store.Insert(ctx, record)
}

// serveMetrics exposes /metrics on addr until the returned stop is called.
func serveMetrics(addr string, rec *metrics.Recorder) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("Serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func visited(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func parseWindow(from, to string) (optimizer.Window, error) {
	var w optimizer.Window
	var err error
	if w.From, err = parseTime(from); err != nil {
		return w, fmt.Errorf("invalid -from: %w", err)
	}
	if w.To, err = parseTime(to); err != nil {
		return w, fmt.Errorf("invalid -to: %w", err)
	}
	return w, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
