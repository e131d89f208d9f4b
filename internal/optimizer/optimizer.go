package optimizer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jwtly10/signalbook/internal/backtest"
	"github.com/jwtly10/signalbook/internal/indicator"
	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/marketdata"
	"github.com/jwtly10/signalbook/internal/signal"
	"github.com/jwtly10/signalbook/internal/types"
)

var logger = logging.New("optimizer")

type Config struct {
	Iterations int                  `yaml:"iterations" default:"100" validate:"gte=1"`
	Workers    int                  `yaml:"workers" default:"4" validate:"gte=1"`
	Seed       uint64               `yaml:"seed" default:"1"`
	Timeout    time.Duration        `yaml:"timeout"`
	Score      backtest.ScoreConfig `yaml:"score"`
	Ranges     ParameterRanges      `yaml:"ranges"`
}

// Observer is told about every finished evaluation.
type Observer interface {
	ObserveIteration(scored bool, score float64, improved bool)
}

type Window struct {
	From time.Time
	To   time.Time
}

// Optimizer runs a plain random search: every iteration draws an independent
// ParameterSet and replays it over every symbol.
type Optimizer struct {
	source   marketdata.BarSource
	base     Base
	score    backtest.ScoreConfig
	workers  int
	seed     uint64
	timeout  time.Duration
	observer Observer
}

type Option func(*Optimizer)

func WithWorkers(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithSeed fixes the sampling seed. Iteration i always draws from the stream
// seeded by (seed, i), independent of worker scheduling.
func WithSeed(seed uint64) Option {
	return func(o *Optimizer) { o.seed = seed }
}

func WithTimeout(d time.Duration) Option {
	return func(o *Optimizer) { o.timeout = d }
}

func WithScoreConfig(c backtest.ScoreConfig) Option {
	return func(o *Optimizer) { o.score = c }
}

func WithObserver(obs Observer) Option {
	return func(o *Optimizer) { o.observer = obs }
}

func New(source marketdata.BarSource, base Base, opts ...Option) *Optimizer {
	o := &Optimizer{
		source:  source,
		base:    base,
		score:   backtest.DefaultScoreConfig(),
		workers: 1,
		seed:    1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type series struct {
	symbol string
	bars   []types.Bar
}

// Validate checks the inputs Optimize would reject.
func Validate(symbols []string, window Window, ranges ParameterRanges, iterations int) error {
	if len(symbols) == 0 {
		return ErrNoSymbols
	}
	if iterations <= 0 {
		return fmt.Errorf("%w (got %d)", ErrNoIterations, iterations)
	}
	if !window.From.IsZero() && !window.To.IsZero() && !window.From.Before(window.To) {
		return fmt.Errorf("%w: from %s, to %s", ErrInvalidWindow, window.From.Format(time.RFC3339), window.To.Format(time.RFC3339))
	}
	return ranges.Validate()
}

// Optimize evaluates iterations parameter sets and returns the best one found.
// Only invalid input is returned as an error. Symbols without usable data are
// skipped and listed in the state; cancellation stops the search early and
// returns what was found so far.
func (o *Optimizer) Optimize(ctx context.Context, symbols []string, window Window, ranges ParameterRanges, iterations int) (*State, error) {
	if err := Validate(symbols, window, ranges, iterations); err != nil {
		return nil, err
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	state := newState()
	data := o.load(ctx, symbols, window, ranges, state)
	if len(data) == 0 {
		logger.Warn("No symbol has usable data", "symbols", symbols)
	}

	logger.Info("Starting optimization",
		"symbols", len(data),
		"skipped", len(state.SkippedSymbols),
		"iterations", iterations,
		"workers", o.workers,
		"seed", o.seed)

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i := 0; i < iterations; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o.iterate(ctx, i, ranges, data, state)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		state.Stopped = true
		logger.Warn("Optimization stopped early", "evaluated", state.Evaluated, "reason", ctx.Err())
	}

	logger.Info("Optimization finished",
		"evaluated", state.Evaluated,
		"discarded", state.Discarded,
		"failed", state.Failed,
		"best_score", state.BestScore)

	return state, nil
}

func (o *Optimizer) load(ctx context.Context, symbols []string, window Window, ranges ParameterRanges, state *State) []series {
	minBars := ranges.widest().Apply(o.base).Indicators.MinBars() + 1

	var out []series
	for _, symbol := range symbols {
		bars, err := o.source.Bars(ctx, symbol, window.From, window.To)
		if err != nil {
			logger.Warn("Skipping symbol, bar fetch failed", "symbol", symbol, "error", err)
			state.skip(symbol)
			continue
		}
		bars = marketdata.FilterWindow(bars, window.From, window.To)
		if len(bars) < minBars {
			logger.Warn("Skipping symbol, not enough bars", "symbol", symbol, "bars", len(bars), "required", minBars)
			state.skip(symbol)
			continue
		}
		out = append(out, series{symbol: symbol, bars: bars})
	}
	return out
}

func (o *Optimizer) iterate(ctx context.Context, i int, ranges ParameterRanges, data []series, state *State) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Iteration failed", "iteration", i, "panic", fmt.Sprint(r))
			state.fail()
		}
	}()

	rng := rand.New(rand.NewPCG(o.seed, uint64(i)))
	params := ranges.Sample(rng)
	cfg := params.Apply(o.base)

	engine := backtest.NewEngine(
		indicator.NewEngine(cfg.Indicators),
		signal.NewScorer(cfg.Scoring),
		cfg.Simulation,
	)

	var trades []types.Trade
	for _, s := range data {
		if ctx.Err() != nil {
			return
		}
		trades = append(trades, engine.Run(s.symbol, s.bars)...)
	}

	exposure := backtest.Exposure(cfg.Sizing.RiskPct, cfg.Simulation.StopLossPct, cfg.Sizing.MaxLeverage)
	result, scored := o.score.Evaluate(trades, exposure)
	candidate := Candidate{Iteration: i, Params: params, Result: result, Trades: trades}
	improved := state.record(candidate, scored)

	if !scored {
		logger.Debug("Discarded parameter set", "iteration", i, "trades", result.TotalTrades, "min_trades", o.score.MinTrades)
	}
	if improved {
		logger.Info("New best parameter set",
			"iteration", i,
			"score", result.Score,
			"trades", result.TotalTrades,
			"win_rate", result.WinRate,
			"max_drawdown_pct", result.MaxDrawdownPct)
	}
	if o.observer != nil {
		o.observer.ObserveIteration(scored, result.Score, improved)
	}
}
