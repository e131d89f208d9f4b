package backtest

import (
	"github.com/jwtly10/signalbook/internal/indicator"
	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/signal"
	"github.com/jwtly10/signalbook/internal/types"
)

var logger = logging.New("backtest")

// Engine replays one symbol's bars through indicators, the scorer and the
// trade simulator.
type Engine struct {
	indicators *indicator.Engine
	scorer     *signal.Scorer
	sim        SimConfig
}

func NewEngine(indicators *indicator.Engine, scorer *signal.Scorer, sim SimConfig) *Engine {
	return &Engine{
		indicators: indicators,
		scorer:     scorer,
		sim:        sim,
	}
}

// Run returns the closed trades for one symbol. Only one trade is open at a
// time: after a trade exits, scanning resumes on the bar after the exit.
func (e *Engine) Run(symbol string, bars []types.Bar) []types.Trade {
	trades := []types.Trade{}
	if len(bars) < 2 {
		return trades
	}

	snapshots := e.indicators.Compute(bars)
	start := e.indicators.MinBars() - 1
	if start < 0 {
		start = 0
	}

	logger.Debug("Starting replay", "symbol", symbol, "total_bars", len(bars), "warmup", start)

	for i := start; i < len(bars)-1; i++ {
		sig, _ := e.scorer.Score(symbol, snapshots[i])
		if sig == nil {
			continue
		}

		trade := Simulate(*sig, bars[i+1:], e.sim)
		trades = append(trades, trade)

		// ExitIndex is relative to bars[i+1:]
		i += 1 + trade.ExitIndex
	}

	logger.Debug("Replay finished", "symbol", symbol, "trades", len(trades))
	return trades
}
