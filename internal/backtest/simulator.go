package backtest

import (
	"github.com/google/uuid"

	"github.com/jwtly10/signalbook/internal/account"
	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/types"
)

var simLog = logging.New("simulator")

type SimConfig struct {
	StopLossPct   float64 `yaml:"stop_loss_pct" default:"1.25" validate:"gt=0,lt=100"`
	TakeProfitPct float64 `yaml:"take_profit_pct" default:"1.5" validate:"gt=0"`
	// Horizon is the most bars a trade may stay open; <= 0 scans every bar given.
	Horizon int `yaml:"horizon" default:"48"`
}

func DefaultSimConfig() SimConfig {
	return SimConfig{StopLossPct: 1.25, TakeProfitPct: 1.5, Horizon: 48}
}

// Levels returns the stop and target for an entry, mirrored for SELL.
func (c SimConfig) Levels(side types.Side, entry float64) (stopLoss, takeProfit float64) {
	sign := side.Sign()
	return entry * (1 - sign*c.StopLossPct/100), entry * (1 + sign*c.TakeProfitPct/100)
}

// Simulate opens a trade at the signal's entry price and walks the bars that
// follow the signal bar until the stop, the target or the horizon is reached.
// When one bar reaches both levels the stop wins, since OHLC cannot tell which
// came first. ExitIndex is the index into bars of the exit bar.
func Simulate(sig types.Signal, bars []types.Bar, cfg SimConfig) types.Trade {
	stopLoss, takeProfit := cfg.Levels(sig.Side, sig.EntryPrice)

	trade := types.Trade{
		ID:         uuid.NewString(),
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		EntryPrice: sig.EntryPrice,
		EntryTime:  sig.Timestamp,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}

	limit := len(bars)
	if cfg.Horizon > 0 && cfg.Horizon < limit {
		limit = cfg.Horizon
	}

	for i := 0; i < limit; i++ {
		price, reason, hit := account.ExitLevel(sig.Side, stopLoss, takeProfit, bars[i])
		if hit {
			return closeTrade(trade, price, bars[i], i, reason)
		}
	}

	if limit == 0 {
		simLog.Debug("No bars after signal, closing at entry", "symbol", sig.Symbol, "timestamp", sig.Timestamp)
		return closeTrade(trade, sig.EntryPrice, types.Bar{Timestamp: sig.Timestamp}, 0, types.EXIT_TIMEOUT)
	}
	last := bars[limit-1]
	return closeTrade(trade, last.Close, last, limit-1, types.EXIT_TIMEOUT)
}

func closeTrade(t types.Trade, price float64, bar types.Bar, index int, reason types.ExitReason) types.Trade {
	t.ExitPrice = price
	t.ExitTime = bar.Timestamp
	t.ExitReason = reason
	t.ExitIndex = index
	t.PnLPct = t.Side.Sign() * (price - t.EntryPrice) / t.EntryPrice * 100

	simLog.Debug("Trade closed",
		"symbol", t.Symbol,
		"side", t.Side,
		"entry", t.EntryPrice,
		"exit", price,
		"reason", reason,
		"pnl_pct", t.PnLPct)
	return t
}
