package backtest

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/jwtly10/signalbook/internal/indicator"
	"github.com/jwtly10/signalbook/internal/signal"
	"github.com/jwtly10/signalbook/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate_StraddleResolvesToStopLoss(t *testing.T) {
	sig := types.Signal{
		Symbol:     "BTCUSDT",
		Side:       types.BUY,
		EntryPrice: 100,
		Timestamp:  TimeFromString("2024-01-01T00:00:00Z"),
	}
	bars := []types.Bar{
		{
			Timestamp: TimeFromString("2024-01-01T00:15:00Z"),
			Open:      100, High: 101.6, Low: 98.0, Close: 100.5, Volume: 1000,
		},
	}

	trade := Simulate(sig, bars, SimConfig{StopLossPct: 1.25, TakeProfitPct: 1.5, Horizon: 10})

	assert.InDelta(t, 98.75, trade.StopLoss, 1e-9)
	assert.InDelta(t, 101.5, trade.TakeProfit, 1e-9)
	assert.Equal(t, types.EXIT_STOP_LOSS, trade.ExitReason, "Bar straddling both levels should exit at the stop")
	assert.InDelta(t, 98.75, trade.ExitPrice, 1e-9)
	assert.InDelta(t, -1.25, trade.PnLPct, 1e-9)
	assert.Equal(t, bars[0].Timestamp, trade.ExitTime)
	assert.True(t, trade.Closed())
}

func TestSimulate_SellTakeProfit(t *testing.T) {
	sig := types.Signal{Symbol: "ETHUSDT", Side: types.SELL, EntryPrice: 200}
	bars := []types.Bar{
		{High: 201, Low: 199, Close: 200},
		{High: 200, Low: 196.5, Close: 197},
	}

	trade := Simulate(sig, bars, SimConfig{StopLossPct: 1, TakeProfitPct: 1.5, Horizon: 5})

	assert.InDelta(t, 202.0, trade.StopLoss, 1e-9)
	assert.InDelta(t, 197.0, trade.TakeProfit, 1e-9)
	assert.Equal(t, types.EXIT_TAKE_PROFIT, trade.ExitReason)
	assert.Equal(t, 1, trade.ExitIndex)
	assert.InDelta(t, 1.5, trade.PnLPct, 1e-9, "Favourable SELL move should be positive")
}

func TestSimulate_TimeoutAtHorizon(t *testing.T) {
	sig := types.Signal{Symbol: "X", Side: types.BUY, EntryPrice: 100}
	bars := []types.Bar{
		{High: 100.5, Low: 99.5, Close: 100.2},
		{High: 100.8, Low: 99.9, Close: 100.4},
		{High: 105, Low: 99.9, Close: 104}, // beyond the horizon
	}

	trade := Simulate(sig, bars, SimConfig{StopLossPct: 1.25, TakeProfitPct: 1.5, Horizon: 2})

	assert.Equal(t, types.EXIT_TIMEOUT, trade.ExitReason)
	assert.Equal(t, 100.4, trade.ExitPrice)
	assert.Equal(t, 1, trade.ExitIndex)
	assert.InDelta(t, 0.4, trade.PnLPct, 1e-9)
}

func TestSimulate_NoBarsClosesAtEntry(t *testing.T) {
	sig := types.Signal{Symbol: "X", Side: types.BUY, EntryPrice: 100}

	trade := Simulate(sig, nil, DefaultSimConfig())

	assert.Equal(t, types.EXIT_TIMEOUT, trade.ExitReason)
	assert.Equal(t, 100.0, trade.ExitPrice)
	assert.Equal(t, 0.0, trade.PnLPct)
}

func tradesWithPnL(pnls ...float64) []types.Trade {
	start := TimeFromString("2024-01-01T00:00:00Z")
	trades := make([]types.Trade, len(pnls))
	for i, p := range pnls {
		trades[i] = types.Trade{
			Symbol:     "X",
			Side:       types.BUY,
			EntryTime:  start.Add(time.Duration(i) * time.Hour),
			ExitTime:   start.Add(time.Duration(i)*time.Hour + 30*time.Minute),
			ExitReason: types.EXIT_TIMEOUT,
			PnLPct:     p,
		}
	}
	return trades
}

func TestCalculate_Statistics(t *testing.T) {
	r := Calculate(tradesWithPnL(2, -1, 3, -1), 10000, 1)

	assert.Equal(t, 4, r.TotalTrades)
	assert.Equal(t, 2, r.WinningTrades)
	assert.Equal(t, 2, r.LosingTrades)
	assert.Equal(t, 50.0, r.WinRate)
	assert.InDelta(t, 2.5, float64(r.ProfitFactor), 1e-9)

	// mean 0.75, population sd sqrt(3.1875)
	assert.InDelta(t, 0.75/math.Sqrt(3.1875), r.SharpeLike, 1e-9)
	// equity 10200 -> 10098 is the only fall: 1%
	assert.InDelta(t, 1.0, r.MaxDrawdownPct, 1e-9)
}

func TestCalculate_NoLossesIsInfiniteProfitFactor(t *testing.T) {
	r := Calculate(tradesWithPnL(1, 1, 1), 10000, 1)

	assert.True(t, math.IsInf(float64(r.ProfitFactor), 1))
	assert.Equal(t, 0.0, r.SharpeLike, "Zero deviation gives zero sharpe")
	assert.Equal(t, 0.0, r.MaxDrawdownPct)

	cfg := DefaultScoreConfig()
	score := cfg.Score(r)
	assert.False(t, math.IsInf(score, 0), "Profit factor must be capped in the score")
	assert.InDelta(t, 100*0.35+3*10, score, 1e-9)
}

func TestCalculate_DrawdownFollowsExitOrder(t *testing.T) {
	trades := tradesWithPnL(10, -20)
	// swap exit times so the loss closes first
	trades[0].ExitTime, trades[1].ExitTime = trades[1].ExitTime, trades[0].ExitTime

	r := Calculate(trades, 1000, 1)
	// 1000 -> 800 -> 880: 20% from the starting peak
	assert.InDelta(t, 20.0, r.MaxDrawdownPct, 1e-9)
}

func TestCalculate_ExposureScalesEquityCurve(t *testing.T) {
	trades := tradesWithPnL(2, -1, 3, -1)

	unit := Calculate(trades, 10000, 1)
	half := Calculate(trades, 10000, 0.5)

	assert.Equal(t, unit.WinRate, half.WinRate)
	assert.Equal(t, unit.ProfitFactor, half.ProfitFactor)
	assert.InDelta(t, unit.SharpeLike, half.SharpeLike, 1e-12)
	// equity 10100 -> 10049.5
	assert.InDelta(t, 0.5, half.MaxDrawdownPct, 1e-9)
	assert.Less(t, half.TotalReturnPct, unit.TotalReturnPct)
}

func TestExposure(t *testing.T) {
	assert.InDelta(t, 1.6, Exposure(2, 1.25, 35), 1e-12)
	assert.Equal(t, 5.0, Exposure(10, 0.5, 5), "Capped at max leverage")
	assert.Equal(t, 1.0, Exposure(0, 1.25, 35))
	assert.Equal(t, 1.0, Exposure(2, 0, 35))
}

func TestEvaluate_DiscardsTooFewTrades(t *testing.T) {
	cfg := DefaultScoreConfig()
	cfg.MinTrades = 10

	// A perfect record on 4 trades still does not qualify.
	r, ok := cfg.Evaluate(tradesWithPnL(5, 5, 5, 5), 1)

	assert.False(t, ok)
	assert.Equal(t, 100.0, r.WinRate)
	assert.Equal(t, 0.0, r.Score)
}

func TestEvaluate_ScoresEnoughTrades(t *testing.T) {
	cfg := DefaultScoreConfig()
	cfg.MinTrades = 4

	r, ok := cfg.Evaluate(tradesWithPnL(2, -1, 3, -1), 1)

	require.True(t, ok)
	assert.Equal(t, cfg.Score(r), r.Score)
}

func TestResult_JSONRoundTrip(t *testing.T) {
	cases := []Result{
		Calculate(tradesWithPnL(2, -1, 3, -1, 0.123456789), 10000, 1),
		Calculate(tradesWithPnL(1, 2), 10000, 1), // +Inf profit factor
		{},
	}
	for _, original := range cases {
		original.Score = 12.3456789012345
		data, err := json.Marshal(original)
		require.NoError(t, err)

		var decoded Result
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, original, decoded)
	}
}

// alwaysBuy fires a BUY on every ready snapshot.
func alwaysBuy() (*indicator.Engine, *signal.Scorer) {
	ind := indicator.Config{
		RSIPeriod: 2, ShortPeriod: 2, LongPeriod: 3,
		ATRPeriod: 2, SuperTrendMultiplier: 3,
		GoldenLookback: 3, GoldenLow: 0.72, GoldenHigh: 0.88, GoldenTolerance: 0.01,
		VolumeShortPeriod: 1, VolumePeriod: 2, VolumeSumBars: 1,
		MACDFast: 2, MACDSlow: 3, MACDSignal: 2,
		BollingerPeriod: 3, BollingerStdDev: 2,
	}
	sc := signal.DefaultConfig()
	sc.VolumeExplosion, sc.VolumeExtreme = 0.5, 1
	sc.RSIBuyThreshold, sc.RSIBuyExtreme = 101, 0
	sc.TrendBuyThreshold = -1
	sc.MinConfidence = 0
	return indicator.NewEngine(ind), signal.NewScorer(sc)
}

func risingBars(n int) []types.Bar {
	start := TimeFromString("2024-01-01T00:00:00Z")
	bars := make([]types.Bar, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = types.Bar{
			Timestamp: start.Add(time.Duration(i) * 15 * time.Minute),
			Open:      c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
		}
	}
	return bars
}

func TestEngine_RunTradesDoNotOverlap(t *testing.T) {
	ind, scorer := alwaysBuy()
	engine := NewEngine(ind, scorer, SimConfig{StopLossPct: 1.25, TakeProfitPct: 1.5, Horizon: 10})

	trades := engine.Run("BTCUSDT", risingBars(40))

	require.NotEmpty(t, trades)
	first := trades[0]
	assert.Equal(t, TimeFromString("2024-01-01T00:45:00Z"), first.EntryTime, "No trade before warmup")
	for i, tr := range trades {
		assert.Equal(t, types.EXIT_TAKE_PROFIT, tr.ExitReason)
		assert.Greater(t, tr.PnLPct, 0.0)
		if i > 0 {
			assert.True(t, tr.EntryTime.After(trades[i-1].ExitTime), "trade %d opened before the previous one closed", i)
		}
	}
}

func TestEngine_RunShortSeries(t *testing.T) {
	ind, scorer := alwaysBuy()
	engine := NewEngine(ind, scorer, DefaultSimConfig())

	assert.Empty(t, engine.Run("X", risingBars(1)))
	assert.Empty(t, engine.Run("X", risingBars(3)), "Series shorter than warmup yields no trades")
}

func TimeFromString(timeStr string) (t time.Time) {
	t, _ = time.Parse(time.RFC3339, timeStr)
	return
}
