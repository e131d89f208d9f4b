package account

import (
	"testing"
	"time"

	"github.com/jwtly10/signalbook/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_OpenAndCloseOnTakeProfit(t *testing.T) {
	acc := NewAccount(1000)
	sig := types.Signal{
		Symbol:     "BTCUSDT",
		Side:       types.BUY,
		EntryPrice: 100,
		StopLoss:   95,
		Timestamp:  TimeFromString("2024-01-01T00:00:00Z"),
	}

	_, err := acc.OpenPosition(sig, 2, 20, 110)
	require.NoError(t, err)

	state := acc.State()
	assert.Equal(t, 1, state.OpenPositionCount)
	assert.Equal(t, 980.0, state.AvailableMargin)

	trades := acc.CheckExits("BTCUSDT", types.Bar{
		Timestamp: TimeFromString("2024-01-01T00:15:00Z"),
		Open:      101, High: 111, Low: 100, Close: 109,
	})

	require.Len(t, trades, 1)
	assert.Equal(t, types.EXIT_TAKE_PROFIT, trades[0].ExitReason)
	assert.Equal(t, 20.0, trades[0].PnL)
	assert.Equal(t, 10.0, trades[0].PnLPct)
	assert.True(t, trades[0].Closed())

	state = acc.State()
	assert.Equal(t, 1020.0, state.Balance)
	assert.Equal(t, 1020.0, state.AvailableMargin)
	assert.Equal(t, 1020.0, state.PeakBalance)
	assert.Equal(t, 20.0, state.DailyPnL)
	assert.Equal(t, 0, state.OpenPositionCount)
}

func TestAccount_StopWinsWhenBarTouchesBoth(t *testing.T) {
	acc := NewAccount(1000)
	sig := types.Signal{Symbol: "ETHUSDT", Side: types.SELL, EntryPrice: 100, StopLoss: 102}
	_, err := acc.OpenPosition(sig, 1, 10, 97)
	require.NoError(t, err)

	trades := acc.CheckExits("ETHUSDT", types.Bar{High: 103, Low: 96, Close: 100})

	require.Len(t, trades, 1)
	assert.Equal(t, types.EXIT_STOP_LOSS, trades[0].ExitReason)
	assert.Equal(t, 102.0, trades[0].ExitPrice)
	assert.Equal(t, -2.0, trades[0].PnL)
}

func TestAccount_OtherSymbolsUntouched(t *testing.T) {
	acc := NewAccount(1000)
	_, _ = acc.OpenPosition(types.Signal{Symbol: "A", Side: types.BUY, EntryPrice: 10, StopLoss: 9}, 1, 1, 11)

	trades := acc.CheckExits("B", types.Bar{High: 20, Low: 1})

	assert.Empty(t, trades)
	assert.Equal(t, 1, acc.PositionCount())
}

func TestAccount_RejectsMarginBeyondBalance(t *testing.T) {
	acc := NewAccount(100)
	_, err := acc.OpenPosition(types.Signal{Symbol: "A", Side: types.BUY, EntryPrice: 10}, 1, 150, 0)
	assert.Error(t, err)
}

func TestAccount_HasOpenPosition(t *testing.T) {
	acc := NewAccount(1000)
	_, err := acc.OpenPosition(types.Signal{Symbol: "A", Side: types.SELL, EntryPrice: 50, StopLoss: 60}, 2, 5, 40)
	require.NoError(t, err)

	assert.True(t, acc.HasOpenPosition("A"))
	assert.False(t, acc.HasOpenPosition("B"))

	acc.CheckExits("A", types.Bar{Timestamp: TimeFromString("2024-01-02T00:00:00Z"), High: 61, Low: 55, Close: 60})
	assert.False(t, acc.HasOpenPosition("A"), "Stopped out position is no longer open")
	assert.Equal(t, 980.0, acc.Balance())
}

func TestAccount_EquityCurveDrawdown(t *testing.T) {
	acc := NewAccount(1000)

	acc.ApplyReturn(10)  // 1100
	acc.ApplyReturn(-20) // 880
	acc.ApplyReturn(5)   // 924

	assert.InDelta(t, 924.0, acc.Balance(), 1e-9)
	assert.InDelta(t, 20.0, acc.MaxDrawdownPct(), 1e-9)
	assert.InDelta(t, 1100.0, acc.State().PeakBalance, 1e-9)

	acc.ResetDaily()
	assert.Equal(t, 0.0, acc.State().DailyPnL)
}

func TimeFromString(timeStr string) (t time.Time) {
	t, _ = time.Parse(time.RFC3339, timeStr)
	return
}
