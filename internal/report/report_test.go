package report

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwtly10/signalbook/internal/backtest"
	"github.com/jwtly10/signalbook/internal/optimizer"
	"github.com/jwtly10/signalbook/internal/types"
)

func testRecord() Record {
	return Record{
		RunID:         "0b8f1c1e-4a6f-4c55-9a3e-2f0c1f6d9a11",
		CreatedAt:     TimeFromString("2024-06-01T12:00:00Z"),
		Symbols:       []string{"BTCUSDT", "ETHUSDT"},
		From:          TimeFromString("2024-01-01T00:00:00Z"),
		To:            TimeFromString("2024-06-01T00:00:00Z"),
		Iterations:    200,
		Seed:          42,
		HasBest:       true,
		BestIteration: 17,
		ParameterSet: optimizer.ParameterSet{
			RSIPeriod: 14, ShortPeriod: 12, LongPeriod: 48,
			VolumeExplosion: 2.1234567890123, RSIBuyThreshold: 33.3, RSISellThreshold: 66.6,
			MinConfidence: 61.75, StopLossPct: 1.1, TakeProfitPct: 2.7, Horizon: 40, RiskPct: 1.9,
		},
		Result: backtest.Result{
			TotalTrades: 31, WinningTrades: 31, WinRate: 100,
			GrossProfitPct: 48.123456789, ProfitFactor: types.Ratio(math.Inf(1)),
			SharpeLike: 1.0000000000000002, MaxDrawdownPct: 0.1, TotalReturnPct: 60.5, Score: 80.1,
		},
		Evaluated:      200,
		Discarded:      12,
		Failed:         1,
		SkippedSymbols: []string{"XRPUSDT"},
	}
}

func TestRecord_JSONRoundTrip(t *testing.T) {
	rec := testRecord()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, rec))
	got, err := ReadJSON(&buf)

	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.True(t, math.IsInf(float64(got.ProfitFactor), 1))
}

func TestRecord_IsFlat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testRecord()))

	var fields map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fields))

	for _, key := range []string{"run_id", "symbols", "rsi_period", "stop_loss_pct", "win_rate", "profit_factor", "score", "evaluated"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "+Inf", fields["profit_factor"])
}

func TestNewRecord_FromState(t *testing.T) {
	state := &optimizer.State{
		Best: &optimizer.Candidate{
			Iteration: 3,
			Params:    optimizer.ParameterSet{RSIPeriod: 9},
			Result:    backtest.Result{TotalTrades: 12, Score: 55},
		},
		Evaluated: 10,
		Discarded: 4,
	}
	info := RunInfo{Symbols: []string{"BTCUSDT"}, Iterations: 10, Seed: 7}

	rec := NewRecord(info, state)

	assert.NotEmpty(t, rec.RunID)
	assert.True(t, rec.HasBest)
	assert.Equal(t, 3, rec.BestIteration)
	assert.Equal(t, 9, rec.RSIPeriod)
	assert.Equal(t, 55.0, rec.Score)
	assert.Equal(t, 10, rec.Evaluated)
	assert.Equal(t, []string{}, rec.SkippedSymbols)

	empty := NewRecord(info, &optimizer.State{Evaluated: 10, Discarded: 10})
	assert.False(t, empty.HasBest)
	assert.Zero(t, empty.Score)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, WriteFile(path, testRecord()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadJSON(f)
	require.NoError(t, err)
	assert.Equal(t, testRecord(), got)
}

type fakeExec struct {
	queries []string
	args    [][]any
	err     error
}

func (f *fakeExec) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	return nil, f.err
}

func TestClickHouseStore_Insert(t *testing.T) {
	db := &fakeExec{}
	store := newClickHouseStore(db, "runs")

	require.NoError(t, store.Insert(context.Background(), testRecord()))

	require.Len(t, db.queries, 1)
	q := db.queries[0]
	assert.True(t, strings.HasPrefix(q, "INSERT INTO runs (run_id, created_at, symbols,"))
	assert.Equal(t, len(recordColumns), strings.Count(q, "?"))
	require.Len(t, db.args[0], len(recordColumns))
	assert.Equal(t, "0b8f1c1e-4a6f-4c55-9a3e-2f0c1f6d9a11", db.args[0][0])
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, db.args[0][2])
	assert.Equal(t, uint16(14), db.args[0][9])
}

func TestClickHouseStore_CreateTableAndErrors(t *testing.T) {
	db := &fakeExec{}
	store := newClickHouseStore(db, "runs")

	require.NoError(t, store.CreateTable(context.Background()))
	assert.Contains(t, db.queries[0], "CREATE TABLE IF NOT EXISTS runs")
	assert.Contains(t, db.queries[0], "profit_factor Float64")
	assert.Contains(t, db.queries[0], "ENGINE = MergeTree")

	db.err = errors.New("connection refused")
	err := store.Insert(context.Background(), testRecord())
	assert.ErrorIs(t, err, db.err)
	assert.NoError(t, store.Close())

	_, err = NewClickHouseStore(context.Background(), ClickHouseConfig{Table: "runs"})
	assert.ErrorContains(t, err, "dsn")
}

func TestGenerateTradePinescript(t *testing.T) {
	trades := []types.Trade{
		{
			ID:         "a",
			Symbol:     "NAS100_USD",
			Side:       types.BUY,
			EntryPrice: 23085.50,
			EntryTime:  time.Date(2025, 8, 4, 13, 45, 0, 0, time.UTC),
			ExitPrice:  23185.50,
			ExitTime:   time.Date(2025, 8, 4, 17, 0, 0, 0, time.UTC),
			TakeProfit: 23185.50,
			StopLoss:   23085.50,
			ExitReason: types.EXIT_TAKE_PROFIT,
			PnLPct:     0.43,
		},
	}

	pineCode := generateTradePinescript(trades)

	expected := `// ============================================
// TRADE VALIDATION MARKERS
// ============================================

t1_entry = time == timestamp("UTC", 2025, 8, 4, 13, 45)
plotshape(t1_entry, title="#1 BUY Entry", location=location.bottom, color=color.blue, style=shape.labelup, size=size.small, text="#1 NAS100_USD BUY\nEntry: 23085.50000\nTP: 23185.50000\nSL: 23085.50000", textcolor=color.white)

t1_exit = time == timestamp("UTC", 2025, 8, 4, 17, 0)
plotshape(t1_exit, title="#1 EXIT", location=location.top, color=color.green, style=shape.labeldown, size=size.small, text="#1 EXIT\nExit: 23185.50000\ntake_profit 0.43%", textcolor=color.white)

`
	assert.Equal(t, expected, pineCode)
}

func TestDumpPineScript_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.pine")
	trades := []types.Trade{{Side: types.SELL, ExitReason: types.EXIT_STOP_LOSS}}

	require.NoError(t, DumpPineScript(trades, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "color=color.red")

	var buf bytes.Buffer
	require.NoError(t, WritePineScript(&buf, trades))
	assert.Equal(t, string(data), buf.String())
}

func TimeFromString(timeStr string) (t time.Time) {
	t, _ = time.Parse(time.RFC3339, timeStr)
	return
}
