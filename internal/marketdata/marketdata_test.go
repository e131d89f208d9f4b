package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jwtly10/signalbook/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV_ParsesAndSorts(t *testing.T) {
	data := `timestamp,open,high,low,close,volume
2024-01-01T00:15:00Z,101,102,100,101.5,1200
1704067200,100,101,99,100.5,1000
`
	bars, err := ReadCSV(strings.NewReader(data))

	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, TimeFromString("2024-01-01T00:00:00Z"), bars[0].Timestamp, "Unix seconds should parse and sort first")
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 1200.0, bars[1].Volume)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("timestamp,open,high,low,close\n"))
	assert.ErrorContains(t, err, "volume")

	_, err = ReadCSV(strings.NewReader("timestamp,open,high,low,close,volume\nnope,1,1,1,1,1\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestCSVSource_FiltersWindow(t *testing.T) {
	dir := t.TempDir()
	var sb strings.Builder
	sb.WriteString("timestamp,open,high,low,close,volume\n")
	start := TimeFromString("2024-01-01T00:00:00Z")
	for i := 0; i < 10; i++ {
		ts := start.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)
		fmt.Fprintf(&sb, "%s,1,2,0.5,1.5,%d\n", ts, 100+i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BTCUSDT.csv"), []byte(sb.String()), 0o644))

	src := NewCSVSource(dir)
	bars, err := src.Bars(context.Background(), "BTCUSDT", start.Add(2*time.Hour), start.Add(5*time.Hour))

	require.NoError(t, err)
	require.Len(t, bars, 3, "Window is [from, to)")
	assert.Equal(t, 102.0, bars[0].Volume)

	_, err = src.Bars(context.Background(), "MISSING", time.Time{}, time.Time{})
	assert.Error(t, err)
}

func TestMemorySource(t *testing.T) {
	src := NewMemorySource()
	start := TimeFromString("2024-01-01T00:00:00Z")
	src.Add("ETHUSDT", []types.Bar{
		{Timestamp: start.Add(time.Hour), Close: 2},
		{Timestamp: start, Close: 1},
	})

	bars, err := src.Bars(context.Background(), "ETHUSDT", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.0, bars[0].Close)

	_, err = src.Bars(context.Background(), "BTCUSDT", time.Time{}, time.Time{})
	assert.Error(t, err)
}

func TestOandaSource_FetchesInBatches(t *testing.T) {
	start := TimeFromString("2024-01-01T00:00:00Z")
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/v3/accounts/acct-1/instruments/NAS100_USD/candles", r.URL.Path)
		assert.Equal(t, "M15", r.URL.Query().Get("granularity"))

		from, _ := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
		to, _ := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)

		resp := candlestickResponse{Instrument: "NAS100_USD", Granularity: M15}
		for ts := from + 900; ts <= to; ts += 900 {
			resp.Candles = append(resp.Candles, candlestick{
				Time:     time.Unix(ts, 0).UTC().Format(time.RFC3339),
				Mid:      candlestickData{O: "100.0", H: "101.0", L: "99.0", C: "100.5"},
				Volume:   42,
				Complete: true,
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	src := NewOandaSource(OandaConfig{AccountID: "acct-1", APIKey: "test-key", URL: server.URL, Granularity: M15}, server.Client())
	src.now = func() time.Time { return start.Add(100 * 24 * time.Hour) }

	// 60 days of M15 is 5760 candles, more than one batch.
	bars, err := src.Bars(context.Background(), "NAS100_USD", start, start.Add(60*24*time.Hour))

	require.NoError(t, err)
	assert.GreaterOrEqual(t, int(calls.Load()), 2)
	assert.Len(t, bars, 5759)
	assert.Equal(t, 42.0, bars[0].Volume)
	assert.Equal(t, 100.5, bars[0].Close)
	for i := 1; i < len(bars); i++ {
		require.True(t, bars[i].Timestamp.After(bars[i-1].Timestamp))
	}
}

func TestOandaSource_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessage":"Insufficient authorization"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	src := NewOandaSource(OandaConfig{URL: server.URL}, server.Client())
	start := TimeFromString("2024-01-01T00:00:00Z")
	src.now = func() time.Time { return start.Add(48 * time.Hour) }

	_, err := src.Bars(context.Background(), "NAS100_USD", start, start.Add(24*time.Hour))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestFilterWindow_OpenEnds(t *testing.T) {
	start := TimeFromString("2024-01-01T00:00:00Z")
	bars := []types.Bar{{Timestamp: start}, {Timestamp: start.Add(time.Hour)}}

	assert.Len(t, FilterWindow(bars, time.Time{}, time.Time{}), 2)
	assert.Len(t, FilterWindow(bars, start.Add(time.Minute), time.Time{}), 1)
	assert.Len(t, FilterWindow(bars, time.Time{}, start.Add(time.Hour)), 1)
}

func TimeFromString(timeStr string) (t time.Time) {
	t, _ = time.Parse(time.RFC3339, timeStr)
	return
}
