package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/types"
)

var csvLog = logging.New("csv")

// CSVSource reads <dir>/<symbol>.csv files with the header
// timestamp,open,high,low,close,volume. Timestamps are RFC3339 or unix
// seconds.
type CSVSource struct {
	dir string
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

func (s *CSVSource) Bars(ctx context.Context, symbol string, from, to time.Time) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars for %s: %w", symbol, err)
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	csvLog.Debug("Loaded bars from csv", "symbol", symbol, "path", path, "count", len(bars))
	return FilterWindow(bars, from, to), nil
}

var csvColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// ReadCSV parses a bar file and returns the bars sorted by timestamp.
func ReadCSV(r io.Reader) ([]types.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file")
		}
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range csvColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var bars []types.Bar
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		bar, err := parseRecord(record, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return bars, nil
}

func parseRecord(record []string, index map[string]int) (types.Bar, error) {
	ts, err := parseTimestamp(record[index["timestamp"]])
	if err != nil {
		return types.Bar{}, err
	}

	values := make([]float64, 0, 5)
	for _, col := range csvColumns[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[index[col]]), 64)
		if err != nil {
			return types.Bar{}, fmt.Errorf("failed to parse %s %q: %w", col, record[index[col]], err)
		}
		values = append(values, v)
	}

	return types.Bar{
		Timestamp: ts,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q", raw)
	}
	return time.Unix(secs, 0).UTC(), nil
}
