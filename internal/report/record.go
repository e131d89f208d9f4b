package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jwtly10/signalbook/internal/backtest"
	"github.com/jwtly10/signalbook/internal/optimizer"
)

// Record is the flat outcome of one optimization run. The best parameter set
// and its metrics are embedded so they serialize at the top level.
type Record struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Symbols   []string  `json:"symbols"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`

	Iterations int    `json:"iterations"`
	Seed       uint64 `json:"seed"`

	HasBest       bool `json:"has_best"`
	BestIteration int  `json:"best_iteration"`
	optimizer.ParameterSet
	backtest.Result

	Evaluated      int      `json:"evaluated"`
	Discarded      int      `json:"discarded"`
	Failed         int      `json:"failed"`
	SkippedSymbols []string `json:"skipped_symbols"`
	Stopped        bool     `json:"stopped"`
}

type RunInfo struct {
	Symbols    []string
	Window     optimizer.Window
	Iterations int
	Seed       uint64
}

// NewRecord flattens an optimizer state. Without a best candidate the
// parameter and metric fields stay zero and HasBest is false.
func NewRecord(info RunInfo, state *optimizer.State) Record {
	rec := Record{
		RunID:          uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		Symbols:        info.Symbols,
		From:           info.Window.From,
		To:             info.Window.To,
		Iterations:     info.Iterations,
		Seed:           info.Seed,
		Evaluated:      state.Evaluated,
		Discarded:      state.Discarded,
		Failed:         state.Failed,
		SkippedSymbols: state.SkippedSymbols,
		Stopped:        state.Stopped,
	}
	if state.Best != nil {
		rec.HasBest = true
		rec.BestIteration = state.Best.Iteration
		rec.ParameterSet = state.Best.Params
		rec.Result = state.Best.Result
	}
	if rec.SkippedSymbols == nil {
		rec.SkippedSymbols = []string{}
	}
	return rec
}

func WriteJSON(w io.Writer, rec Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return nil
}

// WriteFile writes the record to path, or to stdout when path is "" or "-".
func WriteFile(path string, rec Record) error {
	if path == "" || path == "-" {
		return WriteJSON(os.Stdout, rec)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(f, rec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ReadJSON(r io.Reader) (Record, error) {
	var rec Record
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
