package optimizer

import (
	"math"
	"sync"

	"github.com/jwtly10/signalbook/internal/backtest"
	"github.com/jwtly10/signalbook/internal/types"
)

// Candidate is one scored parameter set.
type Candidate struct {
	Iteration int             `json:"iteration"`
	Params    ParameterSet    `json:"params"`
	Result    backtest.Result `json:"result"`
	Trades    []types.Trade   `json:"-"`
}

// State is the optimizer's progress. It is owned by a single Optimize call and
// every update goes through record.
type State struct {
	mu sync.Mutex

	Best      *Candidate `json:"best,omitempty"`
	BestScore float64    `json:"-"` // -Inf until something is scored

	Evaluated      int      `json:"evaluated"`
	Discarded      int      `json:"discarded"`
	Failed         int      `json:"failed"`
	SkippedSymbols []string `json:"skipped_symbols,omitempty"`
	Stopped        bool     `json:"stopped"` // cancelled or timed out before all iterations ran

	// Trace is the best score after each scored evaluation, in completion order.
	Trace []float64 `json:"-"`
}

func newState() *State {
	return &State{BestScore: math.Inf(-1)}
}

// record books one evaluation and reports whether it became the new best.
// The best only moves on a strictly higher score.
func (s *State) record(c Candidate, scored bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Evaluated++
	if !scored {
		s.Discarded++
		return false
	}

	improved := c.Result.Score > s.BestScore
	if improved {
		best := c
		s.Best = &best
		s.BestScore = c.Result.Score
	}
	s.Trace = append(s.Trace, s.BestScore)
	return improved
}

func (s *State) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Evaluated++
	s.Failed++
}

func (s *State) skip(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SkippedSymbols = append(s.SkippedSymbols, symbol)
}

// HasBest reports whether any evaluation met the minimum trade count.
func (s *State) HasBest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Best != nil
}
