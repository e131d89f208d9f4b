package marketdata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jwtly10/signalbook/internal/types"
)

// BarSource supplies chronologically sorted bars for a symbol in [from, to).
// A zero from or to leaves that side open.
type BarSource interface {
	Bars(ctx context.Context, symbol string, from, to time.Time) ([]types.Bar, error)
}

// FilterWindow returns the bars whose timestamps fall in [from, to).
func FilterWindow(bars []types.Bar, from, to time.Time) []types.Bar {
	out := make([]types.Bar, 0, len(bars))
	for _, b := range bars {
		if !from.IsZero() && b.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !b.Timestamp.Before(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// MemorySource serves bars held in memory. Safe for concurrent use.
type MemorySource struct {
	mu   sync.RWMutex
	bars map[string][]types.Bar
}

func NewMemorySource() *MemorySource {
	return &MemorySource{bars: make(map[string][]types.Bar)}
}

// Add replaces the symbol's bars, sorting them by timestamp.
func (m *MemorySource) Add(symbol string, bars []types.Bar) {
	sorted := append([]types.Bar(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[symbol] = sorted
}

func (m *MemorySource) Bars(_ context.Context, symbol string, from, to time.Time) ([]types.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bars, ok := m.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("no bars for symbol %s", symbol)
	}
	return FilterWindow(bars, from, to), nil
}
