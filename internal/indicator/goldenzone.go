package indicator

import "github.com/jwtly10/signalbook/internal/types"

// GoldenZone reports whether price sits inside the deep Fibonacci retracement
// band of the recent swing.
type GoldenZone struct {
	lowRatio  float64
	highRatio float64
	tolerance float64
	highs     *Window
	lows      *Window
}

func NewGoldenZone(lookback int, lowRatio, highRatio, tolerance float64) *GoldenZone {
	return &GoldenZone{
		lowRatio:  lowRatio,
		highRatio: highRatio,
		tolerance: tolerance,
		highs:     NewWindow(lookback),
		lows:      NewWindow(lookback),
	}
}

func (g *GoldenZone) Update(bar types.Bar) {
	g.highs.Update(bar.High)
	g.lows.Update(bar.Low)
}

func (g *GoldenZone) Ready() bool {
	return g.highs.Ready()
}

// Zone returns the retracement band measured down from the swing high.
// ok is false while warming up or when the swing has no range.
func (g *GoldenZone) Zone() (low, high float64, ok bool) {
	if !g.Ready() {
		return 0, 0, false
	}
	swingHigh, swingLow := g.highs.Max(), g.lows.Min()
	rng := swingHigh - swingLow
	if rng <= 0 {
		return 0, 0, false
	}
	return swingHigh - g.highRatio*rng, swingHigh - g.lowRatio*rng, true
}

func (g *GoldenZone) Contains(price float64) bool {
	low, high, ok := g.Zone()
	if !ok {
		return false
	}
	pad := g.tolerance * (g.highs.Max() - g.lows.Min())
	return price >= low-pad && price <= high+pad
}
