package indicator

import (
	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/types"
)

var superTrendLog = logging.New("supertrend")

// SuperTrend tracks ATR bands around HL2 that only ever tighten toward price
// until price closes through them.
type SuperTrend struct {
	multiplier float64
	atr        *ATR

	upper     float64
	lower     float64
	direction int
	prevClose float64
	started   bool
}

func NewSuperTrend(atrPeriod int, multiplier float64) *SuperTrend {
	return &SuperTrend{
		multiplier: multiplier,
		atr:        NewATR(atrPeriod),
	}
}

func (s *SuperTrend) Update(bar types.Bar) {
	s.atr.Update(bar)
	if !s.atr.Ready() {
		s.prevClose = bar.Close
		return
	}

	hl2 := (bar.High + bar.Low) / 2
	band := s.multiplier * s.atr.Value()
	basicUpper := hl2 + band
	basicLower := hl2 - band

	if !s.started {
		s.upper = basicUpper
		s.lower = basicLower
		s.direction = 1
		if bar.Close < hl2 {
			s.direction = -1
		}
		s.started = true
		s.prevClose = bar.Close
		return
	}

	prevUpper, prevLower := s.upper, s.lower

	// Flip on a close through the prior tightened band, otherwise persist.
	switch {
	case bar.Close > prevUpper:
		s.direction = 1
	case bar.Close < prevLower:
		s.direction = -1
	}

	if basicUpper < prevUpper || s.prevClose > prevUpper {
		s.upper = basicUpper
	}
	if basicLower > prevLower || s.prevClose < prevLower {
		s.lower = basicLower
	}

	superTrendLog.Debug("SuperTrend updated",
		"timestamp", bar.Timestamp,
		"upper", s.upper,
		"lower", s.lower,
		"direction", s.direction)

	s.prevClose = bar.Close
}

func (s *SuperTrend) Ready() bool {
	return s.started
}

// Direction is +1 bullish, -1 bearish, 0 before warmup.
func (s *SuperTrend) Direction() int {
	return s.direction
}

// Value is the active band: the lower band in an uptrend, the upper band otherwise.
func (s *SuperTrend) Value() float64 {
	if !s.started {
		return 0
	}
	if s.direction > 0 {
		return s.lower
	}
	return s.upper
}

func (s *SuperTrend) Bands() (upper, lower float64) {
	return s.upper, s.lower
}

func (s *SuperTrend) ATR() float64 {
	return s.atr.Value()
}
