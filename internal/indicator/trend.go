package indicator

import "math"

// Trend compares a short and a long SMA of closes.
type Trend struct {
	short *SMA
	long  *SMA
}

func NewTrend(shortPeriod, longPeriod int) *Trend {
	return &Trend{
		short: NewSMA(shortPeriod),
		long:  NewSMA(longPeriod),
	}
}

func (t *Trend) Update(close float64) {
	t.short.Update(close)
	t.long.Update(close)
}

func (t *Trend) Ready() bool {
	return t.short.Ready() && t.long.Ready()
}

// Evaluate returns the direction (+1/-1, 0 while warming up) and the strength
// signed by that direction:
//
//	|short-long|/long*0.4 + |close/short-1|*0.3 + |close/long-1|*0.3
func (t *Trend) Evaluate(close float64) (direction int, strength float64) {
	if !t.Ready() {
		return 0, 0
	}
	s, l := t.short.Value(), t.long.Value()
	if s == 0 || l == 0 {
		return 0, 0
	}

	direction = -1
	if s > l {
		direction = 1
	}

	magnitude := math.Abs(s-l)/l*0.4 +
		math.Abs((close-s)/s)*0.3 +
		math.Abs((close-l)/l)*0.3

	return direction, magnitude * float64(direction)
}
