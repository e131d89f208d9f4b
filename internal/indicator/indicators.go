package indicator

import (
	"math"

	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/types"
)

var (
	atrLog = logging.New("atr")
	emaLog = logging.New("ema")
)

// Indicator is anything that needs a warmup before its value is meaningful.
type Indicator interface {
	Ready() bool
}

// IndicatorsReady calls .Ready() on all indicators and returns true if all are ready
func IndicatorsReady(indicators ...Indicator) bool {
	for _, ind := range indicators {
		if !ind.Ready() {
			return false
		}
	}
	return true
}

// EMA - Exponential Moving Average, seeded with the first value.
type EMA struct {
	period int
	value  float64
	alpha  float64
	count  int
}

func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

func (e *EMA) Update(price float64) {
	if e.count == 0 {
		e.value = price
	} else {
		e.value = (price * e.alpha) + (e.value * (1 - e.alpha))
	}
	e.count++
	emaLog.Debug("EMA updated", "period", e.period, "price", price, "value", e.value)
}

func (e *EMA) Value() float64 {
	return e.value
}

// Ready once period values have been seen.
func (e *EMA) Ready() bool {
	return e.count >= e.period
}

// Window keeps the last n values in arrival order.
type Window struct {
	size   int
	values []float64
}

func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: size, values: make([]float64, 0, size)}
}

func (w *Window) Update(v float64) {
	w.values = append(w.values, v)
	if len(w.values) > w.size {
		w.values = w.values[1:]
	}
}

func (w *Window) Ready() bool {
	return len(w.values) >= w.size
}

func (w *Window) Len() int {
	return len(w.values)
}

func (w *Window) Sum() float64 {
	sum := 0.0
	for _, v := range w.values {
		sum += v
	}
	return sum
}

func (w *Window) Mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	return w.Sum() / float64(len(w.values))
}

// StdDev is the population standard deviation of the window.
func (w *Window) StdDev() float64 {
	if len(w.values) == 0 {
		return 0
	}
	mean := w.Mean()
	variance := 0.0
	for _, v := range w.values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(w.values)))
}

func (w *Window) Max() float64 {
	if len(w.values) == 0 {
		return 0
	}
	m := w.values[0]
	for _, v := range w.values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func (w *Window) Min() float64 {
	if len(w.values) == 0 {
		return 0
	}
	m := w.values[0]
	for _, v := range w.values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Last returns the most recent k values (fewer if the window is short).
func (w *Window) Last(k int) []float64 {
	if k > len(w.values) {
		k = len(w.values)
	}
	return w.values[len(w.values)-k:]
}

// SMA - Simple Moving Average
type SMA struct {
	*Window
}

func NewSMA(period int) *SMA {
	return &SMA{Window: NewWindow(period)}
}

func (s *SMA) Value() float64 {
	return s.Mean()
}

// ATR - Average True Range as a rolling mean of true range.
type ATR struct {
	period    int
	sma       *SMA
	prevClose float64
	seen      bool
}

func NewATR(period int) *ATR {
	return &ATR{
		period: period,
		sma:    NewSMA(period),
	}
}

func (a *ATR) Update(bar types.Bar) {
	if !a.seen {
		a.prevClose = bar.Close
		a.seen = true
		atrLog.Debug("ATR first bar", "timestamp", bar.Timestamp, "close", bar.Close)
		return
	}

	a.sma.Update(TrueRange(bar, a.prevClose))
	a.prevClose = bar.Close

	atrLog.Debug("ATR updated",
		"timestamp", bar.Timestamp,
		"value", a.Value(),
		"ready", a.Ready())
}

func (a *ATR) Value() float64 {
	return a.sma.Value()
}

func (a *ATR) Ready() bool {
	return a.sma.Ready()
}

// TrueRange = max of:
// 1. Current High - Current Low
// 2. |Current High - Previous Close|
// 3. |Current Low - Previous Close|
func TrueRange(bar types.Bar, prevClose float64) float64 {
	tr1 := bar.High - bar.Low
	tr2 := math.Abs(bar.High - prevClose)
	tr3 := math.Abs(bar.Low - prevClose)
	return math.Max(tr1, math.Max(tr2, tr3))
}
