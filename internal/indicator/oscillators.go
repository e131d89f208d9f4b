package indicator

const neutralBollingerPosition = 0.5

// MACD tracks the fast/slow EMA spread and its signal line.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
	line   float64
}

func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
	}
}

func (m *MACD) Update(close float64) {
	m.fast.Update(close)
	m.slow.Update(close)
	if !m.slow.Ready() {
		return
	}
	m.line = m.fast.Value() - m.slow.Value()
	m.signal.Update(m.line)
}

func (m *MACD) Ready() bool {
	return m.slow.Ready() && m.signal.Ready()
}

// Delta is MACD minus signal, 0 until ready.
func (m *MACD) Delta() float64 {
	if !m.Ready() {
		return 0
	}
	return m.line - m.signal.Value()
}

// Bollinger places the close inside mean +/- k standard deviations.
type Bollinger struct {
	k      float64
	closes *Window
}

func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{k: k, closes: NewWindow(period)}
}

func (b *Bollinger) Update(close float64) {
	b.closes.Update(close)
}

func (b *Bollinger) Ready() bool {
	return b.closes.Ready()
}

// Position is 0 at the lower band and 1 at the upper band. It can leave [0,1]
// when price closes outside the bands, and is 0.5 for a flat window.
func (b *Bollinger) Position(close float64) float64 {
	if !b.Ready() {
		return neutralBollingerPosition
	}
	mean, sd := b.closes.Mean(), b.closes.StdDev()
	width := 2 * b.k * sd
	if width == 0 {
		return neutralBollingerPosition
	}
	return (close - (mean - b.k*sd)) / width
}
