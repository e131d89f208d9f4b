package indicator

const neutralRSI = 50.0

// RSI uses a simple rolling mean of gains and losses over the trailing window.
type RSI struct {
	period    int
	gains     *Window
	losses    *Window
	prevClose float64
	seen      bool
}

func NewRSI(period int) *RSI {
	return &RSI{
		period: period,
		gains:  NewWindow(period),
		losses: NewWindow(period),
	}
}

func (r *RSI) Update(close float64) {
	if !r.seen {
		r.prevClose = close
		r.seen = true
		return
	}
	change := close - r.prevClose
	r.prevClose = close
	if change > 0 {
		r.gains.Update(change)
		r.losses.Update(0)
	} else {
		r.gains.Update(0)
		r.losses.Update(-change)
	}
}

func (r *RSI) Ready() bool {
	return r.gains.Ready()
}

// Value returns 50 until the window is full and 100 when there were no losses.
func (r *RSI) Value() float64 {
	if !r.Ready() {
		return neutralRSI
	}
	avgLoss := r.losses.Mean()
	if avgLoss == 0 {
		return 100
	}
	rs := r.gains.Mean() / avgLoss
	return 100 - 100/(1+rs)
}
