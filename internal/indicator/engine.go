package indicator

import (
	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/types"
)

var engineLog = logging.New("indicators")

// Engine turns a bar sequence into one Snapshot per bar.
//
// All streaming state is created inside Compute, so an Engine can be shared
// between goroutines and the same bars always produce the same snapshots.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// MinBars is the history needed before snapshots stop carrying neutral values.
func (e *Engine) MinBars() int {
	return e.cfg.MinBars()
}

type pipeline struct {
	rsi        *RSI
	trend      *Trend
	superTrend *SuperTrend
	golden     *GoldenZone
	volume     *VolumeAnomaly
	macd       *MACD
	bollinger  *Bollinger
}

func (e *Engine) newPipeline() *pipeline {
	c := e.cfg
	return &pipeline{
		rsi:        NewRSI(c.RSIPeriod),
		trend:      NewTrend(c.ShortPeriod, c.LongPeriod),
		superTrend: NewSuperTrend(c.ATRPeriod, c.SuperTrendMultiplier),
		golden:     NewGoldenZone(c.GoldenLookback, c.GoldenLow, c.GoldenHigh, c.GoldenTolerance),
		volume:     NewVolumeAnomaly(c.VolumeShortPeriod, c.VolumePeriod, c.VolumeSumBars),
		macd:       NewMACD(c.MACDFast, c.MACDSlow, c.MACDSignal),
		bollinger:  NewBollinger(c.BollingerPeriod, c.BollingerStdDev),
	}
}

func (p *pipeline) update(bar types.Bar) {
	p.rsi.Update(bar.Close)
	p.trend.Update(bar.Close)
	p.superTrend.Update(bar)
	p.golden.Update(bar)
	p.volume.Update(bar.Volume)
	p.macd.Update(bar.Close)
	p.bollinger.Update(bar.Close)
}

func (p *pipeline) snapshot(index int, bar types.Bar) types.Snapshot {
	s := Neutral(index, bar)

	s.RSI = p.rsi.Value()
	s.TrendDirection, s.TrendStrength = p.trend.Evaluate(bar.Close)
	s.ATR = p.superTrend.ATR()
	s.SuperTrendDirection = p.superTrend.Direction()
	s.SuperTrendValue = p.superTrend.Value()
	s.SuperTrendUpper, s.SuperTrendLower = p.superTrend.Bands()
	s.VolumeRatio = p.volume.Value()
	s.InGoldenZone = p.golden.Contains(bar.Close)
	s.GoldenZoneLow, s.GoldenZoneHigh, _ = p.golden.Zone()
	s.MACDDelta = p.macd.Delta()
	s.BollingerPosition = p.bollinger.Position(bar.Close)

	s.Ready = IndicatorsReady(p.rsi, p.trend, p.superTrend, p.golden, p.volume, p.macd, p.bollinger)
	return s
}

// Neutral is the snapshot reported for a bar without enough history.
func Neutral(index int, bar types.Bar) types.Snapshot {
	return types.Snapshot{
		Index:             index,
		Timestamp:         bar.Timestamp,
		Close:             bar.Close,
		RSI:               neutralRSI,
		VolumeRatio:       neutralVolumeRatio,
		BollingerPosition: neutralBollingerPosition,
	}
}

// Compute returns a snapshot for every bar. Bars are assumed to be sorted by
// timestamp.
func (e *Engine) Compute(bars []types.Bar) []types.Snapshot {
	p := e.newPipeline()
	out := make([]types.Snapshot, len(bars))
	for i, bar := range bars {
		p.update(bar)
		out[i] = p.snapshot(i, bar)
	}

	engineLog.Debug("Computed indicator snapshots", "bars", len(bars), "min_bars", e.cfg.MinBars())
	return out
}

// Latest returns the snapshot for the final bar, or a neutral zero-index
// snapshot when bars is empty.
func (e *Engine) Latest(bars []types.Bar) types.Snapshot {
	if len(bars) == 0 {
		return Neutral(0, types.Bar{})
	}
	p := e.newPipeline()
	for _, bar := range bars {
		p.update(bar)
	}
	last := len(bars) - 1
	return p.snapshot(last, bars[last])
}
