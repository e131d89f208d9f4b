package optimizer

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/jwtly10/signalbook/internal/backtest"
	"github.com/jwtly10/signalbook/internal/indicator"
	"github.com/jwtly10/signalbook/internal/signal"
	"github.com/jwtly10/signalbook/internal/sizing"
)

var (
	ErrInvalidRange  = errors.New("invalid parameter range")
	ErrNoIterations  = errors.New("iterations must be > 0")
	ErrNoSymbols     = errors.New("symbol list is empty")
	ErrInvalidWindow = errors.New("time window start must be before end")
)

type IntRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

func (r IntRange) sample(rng *rand.Rand) int {
	return r.Min + rng.IntN(r.Max-r.Min+1)
}

type FloatRange struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

func (r FloatRange) sample(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// ParameterRanges bounds every tunable field. Each field is drawn
// independently and uniformly: this is plain random search with no
// adaptive narrowing.
type ParameterRanges struct {
	RSIPeriod        IntRange   `yaml:"rsi_period" json:"rsi_period"`
	ShortPeriod      IntRange   `yaml:"short_period" json:"short_period"`
	LongPeriod       IntRange   `yaml:"long_period" json:"long_period"`
	VolumeExplosion  FloatRange `yaml:"volume_explosion" json:"volume_explosion"`
	RSIBuyThreshold  FloatRange `yaml:"rsi_buy_threshold" json:"rsi_buy_threshold"`
	RSISellThreshold FloatRange `yaml:"rsi_sell_threshold" json:"rsi_sell_threshold"`
	MinConfidence    FloatRange `yaml:"min_confidence" json:"min_confidence"`
	StopLossPct      FloatRange `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	TakeProfitPct    FloatRange `yaml:"take_profit_pct" json:"take_profit_pct"`
	Horizon          IntRange   `yaml:"horizon" json:"horizon"`
	RiskPct          FloatRange `yaml:"risk_pct" json:"risk_pct"`
}

func DefaultRanges() ParameterRanges {
	return ParameterRanges{
		RSIPeriod:        IntRange{Min: 7, Max: 21},
		ShortPeriod:      IntRange{Min: 5, Max: 20},
		LongPeriod:       IntRange{Min: 30, Max: 100},
		VolumeExplosion:  FloatRange{Min: 1.5, Max: 3},
		RSIBuyThreshold:  FloatRange{Min: 25, Max: 45},
		RSISellThreshold: FloatRange{Min: 55, Max: 75},
		MinConfidence:    FloatRange{Min: 40, Max: 80},
		StopLossPct:      FloatRange{Min: 0.5, Max: 3},
		TakeProfitPct:    FloatRange{Min: 0.75, Max: 5},
		Horizon:          IntRange{Min: 12, Max: 96},
		RiskPct:          FloatRange{Min: 0.5, Max: 3},
	}
}

// Validate fails fast on ranges that would produce meaningless samples.
// Every returned error wraps ErrInvalidRange.
func (r ParameterRanges) Validate() error {
	ints := []struct {
		name    string
		rng     IntRange
		minimum int
	}{
		{"rsi_period", r.RSIPeriod, 2},
		{"short_period", r.ShortPeriod, 1},
		{"long_period", r.LongPeriod, 2},
		{"horizon", r.Horizon, 1},
	}
	for _, f := range ints {
		if f.rng.Min > f.rng.Max {
			return fmt.Errorf("%w: %s min (%d) > max (%d)", ErrInvalidRange, f.name, f.rng.Min, f.rng.Max)
		}
		if f.rng.Min < f.minimum {
			return fmt.Errorf("%w: %s min (%d) must be >= %d", ErrInvalidRange, f.name, f.rng.Min, f.minimum)
		}
	}

	floats := []struct {
		name string
		rng  FloatRange
	}{
		{"volume_explosion", r.VolumeExplosion},
		{"rsi_buy_threshold", r.RSIBuyThreshold},
		{"rsi_sell_threshold", r.RSISellThreshold},
		{"min_confidence", r.MinConfidence},
		{"stop_loss_pct", r.StopLossPct},
		{"take_profit_pct", r.TakeProfitPct},
		{"risk_pct", r.RiskPct},
	}
	for _, f := range floats {
		if f.rng.Min > f.rng.Max {
			return fmt.Errorf("%w: %s min (%g) > max (%g)", ErrInvalidRange, f.name, f.rng.Min, f.rng.Max)
		}
		if f.rng.Min < 0 {
			return fmt.Errorf("%w: %s min (%g) must not be negative", ErrInvalidRange, f.name, f.rng.Min)
		}
	}

	switch {
	case r.VolumeExplosion.Min <= 0:
		return fmt.Errorf("%w: volume_explosion must be positive", ErrInvalidRange)
	case r.StopLossPct.Min <= 0 || r.TakeProfitPct.Min <= 0:
		return fmt.Errorf("%w: stop_loss_pct and take_profit_pct must be positive", ErrInvalidRange)
	case r.ShortPeriod.Max >= r.LongPeriod.Min:
		return fmt.Errorf("%w: short_period max (%d) must be below long_period min (%d)", ErrInvalidRange, r.ShortPeriod.Max, r.LongPeriod.Min)
	case r.RSIBuyThreshold.Max > r.RSISellThreshold.Min:
		return fmt.Errorf("%w: rsi_buy_threshold max (%g) must not exceed rsi_sell_threshold min (%g)", ErrInvalidRange, r.RSIBuyThreshold.Max, r.RSISellThreshold.Min)
	case r.MinConfidence.Max > 100 || r.RSISellThreshold.Max > 100:
		return fmt.Errorf("%w: confidence and rsi bounds must be <= 100", ErrInvalidRange)
	}
	return nil
}

// ParameterSet is one sampled candidate configuration.
type ParameterSet struct {
	RSIPeriod        int     `json:"rsi_period"`
	ShortPeriod      int     `json:"short_period"`
	LongPeriod       int     `json:"long_period"`
	VolumeExplosion  float64 `json:"volume_explosion"`
	RSIBuyThreshold  float64 `json:"rsi_buy_threshold"`
	RSISellThreshold float64 `json:"rsi_sell_threshold"`
	MinConfidence    float64 `json:"min_confidence"`
	StopLossPct      float64 `json:"stop_loss_pct"`
	TakeProfitPct    float64 `json:"take_profit_pct"`
	Horizon          int     `json:"horizon"`
	RiskPct          float64 `json:"risk_pct"`
}

// Sample draws every field in declaration order, so the same generator state
// always yields the same set.
func (r ParameterRanges) Sample(rng *rand.Rand) ParameterSet {
	return ParameterSet{
		RSIPeriod:        r.RSIPeriod.sample(rng),
		ShortPeriod:      r.ShortPeriod.sample(rng),
		LongPeriod:       r.LongPeriod.sample(rng),
		VolumeExplosion:  r.VolumeExplosion.sample(rng),
		RSIBuyThreshold:  r.RSIBuyThreshold.sample(rng),
		RSISellThreshold: r.RSISellThreshold.sample(rng),
		MinConfidence:    r.MinConfidence.sample(rng),
		StopLossPct:      r.StopLossPct.sample(rng),
		TakeProfitPct:    r.TakeProfitPct.sample(rng),
		Horizon:          r.Horizon.sample(rng),
		RiskPct:          r.RiskPct.sample(rng),
	}
}

// widest is the set with the longest lookbacks the ranges allow.
func (r ParameterRanges) widest() ParameterSet {
	return ParameterSet{RSIPeriod: r.RSIPeriod.Max, ShortPeriod: r.ShortPeriod.Max, LongPeriod: r.LongPeriod.Max}
}

// Base holds the fixed configuration a ParameterSet is layered on.
type Base struct {
	Indicators indicator.Config
	Scoring    signal.Config
	Simulation backtest.SimConfig
	Sizing     sizing.Config
}

func DefaultBase() Base {
	return Base{
		Indicators: indicator.DefaultConfig(),
		Scoring:    signal.DefaultConfig(),
		Simulation: backtest.DefaultSimConfig(),
		Sizing:     sizing.DefaultConfig(),
	}
}

// Apply overlays the sampled fields on the base configuration.
func (p ParameterSet) Apply(b Base) Base {
	if p.RSIPeriod > 0 {
		b.Indicators.RSIPeriod = p.RSIPeriod
	}
	if p.ShortPeriod > 0 {
		b.Indicators.ShortPeriod = p.ShortPeriod
	}
	if p.LongPeriod > 0 {
		b.Indicators.LongPeriod = p.LongPeriod
	}
	if p.VolumeExplosion > 0 {
		b.Scoring.VolumeExplosion = p.VolumeExplosion
	}
	if p.RSIBuyThreshold > 0 {
		b.Scoring.RSIBuyThreshold = p.RSIBuyThreshold
	}
	if p.RSISellThreshold > 0 {
		b.Scoring.RSISellThreshold = p.RSISellThreshold
	}
	if p.MinConfidence > 0 {
		b.Scoring.MinConfidence = p.MinConfidence
	}
	if p.StopLossPct > 0 {
		b.Scoring.StopLossPct = p.StopLossPct
		b.Simulation.StopLossPct = p.StopLossPct
	}
	if p.TakeProfitPct > 0 {
		b.Simulation.TakeProfitPct = p.TakeProfitPct
	}
	if p.Horizon > 0 {
		b.Simulation.Horizon = p.Horizon
	}
	if p.RiskPct > 0 {
		b.Sizing.RiskPct = p.RiskPct
	}
	return b
}
