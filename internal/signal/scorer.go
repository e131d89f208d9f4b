package signal

import (
	"fmt"
	"math"

	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/types"
)

var logger = logging.New("signal")

// Decision explains the outcome of a Score call. Anything other than
// ACCEPTED is a normal "no signal" result.
type Decision string

const (
	ACCEPTED            Decision = "accepted"
	REJECT_NOT_READY    Decision = "not_ready"
	REJECT_VOLUME       Decision = "volume_below_explosion"
	REJECT_NO_DIRECTION Decision = "no_direction"
	REJECT_CONFIDENCE   Decision = "confidence_below_min"
	REJECT_ANOMALY      Decision = "arithmetic_anomaly"
)

// Factors are the per-factor confidences, each in [0,100].
type Factors struct {
	Volume float64
	RSI    float64
	Trend  float64
}

type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

func (s *Scorer) Config() Config {
	return s.cfg
}

// Score turns the latest snapshot into at most one Signal. It is a pure
// function of the snapshot and the config.
func (s *Scorer) Score(symbol string, snap types.Snapshot) (sig *types.Signal, decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Scoring panicked, treating as no signal", "symbol", symbol, "panic", fmt.Sprint(r))
			sig, decision = nil, REJECT_ANOMALY
		}
	}()

	if !snap.Ready {
		return nil, REJECT_NOT_READY
	}
	if hasNaN(snap.RSI, snap.TrendStrength, snap.VolumeRatio, snap.Close) {
		return nil, REJECT_ANOMALY
	}

	c := s.cfg
	if snap.VolumeRatio < c.VolumeExplosion {
		logger.Debug("Volume below explosion threshold", "symbol", symbol, "volume_ratio", snap.VolumeRatio)
		return nil, REJECT_VOLUME
	}

	side, ok := s.direction(snap)
	if !ok {
		return nil, REJECT_NO_DIRECTION
	}

	factors := s.factors(side, snap)
	total := c.Confidence(factors)
	if math.IsNaN(total) {
		return nil, REJECT_ANOMALY
	}
	if total < c.MinConfidence {
		logger.Debug("Confidence below minimum",
			"symbol", symbol,
			"side", side,
			"confidence", total,
			"min_confidence", c.MinConfidence)
		return nil, REJECT_CONFIDENCE
	}

	sig = &types.Signal{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: snap.Close,
		Confidence: total,
		Reasons: []string{
			fmt.Sprintf("volume_ratio=%.2f confidence=%.1f", snap.VolumeRatio, factors.Volume),
			fmt.Sprintf("rsi=%.2f confidence=%.1f", snap.RSI, factors.RSI),
			fmt.Sprintf("trend_strength=%.5f confidence=%.1f", snap.TrendStrength, factors.Trend),
		},
		Confluence: 1,
		BarIndex:   snap.Index,
		Timestamp:  snap.Timestamp,
	}
	if c.StopLossPct > 0 {
		sig.StopLoss = snap.Close * (1 - side.Sign()*c.StopLossPct/100)
	}
	s.corroborate(sig, snap)

	logger.Debug("Signal accepted",
		"symbol", symbol,
		"side", side,
		"confidence", total,
		"confluence", sig.Confluence)

	return sig, ACCEPTED
}

func (s *Scorer) direction(snap types.Snapshot) (types.Side, bool) {
	c := s.cfg
	buy := snap.RSI < c.RSIBuyThreshold && snap.TrendStrength > c.TrendBuyThreshold
	sell := snap.RSI > c.RSISellThreshold && snap.TrendStrength < c.TrendSellThreshold

	switch {
	case buy && sell:
		// Validate rules this out; refuse rather than pick a side.
		logger.Warn("Buy and sell conditions both hold", "rsi", snap.RSI, "trend_strength", snap.TrendStrength)
		return "", false
	case buy:
		return types.BUY, true
	case sell:
		return types.SELL, true
	}
	return "", false
}

func (s *Scorer) factors(side types.Side, snap types.Snapshot) Factors {
	c := s.cfg
	var rsi float64
	if side == types.BUY {
		rsi = linear(c.RSIBuyThreshold-snap.RSI, c.RSIBuyThreshold-c.RSIBuyExtreme)
	} else {
		rsi = linear(snap.RSI-c.RSISellThreshold, c.RSISellExtreme-c.RSISellThreshold)
	}
	return Factors{
		Volume: linear(snap.VolumeRatio-c.VolumeExplosion, c.VolumeExtreme-c.VolumeExplosion),
		RSI:    rsi,
		Trend:  math.Min(math.Abs(snap.TrendStrength)*c.TrendConfidenceScale, 100),
	}
}

// Confidence is the weighted sum of the factor confidences, clamped to [0,100].
func (c Config) Confidence(f Factors) float64 {
	total := f.Volume*c.VolumeWeight + f.RSI*c.RSIWeight + f.Trend*c.TrendWeight
	return clamp(total, 0, 100)
}

// corroborate counts independent detectors that agree with the signal side.
func (s *Scorer) corroborate(sig *types.Signal, snap types.Snapshot) {
	c := s.cfg
	sign := int(sig.Side.Sign())

	if snap.SuperTrendDirection == sign {
		sig.Confluence++
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("supertrend_direction=%d", snap.SuperTrendDirection))
	}
	if snap.InGoldenZone {
		sig.Confluence++
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("golden_zone=[%.4f,%.4f]", snap.GoldenZoneLow, snap.GoldenZoneHigh))
	}
	if snap.MACDDelta*float64(sign) > 0 {
		sig.Confluence++
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("macd_delta=%.5f", snap.MACDDelta))
	}
	if (sig.Side == types.BUY && snap.BollingerPosition < c.BollingerBuyBelow) ||
		(sig.Side == types.SELL && snap.BollingerPosition > c.BollingerSellAbove) {
		sig.Confluence++
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("bollinger_position=%.3f", snap.BollingerPosition))
	}
}

// linear maps 0..span onto 0..100.
func linear(distance, span float64) float64 {
	if span <= 0 {
		return 0
	}
	return clamp(distance/span*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func hasNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
