package signal

import "fmt"

// Config drives the scorer. Historical constant sets are alternate Config
// values, not alternate code paths.
type Config struct {
	VolumeWeight  float64 `yaml:"volume_weight" default:"0.4" validate:"gte=0"`
	RSIWeight     float64 `yaml:"rsi_weight" default:"0.4" validate:"gte=0"`
	TrendWeight   float64 `yaml:"trend_weight" default:"0.2" validate:"gte=0"`
	MinConfidence float64 `yaml:"min_confidence" default:"65" validate:"gte=0,lte=100"`

	// VolumeExplosion is the minimum volume ratio; VolumeExtreme is where
	// volume confidence reaches 100.
	VolumeExplosion float64 `yaml:"volume_explosion" default:"2" validate:"gt=0"`
	VolumeExtreme   float64 `yaml:"volume_extreme" default:"5" validate:"gt=0"`

	RSIBuyThreshold  float64 `yaml:"rsi_buy_threshold" default:"35" validate:"gte=0,lte=100"`
	RSIBuyExtreme    float64 `yaml:"rsi_buy_extreme" default:"20" validate:"gte=0,lte=100"`
	RSISellThreshold float64 `yaml:"rsi_sell_threshold" default:"65" validate:"gte=0,lte=100"`
	RSISellExtreme   float64 `yaml:"rsi_sell_extreme" default:"80" validate:"gte=0,lte=100"`

	TrendBuyThreshold    float64 `yaml:"trend_buy_threshold" default:"0.002"`
	TrendSellThreshold   float64 `yaml:"trend_sell_threshold" default:"-0.002"`
	TrendConfidenceScale float64 `yaml:"trend_confidence_scale" default:"1000" validate:"gt=0"`

	BollingerBuyBelow  float64 `yaml:"bollinger_buy_below" default:"0.2"`
	BollingerSellAbove float64 `yaml:"bollinger_sell_above" default:"0.8"`

	// StopLossPct sets Signal.StopLoss; 0 leaves it unset.
	StopLossPct float64 `yaml:"stop_loss_pct" default:"1.25" validate:"gte=0,lt=100"`
}

func DefaultConfig() Config {
	return Config{
		VolumeWeight:         0.4,
		RSIWeight:            0.4,
		TrendWeight:          0.2,
		MinConfidence:        65,
		VolumeExplosion:      2,
		VolumeExtreme:        5,
		RSIBuyThreshold:      35,
		RSIBuyExtreme:        20,
		RSISellThreshold:     65,
		RSISellExtreme:       80,
		TrendBuyThreshold:    0.002,
		TrendSellThreshold:   -0.002,
		TrendConfidenceScale: 1000,
		BollingerBuyBelow:    0.2,
		BollingerSellAbove:   0.8,
		StopLossPct:          1.25,
	}
}

// Validate rejects threshold sets where BUY and SELL could fire on the same
// snapshot, and extremes that sit on the wrong side of their threshold.
func (c Config) Validate() error {
	if c.RSIBuyThreshold > c.RSISellThreshold && c.TrendBuyThreshold < c.TrendSellThreshold {
		return fmt.Errorf("rsi_buy_threshold (%.2f) > rsi_sell_threshold (%.2f) and trend_buy_threshold (%.4f) < trend_sell_threshold (%.4f): buy and sell could both fire",
			c.RSIBuyThreshold, c.RSISellThreshold, c.TrendBuyThreshold, c.TrendSellThreshold)
	}
	if c.RSIBuyExtreme >= c.RSIBuyThreshold {
		return fmt.Errorf("rsi_buy_extreme (%.2f) must be below rsi_buy_threshold (%.2f)", c.RSIBuyExtreme, c.RSIBuyThreshold)
	}
	if c.RSISellExtreme <= c.RSISellThreshold {
		return fmt.Errorf("rsi_sell_extreme (%.2f) must be above rsi_sell_threshold (%.2f)", c.RSISellExtreme, c.RSISellThreshold)
	}
	if c.VolumeExtreme <= c.VolumeExplosion {
		return fmt.Errorf("volume_extreme (%.2f) must be above volume_explosion (%.2f)", c.VolumeExtreme, c.VolumeExplosion)
	}
	if c.VolumeWeight+c.RSIWeight+c.TrendWeight <= 0 {
		return fmt.Errorf("confidence weights must not all be zero")
	}
	return nil
}
