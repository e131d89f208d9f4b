package indicator

import "fmt"

// Config holds every lookback used by the engine. Each historical constant set
// is just another Config value.
type Config struct {
	RSIPeriod int `yaml:"rsi_period" default:"14" validate:"gte=2"`

	ShortPeriod int `yaml:"short_period" default:"20" validate:"gte=1"`
	LongPeriod  int `yaml:"long_period" default:"50" validate:"gte=2"`

	ATRPeriod            int     `yaml:"atr_period" default:"10" validate:"gte=1"`
	SuperTrendMultiplier float64 `yaml:"supertrend_multiplier" default:"3" validate:"gt=0"`

	GoldenLookback  int     `yaml:"golden_lookback" default:"50" validate:"gte=2"`
	GoldenLow       float64 `yaml:"golden_low" default:"0.72" validate:"gte=0,lte=1"`
	GoldenHigh      float64 `yaml:"golden_high" default:"0.88" validate:"gte=0,lte=1"`
	GoldenTolerance float64 `yaml:"golden_tolerance" default:"0.01" validate:"gte=0,lt=1"`

	VolumeShortPeriod int `yaml:"volume_short_period" default:"5" validate:"gte=1"`
	VolumePeriod      int `yaml:"volume_period" default:"20" validate:"gte=1"`
	VolumeSumBars     int `yaml:"volume_sum_bars" default:"3" validate:"gte=1"`

	MACDFast   int `yaml:"macd_fast" default:"12" validate:"gte=1"`
	MACDSlow   int `yaml:"macd_slow" default:"26" validate:"gte=2"`
	MACDSignal int `yaml:"macd_signal" default:"9" validate:"gte=1"`

	BollingerPeriod int     `yaml:"bollinger_period" default:"20" validate:"gte=2"`
	BollingerStdDev float64 `yaml:"bollinger_stddev" default:"2" validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		RSIPeriod:            14,
		ShortPeriod:          20,
		LongPeriod:           50,
		ATRPeriod:            10,
		SuperTrendMultiplier: 3,
		GoldenLookback:       50,
		GoldenLow:            0.72,
		GoldenHigh:           0.88,
		GoldenTolerance:      0.01,
		VolumeShortPeriod:    5,
		VolumePeriod:         20,
		VolumeSumBars:        3,
		MACDFast:             12,
		MACDSlow:             26,
		MACDSignal:           9,
		BollingerPeriod:      20,
		BollingerStdDev:      2,
	}
}

// Validate checks the cross-field rules the struct tags cannot express.
func (c Config) Validate() error {
	if c.RSIPeriod < 2 {
		return fmt.Errorf("rsi_period (%d) must be >= 2", c.RSIPeriod)
	}
	if c.ShortPeriod < 1 || c.LongPeriod <= c.ShortPeriod {
		return fmt.Errorf("short_period (%d) must be >= 1 and below long_period (%d)", c.ShortPeriod, c.LongPeriod)
	}
	if c.ATRPeriod < 1 || c.SuperTrendMultiplier <= 0 {
		return fmt.Errorf("atr_period (%d) and supertrend_multiplier (%f) must be positive", c.ATRPeriod, c.SuperTrendMultiplier)
	}
	if c.GoldenLow > c.GoldenHigh {
		return fmt.Errorf("golden_low (%f) must not exceed golden_high (%f)", c.GoldenLow, c.GoldenHigh)
	}
	if c.GoldenLookback < 2 {
		return fmt.Errorf("golden_lookback (%d) must be >= 2", c.GoldenLookback)
	}
	if c.VolumeShortPeriod < 1 || c.VolumePeriod < 1 || c.VolumeSumBars < 1 {
		return fmt.Errorf("volume periods must be positive")
	}
	if c.MACDFast < 1 || c.MACDSlow <= c.MACDFast || c.MACDSignal < 1 {
		return fmt.Errorf("macd periods invalid (fast=%d slow=%d signal=%d)", c.MACDFast, c.MACDSlow, c.MACDSignal)
	}
	if c.BollingerPeriod < 2 || c.BollingerStdDev <= 0 {
		return fmt.Errorf("bollinger settings invalid (period=%d stddev=%f)", c.BollingerPeriod, c.BollingerStdDev)
	}
	return nil
}

// MinBars is the number of bars needed before every indicator is ready.
func (c Config) MinBars() int {
	n := c.RSIPeriod + 1
	for _, p := range []int{
		c.LongPeriod,
		c.ATRPeriod + 1,
		c.GoldenLookback,
		c.VolumePeriod + 1,
		c.VolumeShortPeriod + 1,
		c.MACDSlow + c.MACDSignal - 1,
		c.BollingerPeriod,
	} {
		if p > n {
			n = p
		}
	}
	return n
}
