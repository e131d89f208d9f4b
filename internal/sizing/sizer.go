package sizing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/types"
)

var logger = logging.New("sizing")

type Config struct {
	RiskPct           float64 `yaml:"risk_pct" default:"2" validate:"gt=0,lte=100"`
	MinOrderSize      float64 `yaml:"min_order_size" default:"10" validate:"gt=0"`
	MaxPositionSize   float64 `yaml:"max_position_size" default:"200" validate:"gt=0"`
	MaxLeverage       float64 `yaml:"max_leverage" default:"35" validate:"gte=1"`
	QuantityPrecision int32   `yaml:"quantity_precision" default:"3" validate:"gte=0,lte=12"`

	// ConfluenceBonus multiplies the risk amount once a signal is backed by at
	// least ConfluenceMinDetectors agreeing detectors.
	ConfluenceBonus        float64 `yaml:"confluence_bonus" default:"1.5" validate:"gte=1"`
	ConfluenceMinDetectors int     `yaml:"confluence_min_detectors" default:"3" validate:"gte=1"`
}

func DefaultConfig() Config {
	return Config{
		RiskPct:                2,
		MinOrderSize:           10,
		MaxPositionSize:        200,
		MaxLeverage:            35,
		QuantityPrecision:      3,
		ConfluenceBonus:        1.5,
		ConfluenceMinDetectors: 3,
	}
}

func (c Config) Validate() error {
	if c.MinOrderSize > c.MaxPositionSize {
		return fmt.Errorf("min_order_size (%.2f) must not exceed max_position_size (%.2f)", c.MinOrderSize, c.MaxPositionSize)
	}
	if c.MaxLeverage < 1 {
		return fmt.Errorf("max_leverage (%.2f) must be >= 1", c.MaxLeverage)
	}
	return nil
}

// Result is one sizing decision. A non-viable result is data, not an error.
type Result struct {
	Notional        float64 `json:"notional"`
	Units           float64 `json:"units"`
	RequiredCapital float64 `json:"required_capital"`
	LeverageUsed    float64 `json:"leverage_used"`
	RiskAmount      float64 `json:"risk_amount"`
	Viable          bool    `json:"viable"`
	Reason          string  `json:"reason,omitempty"`
}

type Sizer struct {
	cfg Config
}

func NewSizer(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

func (s *Sizer) Config() Config {
	return s.cfg
}

// Size sizes a signal at full risk.
func (s *Sizer) Size(sig types.Signal, acct types.AccountState) Result {
	return s.SizeScaled(sig, acct, 1)
}

// SizeScaled sizes a signal and scales the clamped notional by multiplier,
// which is how the risk gate shrinks positions during a drawdown. A scaled
// notional below min order size is not viable.
func (s *Sizer) SizeScaled(sig types.Signal, acct types.AccountState, multiplier float64) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = s.fallback(fmt.Sprintf("sizing failed: %v", r))
		}
	}()

	res, err := s.size(sig, acct, multiplier)
	if err != nil {
		logger.Warn("Sizing failed, using fallback", "symbol", sig.Symbol, "error", err)
		return s.fallback(err.Error())
	}
	return res
}

func (s *Sizer) size(sig types.Signal, acct types.AccountState, multiplier float64) (Result, error) {
	c := s.cfg
	entry := sig.EntryPrice
	if entry <= 0 || !finite(entry, acct.Balance, acct.AvailableMargin, multiplier, sig.StopLoss) {
		return Result{}, fmt.Errorf("invalid inputs (entry=%v balance=%v margin=%v multiplier=%v)", entry, acct.Balance, acct.AvailableMargin, multiplier)
	}

	riskAmount := acct.Balance * (c.RiskPct / 100)
	if sig.Confluence >= c.ConfluenceMinDetectors {
		riskAmount *= c.ConfluenceBonus
	}

	var units float64
	if sig.StopLoss > 0 && sig.StopLoss != entry {
		units = riskAmount / math.Abs(entry-sig.StopLoss)
	} else {
		units = riskAmount / entry
	}
	notional := units * entry

	switch {
	case notional < c.MinOrderSize:
		// Small accounts still trade the minimum, so risk taken exceeds RiskPct.
		logger.Warn("Notional clamped up to min order size",
			"symbol", sig.Symbol,
			"notional", notional,
			"min_order_size", c.MinOrderSize,
			"risk_amount", riskAmount)
		notional = c.MinOrderSize
	case notional > c.MaxPositionSize:
		logger.Debug("Notional clamped to max position size", "symbol", sig.Symbol, "notional", notional, "max_position_size", c.MaxPositionSize)
		notional = c.MaxPositionSize
	}

	if multiplier != 1 {
		logger.Debug("Scaling notional", "symbol", sig.Symbol, "notional", notional, "multiplier", multiplier)
		notional *= multiplier
		riskAmount *= multiplier
	}

	required := notional / c.MaxLeverage
	if required > acct.AvailableMargin {
		margin := math.Max(acct.AvailableMargin, 0)
		capped := margin * c.MaxLeverage
		logger.Info("Available margin overrides risk sizing",
			"symbol", sig.Symbol,
			"notional", notional,
			"capped_notional", capped,
			"available_margin", acct.AvailableMargin)
		notional = capped
		// Dividing capped back by leverage can land an ulp above the margin.
		required = margin
	}

	leverage := c.MaxLeverage
	if required > 0 {
		ratio := decimal.NewFromFloat(notional).Div(decimal.NewFromFloat(required)).Ceil().InexactFloat64()
		leverage = math.Min(ratio, c.MaxLeverage)
	}

	res := Result{
		Notional:        notional,
		Units:           s.truncateUnits(notional / entry),
		RequiredCapital: required,
		LeverageUsed:    leverage,
		RiskAmount:      riskAmount,
	}
	if !finite(res.Notional, res.Units, res.RequiredCapital, res.LeverageUsed, res.RiskAmount) {
		return Result{}, fmt.Errorf("non-finite sizing result %+v", res)
	}

	res.Viable, res.Reason = s.viability(res, acct)
	if !res.Viable {
		logger.Debug("Position not viable", "symbol", sig.Symbol, "reason", res.Reason)
	}
	return res, nil
}

// viability runs the checks in a fixed order and reports the first failure.
func (s *Sizer) viability(r Result, acct types.AccountState) (bool, string) {
	c := s.cfg
	switch {
	case r.Notional < c.MinOrderSize:
		return false, fmt.Sprintf("notional %.2f below min order size %.2f", r.Notional, c.MinOrderSize)
	case r.RequiredCapital > acct.AvailableMargin:
		return false, fmt.Sprintf("required capital %.2f exceeds available margin %.2f", r.RequiredCapital, acct.AvailableMargin)
	case r.LeverageUsed > c.MaxLeverage:
		return false, fmt.Sprintf("leverage %.0f exceeds max leverage %.0f", r.LeverageUsed, c.MaxLeverage)
	case r.Notional > c.MaxPositionSize:
		return false, fmt.Sprintf("notional %.2f above max position size %.2f", r.Notional, c.MaxPositionSize)
	}
	return true, ""
}

func (s *Sizer) fallback(reason string) Result {
	c := s.cfg
	return Result{
		Notional:        c.MinOrderSize,
		RequiredCapital: c.MinOrderSize / c.MaxLeverage,
		LeverageUsed:    c.MaxLeverage,
		Viable:          false,
		Reason:          reason,
	}
}

func (s *Sizer) truncateUnits(units float64) float64 {
	return decimal.NewFromFloat(units).Truncate(s.cfg.QuantityPrecision).InexactFloat64()
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
