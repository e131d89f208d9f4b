package risk

import (
	"fmt"
	"sync"

	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/types"
)

var logger = logging.New("risk")

type Level string

const (
	MINIMAL  Level = "MINIMAL"
	LOW      Level = "LOW"
	MEDIUM   Level = "MEDIUM"
	HIGH     Level = "HIGH"
	CRITICAL Level = "CRITICAL"
)

// Config values are percentages (5 means 5%).
type Config struct {
	MaxDailyLossPct float64 `yaml:"max_daily_loss_pct" default:"5" validate:"gt=0,lte=100"`
	MaxDrawdownPct  float64 `yaml:"max_drawdown_pct" default:"20" validate:"gt=0,lte=100"`
	MaxPositions    int     `yaml:"max_positions" default:"3" validate:"gte=1"`

	// Above ReduceDrawdownPct the gate asks the sizer to scale notional by ReduceMultiplier.
	ReduceDrawdownPct float64 `yaml:"reduce_drawdown_pct" default:"10" validate:"gte=0,lte=100"`
	ReduceMultiplier  float64 `yaml:"reduce_multiplier" default:"0.5" validate:"gt=0,lte=1"`
}

func DefaultConfig() Config {
	return Config{
		MaxDailyLossPct:   5,
		MaxDrawdownPct:    20,
		MaxPositions:      3,
		ReduceDrawdownPct: 10,
		ReduceMultiplier:  0.5,
	}
}

func (c Config) Validate() error {
	if c.ReduceDrawdownPct > c.MaxDrawdownPct {
		return fmt.Errorf("reduce_drawdown_pct (%.2f) must not exceed max_drawdown_pct (%.2f)", c.ReduceDrawdownPct, c.MaxDrawdownPct)
	}
	return nil
}

// Decision is the gate's answer for one prospective trade.
type Decision struct {
	Allowed        bool    `json:"allowed"`
	Level          Level   `json:"level"`
	Reason         string  `json:"reason,omitempty"`
	SizeMultiplier float64 `json:"size_multiplier"`
}

type Status struct {
	Balance           float64 `json:"balance"`
	PeakBalance       float64 `json:"peak_balance"`
	DrawdownPct       float64 `json:"drawdown_pct"`
	DailyPnL          float64 `json:"daily_pnl"`
	OpenPositionCount int     `json:"open_position_count"`
	Level             Level   `json:"level"`
	SizeMultiplier    float64 `json:"size_multiplier"`
}

// Gate is the single owner of the balance, peak, daily PnL and open position
// count used for risk decisions. All methods are safe for concurrent use.
type Gate struct {
	mu  sync.Mutex
	cfg Config

	balance       float64
	peak          float64
	dailyPnL      float64
	openPositions int
}

func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Sync replaces the gate's view with an account snapshot. The peak balance
// never decreases.
func (g *Gate) Sync(acct types.AccountState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.setBalance(acct.Balance)
	if acct.PeakBalance > g.peak {
		g.peak = acct.PeakBalance
	}
	g.dailyPnL = acct.DailyPnL
	g.openPositions = acct.OpenPositionCount
}

func (g *Gate) setBalance(balance float64) {
	g.balance = balance
	if balance > g.peak {
		g.peak = balance
	}
}

func (g *Gate) ResetDaily() {
	g.mu.Lock()
	defer g.mu.Unlock()
	logger.Info("Resetting daily PnL", "daily_pnl", g.dailyPnL)
	g.dailyPnL = 0
}

// Drawdown is (peak - balance) / peak as a fraction.
func (g *Gate) Drawdown() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.drawdown()
}

func (g *Gate) drawdown() float64 {
	if g.peak <= 0 {
		return 0
	}
	return (g.peak - g.balance) / g.peak
}

// dailyLossPct measures today's PnL against the start-of-day balance.
func (g *Gate) dailyLossPct() float64 {
	base := g.balance - g.dailyPnL
	if base <= 0 {
		base = g.peak
	}
	if base <= 0 {
		return 0
	}
	return g.dailyPnL / base * 100
}

// Check decides whether a new position may be opened and how much to scale it.
func (g *Gate) Check() Decision {
	g.mu.Lock()
	d := g.decide()
	g.mu.Unlock()

	if !d.Allowed {
		logger.Warn("Risk gate blocked trading", "level", d.Level, "reason", d.Reason)
	}
	return d
}

// decide must be called with mu held.
func (g *Gate) decide() Decision {
	c := g.cfg
	ddPct := g.drawdown() * 100
	d := Decision{SizeMultiplier: 1}
	if c.ReduceDrawdownPct > 0 && ddPct >= c.ReduceDrawdownPct {
		d.SizeMultiplier = c.ReduceMultiplier
	}

	switch daily := g.dailyLossPct(); {
	case daily <= -c.MaxDailyLossPct:
		d.Level = CRITICAL
		d.Reason = fmt.Sprintf("daily loss %.2f%% reached limit %.2f%%", -daily, c.MaxDailyLossPct)
	case ddPct >= c.MaxDrawdownPct:
		d.Level = HIGH
		d.Reason = fmt.Sprintf("drawdown %.2f%% reached limit %.2f%%", ddPct, c.MaxDrawdownPct)
	case g.openPositions >= c.MaxPositions:
		d.Level = HIGH
		d.Reason = fmt.Sprintf("%d open positions reached limit %d", g.openPositions, c.MaxPositions)
	default:
		d.Allowed = true
		d.Level = g.gradedLevel(ddPct)
	}
	return d
}

// gradedLevel is for reporting only and never blocks.
func (g *Gate) gradedLevel(ddPct float64) Level {
	switch {
	case ddPct < g.cfg.MaxDrawdownPct*0.25:
		return MINIMAL
	case ddPct < g.cfg.MaxDrawdownPct*0.5:
		return LOW
	default:
		return MEDIUM
	}
}

// Snapshot reports the gate's current view without logging.
func (g *Gate) Snapshot() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.decide()
	return Status{
		Balance:           g.balance,
		PeakBalance:       g.peak,
		DrawdownPct:       g.drawdown() * 100,
		DailyPnL:          g.dailyPnL,
		OpenPositionCount: g.openPositions,
		Level:             d.Level,
		SizeMultiplier:    d.SizeMultiplier,
	}
}
