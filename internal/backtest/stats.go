package backtest

import (
	"math"
	"sort"

	"github.com/jwtly10/signalbook/internal/account"
	"github.com/jwtly10/signalbook/internal/types"
)

// Result is the aggregate outcome of replaying one parameter set.
type Result struct {
	TotalTrades    int         `json:"total_trades"`
	WinningTrades  int         `json:"winning_trades"`
	LosingTrades   int         `json:"losing_trades"`
	WinRate        float64     `json:"win_rate"`
	GrossProfitPct float64     `json:"gross_profit_pct"`
	GrossLossPct   float64     `json:"gross_loss_pct"`
	ProfitFactor   types.Ratio `json:"profit_factor"`
	SharpeLike     float64     `json:"sharpe_like"`
	MaxDrawdownPct float64     `json:"max_drawdown_pct"`
	TotalReturnPct float64     `json:"total_return_pct"`
	Score          float64     `json:"score"`
}

type ScoreConfig struct {
	WinRateWeight      float64 `yaml:"win_rate_weight" default:"0.35" validate:"gte=0"`
	ProfitFactorWeight float64 `yaml:"profit_factor_weight" default:"10" validate:"gte=0"`
	SharpeWeight       float64 `yaml:"sharpe_weight" default:"5" validate:"gte=0"`
	DrawdownWeight     float64 `yaml:"drawdown_weight" default:"0.5" validate:"gte=0"`

	// Caps keep an unbounded profit factor (no losing trades) from owning the score.
	ProfitFactorCap float64 `yaml:"profit_factor_cap" default:"3" validate:"gt=0"`
	SharpeCap       float64 `yaml:"sharpe_cap" default:"3" validate:"gt=0"`

	StartingBalance float64 `yaml:"starting_balance" default:"10000" validate:"gt=0"`
	MinTrades       int     `yaml:"min_trades" default:"10" validate:"gte=1"`
}

func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		WinRateWeight:      0.35,
		ProfitFactorWeight: 10,
		SharpeWeight:       5,
		DrawdownWeight:     0.5,
		ProfitFactorCap:    3,
		SharpeCap:          3,
		StartingBalance:    10000,
		MinTrades:          10,
	}
}

// Exposure is the share of equity a trade stakes when a stop-out is sized to
// lose riskPct of the balance, capped at maxLeverage. It is 1 when either
// percentage is unset.
func Exposure(riskPct, stopLossPct, maxLeverage float64) float64 {
	if riskPct <= 0 || stopLossPct <= 0 {
		return 1
	}
	e := riskPct / stopLossPct
	if maxLeverage > 0 {
		e = math.Min(e, maxLeverage)
	}
	return e
}

// Calculate builds the statistics for a set of closed trades. The equity curve
// compounds each trade's pnl_pct times exposure onto startingBalance in
// exit-time order, so only drawdown and total return depend on exposure.
func Calculate(trades []types.Trade, startingBalance, exposure float64) Result {
	if exposure <= 0 {
		exposure = 1
	}
	r := Result{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return r
	}

	var sum float64
	for _, t := range trades {
		sum += t.PnLPct
		if t.PnLPct > 0 {
			r.WinningTrades++
			r.GrossProfitPct += t.PnLPct
		} else if t.PnLPct < 0 {
			r.LosingTrades++
			r.GrossLossPct += t.PnLPct // Already negative
		}
	}

	r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades) * 100

	switch {
	case r.GrossLossPct != 0:
		r.ProfitFactor = types.Ratio(r.GrossProfitPct / -r.GrossLossPct)
	case r.GrossProfitPct > 0:
		r.ProfitFactor = types.Ratio(math.Inf(1))
	}

	mean := sum / float64(len(trades))
	var variance float64
	for _, t := range trades {
		d := t.PnLPct - mean
		variance += d * d
	}
	if sd := math.Sqrt(variance / float64(len(trades))); sd > 0 {
		r.SharpeLike = mean / sd
	}

	ordered := append([]types.Trade(nil), trades...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitTime.Before(ordered[j].ExitTime)
	})

	equity := account.NewAccount(startingBalance)
	for _, t := range ordered {
		equity.ApplyReturn(t.PnLPct * exposure)
	}
	r.MaxDrawdownPct = equity.MaxDrawdownPct()
	if startingBalance > 0 {
		r.TotalReturnPct = (equity.Balance() - startingBalance) / startingBalance * 100
	}

	return r
}

// Score weights the metrics into one number; higher is better.
func (c ScoreConfig) Score(r Result) float64 {
	pf := math.Min(float64(r.ProfitFactor), c.ProfitFactorCap)
	if math.IsNaN(pf) {
		pf = 0
	}
	sharpe := math.Min(r.SharpeLike, c.SharpeCap)

	return r.WinRate*c.WinRateWeight +
		pf*c.ProfitFactorWeight +
		sharpe*c.SharpeWeight -
		r.MaxDrawdownPct*c.DrawdownWeight
}

// Evaluate calculates and scores a trade set. ok is false when there are too
// few trades for the statistics to mean anything.
func (c ScoreConfig) Evaluate(trades []types.Trade, exposure float64) (r Result, ok bool) {
	r = Calculate(trades, c.StartingBalance, exposure)
	if r.TotalTrades < c.MinTrades {
		return r, false
	}
	r.Score = c.Score(r)
	return r, true
}
