package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"

	EXIT_STOP_LOSS   ExitReason = "stop_loss"
	EXIT_TAKE_PROFIT ExitReason = "take_profit"
	EXIT_TIMEOUT     ExitReason = "timeout"
)

type Side string
type ExitReason string

// Sign returns +1 for BUY and -1 for SELL.
func (s Side) Sign() float64 {
	if s == SELL {
		return -1
	}
	return 1
}

type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Snapshot holds every derived metric at one bar index.
type Snapshot struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`

	RSI                 float64 `json:"rsi"`
	TrendDirection      int     `json:"trend_direction"`
	TrendStrength       float64 `json:"trend_strength"`
	ATR                 float64 `json:"atr"`
	SuperTrendDirection int     `json:"supertrend_direction"`
	SuperTrendValue     float64 `json:"supertrend_value"`
	SuperTrendUpper     float64 `json:"supertrend_upper"`
	SuperTrendLower     float64 `json:"supertrend_lower"`
	VolumeRatio         float64 `json:"volume_ratio"`
	InGoldenZone        bool    `json:"in_golden_zone"`
	GoldenZoneLow       float64 `json:"golden_zone_low"`
	GoldenZoneHigh      float64 `json:"golden_zone_high"`
	MACDDelta           float64 `json:"macd_delta"`
	BollingerPosition   float64 `json:"bollinger_position"`

	// Ready is false while the bar is still inside the warmup window.
	Ready bool `json:"ready"`
}

type Signal struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss,omitempty"` // 0 = none
	Confidence float64   `json:"confidence"`
	Reasons    []string  `json:"contributing_reasons"`
	Confluence int       `json:"confluence"`
	BarIndex   int       `json:"bar_index"`
	Timestamp  time.Time `json:"timestamp"`
}

type Trade struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	Side       Side       `json:"side"`
	EntryPrice float64    `json:"entry_price"`
	EntryTime  time.Time  `json:"entry_time"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	ExitPrice  float64    `json:"exit_price"`
	ExitTime   time.Time  `json:"exit_time"`
	ExitReason ExitReason `json:"exit_reason"`
	ExitIndex  int        `json:"exit_index"` // index of the exit bar in the replayed slice
	PnLPct     float64    `json:"pnl_pct"`
}

// Closed reports whether the exit fields have been set.
func (t Trade) Closed() bool {
	return t.ExitReason != ""
}

// AccountState is a read-only account snapshot supplied by the account collaborator.
type AccountState struct {
	Balance           float64 `json:"balance"`
	AvailableMargin   float64 `json:"available_margin"`
	OpenPositionCount int     `json:"open_position_count"`
	PeakBalance       float64 `json:"peak_balance"`
	DailyPnL          float64 `json:"daily_pnl"`
}

// Ratio is a float64 that survives a JSON round trip even when it is
// infinite or NaN, which plain encoding/json refuses to encode.
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		switch s {
		case "+Inf", "Inf":
			*r = Ratio(math.Inf(1))
		case "-Inf":
			*r = Ratio(math.Inf(-1))
		case "NaN":
			*r = Ratio(math.NaN())
		default:
			return fmt.Errorf("invalid ratio %q", s)
		}
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid ratio %s: %w", b, err)
	}
	*r = Ratio(f)
	return nil
}
