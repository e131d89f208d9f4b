package account

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/types"
)

var logger = logging.New("account")

// Account is a paper account. It books positions against margin, resolves
// exits bar by bar and keeps the equity curve used for drawdown.
type Account struct {
	mu sync.Mutex

	balance  float64
	peak     float64
	dailyPnL float64
	reserved float64
	maxDD    float64

	openPositions  []*Position
	nextPositionID int
}

type Position struct {
	ID         int
	Symbol     string
	OpenTime   time.Time
	Side       types.Side
	EntryPrice float64
	Units      float64
	Margin     float64
	StopLoss   float64
	TakeProfit float64
}

// Trade is a closed position with its cash result.
type Trade struct {
	types.Trade
	PositionID int
	Units      float64
	PnL        float64
}

func NewAccount(initialBalance float64) *Account {
	return &Account{
		balance:        initialBalance,
		peak:           initialBalance,
		openPositions:  []*Position{},
		nextPositionID: 1,
	}
}

// State is the read-only snapshot handed to the risk gate and the sizer.
func (a *Account) State() types.AccountState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return types.AccountState{
		Balance:           a.balance,
		AvailableMargin:   a.balance - a.reserved,
		OpenPositionCount: len(a.openPositions),
		PeakBalance:       a.peak,
		DailyPnL:          a.dailyPnL,
	}
}

func (a *Account) Balance() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// OpenPosition reserves margin for a sized signal. It refuses a position whose
// margin exceeds what is free.
func (a *Account) OpenPosition(sig types.Signal, units, margin, takeProfit float64) (*Position, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if free := a.balance - a.reserved; margin > free {
		return nil, fmt.Errorf("margin %.2f exceeds available %.2f", margin, free)
	}

	pos := &Position{
		ID:         a.nextPositionID,
		Symbol:     sig.Symbol,
		OpenTime:   sig.Timestamp,
		Side:       sig.Side,
		EntryPrice: sig.EntryPrice,
		Units:      units,
		Margin:     margin,
		StopLoss:   sig.StopLoss,
		TakeProfit: takeProfit,
	}
	a.nextPositionID++
	a.reserved += margin
	a.openPositions = append(a.openPositions, pos)

	logger.Info("Opened paper position",
		"id", pos.ID,
		"symbol", pos.Symbol,
		"side", pos.Side,
		"price", pos.EntryPrice,
		"units", units,
		"margin", margin,
		"sl", pos.StopLoss,
		"tp", pos.TakeProfit)

	return pos, nil
}

// CheckExits closes the symbol's positions whose stop or target the bar
// reached. The stop is checked first, so a bar touching both closes at the stop.
func (a *Account) CheckExits(symbol string, bar types.Bar) []Trade {
	a.mu.Lock()
	defer a.mu.Unlock()

	var closedTrades []Trade
	remainingPositions := []*Position{}

	for _, pos := range a.openPositions {
		if pos.Symbol != symbol {
			remainingPositions = append(remainingPositions, pos)
			continue
		}

		price, reason, hit := ExitLevel(pos.Side, pos.StopLoss, pos.TakeProfit, bar)
		if !hit {
			remainingPositions = append(remainingPositions, pos)
			continue
		}

		logger.Debug("Exit level hit", "position_id", pos.ID, "reason", reason, "price", price, "timestamp", bar.Timestamp)
		closedTrades = append(closedTrades, a.closePosition(pos, price, bar.Timestamp, reason))
	}

	a.openPositions = remainingPositions
	return closedTrades
}

// ExitLevel resolves one bar against a stop and a target. A zero level is
// ignored.
func ExitLevel(side types.Side, stopLoss, takeProfit float64, bar types.Bar) (float64, types.ExitReason, bool) {
	if side == types.SELL {
		if stopLoss > 0 && bar.High >= stopLoss {
			return stopLoss, types.EXIT_STOP_LOSS, true
		}
		if takeProfit > 0 && bar.Low <= takeProfit {
			return takeProfit, types.EXIT_TAKE_PROFIT, true
		}
		return 0, "", false
	}

	if stopLoss > 0 && bar.Low <= stopLoss {
		return stopLoss, types.EXIT_STOP_LOSS, true
	}
	if takeProfit > 0 && bar.High >= takeProfit {
		return takeProfit, types.EXIT_TAKE_PROFIT, true
	}
	return 0, "", false
}

func (a *Account) closePosition(pos *Position, exitPrice float64, exitTime time.Time, reason types.ExitReason) Trade {
	sign := pos.Side.Sign()
	pnl := (exitPrice - pos.EntryPrice) * pos.Units * sign

	a.reserved -= pos.Margin
	a.book(pnl)

	logger.Info("Closed paper position",
		"id", pos.ID,
		"symbol", pos.Symbol,
		"exit_price", exitPrice,
		"pnl", pnl,
		"reason", reason,
		"timestamp", exitTime)

	return Trade{
		Trade: types.Trade{
			ID:         uuid.NewString(),
			Symbol:     pos.Symbol,
			Side:       pos.Side,
			EntryPrice: pos.EntryPrice,
			EntryTime:  pos.OpenTime,
			StopLoss:   pos.StopLoss,
			TakeProfit: pos.TakeProfit,
			ExitPrice:  exitPrice,
			ExitTime:   exitTime,
			ExitReason: reason,
			PnLPct:     sign * (exitPrice - pos.EntryPrice) / pos.EntryPrice * 100,
		},
		PositionID: pos.ID,
		Units:      pos.Units,
		PnL:        pnl,
	}
}

// ApplyReturn compounds a percentage return into the balance. This is how a
// sequence of simulated trades becomes an equity curve.
func (a *Account) ApplyReturn(pct float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.book(a.balance * pct / 100)
	return a.balance
}

func (a *Account) book(pnl float64) {
	a.balance += pnl
	a.dailyPnL += pnl
	if a.balance > a.peak {
		a.peak = a.balance
	}
	if a.peak > 0 {
		if dd := (a.peak - a.balance) / a.peak; dd > a.maxDD {
			a.maxDD = dd
		}
	}
}

// MaxDrawdownPct is the deepest peak-to-trough fall seen so far, in percent.
func (a *Account) MaxDrawdownPct() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxDD * 100
}

func (a *Account) ResetDaily() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dailyPnL = 0
}

// HasOpenPosition reports whether a position on symbol is still open.
func (a *Account) HasOpenPosition(symbol string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, pos := range a.openPositions {
		if pos.Symbol == symbol {
			return true
		}
	}
	return false
}

func (a *Account) PositionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.openPositions)
}
