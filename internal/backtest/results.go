package backtest

import (
	"fmt"
	"math"

	"github.com/jwtly10/signalbook/internal/types"
)

// Results pairs a run's trades with their statistics for display.
type Results struct {
	Trades []types.Trade
	Result Result
}

func (r Result) Print() {
	fmt.Println("\n=== Backtest Results ===")
	fmt.Printf("Total Trades:     %d\n", r.TotalTrades)
	fmt.Printf("Winning Trades:   %d (%.2f%%)\n", r.WinningTrades, r.WinRate)
	fmt.Printf("Losing Trades:    %d\n\n", r.LosingTrades)

	fmt.Printf("Total Return:     %.2f%%\n", r.TotalReturnPct)
	fmt.Printf("Gross Profit:     %.2f%%\n", r.GrossProfitPct)
	fmt.Printf("Gross Loss:       %.2f%%\n", r.GrossLossPct)
	if math.IsInf(float64(r.ProfitFactor), 1) {
		fmt.Printf("Profit Factor:    inf\n")
	} else {
		fmt.Printf("Profit Factor:    %.2f\n", float64(r.ProfitFactor))
	}
	fmt.Printf("Sharpe-like:      %.3f\n\n", r.SharpeLike)

	fmt.Printf("Max Drawdown:     %.2f%%\n", r.MaxDrawdownPct)
	fmt.Printf("Score:            %.3f\n", r.Score)
}

func (r Results) PrintTrades() {
	fmt.Println("\n=== Trade List ===")
	for i, trade := range r.Trades {
		fmt.Printf("#%d | %s %s | Entry: %.5f | Exit: %.5f | P&L: %.2f%% | %s | %s\n",
			i+1,
			trade.Symbol,
			trade.Side,
			trade.EntryPrice,
			trade.ExitPrice,
			trade.PnLPct,
			trade.ExitReason,
			trade.EntryTime.Format("2006-01-02 15:04"),
		)
	}
}
