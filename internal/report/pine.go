package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/types"
)

var pineLog = logging.New("pine")

func allowDump() bool {
	return os.Getenv("DEBUG_DUMP") == "1"
}

// DumpPineScript writes TradingView markers for the trades to path, and to
// stdout when DEBUG_DUMP=1. It does nothing when neither is set.
func DumpPineScript(trades []types.Trade, path string) error {
	if path == "" && !allowDump() {
		return nil
	}

	pineCode := generateTradePinescript(trades)
	if allowDump() {
		pineLog.Info("DEBUG_DUMP=1, dumping pine script to stdout", "trades", len(trades))
		fmt.Println(pineCode)
	}
	if path != "" {
		if err := os.WriteFile(path, []byte(pineCode), 0o644); err != nil {
			return fmt.Errorf("write pine script: %w", err)
		}
		pineLog.Info("Wrote pine script", "path", path, "trades", len(trades))
	}
	return nil
}

// WritePineScript writes the markers to w.
func WritePineScript(w io.Writer, trades []types.Trade) error {
	_, err := io.WriteString(w, generateTradePinescript(trades))
	return err
}

// generateTradePinescript emits an entry and exit label per trade. Trades are
// numbered from 1 in the order given.
func generateTradePinescript(trades []types.Trade) string {
	var sb strings.Builder

	sb.WriteString("// ============================================\n")
	sb.WriteString("// TRADE VALIDATION MARKERS\n")
	sb.WriteString("// ============================================\n\n")

	for i, trade := range trades {
		n := i + 1

		entryText := fmt.Sprintf("#%d %s %s\\nEntry: %.5f\\nTP: %.5f\\nSL: %.5f",
			n, trade.Symbol, trade.Side, trade.EntryPrice, trade.TakeProfit, trade.StopLoss)

		fmt.Fprintf(&sb, "t%d_entry = time == %s\n", n, formatPineTimestamp(trade.EntryTime))
		fmt.Fprintf(&sb, "plotshape(t%d_entry, title=\"#%d %s Entry\", location=location.bottom, color=color.blue, style=shape.labelup, size=size.small, text=\"%s\", textcolor=color.white)\n\n",
			n, n, trade.Side, entryText)

		exitColor := "color.green"
		switch trade.ExitReason {
		case types.EXIT_STOP_LOSS:
			exitColor = "color.red"
		case types.EXIT_TIMEOUT:
			exitColor = "color.gray"
		}
		exitText := fmt.Sprintf("#%d EXIT\\nExit: %.5f\\n%s %.2f%%",
			n, trade.ExitPrice, trade.ExitReason, trade.PnLPct)

		fmt.Fprintf(&sb, "t%d_exit = time == %s\n", n, formatPineTimestamp(trade.ExitTime))
		fmt.Fprintf(&sb, "plotshape(t%d_exit, title=\"#%d EXIT\", location=location.top, color=%s, style=shape.labeldown, size=size.small, text=\"%s\", textcolor=color.white)\n\n",
			n, n, exitColor, exitText)
	}

	return sb.String()
}

func formatPineTimestamp(t time.Time) string {
	utc := t.UTC()
	return fmt.Sprintf("timestamp(\"UTC\", %d, %d, %d, %d, %d)",
		utc.Year(), int(utc.Month()), utc.Day(), utc.Hour(), utc.Minute())
}
