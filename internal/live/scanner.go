package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwtly10/signalbook/internal/account"
	"github.com/jwtly10/signalbook/internal/backtest"
	"github.com/jwtly10/signalbook/internal/gateway"
	"github.com/jwtly10/signalbook/internal/indicator"
	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/marketdata"
	"github.com/jwtly10/signalbook/internal/risk"
	"github.com/jwtly10/signalbook/internal/signal"
	"github.com/jwtly10/signalbook/internal/sizing"
	"github.com/jwtly10/signalbook/internal/types"
)

var logger = logging.New("scan")

type Outcome string

const (
	OUTCOME_NO_DATA        Outcome = "NO_DATA"
	OUTCOME_NO_SIGNAL      Outcome = "NO_SIGNAL"
	OUTCOME_BLOCKED        Outcome = "BLOCKED"
	OUTCOME_CLAIMED        Outcome = "CLAIMED"
	OUTCOME_IN_POSITION    Outcome = "IN_POSITION"
	OUTCOME_NOT_VIABLE     Outcome = "NOT_VIABLE"
	OUTCOME_REJECTED       Outcome = "REJECTED"
	OUTCOME_PUBLISHED      Outcome = "PUBLISHED"
	OUTCOME_PUBLISH_FAILED Outcome = "PUBLISH_FAILED"
)

// Recorder receives pipeline events. *metrics.Recorder satisfies it.
type Recorder interface {
	RecordSignal(symbol, decision string)
	RecordSizing(viable bool)
	RecordGate(level string, allowed bool, drawdown float64)
	RecordProposal(symbol string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordSignal(string, string)      {}
func (nopRecorder) RecordSizing(bool)                {}
func (nopRecorder) RecordGate(string, bool, float64) {}
func (nopRecorder) RecordProposal(string, error)     {}

// Deps wires the scanner. Metrics may be nil.
type Deps struct {
	Source     marketdata.BarSource
	Indicators *indicator.Engine
	Scorer     *signal.Scorer
	Sizer      *sizing.Sizer
	Gate       *risk.Gate
	Claims     risk.Claims
	Account    *account.Account
	Publisher  gateway.Publisher
	Simulation backtest.SimConfig
	Metrics    Recorder
}

// Result is what one symbol's pass through the pipeline produced.
type Result struct {
	Symbol     string          `json:"symbol"`
	Outcome    Outcome         `json:"outcome"`
	Decision   signal.Decision `json:"decision,omitempty"`
	Signal     *types.Signal   `json:"signal,omitempty"`
	Risk       *risk.Decision  `json:"risk,omitempty"`
	Sizing     *sizing.Result  `json:"sizing,omitempty"`
	ProposalID string          `json:"proposal_id,omitempty"`
	Closed     int             `json:"closed_positions"`
	Err        string          `json:"error,omitempty"`
}

// Scanner evaluates the latest bar of each symbol once. Scheduling repeated
// scans is left to the caller.
type Scanner struct {
	d   Deps
	now func() time.Time

	mu  sync.Mutex
	day time.Time
}

func NewScanner(d Deps) *Scanner {
	if d.Metrics == nil {
		d.Metrics = nopRecorder{}
	}
	if d.Claims == nil {
		d.Claims = risk.NewMemoryClaims()
	}
	return &Scanner{d: d, now: time.Now}
}

// Scan runs every symbol in order. A failing symbol is reported in its
// Result and never stops the others.
func (s *Scanner) Scan(ctx context.Context, symbols []string) []Result {
	results := make([]Result, 0, len(symbols))
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		results = append(results, s.ScanSymbol(ctx, symbol))
	}
	return results
}

// rollDay resets the account's and the gate's daily PnL the first time it
// sees a new UTC day.
func (s *Scanner) rollDay() {
	today := s.now().UTC().Truncate(24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()
	if today.Equal(s.day) {
		return
	}
	if !s.day.IsZero() {
		logger.Info("New trading day", "day", today.Format(time.DateOnly))
		s.d.Account.ResetDaily()
		s.d.Gate.ResetDaily()
	}
	s.day = today
}

func (s *Scanner) ScanSymbol(ctx context.Context, symbol string) Result {
	res := Result{Symbol: symbol}
	s.rollDay()

	bars, err := s.d.Source.Bars(ctx, symbol, time.Time{}, time.Time{})
	if err != nil || len(bars) == 0 {
		if err == nil {
			err = fmt.Errorf("no bars")
		}
		logger.Warn("Skipping symbol, bar fetch failed", "symbol", symbol, "error", err)
		res.Outcome, res.Err = OUTCOME_NO_DATA, err.Error()
		return res
	}
	last := bars[len(bars)-1]

	// Settle open paper positions against the newest bar before deciding anything new.
	closed := s.d.Account.CheckExits(symbol, last)
	res.Closed = len(closed)

	snap := s.d.Indicators.Latest(bars)
	sig, decision := s.d.Scorer.Score(symbol, snap)
	res.Decision = decision
	s.d.Metrics.RecordSignal(symbol, string(decision))
	if sig == nil {
		logger.Debug("No signal", "symbol", symbol, "decision", decision, "ready", snap.Ready)
		res.Outcome = OUTCOME_NO_SIGNAL
		return res
	}
	res.Signal = sig

	s.d.Gate.Sync(s.d.Account.State())
	gate := s.d.Gate.Check()
	res.Risk = &gate
	s.d.Metrics.RecordGate(string(gate.Level), gate.Allowed, s.d.Gate.Drawdown())
	if !gate.Allowed {
		res.Outcome = OUTCOME_BLOCKED
		return res
	}

	release, ok, err := s.d.Claims.Claim(ctx, symbol)
	if err != nil {
		logger.Error("Symbol claim failed", "symbol", symbol, "error", err)
		res.Outcome, res.Err = OUTCOME_CLAIMED, err.Error()
		return res
	}
	if !ok {
		logger.Info("Symbol already has a proposal in flight", "symbol", symbol)
		res.Outcome = OUTCOME_CLAIMED
		return res
	}
	defer release()

	// One position per symbol: a later scan of the same setup must not stack another.
	if s.d.Account.HasOpenPosition(symbol) {
		logger.Info("Symbol already has an open position", "symbol", symbol)
		res.Outcome = OUTCOME_IN_POSITION
		return res
	}

	sized := s.d.Sizer.SizeScaled(*sig, s.d.Account.State(), gate.SizeMultiplier)
	res.Sizing = &sized
	s.d.Metrics.RecordSizing(sized.Viable)
	if !sized.Viable {
		logger.Info("Signal not viable after sizing", "symbol", symbol, "reason", sized.Reason)
		res.Outcome = OUTCOME_NOT_VIABLE
		return res
	}

	_, takeProfit := s.d.Simulation.Levels(sig.Side, sig.EntryPrice)
	pos, err := s.d.Account.OpenPosition(*sig, sized.Units, sized.RequiredCapital, takeProfit)
	if err != nil {
		logger.Warn("Paper account refused position", "symbol", symbol, "error", err)
		res.Outcome, res.Err = OUTCOME_REJECTED, err.Error()
		return res
	}

	proposal := gateway.Proposal{
		ID:         uuid.NewString(),
		Signal:     *sig,
		TakeProfit: takeProfit,
		Sizing:     sized,
		RiskLevel:  string(gate.Level),
		ProposedAt: s.now().UTC(),
	}
	err = s.d.Publisher.Publish(ctx, proposal)
	s.d.Metrics.RecordProposal(symbol, err)
	res.ProposalID = proposal.ID
	if err != nil {
		res.Outcome, res.Err = OUTCOME_PUBLISH_FAILED, err.Error()
		return res
	}

	logger.Info("Published proposal",
		"symbol", symbol,
		"proposal_id", proposal.ID,
		"position_id", pos.ID,
		"side", sig.Side,
		"confidence", sig.Confidence,
		"units", sized.Units)
	res.Outcome = OUTCOME_PUBLISHED
	return res
}
