package report

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/jwtly10/signalbook/internal/logging"
)

var chLog = logging.New("clickhouse")

type ClickHouseConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table" default:"optimization_runs" validate:"required"`
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ClickHouseStore appends one row per optimization run.
type ClickHouseStore struct {
	db    execer
	close func() error
	table string
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("clickhouse dsn is required")
	}
	db, err := sql.Open("clickhouse", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	store := newClickHouseStore(db, cfg.Table)
	store.close = db.Close
	return store, nil
}

func newClickHouseStore(db execer, table string) *ClickHouseStore {
	return &ClickHouseStore{db: db, table: table}
}

var recordColumns = []struct {
	name string
	typ  string
	get  func(Record) any
}{
	{"run_id", "UUID", func(r Record) any { return r.RunID }},
	{"created_at", "DateTime64(3, 'UTC')", func(r Record) any { return r.CreatedAt }},
	{"symbols", "Array(String)", func(r Record) any { return r.Symbols }},
	{"window_from", "DateTime64(3, 'UTC')", func(r Record) any { return r.From }},
	{"window_to", "DateTime64(3, 'UTC')", func(r Record) any { return r.To }},
	{"iterations", "UInt32", func(r Record) any { return uint32(r.Iterations) }},
	{"seed", "UInt64", func(r Record) any { return r.Seed }},
	{"has_best", "Bool", func(r Record) any { return r.HasBest }},
	{"best_iteration", "UInt32", func(r Record) any { return uint32(r.BestIteration) }},
	{"rsi_period", "UInt16", func(r Record) any { return uint16(r.RSIPeriod) }},
	{"short_period", "UInt16", func(r Record) any { return uint16(r.ShortPeriod) }},
	{"long_period", "UInt16", func(r Record) any { return uint16(r.LongPeriod) }},
	{"volume_explosion", "Float64", func(r Record) any { return r.VolumeExplosion }},
	{"rsi_buy_threshold", "Float64", func(r Record) any { return r.RSIBuyThreshold }},
	{"rsi_sell_threshold", "Float64", func(r Record) any { return r.RSISellThreshold }},
	{"min_confidence", "Float64", func(r Record) any { return r.MinConfidence }},
	{"stop_loss_pct", "Float64", func(r Record) any { return r.StopLossPct }},
	{"take_profit_pct", "Float64", func(r Record) any { return r.TakeProfitPct }},
	{"horizon", "UInt16", func(r Record) any { return uint16(r.Horizon) }},
	{"risk_pct", "Float64", func(r Record) any { return r.RiskPct }},
	{"total_trades", "UInt32", func(r Record) any { return uint32(r.TotalTrades) }},
	{"winning_trades", "UInt32", func(r Record) any { return uint32(r.WinningTrades) }},
	{"losing_trades", "UInt32", func(r Record) any { return uint32(r.LosingTrades) }},
	{"win_rate", "Float64", func(r Record) any { return r.WinRate }},
	{"gross_profit_pct", "Float64", func(r Record) any { return r.GrossProfitPct }},
	{"gross_loss_pct", "Float64", func(r Record) any { return r.GrossLossPct }},
	{"profit_factor", "Float64", func(r Record) any { return float64(r.ProfitFactor) }},
	{"sharpe_like", "Float64", func(r Record) any { return r.SharpeLike }},
	{"max_drawdown_pct", "Float64", func(r Record) any { return r.MaxDrawdownPct }},
	{"total_return_pct", "Float64", func(r Record) any { return r.TotalReturnPct }},
	{"score", "Float64", func(r Record) any { return r.Score }},
	{"evaluated", "UInt32", func(r Record) any { return uint32(r.Evaluated) }},
	{"discarded", "UInt32", func(r Record) any { return uint32(r.Discarded) }},
	{"failed", "UInt32", func(r Record) any { return uint32(r.Failed) }},
	{"skipped_symbols", "Array(String)", func(r Record) any { return r.SkippedSymbols }},
	{"stopped", "Bool", func(r Record) any { return r.Stopped }},
}

// CreateTable creates the runs table if it is missing.
func (s *ClickHouseStore) CreateTable(ctx context.Context) error {
	defs := make([]string, len(recordColumns))
	for i, c := range recordColumns {
		defs[i] = c.name + " " + c.typ
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n) ENGINE = MergeTree ORDER BY (created_at, run_id)",
		s.table, strings.Join(defs, ",\n  "))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *ClickHouseStore) Insert(ctx context.Context, rec Record) error {
	names := make([]string, len(recordColumns))
	marks := make([]string, len(recordColumns))
	args := make([]any, len(recordColumns))
	for i, c := range recordColumns {
		names[i] = c.name
		marks[i] = "?"
		args[i] = c.get(rec)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.table, strings.Join(names, ", "), strings.Join(marks, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		chLog.Error("Insert failed", "table", s.table, "run_id", rec.RunID, "error", err)
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}
	chLog.Info("Stored optimization run", "table", s.table, "run_id", rec.RunID)
	return nil
}

func (s *ClickHouseStore) Close() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}
