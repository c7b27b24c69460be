// Package db wraps the embedded SQLite store holding users, strategy
// configuration, and the archive of completed runs.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// InsertRun stores the summary row of one run.
func (d *Database) InsertRun(ctx context.Context, r Run) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO runs (
			id, strategy_id, strategy_name, symbol, status, error,
			bars, skipped_signals, params,
			capital_start, capital_end, profit, total_return,
			n_trades, win_rate, max_drawdown, profit_factor, sharpe,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.StrategyID, r.StrategyName, r.Symbol, r.Status, r.Error,
		r.Bars, r.SkippedSignals, r.Params,
		r.CapitalStart, r.CapitalEnd, r.Profit, r.TotalReturn,
		r.Trades, r.WinRate, r.MaxDrawdown, r.ProfitFactor, r.Sharpe,
		r.StartedAt, r.FinishedAt,
	)
	return err
}

const runColumns = `
	id, strategy_id, strategy_name, symbol, status, COALESCE(error, ''),
	bars, COALESCE(skipped_signals, 0), params,
	capital_start, capital_end, profit, total_return,
	n_trades, win_rate, max_drawdown, COALESCE(profit_factor, '0'), COALESCE(sharpe, 0),
	started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var r Run
	err := row.Scan(
		&r.ID, &r.StrategyID, &r.StrategyName, &r.Symbol, &r.Status, &r.Error,
		&r.Bars, &r.SkippedSignals, &r.Params,
		&r.CapitalStart, &r.CapitalEnd, &r.Profit, &r.TotalReturn,
		&r.Trades, &r.WinRate, &r.MaxDrawdown, &r.ProfitFactor, &r.Sharpe,
		&r.StartedAt, &r.FinishedAt,
	)
	return r, err
}

// GetRun returns one run by ID.
func (d *Database) GetRun(ctx context.Context, id string) (*Run, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return &r, nil
}

// ListRuns returns recent runs, newest first, optionally filtered by
// strategy and symbol. Empty filters match everything.
func (d *Database) ListRuns(ctx context.Context, strategyID, symbol string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE (? = '' OR strategy_id = ?)
		  AND (? = '' OR symbol = ?)
		ORDER BY started_at DESC
		LIMIT ?
	`, strategyID, strategyID, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var res []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// InsertRunTrade stores one round trip of a run.
func (d *Database) InsertRunTrade(ctx context.Context, t RunTrade) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO run_trades (run_id, side, qty, entry_price, entry_time, exit_price, exit_time, pnl, fees, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.RunID, t.Side, t.Qty, t.EntryPrice, t.EntryTime, t.ExitPrice, t.ExitTime, t.PnL, t.Fees, t.ExitReason)
	return err
}

// ListRunTrades returns the trades of a run in close order.
func (d *Database) ListRunTrades(ctx context.Context, runID string) ([]RunTrade, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT run_id, side, qty, entry_price, entry_time, exit_price, exit_time, pnl, COALESCE(fees, 0), exit_reason
		FROM run_trades
		WHERE run_id = ?
		ORDER BY exit_time, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run trades: %w", err)
	}
	defer rows.Close()

	var res []RunTrade
	for rows.Next() {
		var t RunTrade
		if err := rows.Scan(&t.RunID, &t.Side, &t.Qty, &t.EntryPrice, &t.EntryTime, &t.ExitPrice, &t.ExitTime, &t.PnL, &t.Fees, &t.ExitReason); err != nil {
			return nil, fmt.Errorf("scan run trade: %w", err)
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// InsertEquityPoint stores one equity sample of a run.
func (d *Database) InsertEquityPoint(ctx context.Context, p EquityPoint) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT OR REPLACE INTO equity_points (run_id, ts, equity)
		VALUES (?, ?, ?)
	`, p.RunID, p.TS, p.Equity)
	return err
}

// ListEquityPoints returns a run's equity curve in time order.
func (d *Database) ListEquityPoints(ctx context.Context, runID string) ([]EquityPoint, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT run_id, ts, equity
		FROM equity_points
		WHERE run_id = ?
		ORDER BY ts
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity points: %w", err)
	}
	defer rows.Close()

	var res []EquityPoint
	for rows.Next() {
		var p EquityPoint
		if err := rows.Scan(&p.RunID, &p.TS, &p.Equity); err != nil {
			return nil, fmt.Errorf("scan equity point: %w", err)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
