package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"backtest-core/internal/backtest"
	"backtest-core/internal/metrics"
	"backtest-core/internal/portfolio"
	"backtest-core/pkg/db"
)

// RunStore archives run results. The summary row is written synchronously
// so lookups see the run immediately; trades and equity points flow
// through the batch writer.
type RunStore struct {
	database *db.Database
	writer   *BatchWriter
}

// NewRunStore creates a store on top of an open database.
func NewRunStore(database *db.Database, batchSize int, flushInterval time.Duration) *RunStore {
	return &RunStore{
		database: database,
		writer:   NewBatchWriter(database.DB, batchSize, flushInterval),
	}
}

// SaveRun archives one run result.
func (s *RunStore) SaveRun(ctx context.Context, res *backtest.RunResult) error {
	paramsJSON, err := json.Marshal(res.Params)
	if err != nil {
		return fmt.Errorf("encode run params: %w", err)
	}

	row := db.Run{
		ID:             res.ID,
		StrategyID:     res.StrategyID,
		StrategyName:   res.StrategyName,
		Symbol:         res.Symbol,
		Status:         res.Status,
		Error:          res.Error,
		Bars:           res.Bars,
		SkippedSignals: res.SkippedSignals,
		Params:         string(paramsJSON),
		CapitalStart:   res.Metrics.CapitalStart,
		CapitalEnd:     res.Metrics.CapitalEnd,
		Profit:         res.Metrics.Profit,
		TotalReturn:    res.Metrics.TotalReturn,
		Trades:         res.Metrics.Trades,
		WinRate:        res.Metrics.WinRate,
		MaxDrawdown:    res.Metrics.MaxDrawdown,
		ProfitFactor:   encodeProfitFactor(res.Metrics.ProfitFactor),
		Sharpe:         res.Metrics.Sharpe,
		StartedAt:      res.StartedAt,
		FinishedAt:     res.FinishedAt,
	}
	if err := s.database.InsertRun(ctx, row); err != nil {
		return fmt.Errorf("insert run %s: %w", res.ID, err)
	}

	for _, t := range res.Trades {
		s.writer.WriteQuery(`
			INSERT INTO run_trades (run_id, side, qty, entry_price, entry_time, exit_price, exit_time, pnl, fees, exit_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, res.ID, t.Side.String(), t.Quantity, t.EntryPrice, t.EntryTime, t.ExitPrice, t.ExitTime, t.PnL, t.Fees, t.ExitReason)
	}
	for _, p := range res.EquityCurve {
		s.writer.WriteQuery(`
			INSERT OR REPLACE INTO equity_points (run_id, ts, equity)
			VALUES (?, ?, ?)
		`, res.ID, p.Timestamp, p.Equity)
	}
	return nil
}

// LoadRun reconstructs a stored run, including trades and equity curve.
func (s *RunStore) LoadRun(ctx context.Context, id string) (*backtest.RunResult, error) {
	row, err := s.database.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &backtest.RunResult{
		ID:             row.ID,
		StrategyID:     row.StrategyID,
		StrategyName:   row.StrategyName,
		Symbol:         row.Symbol,
		Status:         row.Status,
		Error:          row.Error,
		Bars:           row.Bars,
		SkippedSignals: row.SkippedSignals,
		StartedAt:      row.StartedAt,
		FinishedAt:     row.FinishedAt,
	}
	if row.Params != "" {
		if err := json.Unmarshal([]byte(row.Params), &res.Params); err != nil {
			return nil, fmt.Errorf("decode run params: %w", err)
		}
	}

	tradeRows, err := s.database.ListRunTrades(ctx, id)
	if err != nil {
		return nil, err
	}
	res.Trades = make([]portfolio.Trade, 0, len(tradeRows))
	for _, t := range tradeRows {
		res.Trades = append(res.Trades, portfolio.Trade{
			Side:       parseSide(t.Side),
			Quantity:   t.Qty,
			EntryPrice: t.EntryPrice,
			EntryTime:  t.EntryTime,
			ExitPrice:  t.ExitPrice,
			ExitTime:   t.ExitTime,
			PnL:        t.PnL,
			Fees:       t.Fees,
			ExitReason: t.ExitReason,
		})
	}

	pointRows, err := s.database.ListEquityPoints(ctx, id)
	if err != nil {
		return nil, err
	}
	res.EquityCurve = make([]metrics.EquityPoint, 0, len(pointRows))
	for _, p := range pointRows {
		res.EquityCurve = append(res.EquityCurve, metrics.EquityPoint{Timestamp: p.TS, Equity: p.Equity})
	}

	// Derived stats are recomputed rather than stored column by column.
	res.Metrics = metrics.Compute(res.Trades, res.EquityCurve, row.CapitalStart)
	return res, nil
}

// Flush forces buffered trade and equity rows to disk.
func (s *RunStore) Flush() error {
	return s.writer.Flush()
}

// WriterMetrics exposes the batch writer counters.
func (s *RunStore) WriterMetrics() BatchWriterMetrics {
	return s.writer.GetMetrics()
}

// Close flushes and stops the background writer.
func (s *RunStore) Close() error {
	return s.writer.Close()
}

func encodeProfitFactor(f metrics.ProfitFactor) string {
	switch {
	case math.IsInf(float64(f), 1):
		return "inf"
	case math.IsNaN(float64(f)):
		return "nan"
	}
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

func parseSide(s string) portfolio.Side {
	switch s {
	case "LONG":
		return portfolio.Long
	case "SHORT":
		return portfolio.Short
	default:
		return portfolio.Flat
	}
}
