// Package backtest replays a bar series through one strategy instance and
// produces the run's trade ledger, equity curve, and performance summary.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"backtest-core/internal/market"
	"backtest-core/internal/metrics"
	"backtest-core/internal/portfolio"
	"backtest-core/internal/strategy"
)

// Run statuses.
const (
	StatusCompleted  = "completed"
	StatusIncomplete = "incomplete"
	StatusFailed     = "failed"
)

// RunResult is everything one run produced. A failed run still carries the
// identifying fields and the error; an incomplete run carries a valid
// partial ledger up to the cancellation point.
type RunResult struct {
	ID             string                `json:"id"`
	StrategyID     string                `json:"strategy_id"`
	StrategyName   string                `json:"strategy_name"`
	Symbol         string                `json:"symbol"`
	Params         Params                `json:"params"`
	Status         string                `json:"status"`
	Error          string                `json:"error,omitempty"`
	Bars           int                   `json:"bars"`
	SkippedSignals int                   `json:"skipped_signals"`
	Trades         []portfolio.Trade     `json:"trades"`
	EquityCurve    []metrics.EquityPoint `json:"equity_curve"`
	Metrics        metrics.Summary       `json:"metrics"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
}

// Run replays the series through strat bar by bar. Protective stops and
// targets are checked against each bar's range before the strategy sees
// it; a bar that fires a protective exit is not shown to the strategy.
// Any position still open after the last bar is closed at its close.
func Run(ctx context.Context, strat strategy.Strategy, series *market.Series, params Params) *RunResult {
	result := &RunResult{
		ID:           uuid.NewString(),
		StrategyID:   strat.ID(),
		StrategyName: strat.Name(),
		Symbol:       series.Symbol,
		Params:       params,
		Trades:       []portfolio.Trade{},
		EquityCurve:  []metrics.EquityPoint{},
		StartedAt:    time.Now().UTC(),
	}

	// A failure mid-run keeps everything recorded up to that bar: trades
	// already closed stay in the ledger alongside the partial equity curve.
	var pf *portfolio.Portfolio
	fail := func(err error) *RunResult {
		result.Status = StatusFailed
		result.Error = err.Error()
		if pf != nil {
			result.Trades = pf.Trades()
		}
		result.FinishedAt = time.Now().UTC()
		result.Metrics = metrics.Compute(result.Trades, result.EquityCurve, params.InitialCash)
		return result
	}

	if err := params.Validate(); err != nil {
		return fail(err)
	}
	if err := series.Validate(); err != nil {
		return fail(err)
	}

	pf = portfolio.New(params.InitialCash, params.FeeRate, params.StopFirst)
	result.Status = StatusCompleted

	for i, bar := range series.Bars {
		if err := ctx.Err(); err != nil {
			result.Status = StatusIncomplete
			result.Error = err.Error()
			break
		}
		result.Bars = i + 1

		// Protective levels act on the bar's range first. When one
		// fires, the strategy sits this bar out.
		if _, exited := pf.CheckProtective(bar); exited {
			result.EquityCurve = append(result.EquityCurve, metrics.EquityPoint{
				Timestamp: bar.Timestamp,
				Equity:    pf.Equity(bar.Close),
			})
			continue
		}

		sig, err := safeOnBar(strat, series.Bars[:i+1])
		if err != nil {
			return fail(fmt.Errorf("strategy %s: %w", strat.ID(), err))
		}

		if err := applySignal(pf, sig, bar, params); err != nil {
			if errors.Is(err, portfolio.ErrInsufficientCash) {
				result.SkippedSignals++
			} else {
				return fail(err)
			}
		}

		result.EquityCurve = append(result.EquityCurve, metrics.EquityPoint{
			Timestamp: bar.Timestamp,
			Equity:    pf.Equity(bar.Close),
		})
	}

	// Close out any remaining exposure at the last processed bar so the
	// ledger never ends with an open position.
	if result.Bars > 0 {
		last := series.Bars[result.Bars-1]
		if _, closed := pf.ForceClose(last); closed && len(result.EquityCurve) > 0 {
			result.EquityCurve[len(result.EquityCurve)-1].Equity = pf.Equity(last.Close)
		}
	}

	result.Trades = pf.Trades()
	result.Metrics = metrics.Compute(result.Trades, result.EquityCurve, params.InitialCash)
	result.FinishedAt = time.Now().UTC()
	return result
}

// applySignal maps a strategy decision onto the portfolio. Re-asserting
// the current side is a no-op; entering against an open position closes
// it first and opens the new side on the same bar.
func applySignal(pf *portfolio.Portfolio, sig strategy.Signal, bar market.Bar, params Params) error {
	open := func(side portfolio.Side) error {
		frac := params.SizeFraction
		if sig.SizeFraction > 0 {
			frac = sig.SizeFraction
		}
		return pf.Open(side, bar.Close, bar.Timestamp, frac, sig.StopPrice, sig.TargetPrice)
	}

	switch sig.Action {
	case strategy.EnterLong:
		switch pf.Position().Side {
		case portfolio.Long:
			return nil
		case portfolio.Short:
			if _, err := pf.Close(bar.Close, bar.Timestamp, portfolio.ExitSignal); err != nil {
				return err
			}
		}
		return open(portfolio.Long)

	case strategy.EnterShort:
		switch pf.Position().Side {
		case portfolio.Short:
			return nil
		case portfolio.Long:
			if _, err := pf.Close(bar.Close, bar.Timestamp, portfolio.ExitSignal); err != nil {
				return err
			}
		}
		return open(portfolio.Short)

	case strategy.ExitLong:
		if pf.Position().Side != portfolio.Long {
			return nil
		}
		_, err := pf.Close(bar.Close, bar.Timestamp, portfolio.ExitSignal)
		return err

	case strategy.ExitShort:
		if pf.Position().Side != portfolio.Short {
			return nil
		}
		_, err := pf.Close(bar.Close, bar.Timestamp, portfolio.ExitSignal)
		return err

	default:
		return nil
	}
}

// safeOnBar shields the engine from a panicking strategy.
func safeOnBar(strat strategy.Strategy, window []market.Bar) (sig strategy.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()
	return strat.OnBar(window)
}
