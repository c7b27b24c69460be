// Package metrics aggregates closed trades and an equity curve into the
// performance summary attached to every run.
package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"backtest-core/internal/portfolio"
)

// ProfitFactor is gross profit over gross loss. A run with profits and no
// losses has an infinite factor and a run with no realized pnl at all has
// an undefined one; JSON cannot express either as a number, so they marshal
// as the strings "inf" and "nan" and round-trip back to +Inf and NaN. An
// all-losing run keeps the real value 0.
type ProfitFactor float64

// MarshalJSON encodes +Inf as "inf" and NaN as "nan".
func (f ProfitFactor) MarshalJSON() ([]byte, error) {
	switch {
	case math.IsInf(float64(f), 1):
		return []byte(`"inf"`), nil
	case math.IsNaN(float64(f)):
		return []byte(`"nan"`), nil
	}
	return json.Marshal(float64(f))
}

// UnmarshalJSON accepts the sentinel strings and plain numbers.
func (f *ProfitFactor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "inf":
			*f = ProfitFactor(math.Inf(1))
			return nil
		case "nan":
			*f = ProfitFactor(math.NaN())
			return nil
		}
		return fmt.Errorf("invalid profit factor %q", s)
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = ProfitFactor(v)
	return nil
}

// EquityPoint samples total account value after one bar.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// Summary is the full performance readout for one run. Rates and drawdown
// are fractions, not percentages.
type Summary struct {
	CapitalStart float64      `json:"capital_start"`
	CapitalEnd   float64      `json:"capital_end"`
	Profit       float64      `json:"profit"`
	TotalReturn  float64      `json:"total_return"`
	Trades       int          `json:"n_trades"`
	Wins         int          `json:"wins"`
	Losses       int          `json:"losses"`
	WinRate      float64      `json:"win_rate"`
	MaxDrawdown  float64      `json:"max_drawdown"`
	ProfitFactor ProfitFactor `json:"profit_factor"`
	AvgWin       float64      `json:"avg_win"`
	AvgLoss      float64      `json:"avg_loss"`
	AvgHoldSecs  float64      `json:"avg_hold_seconds"`
	Sharpe       float64      `json:"sharpe"`
}

// Compute builds a Summary from closed trades and the per-bar equity
// curve. It is safe on empty inputs: a run with no trades reports zero
// rates and an undefined profit factor.
func Compute(trades []portfolio.Trade, curve []EquityPoint, capitalStart float64) Summary {
	s := Summary{
		CapitalStart: capitalStart,
		CapitalEnd:   capitalStart,
		Trades:       len(trades),
	}
	if len(curve) > 0 {
		s.CapitalEnd = curve[len(curve)-1].Equity
	}
	s.Profit = s.CapitalEnd - s.CapitalStart
	if capitalStart > 0 {
		s.TotalReturn = s.Profit / capitalStart
	}

	grossProfit := 0.0
	grossLoss := 0.0
	held := 0.0
	for _, t := range trades {
		if t.PnL > 0 {
			s.Wins++
			grossProfit += t.PnL
		} else {
			s.Losses++
			grossLoss += -t.PnL
		}
		held += t.HoldDuration().Seconds()
	}
	if len(trades) > 0 {
		s.WinRate = float64(s.Wins) / float64(len(trades))
		s.AvgHoldSecs = held / float64(len(trades))
	}
	if s.Wins > 0 {
		s.AvgWin = grossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = -grossLoss / float64(s.Losses)
	}

	switch {
	case grossLoss > 0:
		s.ProfitFactor = ProfitFactor(grossProfit / grossLoss)
	case grossProfit > 0:
		s.ProfitFactor = ProfitFactor(math.Inf(1))
	default:
		// No realized pnl either way: undefined, not an all-losing 0.
		s.ProfitFactor = ProfitFactor(math.NaN())
	}

	s.MaxDrawdown = maxDrawdown(curve)
	s.Sharpe = sharpe(curve)
	return s
}

// maxDrawdown is the largest peak-to-trough equity decline as a fraction
// of the peak.
func maxDrawdown(curve []EquityPoint) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpe is the annualization-free ratio of mean to stddev of per-bar
// equity returns. Returns 0 for fewer than three points or zero variance.
func sharpe(curve []EquityPoint) float64 {
	if len(curve) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}
