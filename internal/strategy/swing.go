package strategy

import (
	"fmt"

	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
)

// SwingStrategy trades medium-term momentum. It enters long when the fast
// EMA crosses above the slow SMA while RSI sits in a healthy band, and
// exits on the opposite cross. Entries carry an ATR stop and target.
type SwingStrategy struct {
	id     string
	params SwingParams
}

// SwingParams are the tunable knobs for SwingStrategy.
type SwingParams struct {
	FastEMA    int     `json:"fast_ema"`
	SlowSMA    int     `json:"slow_sma"`
	RSIPeriod  int     `json:"rsi_period"`
	RSIMin     float64 `json:"rsi_min"`
	RSIMax     float64 `json:"rsi_max"`
	ATRPeriod  int     `json:"atr_period"`
	StopMult   float64 `json:"stop_mult"`
	TargetMult float64 `json:"target_mult"`
}

// DefaultSwingParams returns the stock configuration.
func DefaultSwingParams() SwingParams {
	return SwingParams{
		FastEMA:    9,
		SlowSMA:    20,
		RSIPeriod:  14,
		RSIMin:     25,
		RSIMax:     65,
		ATRPeriod:  14,
		StopMult:   1.2,
		TargetMult: 2.4,
	}
}

// NewSwingStrategy creates a swing strategy with the given instance ID.
func NewSwingStrategy(id string, params SwingParams) *SwingStrategy {
	return &SwingStrategy{id: id, params: params}
}

func (s *SwingStrategy) ID() string { return s.id }

func (s *SwingStrategy) Name() string {
	return fmt.Sprintf("Swing_EMA%d_SMA%d", s.params.FastEMA, s.params.SlowSMA)
}

func (s *SwingStrategy) Warmup() int {
	n := s.params.SlowSMA
	if s.params.RSIPeriod+1 > n {
		n = s.params.RSIPeriod + 1
	}
	if s.params.ATRPeriod+1 > n {
		n = s.params.ATRPeriod + 1
	}
	// One extra bar so the previous cross side is defined.
	return n + 1
}

func (s *SwingStrategy) OnBar(window []market.Bar) (Signal, error) {
	if len(window) < s.Warmup() {
		return Signal{Action: Hold}, nil
	}

	closes := market.Closes(window)
	prev := closes[:len(closes)-1]

	fast := indicators.EMA(closes, s.params.FastEMA)
	slow := indicators.SMA(closes, s.params.SlowSMA)
	prevFast := indicators.EMA(prev, s.params.FastEMA)
	prevSlow := indicators.SMA(prev, s.params.SlowSMA)

	if crossedAbove(prevFast, prevSlow, fast, slow) {
		rsi := indicators.RSI(closes, s.params.RSIPeriod)
		if rsi > s.params.RSIMin && rsi < s.params.RSIMax {
			stop, target := bracket(window, s.params.ATRPeriod, s.params.StopMult, s.params.TargetMult)
			return Signal{
				Action:      EnterLong,
				StopPrice:   stop,
				TargetPrice: target,
				Reason:      fmt.Sprintf("EMA%d crossed above SMA%d, RSI %.1f", s.params.FastEMA, s.params.SlowSMA, rsi),
			}, nil
		}
		return Signal{Action: Hold}, nil
	}

	if crossedBelow(prevFast, prevSlow, fast, slow) {
		return Signal{
			Action: ExitLong,
			Reason: fmt.Sprintf("EMA%d crossed below SMA%d", s.params.FastEMA, s.params.SlowSMA),
		}, nil
	}

	return Signal{Action: Hold}, nil
}
