package strategy

import (
	"fmt"

	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
)

// SpotStrategy is a slow trend follower on SMA crossovers with a wide ATR
// bracket, meant for position trades that ride a trend for many bars.
type SpotStrategy struct {
	id     string
	params SpotParams
}

// SpotParams are the tunable knobs for SpotStrategy.
type SpotParams struct {
	FastSMA    int     `json:"fast_sma"`
	SlowSMA    int     `json:"slow_sma"`
	RSIPeriod  int     `json:"rsi_period"`
	RSIMax     float64 `json:"rsi_max"`
	ATRPeriod  int     `json:"atr_period"`
	StopMult   float64 `json:"stop_mult"`
	TargetMult float64 `json:"target_mult"`
}

// DefaultSpotParams returns the stock configuration.
func DefaultSpotParams() SpotParams {
	return SpotParams{
		FastSMA:    20,
		SlowSMA:    50,
		RSIPeriod:  14,
		RSIMax:     70,
		ATRPeriod:  14,
		StopMult:   2.0,
		TargetMult: 3.0,
	}
}

// NewSpotStrategy creates a spot strategy with the given instance ID.
func NewSpotStrategy(id string, params SpotParams) *SpotStrategy {
	return &SpotStrategy{id: id, params: params}
}

func (s *SpotStrategy) ID() string { return s.id }

func (s *SpotStrategy) Name() string {
	return fmt.Sprintf("Spot_SMA%d_SMA%d", s.params.FastSMA, s.params.SlowSMA)
}

func (s *SpotStrategy) Warmup() int {
	n := s.params.SlowSMA
	if s.params.RSIPeriod+1 > n {
		n = s.params.RSIPeriod + 1
	}
	if s.params.ATRPeriod+1 > n {
		n = s.params.ATRPeriod + 1
	}
	return n + 1
}

func (s *SpotStrategy) OnBar(window []market.Bar) (Signal, error) {
	if len(window) < s.Warmup() {
		return Signal{Action: Hold}, nil
	}

	closes := market.Closes(window)
	prev := closes[:len(closes)-1]

	fast := indicators.SMA(closes, s.params.FastSMA)
	slow := indicators.SMA(closes, s.params.SlowSMA)
	prevFast := indicators.SMA(prev, s.params.FastSMA)
	prevSlow := indicators.SMA(prev, s.params.SlowSMA)

	if crossedAbove(prevFast, prevSlow, fast, slow) {
		rsi := indicators.RSI(closes, s.params.RSIPeriod)
		if rsi < s.params.RSIMax {
			stop, target := bracket(window, s.params.ATRPeriod, s.params.StopMult, s.params.TargetMult)
			return Signal{
				Action:      EnterLong,
				StopPrice:   stop,
				TargetPrice: target,
				Reason:      fmt.Sprintf("SMA%d crossed above SMA%d, RSI %.1f", s.params.FastSMA, s.params.SlowSMA, rsi),
			}, nil
		}
		return Signal{Action: Hold}, nil
	}

	if crossedBelow(prevFast, prevSlow, fast, slow) {
		return Signal{
			Action: ExitLong,
			Reason: fmt.Sprintf("SMA%d crossed below SMA%d", s.params.FastSMA, s.params.SlowSMA),
		}, nil
	}

	return Signal{Action: Hold}, nil
}
