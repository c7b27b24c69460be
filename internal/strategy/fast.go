package strategy

import (
	"fmt"

	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
)

// FastStrategy scalps short EMA crossovers, but only when the current bar's
// volume runs above its recent average. Tight ATR brackets keep trades short.
type FastStrategy struct {
	id     string
	params FastParams
}

// FastParams are the tunable knobs for FastStrategy.
type FastParams struct {
	FastEMA    int     `json:"fast_ema"`
	SlowEMA    int     `json:"slow_ema"`
	VolumeSMA  int     `json:"volume_sma"`
	ATRPeriod  int     `json:"atr_period"`
	StopMult   float64 `json:"stop_mult"`
	TargetMult float64 `json:"target_mult"`
}

// DefaultFastParams returns the stock configuration.
func DefaultFastParams() FastParams {
	return FastParams{
		FastEMA:    5,
		SlowEMA:    13,
		VolumeSMA:  20,
		ATRPeriod:  14,
		StopMult:   1.0,
		TargetMult: 1.5,
	}
}

// NewFastStrategy creates a fast strategy with the given instance ID.
func NewFastStrategy(id string, params FastParams) *FastStrategy {
	return &FastStrategy{id: id, params: params}
}

func (s *FastStrategy) ID() string { return s.id }

func (s *FastStrategy) Name() string {
	return fmt.Sprintf("Fast_EMA%d_EMA%d", s.params.FastEMA, s.params.SlowEMA)
}

func (s *FastStrategy) Warmup() int {
	n := s.params.SlowEMA
	if s.params.VolumeSMA > n {
		n = s.params.VolumeSMA
	}
	if s.params.ATRPeriod+1 > n {
		n = s.params.ATRPeriod + 1
	}
	return n + 1
}

func (s *FastStrategy) OnBar(window []market.Bar) (Signal, error) {
	if len(window) < s.Warmup() {
		return Signal{Action: Hold}, nil
	}

	closes := market.Closes(window)
	prev := closes[:len(closes)-1]

	fast := indicators.EMA(closes, s.params.FastEMA)
	slow := indicators.EMA(closes, s.params.SlowEMA)
	prevFast := indicators.EMA(prev, s.params.FastEMA)
	prevSlow := indicators.EMA(prev, s.params.SlowEMA)

	if crossedAbove(prevFast, prevSlow, fast, slow) {
		volumes := market.Volumes(window)
		avgVol := indicators.SMA(volumes, s.params.VolumeSMA)
		curVol := volumes[len(volumes)-1]
		if avgVol > 0 && curVol > avgVol {
			stop, target := bracket(window, s.params.ATRPeriod, s.params.StopMult, s.params.TargetMult)
			return Signal{
				Action:      EnterLong,
				StopPrice:   stop,
				TargetPrice: target,
				Reason:      fmt.Sprintf("EMA%d crossed above EMA%d on %.0f volume", s.params.FastEMA, s.params.SlowEMA, curVol),
			}, nil
		}
		return Signal{Action: Hold}, nil
	}

	if crossedBelow(prevFast, prevSlow, fast, slow) {
		return Signal{
			Action: ExitLong,
			Reason: fmt.Sprintf("EMA%d crossed below EMA%d", s.params.FastEMA, s.params.SlowEMA),
		}, nil
	}

	return Signal{Action: Hold}, nil
}
