package strategy

import (
	"fmt"

	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
)

// HybridStrategy requires agreement between MACD momentum and an EMA/SMA
// trend filter. It enters when both turn bullish on the current bar and
// exits as soon as either one flips back.
type HybridStrategy struct {
	id     string
	params HybridParams
}

// HybridParams are the tunable knobs for HybridStrategy.
type HybridParams struct {
	MACDFast   int     `json:"macd_fast"`
	MACDSlow   int     `json:"macd_slow"`
	MACDSignal int     `json:"macd_signal"`
	FastEMA    int     `json:"fast_ema"`
	SlowSMA    int     `json:"slow_sma"`
	ATRPeriod  int     `json:"atr_period"`
	StopMult   float64 `json:"stop_mult"`
	TargetMult float64 `json:"target_mult"`
}

// DefaultHybridParams returns the stock configuration.
func DefaultHybridParams() HybridParams {
	return HybridParams{
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		FastEMA:    9,
		SlowSMA:    20,
		ATRPeriod:  14,
		StopMult:   1.5,
		TargetMult: 2.5,
	}
}

// NewHybridStrategy creates a hybrid strategy with the given instance ID.
func NewHybridStrategy(id string, params HybridParams) *HybridStrategy {
	return &HybridStrategy{id: id, params: params}
}

func (s *HybridStrategy) ID() string { return s.id }

func (s *HybridStrategy) Name() string { return "Hybrid_MACD_Trend" }

func (s *HybridStrategy) Warmup() int {
	n := s.params.MACDSlow + s.params.MACDSignal
	if s.params.SlowSMA > n {
		n = s.params.SlowSMA
	}
	if s.params.ATRPeriod+1 > n {
		n = s.params.ATRPeriod + 1
	}
	return n + 1
}

func (s *HybridStrategy) bullish(closes []float64) (bool, float64) {
	hist, ok := indicators.MACDHist(closes, s.params.MACDFast, s.params.MACDSlow, s.params.MACDSignal)
	if !ok {
		return false, 0
	}
	fast := indicators.EMA(closes, s.params.FastEMA)
	slow := indicators.SMA(closes, s.params.SlowSMA)
	return hist > 0 && fast > slow, hist
}

func (s *HybridStrategy) OnBar(window []market.Bar) (Signal, error) {
	if len(window) < s.Warmup() {
		return Signal{Action: Hold}, nil
	}

	closes := market.Closes(window)
	cur, hist := s.bullish(closes)
	prevOK, _ := s.bullish(closes[:len(closes)-1])

	if cur && !prevOK {
		stop, target := bracket(window, s.params.ATRPeriod, s.params.StopMult, s.params.TargetMult)
		return Signal{
			Action:      EnterLong,
			StopPrice:   stop,
			TargetPrice: target,
			Reason:      fmt.Sprintf("MACD hist %.4f and EMA%d above SMA%d", hist, s.params.FastEMA, s.params.SlowSMA),
		}, nil
	}
	if !cur && prevOK {
		return Signal{Action: ExitLong, Reason: "momentum and trend no longer agree"}, nil
	}

	return Signal{Action: Hold}, nil
}
