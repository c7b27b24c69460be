package strategy

import (
	"fmt"

	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
)

// SniperStrategy waits for a fresh MACD histogram flip to positive while
// RSI is neither washed out nor overbought and price trades above a long
// EMA filter. It exits when the histogram flips back negative.
type SniperStrategy struct {
	id     string
	params SniperParams
}

// SniperParams are the tunable knobs for SniperStrategy.
type SniperParams struct {
	MACDFast   int     `json:"macd_fast"`
	MACDSlow   int     `json:"macd_slow"`
	MACDSignal int     `json:"macd_signal"`
	RSIPeriod  int     `json:"rsi_period"`
	RSIMin     float64 `json:"rsi_min"`
	RSIMax     float64 `json:"rsi_max"`
	TrendEMA   int     `json:"trend_ema"`
	ATRPeriod  int     `json:"atr_period"`
	StopMult   float64 `json:"stop_mult"`
	TargetMult float64 `json:"target_mult"`
}

// DefaultSniperParams returns the stock configuration.
func DefaultSniperParams() SniperParams {
	return SniperParams{
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		RSIPeriod:  14,
		RSIMin:     25,
		RSIMax:     70,
		TrendEMA:   50,
		ATRPeriod:  14,
		StopMult:   1.5,
		TargetMult: 2.25,
	}
}

// NewSniperStrategy creates a sniper strategy with the given instance ID.
func NewSniperStrategy(id string, params SniperParams) *SniperStrategy {
	return &SniperStrategy{id: id, params: params}
}

func (s *SniperStrategy) ID() string { return s.id }

func (s *SniperStrategy) Name() string {
	return fmt.Sprintf("Sniper_MACD%d_%d_%d", s.params.MACDFast, s.params.MACDSlow, s.params.MACDSignal)
}

func (s *SniperStrategy) Warmup() int {
	n := s.params.MACDSlow + s.params.MACDSignal
	if s.params.TrendEMA > n {
		n = s.params.TrendEMA
	}
	if s.params.RSIPeriod+1 > n {
		n = s.params.RSIPeriod + 1
	}
	if s.params.ATRPeriod+1 > n {
		n = s.params.ATRPeriod + 1
	}
	return n + 1
}

func (s *SniperStrategy) OnBar(window []market.Bar) (Signal, error) {
	if len(window) < s.Warmup() {
		return Signal{Action: Hold}, nil
	}

	closes := market.Closes(window)
	hist := indicators.MACDHistSeries(closes, s.params.MACDFast, s.params.MACDSlow, s.params.MACDSignal)
	if len(hist) < 2 {
		return Signal{Action: Hold}, nil
	}
	cur, prev := hist[len(hist)-1], hist[len(hist)-2]

	if prev <= 0 && cur > 0 {
		rsi := indicators.RSI(closes, s.params.RSIPeriod)
		trend := indicators.EMA(closes, s.params.TrendEMA)
		last := closes[len(closes)-1]
		if rsi > s.params.RSIMin && rsi < s.params.RSIMax && last > trend {
			stop, target := bracket(window, s.params.ATRPeriod, s.params.StopMult, s.params.TargetMult)
			return Signal{
				Action:      EnterLong,
				StopPrice:   stop,
				TargetPrice: target,
				Reason:      fmt.Sprintf("MACD hist flipped positive (%.4f), RSI %.1f, above EMA%d", cur, rsi, s.params.TrendEMA),
			}, nil
		}
		return Signal{Action: Hold}, nil
	}

	if prev >= 0 && cur < 0 {
		return Signal{Action: ExitLong, Reason: "MACD hist flipped negative"}, nil
	}

	return Signal{Action: Hold}, nil
}
