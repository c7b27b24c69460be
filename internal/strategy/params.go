package strategy

import (
	"encoding/json"
	"fmt"

	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
)

// decodeParams maps a loosely typed parameter map onto a typed params
// struct via a JSON round trip, so YAML numbers land in the right fields.
func decodeParams(raw map[string]interface{}, out interface{}) error {
	if raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode parameters: %w", err)
	}
	return nil
}

// bracket computes an ATR-based stop and target around a long entry price.
// Returns zeros when the ATR is not yet defined.
func bracket(window []market.Bar, atrPeriod int, stopMult, targetMult float64) (stop, target float64) {
	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	for i, b := range window {
		highs[i] = b.High
		lows[i] = b.Low
	}
	atr := indicators.ATR(highs, lows, market.Closes(window), atrPeriod)
	if atr <= 0 {
		return 0, 0
	}
	entry := window[len(window)-1].Close
	return entry - stopMult*atr, entry + targetMult*atr
}

// crossedAbove reports whether fast moved from at-or-below slow to above it
// between the previous and current evaluation.
func crossedAbove(prevFast, prevSlow, fast, slow float64) bool {
	return prevFast <= prevSlow && fast > slow
}

// crossedBelow reports whether fast moved from at-or-above slow to below it.
func crossedBelow(prevFast, prevSlow, fast, slow float64) bool {
	return prevFast >= prevSlow && fast < slow
}
