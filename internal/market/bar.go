// Package market holds the historical bar domain: OHLCV bars, ordered
// per-symbol series, CSV loading, and synthetic dataset generation.
package market

import (
	"fmt"
	"time"
)

// Bar is one OHLCV sample for a symbol at a timestamp. Bars are immutable
// once produced; the engine and strategies must never modify them.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Series is a strictly time-ordered sequence of bars for one symbol.
// Missing bars are simply absent; the series is gap-tolerant.
type Series struct {
	Symbol string
	Bars   []Bar
}

// DataError reports a malformed or out-of-order bar along with the offending
// timestamp. It aborts only the run that consumed the series.
type DataError struct {
	Symbol    string
	Timestamp time.Time
	Reason    string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("bad bar for %s at %s: %s", e.Symbol, e.Timestamp.Format(time.RFC3339), e.Reason)
}

// Validate checks that timestamps are strictly increasing and that all price
// and volume fields are non-negative. It returns a *DataError describing the
// first offending bar.
func (s *Series) Validate() error {
	var prev time.Time
	for i, b := range s.Bars {
		if i > 0 && !b.Timestamp.After(prev) {
			return &DataError{Symbol: s.Symbol, Timestamp: b.Timestamp, Reason: "timestamp not strictly increasing"}
		}
		if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 {
			return &DataError{Symbol: s.Symbol, Timestamp: b.Timestamp, Reason: "negative price"}
		}
		if b.Volume < 0 {
			return &DataError{Symbol: s.Symbol, Timestamp: b.Timestamp, Reason: "negative volume"}
		}
		if b.High < b.Low {
			return &DataError{Symbol: s.Symbol, Timestamp: b.Timestamp, Reason: "high below low"}
		}
		prev = b.Timestamp
	}
	return nil
}

// Closes returns the close prices of the given bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volumes of the given bars.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
