package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		want   float64
	}{
		{"simple", []float64{1, 2, 3, 4, 5}, 5, 3},
		{"tail only", []float64{10, 10, 1, 2, 3}, 3, 2},
		{"insufficient data", []float64{1, 2}, 3, 0},
		{"zero period", []float64{1, 2, 3}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SMA(tt.values, tt.period); got != tt.want {
				t.Fatalf("SMA = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRSI(t *testing.T) {
	// Monotonic rise has no losses, so RSI saturates at 100.
	up := []float64{1, 2, 3, 4, 5, 6}
	if got := RSI(up, 5); got != 100 {
		t.Fatalf("RSI of rising series = %v, want 100", got)
	}

	// Equal gains and losses give RSI 50.
	flat := []float64{10, 11, 10, 11, 10}
	if got := RSI(flat, 4); !almostEqual(got, 50, 1e-9) {
		t.Fatalf("RSI of alternating series = %v, want 50", got)
	}

	if got := RSI([]float64{1, 2}, 5); got != 0 {
		t.Fatalf("RSI with insufficient data = %v, want 0", got)
	}
}

func TestEMA(t *testing.T) {
	// On a constant series the EMA equals the constant.
	constant := []float64{5, 5, 5, 5, 5, 5}
	if got := EMA(constant, 3); !almostEqual(got, 5, 1e-9) {
		t.Fatalf("EMA of constant series = %v, want 5", got)
	}

	// Hand-computed: seed = SMA(1,2,3) = 2, k = 0.5.
	// ema(4) = 4*0.5 + 2*0.5 = 3; ema(5) = 5*0.5 + 3*0.5 = 4.
	values := []float64{1, 2, 3, 4, 5}
	if got := EMA(values, 3); !almostEqual(got, 4, 1e-9) {
		t.Fatalf("EMA = %v, want 4", got)
	}

	if got := EMA([]float64{1, 2}, 3); got != 0 {
		t.Fatalf("EMA with insufficient data = %v, want 0", got)
	}

	series := EMASeries(values, 3)
	want := []float64{2, 3, 4}
	if len(series) != len(want) {
		t.Fatalf("EMASeries length = %d, want %d", len(series), len(want))
	}
	for i := range want {
		if !almostEqual(series[i], want[i], 1e-9) {
			t.Fatalf("EMASeries[%d] = %v, want %v", i, series[i], want[i])
		}
	}
}

func TestMACDHist(t *testing.T) {
	if _, ok := MACDHist([]float64{1, 2, 3}, 12, 26, 9); ok {
		t.Fatal("expected insufficient data for short series")
	}

	// Constant prices keep all EMAs equal, so the histogram is zero.
	constant := make([]float64, 60)
	for i := range constant {
		constant[i] = 100
	}
	hist, ok := MACDHist(constant, 12, 26, 9)
	if !ok {
		t.Fatal("expected enough data for 60 bars")
	}
	if !almostEqual(hist, 0, 1e-9) {
		t.Fatalf("MACD hist of constant series = %v, want 0", hist)
	}

	// A steady uptrend puts the fast EMA above the slow EMA and the MACD
	// line above its own signal, so the histogram should be positive.
	rising := make([]float64, 60)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	hist, ok = MACDHist(rising, 12, 26, 9)
	if !ok || hist <= 0 {
		t.Fatalf("MACD hist of rising series = %v ok=%v, want positive", hist, ok)
	}

	series := MACDHistSeries(rising, 12, 26, 9)
	if len(series) == 0 || series[len(series)-1] != hist {
		t.Fatalf("MACDHistSeries last element %v does not match MACDHist %v", series[len(series)-1], hist)
	}
}

func TestATR(t *testing.T) {
	highs := []float64{10, 12, 11, 13}
	lows := []float64{8, 9, 10, 11}
	closes := []float64{9, 11, 10, 12}

	// True ranges from index 1: max(12-9,|12-9|,|9-9|)=3,
	// max(11-10,|11-11|,|10-11|)=1, max(13-11,|13-10|,|11-10|)=3.
	if got := ATR(highs, lows, closes, 3); !almostEqual(got, 7.0/3.0, 1e-9) {
		t.Fatalf("ATR = %v, want %v", got, 7.0/3.0)
	}

	if got := ATR(highs, lows, closes, 4); got != 0 {
		t.Fatalf("ATR with insufficient data = %v, want 0", got)
	}
	if got := ATR(highs[:2], lows, closes, 2); got != 0 {
		t.Fatalf("ATR with mismatched slices = %v, want 0", got)
	}
}
