package indicators

import "math"

// ATR computes the Average True Range over the last period true ranges.
// The three slices must have equal length. Returns 0 when there is not
// enough data (period+1 bars are needed for the first true range).
func ATR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if period <= 0 || n < period+1 || len(highs) != n || len(lows) != n {
		return 0
	}

	sum := 0.0
	for i := n - period; i < n; i++ {
		tr := trueRange(highs[i], lows[i], closes[i-1])
		sum += tr
	}
	return sum / float64(period)
}

func trueRange(high, low, prevClose float64) float64 {
	tr := high - low
	if d := math.Abs(high - prevClose); d > tr {
		tr = d
	}
	if d := math.Abs(low - prevClose); d > tr {
		tr = d
	}
	return tr
}
