package indicators

// MACDHist computes the MACD histogram (MACD line minus signal line) at the
// last index of values, using the standard fast/slow/signal EMA periods.
// Returns (0, false) when there is not enough data for the signal line.
func MACDHist(values []float64, fast, slow, signal int) (float64, bool) {
	hist := MACDHistSeries(values, fast, slow, signal)
	if len(hist) == 0 {
		return 0, false
	}
	return hist[len(hist)-1], true
}

// MACDHistSeries computes the MACD histogram at every index where it is
// defined. The result's last element aligns with the last element of values.
func MACDHistSeries(values []float64, fast, slow, signal int) []float64 {
	if fast <= 0 || slow <= fast || signal <= 0 {
		return nil
	}
	if len(values) < slow+signal-1 {
		return nil
	}

	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)

	// Align both series to the slow EMA's first defined index.
	offset := slow - fast
	macd := make([]float64, len(slowEMA))
	for i := range slowEMA {
		macd[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signalEMA := EMASeries(macd, signal)
	if len(signalEMA) == 0 {
		return nil
	}

	hist := make([]float64, len(signalEMA))
	macdOffset := len(macd) - len(signalEMA)
	for i := range signalEMA {
		hist[i] = macd[i+macdOffset] - signalEMA[i]
	}
	return hist
}
