package indicator

// MACD returns the MACD line: EMA(fast) - EMA(slow).
// ok is false when the series cannot satisfy the slow EMA.
//
// The signal line and histogram are NOT computed here: they require a
// historical series of MACD values that the engine never accumulates.
// This is a known limitation, carried intentionally — do not "fix" it by
// seeding a signal EMA from invented data.
func MACD(prices []float64, fast, slow int) (float64, bool) {
	emaFast, okFast := EMA(prices, fast)
	emaSlow, okSlow := EMA(prices, slow)
	if !okFast || !okSlow {
		return 0, false
	}
	return emaFast - emaSlow, true
}
