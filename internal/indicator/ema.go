package indicator

// EMA returns the exponential moving average of the series.
// Seed = SMA of the first period closes; multiplier = 2/(period+1);
// EMA[i] = (price[i] - EMA[i-1]) * multiplier + EMA[i-1] thereafter.
// ok is false when len(prices) < period.
//
// Because the seed covers the FIRST period closes, every bar from index 0
// participates in the result: EMA over a truncated tail of a series is
// not the same number as EMA over the full series. Callers must pass the
// full available history, not just the last N bars.
func EMA(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}

	seed := 0.0
	for _, p := range prices[:period] {
		seed += p
	}
	ema := seed / float64(period)

	multiplier := 2.0 / float64(period+1)
	for _, p := range prices[period:] {
		ema = (p-ema)*multiplier + ema
	}
	return ema, true
}
