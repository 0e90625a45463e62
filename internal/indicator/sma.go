package indicator

// SMA returns the simple moving average: the arithmetic mean of the last
// period closes. ok is false when len(prices) < period.
func SMA(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), true
}
