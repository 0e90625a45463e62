package indicator

import "math"

// Bands holds the three Bollinger band values.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Bollinger returns Bollinger Bands over the trailing period.
// Middle = SMA(period); the band offset is multiplier times the
// population standard deviation of the trailing window around middle.
// ok is false when len(prices) < period.
func Bollinger(prices []float64, period int, multiplier float64) (Bands, bool) {
	middle, ok := SMA(prices, period)
	if !ok {
		return Bands{}, false
	}

	variance := 0.0
	for _, p := range prices[len(prices)-period:] {
		d := p - middle
		variance += d * d
	}
	stdDev := math.Sqrt(variance / float64(period))

	return Bands{
		Upper:  middle + multiplier*stdDev,
		Middle: middle,
		Lower:  middle - multiplier*stdDev,
	}, true
}
