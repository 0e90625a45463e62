package monitor

import (
	"stockwatch/internal/indicator"
	"stockwatch/internal/model"
)

// MetricPair selects the (current, previous) sample pair for one alert.
// A nil current means the metric cannot be computed from the available
// data; a nil previous only disables crossover conditions.
//
// The previous sample always comes from history bars, never from state
// persisted between ticks, so a restart cannot produce a phantom
// crossover.
func MetricPair(a *model.AlertDefinition, quote model.Quote, series model.PriceSeries, cur, prev indicator.Set) (current, previous *float64) {
	n := len(series.Bars)

	switch a.Type {
	case model.AlertPrice:
		if n >= 2 {
			previous = ptr(series.Bars[n-2].Close)
		}
		return ptr(quote.Price), previous

	case model.AlertVolume:
		if n >= 2 {
			previous = ptr(float64(series.Bars[n-2].Volume))
		}
		return ptr(float64(quote.Volume)), previous

	case model.AlertChange:
		// Previous sample is yesterday's daily change, derived from bars.
		if n >= 3 && series.Bars[n-3].Close != 0 {
			pct := (series.Bars[n-2].Close - series.Bars[n-3].Close) / series.Bars[n-3].Close * 100
			previous = ptr(pct)
		}
		return ptr(quote.ChangePercent), previous

	case model.AlertTechnical:
		return indicatorMetric(a.Indicator, cur), indicatorMetric(a.Indicator, prev)
	}
	return nil, nil
}

// indicatorMetric picks the scalar an alert compares against its target.
// Bollinger alerts compare against the middle band; the outer bands are
// exposed on the status API but have no dedicated alert form.
func indicatorMetric(t model.IndicatorType, set indicator.Set) *float64 {
	var v indicator.Value
	switch t {
	case model.IndicatorRSI:
		v = set.RSI14
	case model.IndicatorSMA:
		v = set.SMA20
	case model.IndicatorEMA:
		v = set.EMA12
	case model.IndicatorMACD:
		v = set.MACD.Line
	case model.IndicatorBollinger:
		if !set.Bollinger.OK {
			return nil
		}
		return ptr(set.Bollinger.Middle)
	default:
		return nil
	}
	if !v.OK {
		return nil
	}
	return ptr(v.V)
}

func ptr(v float64) *float64 { return &v }
