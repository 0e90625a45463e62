// Package indicator computes technical indicators from close-price
// sequences (ordered oldest → newest).
//
// All functions are pure and deterministic: identical input slices
// produce bit-identical results. A series shorter than an indicator's
// warm-up window yields ok=false rather than an error — callers must
// tolerate warm-up and treat the absent value as "skip", never as zero.
package indicator

// Default periods for the per-symbol snapshot computed each cycle.
const (
	PeriodSMA20     = 20
	PeriodSMA50     = 50
	PeriodEMA12     = 12
	PeriodEMA26     = 26
	PeriodRSI       = 14
	PeriodBollinger = 20

	BollingerMultiplier = 2.0
)

// Value is a computed indicator value. OK is false when the input series
// was too short for the indicator's warm-up window.
type Value struct {
	V  float64 `json:"value"`
	OK bool    `json:"ok"`
}

func value(v float64) Value { return Value{V: v, OK: true} }
