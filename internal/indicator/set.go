package indicator

import (
	"time"

	"stockwatch/internal/model"
)

// MACDValue holds the MACD components. Signal and Histogram stay absent
// (see MACD) but are kept in the shape so consumers don't invent them.
type MACDValue struct {
	Line      Value `json:"line"`
	Signal    Value `json:"signal"`
	Histogram Value `json:"histogram"`
}

// BandsValue is a Bollinger Bands snapshot with its availability flag.
type BandsValue struct {
	Bands
	OK bool `json:"ok"`
}

// Set is the per-symbol indicator snapshot as of the last bar of the
// series it was computed from. It is derived state, recomputed each
// evaluation cycle; a cached copy must never outlive the configured
// freshness window.
type Set struct {
	Symbol string    `json:"symbol"`
	AsOf   time.Time `json:"as_of"`

	SMA20 Value `json:"sma20"`
	SMA50 Value `json:"sma50"`
	EMA12 Value `json:"ema12"`
	EMA26 Value `json:"ema26"`
	RSI14 Value `json:"rsi14"`

	MACD      MACDValue  `json:"macd"`
	Bollinger BandsValue `json:"bollinger"`
}

// ComputeSet computes the full indicator snapshot for a price series.
// Pass the FULL fetched history: the EMA-family values seed from the
// front of the slice and diverge if the series is truncated.
func ComputeSet(series model.PriceSeries) Set {
	closes := series.Closes()

	set := Set{Symbol: series.Symbol}
	if last, ok := series.Last(); ok {
		set.AsOf = last.Date
	}

	if v, ok := SMA(closes, PeriodSMA20); ok {
		set.SMA20 = value(v)
	}
	if v, ok := SMA(closes, PeriodSMA50); ok {
		set.SMA50 = value(v)
	}
	if v, ok := EMA(closes, PeriodEMA12); ok {
		set.EMA12 = value(v)
	}
	if v, ok := EMA(closes, PeriodEMA26); ok {
		set.EMA26 = value(v)
	}
	if v, ok := RSI(closes, PeriodRSI); ok {
		set.RSI14 = value(v)
	}
	if v, ok := MACD(closes, PeriodEMA12, PeriodEMA26); ok {
		set.MACD.Line = value(v)
	}
	if bands, ok := Bollinger(closes, PeriodBollinger, BollingerMultiplier); ok {
		set.Bollinger = BandsValue{Bands: bands, OK: true}
	}
	return set
}
