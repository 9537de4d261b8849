package model

import "time"

// AlertKind identifies which rule produced an alert.
type AlertKind string

const (
	AlertOverbought  AlertKind = "RSI_OVERBOUGHT"
	AlertOversold    AlertKind = "RSI_OVERSOLD"
	AlertMACDBullish AlertKind = "MACD_BULLISH"
	AlertMACDBearish AlertKind = "MACD_BEARISH"
	AlertGoldenCross AlertKind = "GOLDEN_CROSS"
	AlertDeathCross  AlertKind = "DEATH_CROSS"
)

// Alert is a rule firing on the newest bar of a snapshot.
type Alert struct {
	Kind   AlertKind
	Symbol string
	Time   time.Time
	Price  float64
	Value  float64
	Detail string
}
