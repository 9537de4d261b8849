package strategy

import (
	"fmt"

	"StockWatch/internal/model"
)

// lastTwo returns the two newest values when both are present.
func lastTwo(s model.IndicatorSeries) (prev, last float64, ok bool) {
	n := len(s)
	if n < 2 || !s[n-2].Valid || !s[n-1].Valid {
		return 0, 0, false
	}
	return s[n-2].Float64, s[n-1].Float64, true
}

// ruleRSI fires when RSI crosses into overbought or oversold territory on the newest bar.
func (r Rules) ruleRSI(snap *model.Snapshot) (model.AlertKind, float64, string, bool) {
	prev, last, ok := lastTwo(snap.RSI14)
	if !ok {
		return "", 0, "", false
	}
	switch {
	case prev < r.Overbought && last >= r.Overbought:
		return model.AlertOverbought, last, fmt.Sprintf("RSI14 %.1f → %.1f (≥ %.0f)", prev, last, r.Overbought), true
	case prev > r.Oversold && last <= r.Oversold:
		return model.AlertOversold, last, fmt.Sprintf("RSI14 %.1f → %.1f (≤ %.0f)", prev, last, r.Oversold), true
	}
	return "", 0, "", false
}

// ruleMACD fires when the MACD histogram changes sign.
func (r Rules) ruleMACD(snap *model.Snapshot) (model.AlertKind, float64, string, bool) {
	prev, last, ok := lastTwo(snap.MACD.Histogram)
	if !ok {
		return "", 0, "", false
	}
	switch {
	case prev <= 0 && last > 0:
		return model.AlertMACDBullish, last, fmt.Sprintf("histogram %+.3f → %+.3f", prev, last), true
	case prev >= 0 && last < 0:
		return model.AlertMACDBearish, last, fmt.Sprintf("histogram %+.3f → %+.3f", prev, last), true
	}
	return "", 0, "", false
}

// ruleCross fires when SMA20 crosses SMA50.
func (r Rules) ruleCross(snap *model.Snapshot) (model.AlertKind, float64, string, bool) {
	fastPrev, fastLast, ok1 := lastTwo(snap.SMA20)
	slowPrev, slowLast, ok2 := lastTwo(snap.SMA50)
	if !ok1 || !ok2 {
		return "", 0, "", false
	}
	before, after := fastPrev-slowPrev, fastLast-slowLast
	switch {
	case before <= 0 && after > 0:
		return model.AlertGoldenCross, after, fmt.Sprintf("SMA20 %.2f over SMA50 %.2f", fastLast, slowLast), true
	case before >= 0 && after < 0:
		return model.AlertDeathCross, after, fmt.Sprintf("SMA20 %.2f under SMA50 %.2f", fastLast, slowLast), true
	}
	return "", 0, "", false
}
