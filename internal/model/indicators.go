package model

import "github.com/guregu/null/v6"

// IndicatorSeries is positionally aligned with the Series it was derived from.
// An invalid element marks a warm-up position.
type IndicatorSeries []null.Float

// Present counts the positions that carry a value.
func (s IndicatorSeries) Present() int {
	n := 0
	for _, v := range s {
		if v.Valid {
			n++
		}
	}
	return n
}

// Last returns the newest element, which may be absent.
func (s IndicatorSeries) Last() null.Float {
	if len(s) == 0 {
		return null.Float{}
	}
	return s[len(s)-1]
}

// MACD bundles the MACD line with its signal line and histogram.
type MACD struct {
	Line      IndicatorSeries `json:"line"`
	Signal    IndicatorSeries `json:"signal"`
	Histogram IndicatorSeries `json:"histogram"`
}

// Summary holds headline figures for the newest bar.
type Summary struct {
	LatestClose float64 `json:"latest_close"`
	PrevClose   float64 `json:"prev_close"`
	Change      float64 `json:"change"`
	ChangePct   float64 `json:"change_pct"`
	High52w     float64 `json:"high_52w"`
	Low52w      float64 `json:"low_52w"`
	Position52w float64 `json:"position_52w"` // 0.0 ~ 1.0
	High30d     float64 `json:"high_30d"`
	Low30d      float64 `json:"low_30d"`
	Points      int     `json:"points"`
}
