package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// Snapshot is one internally consistent bundle of a series and its indicators.
// A published Snapshot is never mutated; readers that need to modify it call Clone.
type Snapshot struct {
	Symbol    string          `json:"symbol"`
	Series    Series          `json:"series"`
	SMA20     IndicatorSeries `json:"sma20"`
	SMA50     IndicatorSeries `json:"sma50"`
	EMA20     IndicatorSeries `json:"ema20"`
	RSI14     IndicatorSeries `json:"rsi14"`
	MACD      MACD            `json:"macd"`
	Summary   Summary         `json:"summary"`
	CycleID   string          `json:"cycle_id"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Series = append(Series(nil), s.Series...)
	cp.SMA20 = cloneIndicator(s.SMA20)
	cp.SMA50 = cloneIndicator(s.SMA50)
	cp.EMA20 = cloneIndicator(s.EMA20)
	cp.RSI14 = cloneIndicator(s.RSI14)
	cp.MACD = MACD{
		Line:      cloneIndicator(s.MACD.Line),
		Signal:    cloneIndicator(s.MACD.Signal),
		Histogram: cloneIndicator(s.MACD.Histogram),
	}
	return &cp
}

func cloneIndicator(in IndicatorSeries) IndicatorSeries {
	if in == nil {
		return nil
	}
	return append(IndicatorSeries(make([]null.Float, 0, len(in))), in...)
}
