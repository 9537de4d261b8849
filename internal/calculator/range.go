package calculator

import (
	"math"

	"StockWatch/internal/model"
)

// Trading-day windows for the range figures.
const (
	tradingDays52w = 252
	tradingDays30d = 22
)

// rangeOver scans the most recent `days` bars and returns the high and low.
func rangeOver(series model.Series, days int) (high, low float64) {
	n := len(series)
	start := n - days
	if start < 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < n; i++ {
		if series[i].High > high {
			high = series[i].High
		}
		if series[i].Low < low {
			low = series[i].Low
		}
	}
	return high, low
}

// rangePosition returns where current sits within [low, high], clamped to 0.0~1.0.
func rangePosition(current, high, low float64) float64 {
	if high <= low {
		return 0.5
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos
}

// Summarize derives the headline figures for the newest bar. An empty series yields a zero Summary.
func Summarize(series model.Series) model.Summary {
	last, ok := series.Last()
	if !ok {
		return model.Summary{}
	}
	s := model.Summary{
		LatestClose: last.Close,
		PrevClose:   last.Close,
		Points:      len(series),
	}
	if len(series) > 1 {
		s.PrevClose = series[len(series)-2].Close
	}
	s.Change = s.LatestClose - s.PrevClose
	if s.PrevClose != 0 {
		s.ChangePct = s.Change / s.PrevClose * 100
	}
	s.High52w, s.Low52w = rangeOver(series, tradingDays52w)
	s.High30d, s.Low30d = rangeOver(series, tradingDays30d)
	s.Position52w = rangePosition(last.Close, s.High52w, s.Low52w)
	return s
}
