package model

import "time"

// Candle is one daily OHLCV bar. Candles are immutable once built by the normalizer.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Valid reports whether the bar satisfies low <= open,close <= high with no negative values.
func (c Candle) Valid() bool {
	if c.Open < 0 || c.High < 0 || c.Low < 0 || c.Close < 0 || c.Volume < 0 {
		return false
	}
	if c.Low > c.High {
		return false
	}
	return c.Low <= c.Open && c.Open <= c.High && c.Low <= c.Close && c.Close <= c.High
}

// Series is an ordered run of candles, oldest first, with strictly increasing times.
type Series []Candle

// Closes extracts the closing prices in series order.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, c := range s {
		closes[i] = c.Close
	}
	return closes
}

// Last returns the newest candle.
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// RawEntry is one date-keyed record exactly as a data source delivered it.
type RawEntry struct {
	Date   string
	Fields map[string]string
}

// RawTable keeps raw entries in payload order so duplicate date keys stay visible.
type RawTable []RawEntry
