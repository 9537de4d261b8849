package calculator

import (
	"fmt"

	"github.com/guregu/null/v6"

	"StockWatch/internal/model"
)

// Conventional MACD periods.
const (
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// CalculateMACD computes the MACD line, its signal line and the histogram.
//
// The signal line is the EMA of the MACD line with absent positions read as 0, so early
// signal and histogram values are pulled toward zero. Keep it that way: published history
// depends on it.
func CalculateMACD(values []float64, fast, slow, signal int) (model.MACD, error) {
	if fast < 1 || slow < 1 || signal < 1 {
		return model.MACD{}, fmt.Errorf("%w: macd periods %d/%d/%d", model.ErrInvalidParameter, fast, slow, signal)
	}
	if len(values) == 0 {
		return model.MACD{
			Line:      model.IndicatorSeries{},
			Signal:    model.IndicatorSeries{},
			Histogram: model.IndicatorSeries{},
		}, nil
	}

	emaFast := ema(values, fast)
	emaSlow := ema(values, slow)

	line := make(model.IndicatorSeries, len(values))
	filled := make([]float64, len(values))
	for i := range values {
		if emaFast[i].Valid && emaSlow[i].Valid {
			line[i] = null.FloatFrom(emaFast[i].Float64 - emaSlow[i].Float64)
			filled[i] = line[i].Float64
		}
	}

	sig := ema(filled, signal)

	hist := make(model.IndicatorSeries, len(values))
	for i := range values {
		if line[i].Valid && sig[i].Valid {
			hist[i] = null.FloatFrom(line[i].Float64 - sig[i].Float64)
		}
	}

	return model.MACD{Line: line, Signal: sig, Histogram: hist}, nil
}
