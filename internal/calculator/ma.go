package calculator

import (
	"fmt"

	"github.com/guregu/null/v6"

	"StockWatch/internal/model"
)

// CalculateSMA computes the simple moving average over each trailing window.
// Positions before the first full window are absent. Empty input yields empty output.
func CalculateSMA(values []float64, period int) (model.IndicatorSeries, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: sma period %d", model.ErrInvalidParameter, period)
	}
	out := make(model.IndicatorSeries, len(values))
	for i := range values {
		if i < period-1 {
			continue
		}
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += values[j]
		}
		out[i] = null.FloatFrom(sum / float64(period))
	}
	return out, nil
}

// CalculateEMA computes the exponential moving average seeded with values[0].
// The recurrence runs over the whole input; positions i < period-1 are reported absent,
// except that a single-value input reports its seed.
func CalculateEMA(values []float64, period int) (model.IndicatorSeries, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: ema period %d", model.ErrInvalidParameter, period)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: ema of empty input", model.ErrInvalidParameter)
	}
	if len(values) == 1 {
		return model.IndicatorSeries{null.FloatFrom(values[0])}, nil
	}
	return ema(values, period), nil
}

// ema runs the recurrence for a non-empty input and a valid period.
func ema(values []float64, period int) model.IndicatorSeries {
	k := 2.0 / float64(period+1)
	out := make(model.IndicatorSeries, len(values))
	prev := values[0]
	for i, v := range values {
		if i > 0 {
			prev = v*k + prev*(1-k)
		}
		if i >= period-1 {
			out[i] = null.FloatFrom(prev)
		}
	}
	return out
}
