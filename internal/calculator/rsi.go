package calculator

import (
	"fmt"

	"github.com/guregu/null/v6"

	"StockWatch/internal/model"
)

// DefaultRSIPeriod is the conventional RSI lookback.
const DefaultRSIPeriod = 14

// CalculateRSI computes the relative strength index aligned to values.
//
// The first value comes from the raw gain and loss sums over the first `period` changes.
// After that the running gain and loss terms are Wilder-smoothed in place. A zero loss term
// yields 100. Index 0 and indexes 1..period-1 are absent.
func CalculateRSI(values []float64, period int) (model.IndicatorSeries, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: rsi period %d", model.ErrInvalidParameter, period)
	}
	out := make(model.IndicatorSeries, len(values))
	p := float64(period)
	var gains, losses float64
	for i := 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		if i <= period {
			gains += gain
			losses += loss
			if i == period {
				out[i] = null.FloatFrom(relativeStrength(gains/p, losses/p))
			}
			continue
		}

		gains = (gains*(p-1) + gain) / p
		losses = (losses*(p-1) + loss) / p
		out[i] = null.FloatFrom(relativeStrength(gains, losses))
	}
	return out, nil
}

func relativeStrength(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}
