// Package strategy turns a published snapshot into signal alerts for its newest bar.
package strategy

import "StockWatch/internal/model"

// Rules holds the alert thresholds.
type Rules struct {
	Overbought float64
	Oversold   float64
}

// DefaultRules uses the conventional 70/30 RSI bands.
var DefaultRules = Rules{Overbought: 70, Oversold: 30}

type rule func(r Rules, snap *model.Snapshot) (model.AlertKind, float64, string, bool)

var rules = []rule{Rules.ruleRSI, Rules.ruleMACD, Rules.ruleCross}

// Evaluate applies DefaultRules.
func Evaluate(snap *model.Snapshot) []model.Alert {
	return DefaultRules.Evaluate(snap)
}

// Evaluate returns every alert firing on the newest bar, in rule order.
func (r Rules) Evaluate(snap *model.Snapshot) []model.Alert {
	if snap == nil {
		return nil
	}
	bar, ok := snap.Series.Last()
	if !ok {
		return nil
	}
	var alerts []model.Alert
	for _, fn := range rules {
		kind, value, detail, fired := fn(r, snap)
		if !fired {
			continue
		}
		alerts = append(alerts, model.Alert{
			Kind:   kind,
			Symbol: snap.Symbol,
			Time:   bar.Time,
			Price:  bar.Close,
			Value:  value,
			Detail: detail,
		})
	}
	return alerts
}
