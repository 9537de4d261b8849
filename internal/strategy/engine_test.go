package strategy

import (
	"testing"
	"time"

	"github.com/guregu/null/v6"

	"StockWatch/internal/model"
)

func series(vals ...float64) model.IndicatorSeries {
	out := make(model.IndicatorSeries, len(vals))
	for i, v := range vals {
		out[i] = null.FloatFrom(v)
	}
	return out
}

var absent = null.Float{}

func snapshotWith(mutate func(s *model.Snapshot)) *model.Snapshot {
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	s := &model.Snapshot{
		Symbol: "AAPL",
		Series: model.Series{
			{Time: start, Open: 190, High: 192, Low: 189, Close: 191},
			{Time: start.AddDate(0, 0, 1), Open: 191, High: 195, Low: 190, Close: 194},
		},
		RSI14: series(50, 55),
		SMA20: series(180, 181),
		SMA50: series(175, 176),
		MACD:  model.MACD{Histogram: series(0.5, 0.6)},
	}
	if mutate != nil {
		mutate(s)
	}
	return s
}

func TestEvaluate_Quiet(t *testing.T) {
	if alerts := Evaluate(snapshotWith(nil)); len(alerts) != 0 {
		t.Errorf("expected no alerts, got %+v", alerts)
	}
}

func TestEvaluate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *model.Snapshot)
		want   model.AlertKind
	}{
		{"rsi overbought", func(s *model.Snapshot) { s.RSI14 = series(68, 72) }, model.AlertOverbought},
		{"rsi oversold", func(s *model.Snapshot) { s.RSI14 = series(33, 29) }, model.AlertOversold},
		{"macd bullish", func(s *model.Snapshot) { s.MACD.Histogram = series(-0.2, 0.1) }, model.AlertMACDBullish},
		{"macd bearish", func(s *model.Snapshot) { s.MACD.Histogram = series(0.2, -0.1) }, model.AlertMACDBearish},
		{"golden cross", func(s *model.Snapshot) {
			s.SMA20 = series(174, 177)
			s.SMA50 = series(175, 176)
		}, model.AlertGoldenCross},
		{"death cross", func(s *model.Snapshot) {
			s.SMA20 = series(176, 174)
			s.SMA50 = series(175, 175)
		}, model.AlertDeathCross},
	}
	for _, tt := range tests {
		alerts := Evaluate(snapshotWith(tt.mutate))
		if len(alerts) != 1 {
			t.Errorf("%s: expected 1 alert, got %+v", tt.name, alerts)
			continue
		}
		a := alerts[0]
		if a.Kind != tt.want {
			t.Errorf("%s: kind = %s, want %s", tt.name, a.Kind, tt.want)
		}
		if a.Symbol != "AAPL" || a.Price != 194 || !a.Time.Equal(time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("%s: alert not stamped with the newest bar: %+v", tt.name, a)
		}
	}
}

func TestEvaluate_AlreadyOverboughtDoesNotRefire(t *testing.T) {
	alerts := Evaluate(snapshotWith(func(s *model.Snapshot) { s.RSI14 = series(75, 78) }))
	if len(alerts) != 0 {
		t.Errorf("expected no alert while RSI stays overbought, got %+v", alerts)
	}
}

func TestEvaluate_AbsentValuesSkipRule(t *testing.T) {
	alerts := Evaluate(snapshotWith(func(s *model.Snapshot) {
		s.RSI14 = model.IndicatorSeries{absent, null.FloatFrom(80)}
		s.SMA50 = model.IndicatorSeries{absent, absent}
	}))
	if len(alerts) != 0 {
		t.Errorf("expected absent warm-up values to suppress alerts, got %+v", alerts)
	}
}

func TestEvaluate_CustomRules(t *testing.T) {
	r := Rules{Overbought: 60, Oversold: 40}
	alerts := r.Evaluate(snapshotWith(func(s *model.Snapshot) { s.RSI14 = series(58, 61) }))
	if len(alerts) != 1 || alerts[0].Kind != model.AlertOverbought {
		t.Errorf("custom threshold ignored: %+v", alerts)
	}
}

func TestEvaluate_EmptySnapshot(t *testing.T) {
	if alerts := Evaluate(&model.Snapshot{Symbol: "AAPL"}); alerts != nil {
		t.Errorf("expected nil, got %+v", alerts)
	}
	if alerts := Evaluate(nil); alerts != nil {
		t.Errorf("expected nil for nil snapshot, got %+v", alerts)
	}
}
