package calculator

import (
	"math"
	"testing"
	"time"

	"StockWatch/internal/model"
)

func barsFromCloses(closes ...float64) model.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(model.Series, len(closes))
	for i, c := range closes {
		s[i] = model.Candle{Time: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return s
}

func TestSummarize(t *testing.T) {
	s := Summarize(barsFromCloses(100, 110, 90, 105))
	if s.Points != 4 {
		t.Errorf("expected 4 points, got %d", s.Points)
	}
	if s.LatestClose != 105 || s.PrevClose != 90 {
		t.Errorf("expected latest 105 prev 90, got %.2f %.2f", s.LatestClose, s.PrevClose)
	}
	if math.Abs(s.ChangePct-(15.0/90*100)) > 1e-9 {
		t.Errorf("unexpected change pct %.4f", s.ChangePct)
	}
	if s.High52w != 111 || s.Low52w != 89 {
		t.Errorf("expected 52w range 89..111, got %.2f..%.2f", s.Low52w, s.High52w)
	}
	if math.Abs(s.Position52w-(16.0/22)) > 1e-9 {
		t.Errorf("unexpected position %.4f", s.Position52w)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if s := Summarize(nil); s != (model.Summary{}) {
		t.Errorf("expected zero summary, got %+v", s)
	}
}

func TestRangePosition_Clamp(t *testing.T) {
	tests := []struct {
		current, high, low, expected float64
	}{
		{50, 100, 0, 0.5},
		{150, 100, 0, 1},
		{-5, 100, 0, 0},
		{10, 10, 10, 0.5},
	}
	for _, tt := range tests {
		if got := rangePosition(tt.current, tt.high, tt.low); got != tt.expected {
			t.Errorf("rangePosition(%v, %v, %v) = %v, want %v", tt.current, tt.high, tt.low, got, tt.expected)
		}
	}
}
