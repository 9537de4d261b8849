package collector

import (
	"context"
	"sync"
	"time"

	"StockWatch/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price float64
	Days  int
	Raw   model.RawTable // returned as-is when set
	Err   error          // returned instead of data when set

	mu    sync.Mutex
	calls int
}

func (m *MockFetcher) Name() string { return "mock" }

// FetchDailySeries returns Raw, Err, or generated bars ending today.
func (m *MockFetcher) FetchDailySeries(ctx context.Context, _ string) (model.RawTable, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Raw != nil {
		return m.Raw, nil
	}
	days := m.Days
	if days == 0 {
		days = 100
	}
	return generateMockTable(m.Price, days, time.Now()), nil
}

// Calls reports how many fetches were made.
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func generateMockTable(basePrice float64, count int, end time.Time) model.RawTable {
	table := make(model.RawTable, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		table[i] = model.RawEntry{
			Date: end.AddDate(0, 0, -(count - i)).Format("2006-01-02"),
			Fields: map[string]string{
				"1. open":   formatFloat(p * 0.999),
				"2. high":   formatFloat(p * 1.005),
				"3. low":    formatFloat(p * 0.995),
				"4. close":  formatFloat(p),
				"6. volume": "1000000",
			},
		}
	}
	return table
}
