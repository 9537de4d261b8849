package collector

import (
	"context"

	"StockWatch/internal/model"
)

// Fetcher retrieves the raw daily table for one symbol.
// Implementations wrap every failure with model.ErrDataSource.
type Fetcher interface {
	FetchDailySeries(ctx context.Context, symbol string) (model.RawTable, error)
	Name() string
}
