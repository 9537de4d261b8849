package refresher

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"StockWatch/internal/calculator"
	"StockWatch/internal/collector"
	"StockWatch/internal/model"
)

// Indicator periods shown with every snapshot.
const (
	shortSMAPeriod = 20
	longSMAPeriod  = 50
	emaPeriod      = 20
)

// BuildSnapshot normalizes one retrieval and computes every indicator on that same series.
func BuildSnapshot(symbol string, raw model.RawTable, fetchedAt time.Time) (*model.Snapshot, error) {
	series, err := collector.Normalize(raw)
	if err != nil {
		return nil, err
	}
	closes := series.Closes()

	sma20, err := calculator.CalculateSMA(closes, shortSMAPeriod)
	if err != nil {
		return nil, fmt.Errorf("sma%d: %w", shortSMAPeriod, err)
	}
	sma50, err := calculator.CalculateSMA(closes, longSMAPeriod)
	if err != nil {
		return nil, fmt.Errorf("sma%d: %w", longSMAPeriod, err)
	}
	ema20, err := calculator.CalculateEMA(closes, emaPeriod)
	if err != nil {
		return nil, fmt.Errorf("ema%d: %w", emaPeriod, err)
	}
	rsi, err := calculator.CalculateRSI(closes, calculator.DefaultRSIPeriod)
	if err != nil {
		return nil, fmt.Errorf("rsi: %w", err)
	}
	macd, err := calculator.CalculateMACD(closes, calculator.DefaultMACDFast, calculator.DefaultMACDSlow, calculator.DefaultMACDSignal)
	if err != nil {
		return nil, fmt.Errorf("macd: %w", err)
	}

	return &model.Snapshot{
		Symbol:    symbol,
		Series:    series,
		SMA20:     sma20,
		SMA50:     sma50,
		EMA20:     ema20,
		RSI14:     rsi,
		MACD:      macd,
		Summary:   calculator.Summarize(series),
		CycleID:   uuid.NewString(),
		FetchedAt: fetchedAt,
	}, nil
}
