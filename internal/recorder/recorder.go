package recorder

import "StockWatch/internal/model"

// ArchivedSnapshot is one row of the snapshot archive: the newest bar of a snapshot and the
// indicator values on it.
type ArchivedSnapshot struct {
	Symbol      string   `json:"symbol"`
	CycleID     string   `json:"cycle_id"`
	FetchedAt   int64    `json:"fetched_at"` // unix seconds
	Candles     int      `json:"candles"`
	LatestClose float64  `json:"latest_close"`
	ChangePct   float64  `json:"change_pct"`
	SMA20       *float64 `json:"sma20"`
	SMA50       *float64 `json:"sma50"`
	EMA20       *float64 `json:"ema20"`
	RSI14       *float64 `json:"rsi14"`
	MACDLine    *float64 `json:"macd_line"`
	MACDSignal  *float64 `json:"macd_signal"`
	Position52w float64  `json:"position_52w"`
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordSnapshot(snap *model.Snapshot) error
	RecordAlert(alert *model.Alert) error
	Close() error
}
