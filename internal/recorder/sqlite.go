package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"StockWatch/internal/model"
)

// SQLiteRecorder persists archived snapshots, their candles and raised alerts to SQLite.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so readers (dashboards, the watchlist store) don't block archive writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			symbol       TEXT NOT NULL,
			cycle_id     TEXT NOT NULL,
			fetched_at   INTEGER NOT NULL,
			candles      INTEGER,
			latest_close REAL,
			change_pct   REAL,
			sma20        REAL,
			sma50        REAL,
			ema20        REAL,
			rsi14        REAL,
			macd_line    REAL,
			macd_signal  REAL,
			macd_hist    REAL,
			high_52w     REAL,
			low_52w      REAL,
			position_52w REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_symbol_ts ON snapshots(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT NOT NULL,
			date   TEXT NOT NULL,
			open   REAL,
			high   REAL,
			low    REAL,
			close  REAL,
			volume REAL,
			PRIMARY KEY (symbol, date)
		)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			symbol    TEXT NOT NULL,
			kind      TEXT NOT NULL,
			bar_date  TEXT,
			price     REAL,
			value     REAL,
			detail    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_symbol_ts ON alerts(symbol, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordSnapshot archives the snapshot header and upserts its candles in one transaction.
func (r *SQLiteRecorder) RecordSnapshot(snap *model.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sum := snap.Summary
	_, err = tx.Exec(`INSERT INTO snapshots
		(timestamp, symbol, cycle_id, fetched_at, candles, latest_close, change_pct,
		 sma20, sma50, ema20, rsi14, macd_line, macd_signal, macd_hist,
		 high_52w, low_52w, position_52w)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), snap.Symbol, snap.CycleID, snap.FetchedAt.Unix(),
		len(snap.Series), sum.LatestClose, sum.ChangePct,
		snap.SMA20.Last(), snap.SMA50.Last(), snap.EMA20.Last(), snap.RSI14.Last(),
		snap.MACD.Line.Last(), snap.MACD.Signal.Last(), snap.MACD.Histogram.Last(),
		sum.High52w, sum.Low52w, sum.Position52w,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO candles (symbol, date, open, high, low, close, volume)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT (symbol, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume`)
	if err != nil {
		return fmt.Errorf("prepare candles: %w", err)
	}
	defer stmt.Close()
	for _, c := range snap.Series {
		if _, err := stmt.Exec(snap.Symbol, c.Time.Format("2006-01-02"), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("upsert candle %s: %w", c.Time.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordAlert(alert *model.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO alerts
		(timestamp, symbol, kind, bar_date, price, value, detail)
		VALUES (?,?,?,?,?,?,?)`,
		time.Now().Unix(), alert.Symbol, string(alert.Kind), alert.Time.Format("2006-01-02"),
		alert.Price, alert.Value, alert.Detail,
	)
	return err
}

// History returns the newest archived snapshots for symbol, newest first.
func (r *SQLiteRecorder) History(symbol string, limit int) ([]ArchivedSnapshot, error) {
	rows, err := r.db.Query(`SELECT symbol, cycle_id, fetched_at, candles, latest_close, change_pct,
			sma20, sma50, ema20, rsi14, macd_line, macd_signal, position_52w
		FROM snapshots WHERE symbol = ? ORDER BY id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedSnapshot
	for rows.Next() {
		var a ArchivedSnapshot
		if err := rows.Scan(&a.Symbol, &a.CycleID, &a.FetchedAt, &a.Candles, &a.LatestClose, &a.ChangePct,
			&a.SMA20, &a.SMA50, &a.EMA20, &a.RSI14, &a.MACDLine, &a.MACDSignal, &a.Position52w); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
