package watchlist

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLStore keeps the watchlist in a SQL table, one row per symbol in list order.
// A single-row marker table distinguishes "saved empty" from "never saved".
type SQLStore struct {
	db     *sql.DB
	driver string
}

var schemas = map[string][]string{
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS watchlist (
			position INTEGER PRIMARY KEY,
			symbol   TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS watchlist_saved (
			id       INTEGER PRIMARY KEY CHECK (id = 1),
			saved_at INTEGER NOT NULL
		)`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS watchlist (
			position INTEGER PRIMARY KEY,
			symbol   VARCHAR(32) NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS watchlist_saved (
			id       INTEGER PRIMARY KEY CHECK (id = 1),
			saved_at BIGINT NOT NULL
		)`,
	},
}

// NewSQLiteStore opens (or creates) a SQLite database holding the watchlist.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return newSQLStore(db, "sqlite")
}

// NewPostgresStore connects to PostgreSQL and creates the watchlist tables.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLStore(db, "postgres")
}

func newSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	s := &SQLStore{db: db, driver: driver}
	for _, stmt := range schemas[driver] {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	log.Info().Str("component", "watchlist").Str("driver", driver).Msg("watchlist store opened")
	return s, nil
}

// arg returns the n-th (1-based) placeholder for the store's driver.
func (s *SQLStore) arg(n int) string {
	if s.driver == "postgres" {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (s *SQLStore) Load() ([]string, error) {
	var savedAt int64
	err := s.db.QueryRow(`SELECT saved_at FROM watchlist_saved WHERE id = 1`).Scan(&savedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read marker: %w", err)
	}

	rows, err := s.db.Query(`SELECT symbol FROM watchlist ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	symbols := []string{}
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// Save replaces the stored list in a single transaction.
func (s *SQLStore) Save(symbols []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM watchlist`); err != nil {
		return fmt.Errorf("clear watchlist: %w", err)
	}
	insert := fmt.Sprintf(`INSERT INTO watchlist (position, symbol) VALUES (%s, %s)`, s.arg(1), s.arg(2))
	for i, sym := range symbols {
		if _, err := tx.Exec(insert, i, sym); err != nil {
			return fmt.Errorf("insert %s: %w", sym, err)
		}
	}
	mark := fmt.Sprintf(`INSERT INTO watchlist_saved (id, saved_at) VALUES (1, %s)
		ON CONFLICT (id) DO UPDATE SET saved_at = EXCLUDED.saved_at`, s.arg(1))
	if _, err := tx.Exec(mark, time.Now().Unix()); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
