package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"PortfolioTracker/internal/model"
)

// SQLiteStore persists quotes to a SQLite database. Each batch is written in
// one transaction, which gives readers the same all-or-nothing view as the CSV log.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, policy StartPolicy) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StoreError{Op: "open", Path: dbPath, Err: err}
		}
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode lets the aggregator read while the rotation loop writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if policy == Clear {
		if _, err := db.Exec(`DELETE FROM quotes`); err != nil {
			db.Close()
			return nil, &StoreError{Op: "clear", Path: dbPath, Err: err}
		}
		log.Printf("[INFO] sqlite store cleared on start: %s", dbPath)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quotes (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			symbol    TEXT NOT NULL,
			price     REAL NOT NULL,
			source    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_symbol_ts ON quotes(symbol, timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, batch []model.Quote) error {
	if len(batch) == 0 {
		return nil
	}
	if err := validateBatch(batch); err != nil {
		return &StoreError{Op: "append", Path: s.path, Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "append", Path: s.path, Err: err}
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO quotes (timestamp, symbol, price, source) VALUES (?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return &StoreError{Op: "append", Path: s.path, Err: err}
	}
	defer stmt.Close()

	for _, q := range batch {
		if _, err := stmt.ExecContext(ctx, model.CycleTime(q.Timestamp).Unix(), q.Symbol, q.Price, q.Source); err != nil {
			_ = tx.Rollback()
			return &StoreError{Op: "append", Path: s.path, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "append", Path: s.path, Err: err}
	}
	return nil
}

func (s *SQLiteStore) ReadAll(ctx context.Context) ([]model.Quote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, symbol, price, source FROM quotes ORDER BY symbol, timestamp, id`)
	if err != nil {
		return nil, &StoreError{Op: "read", Path: s.path, Err: err}
	}
	defer rows.Close()

	var out []model.Quote
	for rows.Next() {
		var (
			ts     int64
			q      model.Quote
			source sql.NullString
		)
		if err := rows.Scan(&ts, &q.Symbol, &q.Price, &source); err != nil {
			return nil, &StoreError{Op: "read", Path: s.path, Err: err}
		}
		q.Timestamp = time.Unix(ts, 0).UTC()
		q.Source = source.String
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "read", Path: s.path, Err: err}
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}
