// Package ledger persists per-scope download history in SQLite so
// repeated runs skip already-fetched items.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"dyfetch/internal"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

CREATE TABLE IF NOT EXISTS downloads (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  item_id TEXT NOT NULL,
  scope_key TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  downloaded_at TEXT NOT NULL,
  detail TEXT,
  UNIQUE(item_id, scope_key)
);

CREATE INDEX IF NOT EXISTS idx_downloads_scope ON downloads(scope_key);

CREATE TABLE IF NOT EXISTS run_summaries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  total INTEGER NOT NULL,
  success INTEGER NOT NULL,
  failed INTEGER NOT NULL,
  skipped INTEGER NOT NULL
);
`

// SQLiteStore implements the Ledger interface on a local SQLite file.
// All statements are safe for concurrent per-item use.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens the ledger database and ensures the schema exists
func Open(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, internal.NewLedgerError("open", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, internal.NewLedgerError("migrate", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// IsDownloaded reports whether the item is already recorded for the
// given scope namespace
func (s *SQLiteStore) IsDownloaded(ctx context.Context, itemID, scopeKey string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM downloads WHERE item_id = ? AND scope_key = ?`,
		itemID, scopeKey).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, internal.NewLedgerError("lookup", err)
	}
	return true, nil
}

// Record inserts the item for the scope. Re-recording an existing
// (item, scope) pair is a no-op, keeping the original row.
func (s *SQLiteStore) Record(ctx context.Context, itemID, scopeKey string, createdAt time.Time, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO downloads (item_id, scope_key, created_at, downloaded_at, detail)
		 VALUES (?, ?, ?, ?, ?)`,
		itemID, scopeKey, createdAt.Unix(), time.Now().UTC().Format(time.RFC3339), detail)
	if err != nil {
		return internal.NewLedgerError("record", err)
	}
	return nil
}

// HighWaterTime returns the newest created_at recorded for the scope.
// ok is false when the scope has no entries.
func (s *SQLiteStore) HighWaterTime(ctx context.Context, scopeKey string) (time.Time, bool, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM downloads WHERE scope_key = ?`,
		scopeKey).Scan(&max)
	if err != nil {
		return time.Time{}, false, internal.NewLedgerError("high_water", err)
	}
	if !max.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(max.Int64, 0), true, nil
}

// CountForScope returns how many items are recorded for a scope
func (s *SQLiteStore) CountForScope(ctx context.Context, scopeKey string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM downloads WHERE scope_key = ?`, scopeKey).Scan(&n)
	if err != nil {
		return 0, internal.NewLedgerError("count", err)
	}
	return n, nil
}

// RecordRunSummary appends one session's aggregate result
func (s *SQLiteStore) RecordRunSummary(ctx context.Context, startedAt, finishedAt time.Time, result internal.DownloadResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_summaries (started_at, finished_at, total, success, failed, skipped)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		startedAt.UTC().Format(time.RFC3339), finishedAt.UTC().Format(time.RFC3339),
		result.Total, result.Success, result.Failed, result.Skipped)
	if err != nil {
		return internal.NewLedgerError("run_summary", err)
	}
	return nil
}

// Noop is the Ledger used when history is disabled: nothing is ever
// recorded and nothing is ever skipped.
type Noop struct{}

// NewNoop returns a history-disabled ledger
func NewNoop() Noop { return Noop{} }

func (Noop) IsDownloaded(ctx context.Context, itemID, scopeKey string) (bool, error) {
	return false, nil
}

func (Noop) Record(ctx context.Context, itemID, scopeKey string, createdAt time.Time, detail string) error {
	return nil
}

func (Noop) HighWaterTime(ctx context.Context, scopeKey string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
