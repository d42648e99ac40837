// Package sqlite provides a SQLite-backed usage ledger.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/flowcanvas/flowcanvas/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_entries (
	id           TEXT PRIMARY KEY,
	identity_key TEXT NOT NULL,
	type         TEXT NOT NULL,
	success      INTEGER NOT NULL,
	metadata     TEXT,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_identity_time
	ON usage_entries (identity_key, created_at);
`

// Driver implements storage.Ledger on SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a SQLite-backed ledger.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes all transactions, which makes the
	// conditional insert in AppendIfUnder a true check-and-insert unit.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Append stores an entry unconditionally.
func (d *Driver) Append(ctx context.Context, entry *storage.Entry) error {
	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO usage_entries (id, identity_key, type, success, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.IdentityKey, entry.Type, boolToInt(entry.Success), metadata, entry.CreatedAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("inserting usage entry: %w", err)
	}
	return nil
}

// CountSuccessful counts successful entries for the identity since the
// given instant.
func (d *Driver) CountSuccessful(ctx context.Context, identityKey string, since time.Time) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_entries
		 WHERE identity_key = ? AND success = 1 AND created_at >= ?`,
		identityKey, since.UTC().Unix(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting usage entries: %w", err)
	}
	return count, nil
}

// AppendIfUnder performs the conditional insert inside a single transaction.
// With one writable connection the transaction is serializable, so two
// concurrent calls for the same identity cannot both pass the count check.
func (d *Driver) AppendIfUnder(ctx context.Context, entry *storage.Entry, since time.Time, limit int) (bool, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_entries
		 WHERE identity_key = ? AND success = 1 AND created_at >= ?`,
		entry.IdentityKey, since.UTC().Unix(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting usage entries: %w", err)
	}

	if count >= limit {
		return false, nil
	}

	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO usage_entries (id, identity_key, type, success, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.IdentityKey, entry.Type, boolToInt(entry.Success), metadata, entry.CreatedAt.UTC().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting usage entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing usage entry: %w", err)
	}
	return true, nil
}

// StatsFor returns the today/this-month/total successful counts.
func (d *Driver) StatsFor(ctx context.Context, identityKey string, now time.Time) (*storage.Stats, error) {
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	stats := &storage.Stats{}
	err := d.db.QueryRowContext(ctx,
		`SELECT
			COUNT(CASE WHEN created_at >= ? THEN 1 END),
			COUNT(CASE WHEN created_at >= ? THEN 1 END),
			COUNT(*)
		 FROM usage_entries
		 WHERE identity_key = ? AND success = 1`,
		dayStart.Unix(), monthStart.Unix(), identityKey,
	).Scan(&stats.Today, &stats.ThisMonth, &stats.Total)
	if err != nil {
		return nil, fmt.Errorf("querying usage stats: %w", err)
	}

	return stats, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

func marshalMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encoding entry metadata: %w", err)
	}
	return string(raw), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
