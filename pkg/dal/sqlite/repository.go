package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spindleai/spindle/pkg/dal"
	"github.com/spindleai/spindle/pkg/device"
)

// Repository persists device records in SQLite.
type Repository struct {
	db *sql.DB
	// mu keeps appends single-writer so two scans never interleave.
	mu sync.Mutex
}

var _ dal.Repository = (*Repository)(nil)

// New opens (or creates) the SQLite database at the provided path and ensures
// the schema exists.
func New(path string) (*Repository, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path must not be empty")
	}

	if err := ensureDir(path); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func initSchema(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS scans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_id TEXT NOT NULL,
	scanned_at INTEGER NOT NULL,
	ip TEXT NOT NULL,
	hostname TEXT NOT NULL,
	status TEXT NOT NULL,
	subnet TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS scans_scan_id ON scans (scan_id);
CREATE INDEX IF NOT EXISTS scans_ip ON scans (ip);
CREATE TABLE IF NOT EXISTS sweeps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_id TEXT NOT NULL UNIQUE,
	scanned_at INTEGER NOT NULL
);
`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("error creating schema: %w", err)
	}
	return nil
}

// Persist appends one scan's records in a single transaction. Rows get their
// write order from the autoincrement id. The sweep itself is recorded even
// when it found no hosts.
func (r *Repository) Persist(ctx context.Context, scanID string, ts time.Time, records []device.Record) error {
	if scanID == "" {
		return fmt.Errorf("scan id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning insert: %w", err)
	}
	defer tx.Rollback()

	scannedAt := ts.UTC().UnixNano()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sweeps (scan_id, scanned_at) VALUES (?, ?);`, scanID, scannedAt); err != nil {
		return fmt.Errorf("error recording scan %s: %w", scanID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO scans (scan_id, scanned_at, ip, hostname, status, subnet)
VALUES (?, ?, ?, ?, ?, ?);
`)
	if err != nil {
		return fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			scanID,
			scannedAt,
			rec.Address,
			device.NormalizeHostname(rec.Hostname),
			rec.Status,
			rec.RangeLabel,
		); err != nil {
			return fmt.Errorf("error inserting record %s: %w", rec.Address, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing scan %s: %w", scanID, err)
	}
	return nil
}

// Query returns the records matching f in write order.
func (r *Repository) Query(ctx context.Context, f dal.Filter) ([]device.Record, error) {
	where, args := f.Where(func(int) string { return "?" })
	query := `
SELECT scan_id, scanned_at, ip, hostname, status, subnet
FROM scans ` + where + `
ORDER BY id`
	if f.Limit > 0 {
		// Keep the newest rows, still returned in write order.
		query = `
SELECT scan_id, scanned_at, ip, hostname, status, subnet FROM (
	SELECT id, scan_id, scanned_at, ip, hostname, status, subnet
	FROM scans ` + where + `
	ORDER BY id DESC
	LIMIT ?
) ORDER BY id`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying scans: %w", err)
	}
	defer rows.Close()

	var out []device.Record
	for rows.Next() {
		var (
			rec       device.Record
			scannedAt int64
		)
		if err := rows.Scan(&rec.ScanID, &scannedAt, &rec.Address, &rec.Hostname, &rec.Status, &rec.RangeLabel); err != nil {
			return nil, fmt.Errorf("error reading scan row: %w", err)
		}
		rec.Timestamp = time.Unix(0, scannedAt).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scans: %w", err)
	}
	return out, nil
}

// Scans summarizes the most recent scans, newest first.
func (r *Repository) Scans(ctx context.Context, limit int) ([]device.ScanSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
SELECT w.scan_id, w.scanned_at, COUNT(s.id),
	COALESCE(SUM(CASE WHEN LOWER(s.status) = 'up' THEN 1 ELSE 0 END), 0)
FROM sweeps w
LEFT JOIN scans s ON s.scan_id = w.scan_id
GROUP BY w.id, w.scan_id, w.scanned_at
ORDER BY w.id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error summarizing scans: %w", err)
	}
	defer rows.Close()

	var out []device.ScanSummary
	for rows.Next() {
		var (
			s         device.ScanSummary
			scannedAt int64
		)
		if err := rows.Scan(&s.ScanID, &scannedAt, &s.Records, &s.Up); err != nil {
			return nil, fmt.Errorf("error reading scan summary: %w", err)
		}
		s.Timestamp = time.Unix(0, scannedAt).UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scan summaries: %w", err)
	}
	return out, nil
}

// Close releases the underlying database resources.
func (r *Repository) Close() error {
	return r.db.Close()
}
