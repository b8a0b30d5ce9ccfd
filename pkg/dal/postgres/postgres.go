package postgres

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spindleai/spindle/pkg/dal"
	"github.com/spindleai/spindle/pkg/device"
)

type Repository struct {
	pool *pgxpool.Pool
	mu   sync.Mutex
}

var _ dal.Repository = (*Repository)(nil)

// NewRepository wraps an existing pool. Call EnsureSchema before using it.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Open connects, ensures the schema, and returns a ready repository.
func Open(ctx context.Context, connString string) (*Repository, error) {
	pool, err := NewDB(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewRepository(pool), nil
}

// EnsureSchema creates the scans and sweeps tables if they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := `
CREATE TABLE IF NOT EXISTS scans (
  id BIGSERIAL PRIMARY KEY,
  scan_id TEXT NOT NULL,
  scanned_at BIGINT NOT NULL,
  ip TEXT NOT NULL,
  hostname TEXT NOT NULL,
  status TEXT NOT NULL,
  subnet TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS scans_scan_id ON scans (scan_id);
CREATE INDEX IF NOT EXISTS scans_ip ON scans (ip);
CREATE TABLE IF NOT EXISTS sweeps (
  id BIGSERIAL PRIMARY KEY,
  scan_id TEXT NOT NULL UNIQUE,
  scanned_at BIGINT NOT NULL
);`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ERROR creating scans table: %w", err)
	}
	return nil
}

// Persist appends one scan's records in a single transaction. The mutex keeps
// ids for one scan contiguous across concurrent callers.
func (r *Repository) Persist(ctx context.Context, scanID string, ts time.Time, records []device.Record) error {
	if scanID == "" {
		return fmt.Errorf("scan id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin scan insert: %w", err)
	}
	defer tx.Rollback(ctx)

	scannedAt := ts.UTC().UnixNano()
	if _, err := tx.Exec(ctx,
		`INSERT INTO sweeps (scan_id, scanned_at) VALUES ($1, $2);`, scanID, scannedAt); err != nil {
		return fmt.Errorf("record scan %s: %w", scanID, err)
	}

	const query = `
INSERT INTO scans (scan_id, scanned_at, ip, hostname, status, subnet)
VALUES ($1, $2, $3, $4, $5, $6);`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query, scanID, scannedAt, rec.Address, device.NormalizeHostname(rec.Hostname), rec.Status, rec.RangeLabel)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert scan %s: %w", scanID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit scan %s: %w", scanID, err)
	}
	return nil
}

// Query returns the records matching f in write order.
func (r *Repository) Query(ctx context.Context, f dal.Filter) ([]device.Record, error) {
	where, args := f.Where(func(n int) string { return "$" + strconv.Itoa(n) })
	query := `
SELECT scan_id, scanned_at, ip, hostname, status, subnet
FROM scans ` + where + `
ORDER BY id`
	if f.Limit > 0 {
		// Keep the newest rows, still returned in write order.
		args = append(args, f.Limit)
		query = `
SELECT scan_id, scanned_at, ip, hostname, status, subnet FROM (
  SELECT id, scan_id, scanned_at, ip, hostname, status, subnet
  FROM scans ` + where + `
  ORDER BY id DESC
  LIMIT $` + strconv.Itoa(len(args)) + `
) newest
ORDER BY id`
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var out []device.Record
	for rows.Next() {
		var (
			rec       device.Record
			scannedAt int64
		)
		if err := rows.Scan(&rec.ScanID, &scannedAt, &rec.Address, &rec.Hostname, &rec.Status, &rec.RangeLabel); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Timestamp = time.Unix(0, scannedAt).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
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
  COUNT(s.id) FILTER (WHERE LOWER(s.status) = 'up')
FROM sweeps w
LEFT JOIN scans s ON s.scan_id = w.scan_id
GROUP BY w.id, w.scan_id, w.scanned_at
ORDER BY w.id DESC
LIMIT $1;`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("summarize scans: %w", err)
	}
	defer rows.Close()

	var out []device.ScanSummary
	for rows.Next() {
		var (
			s          device.ScanSummary
			scannedAt  int64
			total, ups int64
		)
		if err := rows.Scan(&s.ScanID, &scannedAt, &total, &ups); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		s.Timestamp = time.Unix(0, scannedAt).UTC()
		s.Records, s.Up = int(total), int(ups)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan summaries: %w", err)
	}
	return out, nil
}

// Close helps when wiring Repository to a lifecycle manager.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// NewDB opens a pgx pool with tuned defaults.
func NewDB(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	// Keep a small, steady pool; one writer at a time anyway.
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}
