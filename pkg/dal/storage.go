package dal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spindleai/spindle/pkg/device"
)

// Repository is the append-only device record history.
type Repository interface {
	// Persist appends one scan's records atomically. Records from two calls
	// never interleave. The scan is recorded even with no records, and a
	// scan id can be persisted only once.
	Persist(ctx context.Context, scanID string, ts time.Time, records []device.Record) error
	// Query returns matching records in write order. With a Limit, the newest
	// matching records are kept.
	Query(ctx context.Context, f Filter) ([]device.Record, error)
	// Scans summarizes the most recent scans, newest first, including scans
	// that found nothing.
	Scans(ctx context.Context, limit int) ([]device.ScanSummary, error)
	Close() error
}

// Filter narrows a Query. Zero fields match everything.
type Filter struct {
	ScanID     string
	Address    string
	RangeLabel string
	Status     string // compared case-insensitively
	Since      time.Time
	Until      time.Time
	Limit      int
}

// Where renders the filter as a SQL predicate over the records table. param
// returns the driver's placeholder for the n-th (1-based) argument.
func (f Filter) Where(param func(n int) string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, param(len(args))))
	}
	if f.ScanID != "" {
		add("scan_id = %s", f.ScanID)
	}
	if f.Address != "" {
		add("ip = %s", f.Address)
	}
	if f.RangeLabel != "" {
		add("subnet = %s", f.RangeLabel)
	}
	if f.Status != "" {
		add("LOWER(status) = %s", strings.ToLower(f.Status))
	}
	if !f.Since.IsZero() {
		add("scanned_at >= %s", f.Since.UTC().UnixNano())
	}
	if !f.Until.IsZero() {
		add("scanned_at <= %s", f.Until.UTC().UnixNano())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
