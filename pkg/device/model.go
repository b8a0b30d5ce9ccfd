package device

import (
	"strings"
	"time"
)

// UnknownHostname is stored when discovery could not resolve a name. Records
// never carry an empty hostname.
const UnknownHostname = "Unknown"

// Status values reported by host discovery. Other values are passed through
// verbatim.
const (
	StatusUp   = "up"
	StatusDown = "down"
)

// TimestampLayout is the wall-clock rendering used in replies and CLI output.
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one observation of one host during one sweep.
type Record struct {
	ScanID     string
	Timestamp  time.Time
	Address    string
	Hostname   string
	Status     string
	RangeLabel string
}

// HasStatus reports whether the record's status matches s, ignoring case.
func (r Record) HasStatus(s string) bool {
	return strings.EqualFold(r.Status, s)
}

// HasHostname reports whether discovery resolved a name for the host. The
// sentinel is matched regardless of case.
func (r Record) HasHostname() bool {
	return r.Hostname != "" && !strings.EqualFold(r.Hostname, UnknownHostname)
}

// NormalizeHostname substitutes the sentinel for an empty name.
func NormalizeHostname(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return UnknownHostname
	}
	return name
}

// ScanSummary aggregates one stored scan.
type ScanSummary struct {
	ScanID    string
	Timestamp time.Time
	Records   int
	Up        int
}
