// Package sweep runs host discovery over the configured address ranges and
// normalizes what it finds into device records.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spindleai/spindle/pkg/config"
	"github.com/spindleai/spindle/pkg/device"
)

// Host is one host as reported by a discovery primitive.
type Host struct {
	Address  string
	Hostname string
	Status   string
}

// Discoverer enumerates the hosts in one address range without port scanning.
// The range specifier is passed through untouched.
type Discoverer interface {
	Discover(ctx context.Context, target string) ([]Host, error)
}

// RangeError records a range that failed during a sweep.
type RangeError struct {
	Range string
	Err   error
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("sweep range %s: %v", e.Range, e.Err)
}

func (e *RangeError) Unwrap() error { return e.Err }

// Result is the scan result set of one sweep. Records keep range order, then
// the order the discoverer reported hosts in.
type Result struct {
	ScanID    string
	Timestamp time.Time
	Records   []device.Record
	Failures  []*RangeError
}

// Partial reports whether at least one range failed.
func (r Result) Partial() bool {
	return len(r.Failures) > 0
}

// Adapter sweeps a list of ranges with a Discoverer.
type Adapter struct {
	discoverer   Discoverer
	rangeTimeout time.Duration
	now          func() time.Time
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithRangeTimeout bounds discovery of each range.
func WithRangeTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.rangeTimeout = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter constructs a sweep adapter over d.
func NewAdapter(d Discoverer, opts ...Option) *Adapter {
	a := &Adapter{discoverer: d, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sweep discovers hosts in every range concurrently. A failing range is
// recorded in Result.Failures and the remaining ranges still contribute
// records. An empty range list is a ConfigurationError and touches no network.
func (a *Adapter) Sweep(ctx context.Context, ranges []string) (Result, error) {
	if len(ranges) == 0 {
		return Result{}, &config.ConfigurationError{Field: "subnets", Reason: "no address ranges to sweep"}
	}

	scanID, err := uuid.NewV7()
	if err != nil {
		return Result{}, fmt.Errorf("generate scan id: %w", err)
	}

	perRange := make([][]Host, len(ranges))
	failures := make([]error, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		i, r := i, r
		g.Go(func() error {
			hosts, err := a.discover(gctx, r)
			if err != nil {
				failures[i] = err
				return nil // one bad range must not abort the others
			}
			perRange[i] = hosts
			return nil
		})
	}
	_ = g.Wait()

	// One timestamp per sweep, taken once every range has finished.
	ts := a.now()
	result := Result{ScanID: scanID.String(), Timestamp: ts}
	for i, r := range ranges {
		if failures[i] != nil {
			result.Failures = append(result.Failures, &RangeError{Range: r, Err: failures[i]})
			continue
		}
		for _, h := range perRange[i] {
			result.Records = append(result.Records, device.Record{
				ScanID:     result.ScanID,
				Timestamp:  ts,
				Address:    h.Address,
				Hostname:   device.NormalizeHostname(h.Hostname),
				Status:     h.Status,
				RangeLabel: r,
			})
		}
	}
	return result, nil
}

func (a *Adapter) discover(ctx context.Context, target string) ([]Host, error) {
	if a.rangeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.rangeTimeout)
		defer cancel()
	}
	return a.discoverer.Discover(ctx, target)
}
