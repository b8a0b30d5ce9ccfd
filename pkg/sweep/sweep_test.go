package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ullaakut/nmap/v3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/spindleai/spindle/pkg/config"
	"github.com/spindleai/spindle/pkg/device"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeDiscoverer struct {
	hosts map[string][]Host
	errs  map[string]error
	calls atomic.Int32
	delay time.Duration
}

func (f *fakeDiscoverer) Discover(ctx context.Context, target string) ([]Host, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[target]; err != nil {
		return nil, err
	}
	return f.hosts[target], nil
}

var fixedNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func TestSweepNormalizesRecords(t *testing.T) {
	d := &fakeDiscoverer{hosts: map[string][]Host{
		"10.0.0.0/24": {
			{Address: "10.0.0.2", Hostname: "", Status: "up"},
			{Address: "10.0.0.3", Hostname: "printer", Status: "down"},
		},
		"10.0.1.0/24": {
			{Address: "10.0.1.9", Hostname: "nas", Status: "filtered"},
		},
	}}
	a := NewAdapter(d, WithClock(func() time.Time { return fixedNow }))

	res, err := a.Sweep(context.Background(), []string{"10.0.0.0/24", "10.0.1.0/24"})
	require.NoError(t, err)
	require.NotEmpty(t, res.ScanID)
	assert.False(t, res.Partial())
	assert.Equal(t, fixedNow, res.Timestamp)

	want := []device.Record{
		{ScanID: res.ScanID, Timestamp: fixedNow, Address: "10.0.0.2", Hostname: device.UnknownHostname, Status: "up", RangeLabel: "10.0.0.0/24"},
		{ScanID: res.ScanID, Timestamp: fixedNow, Address: "10.0.0.3", Hostname: "printer", Status: "down", RangeLabel: "10.0.0.0/24"},
		{ScanID: res.ScanID, Timestamp: fixedNow, Address: "10.0.1.9", Hostname: "nas", Status: "filtered", RangeLabel: "10.0.1.0/24"},
	}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestSweepSkipsFailedRange(t *testing.T) {
	boom := errors.New("permission denied")
	d := &fakeDiscoverer{
		hosts: map[string][]Host{"10.0.1.0/24": {{Address: "10.0.1.1", Hostname: "gw", Status: "up"}}},
		errs:  map[string]error{"bogus": boom},
	}
	a := NewAdapter(d)

	res, err := a.Sweep(context.Background(), []string{"bogus", "10.0.1.0/24"})
	require.NoError(t, err)
	require.True(t, res.Partial())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "bogus", res.Failures[0].Range)
	assert.ErrorIs(t, res.Failures[0], boom)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "10.0.1.0/24", res.Records[0].RangeLabel)
}

func TestSweepAllRangesFailYieldsEmptyResult(t *testing.T) {
	d := &fakeDiscoverer{errs: map[string]error{"a": errors.New("x"), "b": errors.New("y")}}
	res, err := NewAdapter(d).Sweep(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Len(t, res.Failures, 2)
}

func TestSweepNoRangesIsConfigurationError(t *testing.T) {
	d := &fakeDiscoverer{}
	_, err := NewAdapter(d).Sweep(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))
	assert.Zero(t, d.calls.Load(), "no discovery for an empty range list")
}

func TestSweepRangeTimeout(t *testing.T) {
	d := &fakeDiscoverer{delay: time.Second}
	a := NewAdapter(d, WithRangeTimeout(10*time.Millisecond))

	res, err := a.Sweep(context.Background(), []string{"10.0.0.0/24"})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0], context.DeadlineExceeded)
}

func TestSweepDistinctScanIDs(t *testing.T) {
	a := NewAdapter(&fakeDiscoverer{})
	first, err := a.Sweep(context.Background(), []string{"r"})
	require.NoError(t, err)
	second, err := a.Sweep(context.Background(), []string{"r"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ScanID, second.ScanID)
}

func TestHostFields(t *testing.T) {
	h := nmap.Host{
		Addresses: []nmap.Address{
			{Addr: "AA:BB:CC:DD:EE:FF", AddrType: "mac"},
			{Addr: "192.168.1.20", AddrType: "ipv4"},
		},
		Hostnames: []nmap.Hostname{{Name: ""}, {Name: "laptop.lan"}},
	}
	assert.Equal(t, "192.168.1.20", hostAddress(h))
	assert.Equal(t, "laptop.lan", hostName(h))

	assert.Equal(t, "", hostName(nmap.Host{}))
	assert.Equal(t, "", hostAddress(nmap.Host{}))
}
