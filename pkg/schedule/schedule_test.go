package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/spindleai/spindle/pkg/sweep"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (c *countingRunner) RunSweep(ctx context.Context) (sweep.Result, error) {
	c.calls.Add(1)
	return sweep.Result{ScanID: "scheduled"}, c.err
}

func TestSchedulerRunsUntilCancelled(t *testing.T) {
	runner := &countingRunner{}
	s, err := New("@every 1s", runner, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerSurvivesRunnerErrors(t *testing.T) {
	runner := &countingRunner{err: errors.New("disk full")}
	s, err := New("@every 1s", runner, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runner.calls.Load() >= 2 }, 4*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("not a schedule", &countingRunner{}, nil)
	assert.Error(t, err)
}
