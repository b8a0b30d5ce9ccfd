// Package schedule runs background sweeps on a cron schedule so history keeps
// accumulating between questions.
package schedule

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spindleai/spindle/pkg/sweep"
)

// SweepRunner runs and persists one sweep.
type SweepRunner interface {
	RunSweep(ctx context.Context) (sweep.Result, error)
}

// Scheduler triggers a runner on a standard five-field cron expression.
type Scheduler struct {
	cron   *cron.Cron
	runner SweepRunner
	logger *zap.Logger
}

// New parses spec and prepares the schedule. Nothing runs until Run.
func New(spec string, runner SweepRunner, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		// Skip a tick when the previous sweep is still running.
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		runner: runner,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running sweep to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("scheduled sweeps started", zap.Time("next", s.cron.Entries()[0].Next))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduled sweeps stopped")
}

func (s *Scheduler) tick() {
	result, err := s.runner.RunSweep(context.Background())
	if err != nil {
		s.logger.Error("scheduled sweep failed", zap.String("scan_id", result.ScanID), zap.Error(err))
		return
	}
	s.logger.Info("scheduled sweep stored",
		zap.String("scan_id", result.ScanID),
		zap.Int("records", len(result.Records)))
}
