// Package chat answers free-text questions about the local network. Each
// classified question triggers a fresh sweep whose records are persisted and
// then rendered; anything else goes to the completion fallback.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/spindleai/spindle/pkg/completion"
	"github.com/spindleai/spindle/pkg/compose"
	"github.com/spindleai/spindle/pkg/device"
	"github.com/spindleai/spindle/pkg/intent"
	"github.com/spindleai/spindle/pkg/publish"
	"github.com/spindleai/spindle/pkg/sweep"
)

// Error codes carried next to the reply text. When several apply they are
// joined with commas, storage failure first.
const (
	ErrCodeSweepPartial   = "sweep_partial_failure"
	ErrCodeSweepFailed    = "sweep_failure"
	ErrCodeStorageWrite   = "storage_write_failure"
	ErrCodeFallback       = "fallback_failure"
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeInternal       = "internal_error"
)

// State is a step of request handling.
type State int

const (
	Received State = iota
	Classified
	Scanning
	Persisting
	Composing
	Fallback
	Done
)

var stateNames = [...]string{"received", "classified", "scanning", "persisting", "composing", "fallback", "done"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Sweeper runs one sweep over ranges.
type Sweeper interface {
	Sweep(ctx context.Context, ranges []string) (sweep.Result, error)
}

// RecordWriter appends one scan's records.
type RecordWriter interface {
	Persist(ctx context.Context, scanID string, ts time.Time, records []device.Record) error
}

// Answerer produces reply text for unclassified input. It never returns empty
// text; the error only reports what went wrong.
type Answerer interface {
	Answer(ctx context.Context, prompt string) (string, error)
}

// Reply is the outcome of one request. Response is always set; Error holds
// zero or more comma-separated codes.
type Reply struct {
	Response string
	Error    string
	Intent   intent.Intent
	ScanID   string
}

// StorageWriteError means a sweep completed but its records were not stored.
type StorageWriteError struct {
	ScanID string
	Err    error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("persist scan %s: %v", e.ScanID, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// Config is what the Orchestrator needs from the service configuration.
type Config struct {
	Ranges []string
	// MaxConcurrentSweeps bounds sweeps in flight; zero means unlimited.
	MaxConcurrentSweeps int
}

// Orchestrator sequences classify, sweep, persist and compose per request.
// It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	cfg       Config
	sweeper   Sweeper
	store     RecordWriter
	fallback  Answerer
	publisher publish.Publisher
	sem       *semaphore.Weighted
	logger    *zap.Logger
}

// NewOrchestrator wires the collaborators. publisher and logger may be nil.
func NewOrchestrator(cfg Config, sw Sweeper, store RecordWriter, fb Answerer, pub publish.Publisher, logger *zap.Logger) *Orchestrator {
	if pub == nil {
		pub = publish.NoopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:       cfg,
		sweeper:   sw,
		store:     store,
		fallback:  fb,
		publisher: pub,
		logger:    logger,
	}
	if cfg.MaxConcurrentSweeps > 0 {
		o.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentSweeps))
	}
	return o
}

// Handle answers one message. It always returns a reply with text.
func (o *Orchestrator) Handle(ctx context.Context, message string) (reply Reply) {
	log := o.logger
	defer func() {
		if r := recover(); r != nil {
			log.Error("request panicked", zap.Any("panic", r), zap.Stack("stack"))
			reply = Reply{
				Response: completion.ErrorMessage(fmt.Errorf("internal error: %v", r)),
				Error:    ErrCodeInternal,
				Intent:   reply.Intent,
				ScanID:   reply.ScanID,
			}
		}
		o.enter(log, Done)
	}()

	o.enter(log, Received)
	reply.Intent = intent.Classify(message)
	log = log.With(zap.Stringer("intent", reply.Intent))
	o.enter(log, Classified)

	if !reply.Intent.NeedsSweep() {
		o.enter(log, Fallback)
		text, err := o.fallback.Answer(ctx, message)
		reply.Response = text
		if err != nil {
			reply.Error = ErrCodeFallback
		}
		return reply
	}

	result, err := o.RunSweep(ctx)
	reply.ScanID = result.ScanID
	var (
		storeErr *StorageWriteError
		codes    []string
	)
	switch {
	case errors.As(err, &storeErr):
		// History is incomplete but the in-memory result still answers.
		codes = append(codes, ErrCodeStorageWrite)
	case err != nil:
		log.Error("sweep failed", zap.Error(err))
		reply.Response = completion.ErrorMessage(err)
		reply.Error = ErrCodeSweepFailed
		return reply
	}
	if result.Partial() {
		codes = append(codes, ErrCodeSweepPartial)
	}
	reply.Error = strings.Join(codes, ",")

	o.enter(log, Composing)
	reply.Response = compose.Compose(reply.Intent, result.Records, result.Timestamp)
	return reply
}

// RunSweep sweeps the configured ranges, persists the records and exports the
// scan. Request cancellation does not stop a sweep once it has started. A
// storage failure is returned as *StorageWriteError together with the full
// result.
func (o *Orchestrator) RunSweep(ctx context.Context) (sweep.Result, error) {
	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return sweep.Result{}, fmt.Errorf("wait for sweep slot: %w", err)
		}
		defer o.sem.Release(1)
	}

	ctx = context.WithoutCancel(ctx)
	o.enter(o.logger, Scanning)
	start := time.Now()
	result, err := o.sweeper.Sweep(ctx, o.cfg.Ranges)
	if err != nil {
		return result, err
	}

	log := o.logger.With(zap.String("scan_id", result.ScanID))
	for _, f := range result.Failures {
		log.Warn("range failed during sweep", zap.String("range", f.Range), zap.Error(f.Err))
	}
	log.Info("sweep completed",
		zap.Int("records", len(result.Records)),
		zap.Int("failed_ranges", len(result.Failures)),
		zap.Duration("elapsed", time.Since(start)))

	o.enter(log, Persisting)
	if err := o.store.Persist(ctx, result.ScanID, result.Timestamp, result.Records); err != nil {
		log.Error("scan not persisted; history is incomplete", zap.Error(err))
		return result, &StorageWriteError{ScanID: result.ScanID, Err: err}
	}

	if err := o.publisher.PublishScan(ctx, result); err != nil {
		log.Warn("scan export failed", zap.Error(err))
	}
	return result, nil
}

func (o *Orchestrator) enter(log *zap.Logger, s State) {
	log.Debug("request state", zap.Stringer("state", s))
}
