package history

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/multibar"
)

const (
	defaultRecorderBuffer = 256
	recorderWriteTimeout  = 10 * time.Second
	dropLogInterval       = 5 * time.Second
)

// RecorderConfig controls buffering for the Recorder.
//   - Workers: declared worker count for the run, stored on the run row.
//   - BufferSize: events queued before drops begin (default 256).
//   - WriteTimeout: per-write repository timeout (default 10s).
//   - Logger: optional structured logger used for warnings.
type RecorderConfig struct {
	Workers      int
	BufferSize   int
	WriteTimeout time.Duration
	Logger       *zap.Logger
}

// Recorder adapts a Repository to the multibar.Observer interface. The
// consumer goroutine hands events over a buffered channel and a private
// goroutine performs the writes, so a slow database can never stall the
// display; overflowing events are dropped with a rate-limited warning.
type Recorder struct {
	cfg     RecorderConfig
	repo    Repository
	events  chan multibar.Event
	stopCh  chan struct{}
	doneCh  chan struct{}
	logger  *zap.Logger
	dropLim *rate.Limiter
	dropped atomic.Int64
	closed  atomic.Bool

	closeOnce sync.Once

	started bool
}

// NewRecorder starts the background writer for the given repository.
func NewRecorder(repo Repository, cfg RecorderConfig) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultRecorderBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = recorderWriteTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		cfg:     cfg,
		repo:    repo,
		events:  make(chan multibar.Event, cfg.BufferSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		logger:  logger,
		dropLim: rate.NewLimiter(rate.Every(dropLogInterval), 1),
	}
	go r.run()
	return r
}

// Observe enqueues an event for recording. It never blocks; if the
// buffer is full the event is dropped and a rate-limited warning logged.
func (r *Recorder) Observe(evt multibar.Event) {
	if r == nil || r.closed.Load() {
		return
	}
	select {
	case r.events <- evt:
	default:
		r.dropped.Add(1)
		if r.dropLim.Allow() {
			count := r.dropped.Swap(0)
			r.logger.Warn("history events dropped due to backpressure", zap.Int64("dropped", count))
		}
	}
}

// Close drains buffered events and blocks until the writer exits. It is
// safe to call more than once.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.stopCh)
	})
	select {
	case <-r.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("history recorder close wait: %w", ctx.Err())
	}
}

func (r *Recorder) run() {
	defer close(r.doneCh)
	for {
		select {
		case evt := <-r.events:
			r.record(evt)
		case <-r.stopCh:
			for {
				select {
				case evt := <-r.events:
					r.record(evt)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) record(evt multibar.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	if !r.started {
		r.started = true
		err := r.repo.StartRun(ctx, Run{
			ID:             evt.RunID,
			StartedAt:      evt.At,
			Status:         RunRunning,
			Workers:        r.cfg.Workers,
			AggregateCount: 0,
			AggregateTotal: evt.AggregateTotal,
		})
		if err != nil {
			r.logger.Warn("history start run failed", zap.Error(err))
		}
	}

	switch {
	case evt.RunDone:
		status := RunComplete
		if evt.AggregateCount < evt.AggregateTotal {
			status = RunCanceled
		}
		err := r.repo.CompleteRun(ctx, evt.RunID, evt.At, status, evt.AggregateCount)
		if err != nil {
			r.logger.Warn("history complete run failed", zap.Error(err))
		}
	case evt.WorkerDone:
		err := r.repo.RecordWorker(ctx, WorkerResult{
			RunID:      evt.RunID,
			Worker:     evt.Worker,
			Count:      evt.Count,
			Length:     evt.Length,
			Canceled:   evt.Op == multibar.OpCancel,
			FinishedAt: evt.At,
		})
		if err != nil {
			r.logger.Warn("history record worker failed", zap.Error(err))
		}
	}
}
