package multibar

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	iduuid "github.com/JakeFAU/multibar/internal/id/uuid"
)

// Single drives one bar through the same channel discipline as Multi:
// callers enqueue updates from any goroutine and a private consumer
// applies them in order. It exists for programs with a single worker
// that still want non-blocking, corruption-free reporting.
type Single struct {
	runID     uuid.UUID
	ch        Channel
	tracker   Tracker
	total     int64
	logger    *zap.Logger
	observers []Observer
	handle    *Handle
	doneCh    chan struct{}
	done      atomic.Bool
}

// NewSingle builds a coordinator for one bar of the given total. The
// tracker is materialized immediately on line 0. PerWorker and Aggregate
// options are ignored; a total of 0 completes at once.
func NewSingle(total int64, cfg Config) (*Single, error) {
	if total < 0 {
		return nil, fmt.Errorf("negative total %d", total)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := cfg.Factory
	if factory == nil {
		factory = CounterFactory
	}
	ch := cfg.Channel
	if ch == nil {
		capacity := cfg.ChannelCapacity
		if capacity <= 0 {
			capacity = defaultChannelCapacity
		}
		ch = NewBufferedChannel(capacity)
	}
	runID, err := iduuid.New().NewRawID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	s := &Single{
		runID:     runID,
		ch:        ch,
		tracker:   factory(total, 0, cfg.Options),
		total:     total,
		logger:    logger,
		observers: append([]Observer(nil), cfg.Observers...),
		doneCh:    make(chan struct{}),
	}
	s.handle = &Handle{ch: ch, worker: 0}
	if total == 0 {
		s.terminate()
		return s, nil
	}
	go s.run()
	return s, nil
}

// Next advances the bar by one step.
func (s *Single) Next() { s.handle.Next() }

// Set moves the bar to v, clamped into [0, total].
func (s *Single) Set(v int64) { s.handle.Set(v) }

// Finish completes the bar regardless of its count.
func (s *Single) Finish() { s.handle.Finish() }

// Cancel stops the bar at its current count.
func (s *Single) Cancel() { s.handle.Cancel() }

// Count returns the bar's current count.
func (s *Single) Count() int64 { return s.tracker.Count() }

// Total returns the bar's step total.
func (s *Single) Total() int64 { return s.total }

// RunID identifies this run in events and logs.
func (s *Single) RunID() uuid.UUID { return s.runID }

// Wait blocks until the bar completes or ctx ends.
func (s *Single) Wait(ctx context.Context) error {
	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for bar: %w", ctx.Err())
	}
}

// Done returns a channel that closes when the bar has completed.
func (s *Single) Done() <-chan struct{} { return s.doneCh }

func (s *Single) run() {
	for {
		u, err := s.ch.Receive(context.Background())
		if err != nil {
			s.terminate()
			return
		}
		if s.apply(u) {
			s.terminate()
			return
		}
	}
}

func (s *Single) apply(u Update) bool {
	switch u.Op {
	case OpNext:
		s.tracker.Advance()
	case OpSet:
		v := u.Value
		if v < 0 {
			v = 0
		}
		if v > s.total {
			v = s.total
		}
		s.tracker.Set(v)
	case OpFinish:
		s.tracker.Finish()
	case OpCancel:
		s.tracker.Cancel()
	default:
		s.logger.Warn("update with unknown op ignored", zap.Uint8("op", uint8(u.Op)))
		return false
	}
	done := u.Op == OpFinish || u.Op == OpCancel || s.tracker.Count() >= s.total
	s.notify(Event{
		RunID:          s.runID,
		Worker:         0,
		Op:             u.Op,
		Count:          s.tracker.Count(),
		Length:         s.total,
		AggregateCount: s.tracker.Count(),
		AggregateTotal: s.total,
		WorkerDone:     done,
		At:             time.Now(),
	})
	return done
}

func (s *Single) terminate() {
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	s.ch.Close()
	if p, ok := s.tracker.(CursorParker); ok {
		p.Park(0)
	}
	s.notify(Event{
		RunID:          s.runID,
		Worker:         -1,
		AggregateCount: s.tracker.Count(),
		AggregateTotal: s.total,
		RunDone:        true,
		At:             time.Now(),
	})
	close(s.doneCh)
}

func (s *Single) notify(evt Event) {
	for _, ob := range s.observers {
		if ob == nil {
			continue
		}
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					s.logger.Error("progress observer panicked", zap.Any("panic", rec))
				}
			}()
			ob.Observe(evt)
		}()
	}
}
