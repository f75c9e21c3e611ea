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

const defaultChannelCapacity = 64

// Config controls coordinator construction. The zero value runs headless
// over a small buffered channel.
//   - Factory: builds each worker's tracker on its first update
//     (default CounterFactory).
//   - Options: display options shared by every bar.
//   - PerWorker: optional field-wise overrides, one entry per worker.
//   - Aggregate: field-wise overrides for the run-wide bar.
//   - Channel / ChannelCapacity: the update channel, or the capacity of
//     the default BufferedChannel (default 64).
//   - Observers: receive one event per applied update plus one run-level
//     event at termination, on the consumer goroutine.
//   - Logger: optional structured logger for protocol anomalies.
type Config struct {
	Factory         TrackerFactory
	Options         Options
	PerWorker       []Options
	Aggregate       Options
	Channel         Channel
	ChannelCapacity int
	Observers       []Observer
	Logger          *zap.Logger
}

// Multi multiplexes progress from many workers onto one display. Exactly
// one consumer goroutine owns all bar state; workers talk to it through
// their Handles, so no mutation is ever locked or shared.
type Multi struct {
	runID     uuid.UUID
	ch        Channel
	factory   TrackerFactory
	logger    *zap.Logger
	observers []Observer
	shared    Options
	perWorker []Options
	lengths   []int64

	// Consumer-goroutine state. Nothing below is touched elsewhere.
	workers   []workerState
	aggregate Tracker
	pool      *offsetPool
	remaining int

	handles []*Handle
	doneCh  chan struct{}
	done    atomic.Bool
}

type workerState struct {
	tracker  Tracker
	offset   int
	finished bool
}

// NewMulti builds a coordinator for len(lengths) workers, where worker i
// performs lengths[i] steps, and returns one Handle per worker. Workers
// with length 0 are complete from the start and never claim a line; a
// run whose lengths sum to 0 terminates immediately.
func NewMulti(lengths []int64, cfg Config) (*Multi, []*Handle, error) {
	if len(cfg.PerWorker) != 0 && len(cfg.PerWorker) != len(lengths) {
		return nil, nil, fmt.Errorf("per-worker options: got %d entries for %d workers", len(cfg.PerWorker), len(lengths))
	}
	var total int64
	for i, n := range lengths {
		if n < 0 {
			return nil, nil, fmt.Errorf("worker %d: negative length %d", i, n)
		}
		total += n
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
		return nil, nil, fmt.Errorf("generate run id: %w", err)
	}

	m := &Multi{
		runID:     runID,
		ch:        ch,
		factory:   factory,
		logger:    logger,
		observers: append([]Observer(nil), cfg.Observers...),
		shared:    cfg.Options,
		perWorker: append([]Options(nil), cfg.PerWorker...),
		lengths:   append([]int64(nil), lengths...),
		workers:   make([]workerState, len(lengths)),
		pool:      newOffsetPool(),
		doneCh:    make(chan struct{}),
	}
	m.aggregate = factory(total, 0, cfg.Options.merge(cfg.Aggregate))
	for i, n := range m.lengths {
		if n == 0 {
			m.workers[i].finished = true
			continue
		}
		m.remaining++
	}
	m.handles = make([]*Handle, len(lengths))
	for i := range m.handles {
		m.handles[i] = &Handle{ch: ch, worker: i}
	}

	if m.remaining == 0 {
		m.terminate()
		return m, m.handles, nil
	}
	go m.run()
	return m, m.handles, nil
}

// NewMultiUniform builds a coordinator for workers identical workers of
// the given length.
func NewMultiUniform(workers int, length int64, cfg Config) (*Multi, []*Handle, error) {
	if workers < 0 {
		return nil, nil, fmt.Errorf("negative worker count %d", workers)
	}
	lengths := make([]int64, workers)
	for i := range lengths {
		lengths[i] = length
	}
	return NewMulti(lengths, cfg)
}

// Handle returns the handle for worker i.
func (m *Multi) Handle(i int) *Handle { return m.handles[i] }

// Workers returns the number of workers in the run.
func (m *Multi) Workers() int { return len(m.handles) }

// RunID identifies this run in events, logs, and history rows.
func (m *Multi) RunID() uuid.UUID { return m.runID }

// Lengths returns a copy of the per-worker step counts.
func (m *Multi) Lengths() []int64 { return append([]int64(nil), m.lengths...) }

// Cancel stops every worker and ends the run. It is safe to call from
// any goroutine and is a no-op once the run has terminated.
func (m *Multi) Cancel() {
	_ = m.ch.Send(context.Background(), Update{Worker: allWorkers, Op: OpCancel})
}

// Wait blocks until the run terminates or ctx ends.
func (m *Multi) Wait(ctx context.Context) error {
	select {
	case <-m.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for run: %w", ctx.Err())
	}
}

// Done returns a channel that closes when the run has terminated.
func (m *Multi) Done() <-chan struct{} { return m.doneCh }

func (m *Multi) run() {
	for {
		u, err := m.ch.Receive(context.Background())
		if err != nil {
			// Only an external Close ends Receive under a live loop;
			// treat it as the end of the run.
			m.terminate()
			return
		}
		if m.apply(u) {
			m.terminate()
			return
		}
	}
}

// apply performs one update and reports whether the run is complete.
func (m *Multi) apply(u Update) bool {
	if u.Worker == allWorkers {
		if u.Op != OpCancel {
			m.logger.Warn("control update with unexpected op ignored", zap.Stringer("op", u.Op))
			return false
		}
		m.cancelAll()
		return true
	}
	if u.Worker < 0 || u.Worker >= len(m.workers) {
		panic(fmt.Sprintf("multibar: worker %d out of range, run has %d workers", u.Worker, len(m.workers)))
	}
	st := &m.workers[u.Worker]
	if st.finished {
		m.logger.Debug("update for finished worker ignored",
			zap.Int("worker", u.Worker), zap.Stringer("op", u.Op))
		return false
	}
	if st.tracker == nil {
		m.materialize(u.Worker, st)
	}

	length := m.lengths[u.Worker]
	prev := st.tracker.Count()
	switch u.Op {
	case OpNext:
		st.tracker.Advance()
	case OpSet:
		v := u.Value
		if v < 0 {
			v = 0
		}
		if v > length {
			v = length
		}
		st.tracker.Set(v)
	case OpFinish:
		st.tracker.Finish()
	case OpCancel:
		st.tracker.Cancel()
	default:
		m.logger.Warn("update with unknown op ignored",
			zap.Int("worker", u.Worker), zap.Uint8("op", uint8(u.Op)))
		return false
	}

	m.settle(u.Worker, st, prev, u.Op == OpCancel)
	done := m.runDone()
	m.notify(m.workerEvent(u.Worker, st, u.Op))
	return done
}

// materialize claims the lowest free line and builds the worker's bar.
func (m *Multi) materialize(i int, st *workerState) {
	st.offset = m.pool.acquire()
	opts := m.shared
	if len(m.perWorker) > 0 {
		opts = opts.merge(m.perWorker[i])
	}
	st.tracker = m.factory(m.lengths[i], st.offset, opts)
}

// settle folds the worker's count change into the aggregate bar and
// retires the worker once it reaches its length or is canceled.
func (m *Multi) settle(i int, st *workerState, prev int64, canceled bool) {
	if delta := st.tracker.Count() - prev; delta != 0 {
		agg := m.aggregate.Count() + delta
		if agg < 0 {
			agg = 0
		}
		if total := m.aggregate.Total(); agg > total {
			agg = total
		}
		m.aggregate.Set(agg)
	}
	if canceled || st.tracker.Count() >= m.lengths[i] {
		m.finishWorker(st)
	}
}

func (m *Multi) finishWorker(st *workerState) {
	if st.finished {
		return
	}
	st.finished = true
	m.remaining--
	if st.offset > 0 {
		m.pool.release(st.offset)
		st.offset = 0
	}
}

func (m *Multi) cancelAll() {
	for i := range m.workers {
		st := &m.workers[i]
		if st.finished {
			continue
		}
		if st.tracker != nil {
			st.tracker.Cancel()
		}
		m.finishWorker(st)
		m.notify(m.workerEvent(i, st, OpCancel))
	}
}

func (m *Multi) runDone() bool {
	return m.remaining == 0 || m.aggregate.Count() >= m.aggregate.Total()
}

func (m *Multi) terminate() {
	if !m.done.CompareAndSwap(false, true) {
		return
	}
	m.ch.Close()
	if p, ok := m.aggregate.(CursorParker); ok {
		p.Park(m.pool.high())
	}
	m.notify(Event{
		RunID:          m.runID,
		Worker:         -1,
		AggregateCount: m.aggregate.Count(),
		AggregateTotal: m.aggregate.Total(),
		RunDone:        true,
		At:             time.Now(),
	})
	close(m.doneCh)
}

func (m *Multi) workerEvent(i int, st *workerState, op Op) Event {
	evt := Event{
		RunID:          m.runID,
		Worker:         i,
		Op:             op,
		Length:         m.lengths[i],
		Offset:         st.offset,
		AggregateCount: m.aggregate.Count(),
		AggregateTotal: m.aggregate.Total(),
		WorkerDone:     st.finished,
		At:             time.Now(),
	}
	if st.tracker != nil {
		evt.Count = st.tracker.Count()
	}
	return evt
}

func (m *Multi) notify(evt Event) {
	for _, ob := range m.observers {
		if ob == nil {
			continue
		}
		m.observeOne(ob, evt)
	}
}

func (m *Multi) observeOne(ob Observer, evt Event) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("progress observer panicked", zap.Any("panic", rec))
		}
	}()
	ob.Observe(evt)
}
