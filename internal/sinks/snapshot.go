package sinks

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/multibar"
)

// Clock supplies timestamps for snapshot bookkeeping.
type Clock interface {
	Now() time.Time
}

// RunView is the read model served by the status API.
type RunView struct {
	RunID          uuid.UUID
	StartedAt      time.Time
	UpdatedAt      time.Time
	Done           bool
	AggregateCount int64
	AggregateTotal int64
	ActiveWorkers  int
}

// WorkerView is the latest observed state of one worker.
type WorkerView struct {
	Worker    int
	Count     int64
	Length    int64
	Offset    int
	Done      bool
	Canceled  bool
	UpdatedAt time.Time
}

// Snapshot keeps the latest run state in memory so HTTP handlers can
// read it without touching the consumer goroutine. Writes come from
// Observe; reads take the shared lock.
type Snapshot struct {
	clock Clock

	mu      sync.RWMutex
	run     RunView
	started bool
	workers map[int]WorkerView
}

// NewSnapshot builds an empty snapshot using the provided clock.
func NewSnapshot(clock Clock) *Snapshot {
	return &Snapshot{
		clock:   clock,
		workers: make(map[int]WorkerView),
	}
}

// Observe folds one event into the read model.
func (s *Snapshot) Observe(evt multibar.Event) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.run.RunID != evt.RunID {
		s.started = true
		s.run = RunView{RunID: evt.RunID, StartedAt: now}
		s.workers = make(map[int]WorkerView)
	}
	s.run.UpdatedAt = now
	s.run.AggregateCount = evt.AggregateCount
	s.run.AggregateTotal = evt.AggregateTotal
	if evt.RunDone {
		s.run.Done = true
		s.run.ActiveWorkers = 0
		return
	}

	view := WorkerView{
		Worker:    evt.Worker,
		Count:     evt.Count,
		Length:    evt.Length,
		Offset:    evt.Offset,
		Done:      evt.WorkerDone,
		Canceled:  evt.WorkerDone && evt.Op == multibar.OpCancel,
		UpdatedAt: now,
	}
	s.workers[evt.Worker] = view

	active := 0
	for _, w := range s.workers {
		if !w.Done {
			active++
		}
	}
	s.run.ActiveWorkers = active
}

// Run returns the current run view and whether a run has been observed.
func (s *Snapshot) Run() (RunView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run, s.started
}

// Workers returns the observed workers ordered by index.
func (s *Snapshot) Workers() []WorkerView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WorkerView, 0, len(s.workers))
	for i := 0; i < workerIndexBound(s.workers); i++ {
		if w, ok := s.workers[i]; ok {
			out = append(out, w)
		}
	}
	return out
}

func workerIndexBound(workers map[int]WorkerView) int {
	bound := 0
	for i := range workers {
		if i >= bound {
			bound = i + 1
		}
	}
	return bound
}
