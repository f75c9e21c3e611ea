package multibar

import (
	"time"

	"github.com/google/uuid"
)

// Event describes one applied update. The consumer goroutine emits it to
// every observer after the coordinator's bookkeeping has settled, so the
// counts in an Event are always mutually consistent.
type Event struct {
	// RunID identifies the coordinator run.
	RunID uuid.UUID
	// Worker is the zero-based worker index, or -1 for the run-level
	// event emitted at termination.
	Worker int
	// Op is the operation that produced this event. It is unset on the
	// run-level termination event.
	Op Op
	// Count and Length are the worker's progress after the update.
	Count  int64
	Length int64
	// Offset is the terminal line the worker held when the event fired,
	// 0 once its line has been released.
	Offset int
	// AggregateCount and AggregateTotal mirror the run-wide bar.
	AggregateCount int64
	AggregateTotal int64
	// WorkerDone marks the worker finished or canceled.
	WorkerDone bool
	// RunDone marks the single event emitted when the run terminates.
	RunDone bool
	// At is the time the update was applied.
	At time.Time
}

// Observer receives events synchronously on the consumer goroutine.
// Implementations must return quickly; anything slow or fallible should
// hand the event off to its own goroutine the way internal/history does.
type Observer interface {
	Observe(evt Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(evt Event)

// Observe calls f.
func (f ObserverFunc) Observe(evt Event) { f(evt) }
