package multibar

import (
	"errors"
	"fmt"
)

// Op identifies the progress operation carried by an Update.
type Op uint8

// Supported operations. The zero value is invalid so that decoded or
// hand-built updates with a missing op are rejected.
const (
	OpNext Op = iota + 1
	OpSet
	OpFinish
	OpCancel
)

// String returns the wire name of the op.
func (op Op) String() string {
	switch op {
	case OpNext:
		return "next"
	case OpSet:
		return "set"
	case OpFinish:
		return "finish"
	case OpCancel:
		return "cancel"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// allWorkers addresses every worker at once. It is reserved for control
// updates built by the coordinator itself, never for producers.
const allWorkers = -1

// Update is one progress message from a worker to its coordinator.
type Update struct {
	// Worker is the zero-based index of the reporting worker.
	Worker int
	// Op selects the operation to apply.
	Op Op
	// Value carries the target count for OpSet and is ignored otherwise.
	Value int64
}

// Validate performs coarse validation on updates arriving from outside
// the process. Coordinator-internal control updates are exempt.
func (u Update) Validate() error {
	if u.Worker < 0 {
		return errors.New("worker index must be >= 0")
	}
	switch u.Op {
	case OpNext, OpSet, OpFinish, OpCancel:
		return nil
	default:
		return fmt.Errorf("unknown op %q", u.Op)
	}
}
