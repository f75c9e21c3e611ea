package multibar

import "context"

// Handle lets one worker report progress to its coordinator. Handles are
// cheap, safe for concurrent use, and keep working as silent no-ops once
// the run has ended, so workers never need to know when the display shut
// down.
type Handle struct {
	ch     Channel
	worker int
}

// Worker returns the zero-based index this handle reports for.
func (h *Handle) Worker() int { return h.worker }

// Next advances the worker's count by one step.
func (h *Handle) Next() { h.send(OpNext, 0) }

// Set moves the worker's count to v. Values outside [0, length] are
// clamped by the coordinator.
func (h *Handle) Set(v int64) { h.send(OpSet, v) }

// Finish moves the worker's count to its length and frees its line.
func (h *Handle) Finish() { h.send(OpFinish, 0) }

// Cancel stops the worker at its current count and frees its line.
func (h *Handle) Cancel() { h.send(OpCancel, 0) }

func (h *Handle) send(op Op, v int64) {
	// ErrClosed after the run ends is the documented no-op; a blocked
	// send is backpressure, not an error.
	_ = h.ch.Send(context.Background(), Update{Worker: h.worker, Op: op, Value: v})
}
