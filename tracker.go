package multibar

// Tracker owns one bar's numeric state and, optionally, its rendering.
// Coordinators drive every method from a single goroutine; Count may
// additionally be read from other goroutines, so implementations must
// keep it safe for concurrent reads.
type Tracker interface {
	// Advance increments the count by one step.
	Advance()
	// Set moves the count to v.
	Set(v int64)
	// Finish moves the count to the total and stops the bar.
	Finish()
	// Cancel stops the bar at its current count.
	Cancel()

	Count() int64
	Total() int64
	// Offset is the terminal line this bar renders on, counted from the
	// coordinator's anchor row.
	Offset() int
}

// TrackerFactory builds the Tracker for one worker when its first update
// arrives. Coordinators call it with the worker's total step count, the
// terminal line allocated to it, and the merged display options.
type TrackerFactory func(total int64, offset int, opts Options) Tracker

// CursorParker is implemented by trackers that draw below their own row.
// After a run ends the coordinator calls Park once on the aggregate
// tracker with the deepest row used, so the cursor lands on a fresh line
// under the display.
type CursorParker interface {
	Park(highWater int)
}
