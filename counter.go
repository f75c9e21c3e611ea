package multibar

import "sync/atomic"

// Counter is a Tracker that keeps counts without rendering anything. It
// backs coordinators that run headless (tests, servers, CI logs) and is
// the default when no factory is configured.
type Counter struct {
	total  int64
	offset int
	count  atomic.Int64
	done   atomic.Bool
}

// NewCounter returns a Counter for the given total on the given line.
func NewCounter(total int64, offset int) *Counter {
	return &Counter{total: total, offset: offset}
}

// CounterFactory builds Counters; it is the default TrackerFactory.
func CounterFactory(total int64, offset int, _ Options) Tracker {
	return NewCounter(total, offset)
}

// Advance increments the count, capping at the total when one is set.
func (c *Counter) Advance() {
	if n := c.count.Add(1); c.total > 0 && n > c.total {
		c.count.Store(c.total)
	}
}

// Set moves the count to v, clamped into [0, total].
func (c *Counter) Set(v int64) {
	if v < 0 {
		v = 0
	}
	if c.total > 0 && v > c.total {
		v = c.total
	}
	c.count.Store(v)
}

// Finish moves the count to the total and marks the counter done.
func (c *Counter) Finish() {
	c.count.Store(c.total)
	c.done.Store(true)
}

// Cancel marks the counter done without touching the count.
func (c *Counter) Cancel() {
	c.done.Store(true)
}

// Count returns the current count.
func (c *Counter) Count() int64 { return c.count.Load() }

// Total returns the configured total.
func (c *Counter) Total() int64 { return c.total }

// Offset returns the line this counter was allocated.
func (c *Counter) Offset() int { return c.offset }

// Done reports whether Finish or Cancel has been called.
func (c *Counter) Done() bool { return c.done.Load() }
