package termbar

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/multibar"
)

const (
	defaultWidth = 30
	// maxRedrawsPerSecond bounds terminal writes per bar. Finish and
	// Cancel renders bypass the limiter so the last frame always lands.
	maxRedrawsPerSecond = 25

	ansiReset = "\x1b[0m"
	clearLine = "\x1b[K"
)

// Bar is a multibar.Tracker that draws one line of the display. All
// mutations arrive on the coordinator's consumer goroutine; Count may be
// read from anywhere.
type Bar struct {
	mu       sync.Mutex
	count    atomic.Int64
	total    int64
	offset   int
	opts     multibar.Options
	enabled  bool
	managed  bool
	done     bool
	canceled bool
	limiter  *rate.Limiter
}

// New builds a standalone bar that owns the cursor's current line. It
// prints a trailing newline when it completes, unlike coordinator-managed
// bars, which leave cursor parking to the coordinator.
func New(total int64, opts multibar.Options) *Bar {
	return newBar(total, 0, opts, false)
}

// Factory returns a TrackerFactory producing coordinator-managed bars.
func Factory() multibar.TrackerFactory {
	return func(total int64, offset int, opts multibar.Options) multibar.Tracker {
		return newBar(total, offset, opts, true)
	}
}

func newBar(total int64, offset int, opts multibar.Options, managed bool) *Bar {
	b := &Bar{
		total:   total,
		offset:  offset,
		opts:    opts,
		enabled: opts.Enabled(),
		managed: managed,
		limiter: rate.NewLimiter(rate.Limit(maxRedrawsPerSecond), 1),
	}
	b.render(true)
	return b
}

// Advance increments the count by one step, capped at the total.
func (b *Bar) Advance() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	n := b.count.Load() + 1
	if n > b.total {
		n = b.total
	}
	b.count.Store(n)
	if n >= b.total {
		b.finishLocked()
		return
	}
	b.render(false)
}

// Set moves the count to v, clamped into [0, total].
func (b *Bar) Set(v int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	if v < 0 {
		v = 0
	}
	if v > b.total {
		v = b.total
	}
	b.count.Store(v)
	if v >= b.total {
		b.finishLocked()
		return
	}
	b.render(false)
}

// Finish moves the count to the total and renders the final frame.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.count.Store(b.total)
	b.finishLocked()
}

// Cancel stops the bar at its current count and marks the line canceled.
func (b *Bar) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.done = true
	b.canceled = true
	b.render(true)
	if !b.managed {
		fmt.Fprintln(b.opts.Writer())
	}
}

func (b *Bar) finishLocked() {
	b.done = true
	b.render(true)
	if !b.managed {
		fmt.Fprintln(b.opts.Writer())
	}
}

// Count returns the current count.
func (b *Bar) Count() int64 { return b.count.Load() }

// Total returns the configured total.
func (b *Bar) Total() int64 { return b.total }

// Offset returns the line this bar draws on.
func (b *Bar) Offset() int { return b.offset }

// Park moves the cursor to a fresh line below the deepest bar drawn. The
// coordinator calls it once, on the aggregate bar, after the run ends.
func (b *Bar) Park(highWater int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.enabled {
		return
	}
	fmt.Fprint(b.opts.Writer(), strings.Repeat("\n", highWater+1))
}

// render draws the bar on its line and restores the cursor to the anchor
// row. The cursor must be on the anchor row column 0 between renders,
// which holds because every bar of a display restores it.
func (b *Bar) render(force bool) {
	if !b.enabled {
		return
	}
	if !force && !b.limiter.AllowN(time.Now(), 1) {
		return
	}
	var sb strings.Builder
	if b.offset > 0 {
		fmt.Fprintf(&sb, "\x1b[%dB", b.offset)
	}
	sb.WriteString("\r")
	sb.WriteString(clearLine)
	b.writeLine(&sb)
	if b.offset > 0 {
		fmt.Fprintf(&sb, "\x1b[%dA", b.offset)
	}
	sb.WriteString("\r")
	// Rendering is best effort; a broken pipe should not stall progress.
	_, _ = io.WriteString(b.opts.Writer(), sb.String())
}

func (b *Bar) writeLine(w *strings.Builder) {
	if b.opts.Description != "" {
		w.WriteString(b.opts.Description)
		w.WriteString(" ")
	}
	width := b.opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	count := b.count.Load()
	filled := 0
	percent := int64(100)
	if b.total > 0 {
		filled = int(count * int64(width) / b.total)
		percent = count * 100 / b.total
	}
	w.WriteString("[")
	if b.opts.Color != "" {
		w.WriteString(b.opts.Color)
	}
	for i := 0; i < width; i++ {
		switch {
		case i < filled:
			w.WriteString("=")
		case i == filled && count < b.total:
			w.WriteString(">")
		default:
			w.WriteString("-")
		}
	}
	if b.opts.Color != "" {
		w.WriteString(ansiReset)
	}
	fmt.Fprintf(w, "] %3d%% (%d/%d)", percent, count, b.total)
	if b.canceled {
		w.WriteString(" ✗ canceled")
	}
}
