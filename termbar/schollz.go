package termbar

import (
	"fmt"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"

	"github.com/JakeFAU/multibar"
)

// SchollzBar adapts schollz/progressbar to the multibar.Tracker
// interface. The underlying renderer only knows how to repaint the
// cursor's own line, so the adapter is limited to offset 0: standalone
// bars and Single coordinators.
type SchollzBar struct {
	bar   *progressbar.ProgressBar
	total int64
	count atomic.Int64
}

// NewSchollz builds a single-line bar rendered by schollz/progressbar.
func NewSchollz(total int64, opts multibar.Options) *SchollzBar {
	pbOpts := []progressbar.Option{
		progressbar.OptionSetWriter(opts.Writer()),
		progressbar.OptionSetDescription(opts.Description),
		progressbar.OptionSetVisibility(opts.Enabled()),
		progressbar.OptionShowCount(),
	}
	if opts.Width > 0 {
		pbOpts = append(pbOpts, progressbar.OptionSetWidth(opts.Width))
	}
	return &SchollzBar{
		bar:   progressbar.NewOptions64(total, pbOpts...),
		total: total,
	}
}

// SchollzFactory returns a TrackerFactory for single-line displays. It
// panics when asked for a bar below the anchor row, since the renderer
// cannot address other lines; use Factory for Multi coordinators.
func SchollzFactory() multibar.TrackerFactory {
	return func(total int64, offset int, opts multibar.Options) multibar.Tracker {
		if offset != 0 {
			panic(fmt.Sprintf("termbar: schollz renderer cannot draw on line %d, only the anchor row", offset))
		}
		return NewSchollz(total, opts)
	}
}

// Advance increments the count by one step.
func (s *SchollzBar) Advance() {
	n := s.count.Add(1)
	if n > s.total {
		n = s.total
		s.count.Store(n)
	}
	_ = s.bar.Set64(n)
}

// Set moves the count to v, clamped into [0, total].
func (s *SchollzBar) Set(v int64) {
	if v < 0 {
		v = 0
	}
	if v > s.total {
		v = s.total
	}
	s.count.Store(v)
	_ = s.bar.Set64(v)
}

// Finish completes the bar.
func (s *SchollzBar) Finish() {
	s.count.Store(s.total)
	_ = s.bar.Finish()
}

// Cancel stops rendering and leaves the bar at its current count.
func (s *SchollzBar) Cancel() {
	_ = s.bar.Exit()
}

// Count returns the current count.
func (s *SchollzBar) Count() int64 { return s.count.Load() }

// Total returns the configured total.
func (s *SchollzBar) Total() int64 { return s.total }

// Offset is always 0; the renderer owns only the anchor row.
func (s *SchollzBar) Offset() int { return 0 }
