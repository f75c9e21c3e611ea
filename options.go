package multibar

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// DisplayMode controls whether a bar draws to its output.
type DisplayMode int

// Display modes. DisplayAuto draws only when the output is a terminal.
const (
	DisplayAuto DisplayMode = iota
	DisplayOn
	DisplayOff
)

// Options carries the presentation knobs handed to a TrackerFactory.
// The zero value is usable: bars draw on stderr when it is a terminal.
type Options struct {
	// Description is the label printed before the bar.
	Description string
	// Color is an ANSI SGR sequence applied to the filled run, e.g.
	// "\x1b[32m". Empty disables coloring.
	Color string
	// Output receives the rendered bar. Nil means os.Stderr.
	Output io.Writer
	// Display selects on, off, or terminal auto-detection.
	Display DisplayMode
	// Width is the bar body width in cells. Zero lets the renderer pick.
	Width int
}

// Writer returns the configured output, defaulting to os.Stderr.
func (o Options) Writer() io.Writer {
	if o.Output != nil {
		return o.Output
	}
	return os.Stderr
}

// Enabled reports whether a bar built from these options should draw,
// resolving DisplayAuto against the output terminal.
func (o Options) Enabled() bool {
	switch o.Display {
	case DisplayOn:
		return true
	case DisplayOff:
		return false
	}
	f, ok := o.Writer().(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// merge overlays non-zero fields of over onto o and returns the result.
func (o Options) merge(over Options) Options {
	out := o
	if over.Description != "" {
		out.Description = over.Description
	}
	if over.Color != "" {
		out.Color = over.Color
	}
	if over.Output != nil {
		out.Output = over.Output
	}
	if over.Display != DisplayAuto {
		out.Display = over.Display
	}
	if over.Width != 0 {
		out.Width = over.Width
	}
	return out
}
