// Package termbar draws progress bars on an ANSI terminal. A Bar renders
// on a fixed line below the anchor row the cursor sits on, so a multibar
// coordinator can keep many bars live at once without them fighting over
// the cursor. The package also adapts schollz/progressbar for callers
// that only need a single line.
package termbar
