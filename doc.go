// Package multibar coordinates progress reporting from many concurrent
// workers onto one shared terminal. Workers send tagged updates over a
// bounded channel to a single consumer goroutine that owns every bar,
// hands out terminal lines, and keeps an aggregate bar in step with the
// per-worker counts. Rendering is pluggable through the Tracker
// interface so the engine itself never writes to the screen.
package multibar
