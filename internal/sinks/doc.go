// Package sinks contains multibar.Observer implementations: structured
// logging, Prometheus collectors, and an in-memory snapshot of the
// latest run state for the status API. All observers run synchronously
// on the coordinator's consumer goroutine, so they only do cheap,
// in-process work; anything durable goes through internal/history.
package sinks
