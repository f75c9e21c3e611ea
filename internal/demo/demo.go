// Package demo drives a simulated workload against a coordinator so the
// binary has something to show without a real job source. Each simulated
// worker steps through a randomized length with jittered pauses.
package demo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/multibar"
)

// Progress is the slice of a handle the simulated workers need. Local
// runs adapt coordinator handles; send mode adapts the relay publisher.
type Progress interface {
	// Next advances the worker's count by one step.
	Next(ctx context.Context, worker int) error
	// Finish marks the worker complete.
	Finish(ctx context.Context, worker int) error
	// Cancel stops the worker at its current count.
	Cancel(ctx context.Context, worker int) error
}

// Config shapes the simulated workload.
type Config struct {
	// Workers is the number of simulated workers.
	Workers int
	// StepsMin and StepsMax bound each worker's randomized length.
	StepsMin int
	StepsMax int
	// StepDelay is the mean pause between steps; actual pauses jitter
	// in [StepDelay/2, 3*StepDelay/2].
	StepDelay time.Duration
	// CancelWorker cancels this worker halfway through; -1 disables.
	CancelWorker int
}

// Runner fans the simulated workers out and waits for them.
type Runner struct {
	cfg     Config
	lengths []int64
	logger  *zap.Logger
}

// NewRunner draws each worker's length once so Lengths and Run agree.
func NewRunner(cfg Config, logger *zap.Logger) (*Runner, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("demo worker count %d must be > 0", cfg.Workers)
	}
	if cfg.StepsMin <= 0 || cfg.StepsMax < cfg.StepsMin {
		return nil, fmt.Errorf("demo steps range [%d, %d] is invalid", cfg.StepsMin, cfg.StepsMax)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	lengths := make([]int64, cfg.Workers)
	for i := range lengths {
		lengths[i] = int64(cfg.StepsMin) + rand.Int64N(int64(cfg.StepsMax-cfg.StepsMin)+1)
	}
	return &Runner{cfg: cfg, lengths: lengths, logger: logger}, nil
}

// Lengths returns a copy of the per-worker step counts.
func (r *Runner) Lengths() []int64 {
	return append([]int64(nil), r.lengths...)
}

// Run starts one goroutine per worker and blocks until all of them
// return. A context cancellation stops the workers mid-run; the first
// reporting error is returned.
func (r *Runner) Run(ctx context.Context, progress Progress) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range r.lengths {
		g.Go(func() error {
			return r.runWorker(ctx, progress, i)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("demo workload: %w", err)
	}
	return nil
}

func (r *Runner) runWorker(ctx context.Context, progress Progress, worker int) error {
	length := r.lengths[worker]
	cancelAt := int64(-1)
	if worker == r.cfg.CancelWorker {
		cancelAt = length / 2
	}
	for step := int64(0); step < length; step++ {
		if err := r.pause(ctx); err != nil {
			return err
		}
		if step == cancelAt {
			r.logger.Info("demo worker canceling", zap.Int("worker", worker), zap.Int64("step", step))
			if err := progress.Cancel(ctx, worker); err != nil {
				return fmt.Errorf("worker %d cancel: %w", worker, err)
			}
			return nil
		}
		if err := progress.Next(ctx, worker); err != nil {
			return fmt.Errorf("worker %d step %d: %w", worker, step, err)
		}
	}
	// Remote displays may assume a longer length, so completion is
	// always reported explicitly.
	if err := progress.Finish(ctx, worker); err != nil {
		return fmt.Errorf("worker %d finish: %w", worker, err)
	}
	return nil
}

func (r *Runner) pause(ctx context.Context) error {
	if r.cfg.StepDelay <= 0 {
		return ctx.Err()
	}
	jittered := r.cfg.StepDelay/2 + rand.N(r.cfg.StepDelay)
	timer := time.NewTimer(jittered)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Local adapts coordinator handles to the Progress interface.
func Local(handles []*multibar.Handle) Progress {
	return localProgress(handles)
}

type localProgress []*multibar.Handle

func (p localProgress) Next(_ context.Context, worker int) error {
	p[worker].Next()
	return nil
}

func (p localProgress) Finish(_ context.Context, worker int) error {
	p[worker].Finish()
	return nil
}

func (p localProgress) Cancel(_ context.Context, worker int) error {
	p[worker].Cancel()
	return nil
}
