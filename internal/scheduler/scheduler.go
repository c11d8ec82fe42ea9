// Package scheduler drives telemetry collection on a fixed cadence for a
// bounded window, emitting periodic checkpoints so partial results survive
// a crash or forced stop.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/torosent/crankwatch/internal/testrun"
)

// Collector performs one telemetry fetch. Implementations must always
// return a sample and never panic past the call.
type Collector interface {
	Collect(ctx context.Context) testrun.Sample
}

// Options configure the sampling loop.
type Options struct {
	Duration time.Duration // total sampling window (required, > 0)
	Interval time.Duration // target cadence between tick starts (required, > 0)

	// CheckpointEvery emits an intermediate artifact every N ticks.
	// Zero disables checkpoints.
	CheckpointEvery int

	Collector Collector

	// Checkpoint receives the run mid-loop. It is called synchronously, so
	// implementations should snapshot what they need and defer slow I/O to
	// a goroutine rather than stall the cadence.
	Checkpoint func(run *testrun.TestRun)

	// Finalize is invoked exactly once, on normal or cancelled termination.
	Finalize func(run *testrun.TestRun)

	Logger *slog.Logger
}

func (o *Options) normalize() {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.CheckpointEvery < 0 {
		o.CheckpointEvery = 0
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Scheduler is the single-threaded cooperative sampling loop. Exactly one
// collection is in flight at a time; sleeping between ticks is the only
// yield point, and cancellation is observed there, never by aborting an
// in-flight collection.
type Scheduler struct {
	opt Options
}

func New(opt Options) *Scheduler {
	opt.normalize()
	return &Scheduler{opt: opt}
}

// Run samples until the window elapses or ctx is cancelled at a tick
// boundary. A request already underway always completes and its sample is
// still recorded before shutdown. The run's End and Cancelled fields are
// set before Finalize fires.
func (s *Scheduler) Run(ctx context.Context, run *testrun.TestRun) {
	start := time.Now()
	ticks := 0

	defer func() {
		run.End = time.Now()
		if s.opt.Finalize != nil {
			s.opt.Finalize(run)
		}
	}()

	for {
		if ctx.Err() != nil {
			run.Cancelled = true
			s.opt.Logger.Info("sampling cancelled", "ticks", ticks)
			return
		}

		tickStart := time.Now()
		// The in-flight collection must complete even if ctx fires, so the
		// per-call timeout is the only bound it inherits.
		sample := s.opt.Collector.Collect(context.WithoutCancel(ctx))
		run.AppendSample(sample)
		ticks++

		s.opt.Logger.Debug("tick collected",
			"tick", ticks, "success", sample.Success, "free_heap", sample.FreeHeap)

		if s.opt.CheckpointEvery > 0 && ticks%s.opt.CheckpointEvery == 0 && s.opt.Checkpoint != nil {
			s.opt.Checkpoint(run)
		}

		if time.Since(start) >= s.opt.Duration {
			return
		}

		// Preserve cadence when the collector is fast; compress the gap
		// (never negative, never skipped) when it is slow.
		pause := s.opt.Interval - time.Since(tickStart)
		if pause <= 0 {
			continue
		}
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			run.Cancelled = true
			s.opt.Logger.Info("sampling cancelled", "ticks", ticks)
			return
		case <-timer.C:
		}
	}
}
