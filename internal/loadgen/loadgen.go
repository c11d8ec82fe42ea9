// Package loadgen drives bursts of concurrent requests against one device
// endpoint for a fixed wall-clock window and aggregates per-request
// outcomes through a shared thread-safe sink.
package loadgen

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/crankwatch/internal/capability"
	"github.com/torosent/crankwatch/internal/testrun"
)

// Options configure a load run.
type Options struct {
	Workers  int           // concurrent workers (>= 1)
	Duration time.Duration // wall-clock window shared by all workers
	Target   string        // absolute URL of the endpoint under load

	// ExpectStatus is the exact status code counted as success. Anything
	// else is a failure; 404 additionally disables the capability. Zero
	// defaults to 200.
	ExpectStatus int

	// Pacing is the fixed delay each worker sleeps between attempts.
	// Zero defaults to 100ms.
	Pacing time.Duration

	// RatePerSecond optionally caps aggregate request rate across workers
	// (0 means unlimited).
	RatePerSecond int

	// Capability names the logical capability behind Target, downgraded in
	// Caps when a worker sees a 404. Either may be empty/nil.
	Capability string
	Caps       *capability.Map

	Client  *http.Client
	Timeout time.Duration // per-call timeout, defaults to 10s
	Logger  *slog.Logger

	// LimiterFactory is injectable for tests.
	LimiterFactory func(rps int) *rate.Limiter
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.ExpectStatus == 0 {
		o.ExpectStatus = http.StatusOK
	}
	if o.Pacing <= 0 {
		o.Pacing = 100 * time.Millisecond
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

// Generator coordinates the worker pool. Workers share exactly two things:
// the result sink and the disabled flag; all loop counters and timers are
// worker-local.
type Generator struct {
	opt      Options
	limiter  *rate.Limiter
	results  *sink
	disabled atomic.Bool
}

func New(opt Options) *Generator {
	opt.normalize()
	return &Generator{
		opt:     opt,
		limiter: opt.LimiterFactory(opt.RatePerSecond),
		results: &sink{},
	}
}

// Run spawns the workers against a single absolute deadline, waits for all
// of them to join, and drains the sink exactly once. Total issued requests
// is the sum of each worker's own iteration count, bounded only by the
// shared deadline.
func (g *Generator) Run(ctx context.Context) []testrun.WorkerResult {
	deadline := time.Now().Add(g.opt.Duration)
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(g.opt.Workers)
	for i := 0; i < g.opt.Workers; i++ {
		go func(worker int) {
			defer wg.Done()
			g.work(runCtx, worker, deadline, g.results)
		}(i)
	}
	wg.Wait()

	return g.results.drain()
}

// Progress reports requests issued and succeeded so far. Safe to call while
// workers are running; after the sink is drained it reports zeros.
func (g *Generator) Progress() (total, successes int) {
	return g.results.counts()
}

func (g *Generator) work(ctx context.Context, worker int, deadline time.Time, results *sink) {
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		if g.disabled.Load() {
			// Another worker already saw the endpoint disabled. Best
			// effort: stop issuing requests that can only 404.
			return
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return
		}

		result, stop := g.attempt(ctx, worker)
		results.publish(result)
		if stop {
			return
		}

		timer := time.NewTimer(g.opt.Pacing)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// attempt issues one request and classifies it. The second return value is
// true when the worker should exit its loop (capability disabled).
func (g *Generator) attempt(ctx context.Context, worker int) (testrun.WorkerResult, bool) {
	start := time.Now()
	result := testrun.WorkerResult{Timestamp: start, Worker: worker}

	// Per-call timeout independent of the shared deadline so a request
	// issued just before the window closes still resolves.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.opt.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, g.opt.Target, nil)
	if err != nil {
		result.ErrorKind = testrun.ErrorKindTransport
		return finish(result, start), false
	}

	resp, err := g.opt.Client.Do(req)
	if err != nil {
		result.ErrorKind = testrun.ErrorKindTransport
		return finish(result, start), false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == g.opt.ExpectStatus:
		result.Success = true
		return finish(result, start), false
	case capability.IsDisabledStatus(resp.StatusCode):
		// Setting the flag twice is idempotent and no worker clears it,
		// so the race between workers observing the first 404 is benign.
		result.ErrorKind = testrun.ErrorKindCapabilityDisabled
		g.disabled.Store(true)
		if g.opt.Caps != nil && g.opt.Capability != "" {
			g.opt.Caps.Disable(g.opt.Capability)
		}
		g.opt.Logger.Info("load endpoint disabled, worker exiting",
			"worker", worker, "target", g.opt.Target)
		return finish(result, start), true
	default:
		result.ErrorKind = testrun.ErrorKindStatus
		return finish(result, start), false
	}
}

// Disabled reports whether any worker observed the capability-disabled
// signal during the run.
func (g *Generator) Disabled() bool {
	return g.disabled.Load()
}

func finish(r testrun.WorkerResult, start time.Time) testrun.WorkerResult {
	r.Latency = time.Since(start)
	r.LatencyMs = float64(r.Latency) / float64(time.Millisecond)
	return r
}
