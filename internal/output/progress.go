package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// ProgressSnapshot is one point-in-time view of a running phase.
type ProgressSnapshot struct {
	Total     int
	Successes int
}

// ProgressReporter rewrites a single status line at a fixed interval while a
// load phase runs. The snapshot func is polled from a background goroutine
// and must be safe to call concurrently with the workers.
type ProgressReporter struct {
	snapshot func() ProgressSnapshot
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	start    time.Time
}

// NewProgressReporter creates a reporter updating at the given interval.
func NewProgressReporter(snapshot func() ProgressSnapshot, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		snapshot: snapshot,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
		start:    time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and waits for the goroutine to exit.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			s := p.snapshot()
			elapsed := time.Since(p.start).Seconds()
			rps := 0.0
			if elapsed > 0 {
				rps = float64(s.Successes) / elapsed
			}
			fmt.Fprintf(p.writer, "\rRequests: %d | Successes: %d | Failures: %d | RPS: %.1f",
				s.Total, s.Successes, s.Total-s.Successes, rps)
		case <-p.done:
			return
		}
	}
}
