// Package testrun holds the value types shared by the monitoring and
// load-testing halves of a harness invocation. A TestRun is owned by exactly
// one invocation and is never shared across runs.
package testrun

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrorKind classifies a non-fatal failure observed during a run.
type ErrorKind string

const (
	// ErrorKindTransport covers timeouts and refused or dropped connections.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindParse covers malformed payloads and missing expected fields.
	ErrorKindParse ErrorKind = "parse"
	// ErrorKindStatus covers responses whose status code did not match the
	// expected one. The connection worked; the device answered wrong.
	ErrorKindStatus ErrorKind = "status"
	// ErrorKindCapabilityDisabled marks a 404 on an optional endpoint. It is
	// a downgrade signal, not a failure in the transport sense.
	ErrorKindCapabilityDisabled ErrorKind = "capability_disabled"
)

// Sample is one telemetry observation. It is constructed complete and never
// mutated afterwards.
type Sample struct {
	Timestamp time.Time     `json:"timestamp"`
	FreeHeap  int64         `json:"free_heap,omitempty"`
	HasHeap   bool          `json:"-"`
	Latency   time.Duration `json:"-"`
	LatencyMs float64       `json:"latency_ms"`
	Success   bool          `json:"success"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Endpoint  string        `json:"endpoint,omitempty"`
}

// WorkerResult is the outcome of one load-test request. Produced by exactly
// one worker, published once, then immutable.
type WorkerResult struct {
	Timestamp time.Time     `json:"timestamp"`
	Worker    int           `json:"worker"`
	Success   bool          `json:"success"`
	Latency   time.Duration `json:"-"`
	LatencyMs float64       `json:"latency_ms"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
}

// RunError is a non-fatal error accumulated into the report. Errors never
// abort the enclosing loop.
type RunError struct {
	Timestamp time.Time `json:"timestamp"`
	Endpoint  string    `json:"endpoint"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
}

// RunConfig records the parameters a run was started with.
type RunConfig struct {
	Target          string        `json:"target"`
	Duration        time.Duration `json:"-"`
	DurationSec     float64       `json:"duration_sec"`
	Interval        time.Duration `json:"-"`
	IntervalSec     float64       `json:"interval_sec"`
	Workers         int           `json:"workers"`
	CheckpointEvery int           `json:"checkpoint_every,omitempty"`
}

// TestRun accumulates everything one harness invocation observed. It is not
// safe for concurrent mutation; the scheduler owns it while sampling and the
// load generator drains its sink into it exactly once after workers join.
type TestRun struct {
	ID          string         `json:"id"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	Config      RunConfig      `json:"config"`
	Samples     []Sample       `json:"samples"`
	LoadResults []WorkerResult `json:"load_results,omitempty"`
	Errors      []RunError     `json:"errors,omitempty"`
	Cancelled   bool           `json:"cancelled,omitempty"`
}

// New creates an empty TestRun with a fresh ULID and the given config.
func New(cfg RunConfig) *TestRun {
	cfg.DurationSec = cfg.Duration.Seconds()
	cfg.IntervalSec = cfg.Interval.Seconds()
	return &TestRun{
		ID:     ulid.Make().String(),
		Start:  time.Now(),
		Config: cfg,
	}
}

// AppendSample appends one sample and records its failure, if any, in the
// run's error list. Sample timestamps are monotonically non-decreasing
// because exactly one collection is in flight at a time.
func (r *TestRun) AppendSample(s Sample) {
	r.Samples = append(r.Samples, s)
	if !s.Success && s.ErrorKind != "" {
		r.Errors = append(r.Errors, RunError{
			Timestamp: s.Timestamp,
			Endpoint:  s.Endpoint,
			Kind:      s.ErrorKind,
			Message:   "sample collection failed",
		})
	}
}

// RecordError appends a non-fatal error to the run's error list.
func (r *TestRun) RecordError(endpoint string, kind ErrorKind, message string) {
	r.Errors = append(r.Errors, RunError{
		Timestamp: time.Now(),
		Endpoint:  endpoint,
		Kind:      kind,
		Message:   message,
	})
}

// HeapSeries extracts the free-heap readings from the sample series in
// collection order, skipping samples that carried no heap figure.
func (r *TestRun) HeapSeries() []float64 {
	series := make([]float64, 0, len(r.Samples))
	for _, s := range r.Samples {
		if s.HasHeap {
			series = append(series, float64(s.FreeHeap))
		}
	}
	return series
}
