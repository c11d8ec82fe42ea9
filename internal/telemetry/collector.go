// Package telemetry performs single telemetry fetches against the device,
// consulting the capability map for the best available endpoint and parsing
// either structured or free-text responses into uniform samples.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/torosent/crankwatch/internal/capability"
	"github.com/torosent/crankwatch/internal/testrun"
)

// CapabilityTelemetry is the logical capability the collector consumes.
const CapabilityTelemetry = "telemetry"

// maxBodyBytes caps how much of a telemetry response is read. Device status
// pages are small; anything larger is truncated before parsing.
const maxBodyBytes = 64 * 1024

// endpointForMode maps telemetry fidelity to the endpoint serving it.
var endpointForMode = map[capability.Mode]string{
	capability.ModeFull:    "/api/memory/detailed",
	capability.ModeMinimal: "/api/memory/stats",
}

// Collector fetches one telemetry sample per call. It is a pure function of
// capability-map state and the network response: no retries on transport
// failure (the scheduler's next tick is the retry) and at most one fallback
// hop on a mid-run 404.
type Collector struct {
	client  *http.Client
	base    string
	caps    *capability.Map
	timeout time.Duration
	logger  *slog.Logger
}

// NewCollector creates a collector for the given base address. A zero
// timeout defaults to 10s.
func NewCollector(client *http.Client, base string, caps *capability.Map, timeout time.Duration, logger *slog.Logger) *Collector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		client:  client,
		base:    strings.TrimRight(base, "/"),
		caps:    caps,
		timeout: timeout,
		logger:  logger,
	}
}

// Collect performs one telemetry fetch and always returns a sample; errors
// never escape the collector boundary. A 404 downgrades the telemetry
// capability in the shared map and retries once against the next fallback
// within the same tick, never recursing further.
func (c *Collector) Collect(ctx context.Context) testrun.Sample {
	entry := c.caps.Lookup(CapabilityTelemetry)
	if !entry.Available {
		return testrun.Sample{
			Timestamp: time.Now(),
			Success:   false,
			ErrorKind: testrun.ErrorKindCapabilityDisabled,
		}
	}

	sample, retry := c.fetch(ctx, entry.Mode)
	if retry {
		// The endpoint vanished mid-run. Downgrade is permanent for this
		// run; retry the next link in the chain exactly once.
		downgraded := c.caps.Downgrade(CapabilityTelemetry)
		c.logger.Info("telemetry endpoint disabled, downgrading",
			"mode", downgraded.Mode, "available", downgraded.Available)
		if !downgraded.Available {
			return testrun.Sample{
				Timestamp: time.Now(),
				Success:   false,
				ErrorKind: testrun.ErrorKindCapabilityDisabled,
			}
		}
		sample, retry = c.fetch(ctx, downgraded.Mode)
		if retry {
			// Second 404 in one tick: disable outright, no further hops.
			c.caps.Disable(CapabilityTelemetry)
			return testrun.Sample{
				Timestamp: time.Now(),
				Success:   false,
				ErrorKind: testrun.ErrorKindCapabilityDisabled,
			}
		}
	}
	return sample
}

// fetch issues one request for the given fidelity. The second return value
// is true when the endpoint answered 404 and the caller should downgrade.
func (c *Collector) fetch(ctx context.Context, mode capability.Mode) (testrun.Sample, bool) {
	path := endpointForMode[mode]
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sample := testrun.Sample{Timestamp: start, Endpoint: path}

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.base+path, nil)
	if err != nil {
		sample.ErrorKind = testrun.ErrorKindTransport
		return finish(sample, start), false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		sample.ErrorKind = testrun.ErrorKindTransport
		return finish(sample, start), false
	}
	defer resp.Body.Close()

	if capability.IsDisabledStatus(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return testrun.Sample{}, true
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The endpoint is reachable but answered wrong; not a transport
		// fault, and only 404 carries the disabled signal.
		_, _ = io.Copy(io.Discard, resp.Body)
		sample.ErrorKind = testrun.ErrorKindStatus
		return finish(sample, start), false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		sample.ErrorKind = testrun.ErrorKindTransport
		return finish(sample, start), false
	}

	heap, err := parseHeap(resp.Header.Get("Content-Type"), body)
	if err != nil {
		c.logger.Warn("telemetry parse failure", "endpoint", path, "err", err)
		sample.ErrorKind = testrun.ErrorKindParse
		return finish(sample, start), false
	}

	sample.FreeHeap = heap
	sample.HasHeap = true
	sample.Success = true
	return finish(sample, start), false
}

func finish(s testrun.Sample, start time.Time) testrun.Sample {
	s.Latency = time.Since(start)
	s.LatencyMs = float64(s.Latency) / float64(time.Millisecond)
	return s
}
