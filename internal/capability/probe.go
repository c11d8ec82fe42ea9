package capability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Descriptor names one optional endpoint class to probe. A capability with a
// fallback degrades in fidelity rather than vanishing when the primary
// endpoint is absent from the build.
type Descriptor struct {
	Name     string // logical capability name, e.g. "telemetry"
	Primary  string // primary endpoint path
	Fallback string // optional fallback path, "" if none
}

// DefaultDescriptors covers the endpoint classes a device build may expose.
var DefaultDescriptors = []Descriptor{
	{Name: "health", Primary: "/api/health", Fallback: "/"},
	{Name: "telemetry", Primary: "/api/memory/detailed", Fallback: "/api/memory/stats"},
	{Name: "metrics", Primary: "/api/metrics"},
	{Name: "performance", Primary: "/api/performance/test"},
	{Name: "load", Primary: "/api/performance/load"},
	{Name: "benchmark", Primary: "/api/performance/benchmark"},
	{Name: "control", Primary: "/simulation-toggle"},
}

// Probe discovers capability state once per run. It has no side effects
// beyond the outbound requests and terminates within
// len(descriptors) * 2 * timeout.
type Probe struct {
	client  *http.Client
	base    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewProbe creates a probe against the given base address. A zero timeout
// defaults to 10s.
func NewProbe(client *http.Client, base string, timeout time.Duration, logger *slog.Logger) *Probe {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		client:  client,
		base:    strings.TrimRight(base, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// Run probes every descriptor and returns the resulting capability map.
// A 200 on the primary marks the capability full, a 200 on the fallback
// marks it minimal, a 404 on both marks it absent, and any transport
// failure leaves it unknown; unknown is treated as unavailable because the
// probe never assumes availability in the face of uncertainty.
func (p *Probe) Run(ctx context.Context, descriptors []Descriptor) *Map {
	m := NewMap()
	for _, d := range descriptors {
		m.set(d.Name, p.probeOne(ctx, d))
	}
	return m
}

func (p *Probe) probeOne(ctx context.Context, d Descriptor) Entry {
	status, err := p.head(ctx, d.Primary)
	switch {
	case err == nil && status >= 200 && status < 300:
		p.logger.Debug("capability probed", "capability", d.Name, "mode", ModeFull)
		return Entry{Available: true, Mode: ModeFull}
	case err == nil && IsDisabledStatus(status):
		if d.Fallback == "" {
			p.logger.Info("capability absent in this build", "capability", d.Name, "path", d.Primary)
			return Entry{Available: false, Mode: ModeUnknown}
		}
		return p.probeFallback(ctx, d)
	case err != nil:
		p.logger.Warn("capability probe transport failure", "capability", d.Name, "err", err)
		return Entry{Available: false, Mode: ModeUnknown}
	default:
		// Any other status: the endpoint exists but is unhealthy. Treated
		// as unknown, which plans as unavailable.
		p.logger.Warn("capability probe unexpected status", "capability", d.Name, "status", status)
		return Entry{Available: false, Mode: ModeUnknown}
	}
}

func (p *Probe) probeFallback(ctx context.Context, d Descriptor) Entry {
	status, err := p.head(ctx, d.Fallback)
	if err == nil && status >= 200 && status < 300 {
		p.logger.Info("capability degraded to fallback", "capability", d.Name, "path", d.Fallback)
		return Entry{Available: true, Mode: ModeMinimal}
	}
	if err == nil && IsDisabledStatus(status) {
		p.logger.Info("capability absent in this build", "capability", d.Name, "path", d.Fallback)
		return Entry{Available: false, Mode: ModeUnknown}
	}
	return Entry{Available: false, Mode: ModeUnknown}
}

// head issues one bounded GET and reports the status code. The body is
// drained and discarded so the connection can be reused.
func (p *Probe) head(ctx context.Context, path string) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, p.base+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
