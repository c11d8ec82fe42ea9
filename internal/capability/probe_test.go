package capability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/torosent/crankwatch/internal/capability"
)

// fakeDevice answers with a per-path status code and 404 for everything else,
// matching how embedded builds drop endpoints that are not compiled in.
func fakeDevice(statuses map[string]int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, ok := statuses[r.URL.Path]
		if !ok {
			status = http.StatusNotFound
		}
		w.WriteHeader(status)
	}))
}

func TestProbeFullBuild(t *testing.T) {
	srv := fakeDevice(map[string]int{
		"/api/health":           200,
		"/api/memory/detailed":  200,
		"/api/performance/load": 200,
	})
	defer srv.Close()

	probe := capability.NewProbe(srv.Client(), srv.URL, time.Second, nil)
	caps := probe.Run(context.Background(), []capability.Descriptor{
		{Name: "health", Primary: "/api/health", Fallback: "/"},
		{Name: "telemetry", Primary: "/api/memory/detailed", Fallback: "/api/memory/stats"},
		{Name: "load", Primary: "/api/performance/load"},
	})

	for _, name := range []string{"health", "telemetry", "load"} {
		e := caps.Lookup(name)
		if !e.Available || e.Mode != capability.ModeFull {
			t.Fatalf("%s = %+v, want available full", name, e)
		}
	}
}

func TestProbeFallsBackToMinimal(t *testing.T) {
	srv := fakeDevice(map[string]int{
		"/api/memory/stats": 200,
	})
	defer srv.Close()

	probe := capability.NewProbe(srv.Client(), srv.URL, time.Second, nil)
	caps := probe.Run(context.Background(), []capability.Descriptor{
		{Name: "telemetry", Primary: "/api/memory/detailed", Fallback: "/api/memory/stats"},
	})

	e := caps.Lookup("telemetry")
	if !e.Available || e.Mode != capability.ModeMinimal {
		t.Fatalf("telemetry = %+v, want available minimal", e)
	}
}

func TestProbeMarksAbsentEndpoints(t *testing.T) {
	srv := fakeDevice(nil)
	defer srv.Close()

	probe := capability.NewProbe(srv.Client(), srv.URL, time.Second, nil)
	caps := probe.Run(context.Background(), []capability.Descriptor{
		{Name: "telemetry", Primary: "/api/memory/detailed", Fallback: "/api/memory/stats"},
		{Name: "load", Primary: "/api/performance/load"},
	})

	if caps.Available("telemetry") || caps.Available("load") {
		t.Fatalf("absent endpoints reported available: %+v", caps.Snapshot())
	}
}

func TestProbeTreatsServerErrorAsUnknown(t *testing.T) {
	srv := fakeDevice(map[string]int{
		"/api/metrics": 500,
	})
	defer srv.Close()

	probe := capability.NewProbe(srv.Client(), srv.URL, time.Second, nil)
	caps := probe.Run(context.Background(), []capability.Descriptor{
		{Name: "metrics", Primary: "/api/metrics"},
	})

	e := caps.Lookup("metrics")
	if e.Available {
		t.Fatalf("unhealthy endpoint must not be planned against")
	}
	if e.Mode != capability.ModeUnknown {
		t.Fatalf("mode = %s, want unknown", e.Mode)
	}
}

func TestProbeTreatsTransportFailureAsUnknown(t *testing.T) {
	srv := fakeDevice(nil)
	srv.Close() // refuse all connections

	probe := capability.NewProbe(srv.Client(), srv.URL, 200*time.Millisecond, nil)
	caps := probe.Run(context.Background(), []capability.Descriptor{
		{Name: "health", Primary: "/api/health", Fallback: "/"},
	})

	e := caps.Lookup("health")
	if e.Available || e.Mode != capability.ModeUnknown {
		t.Fatalf("health = %+v, want unavailable unknown", e)
	}
}
