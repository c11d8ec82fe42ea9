package capability

import "testing"

func TestLookupUnprobedCapability(t *testing.T) {
	m := NewMap()
	e := m.Lookup("telemetry")
	if e.Available {
		t.Fatalf("unprobed capability reported available")
	}
	if e.Mode != ModeUnknown {
		t.Fatalf("unprobed capability mode = %s, want unknown", e.Mode)
	}
}

func TestDisableIsIdempotentAndFinal(t *testing.T) {
	m := NewMap()
	m.set("load", Entry{Available: true, Mode: ModeFull})

	m.Disable("load")
	m.Disable("load")
	if m.Available("load") {
		t.Fatalf("capability still available after Disable")
	}

	// Nothing re-enables an entry for the rest of the run.
	m.Downgrade("load")
	if m.Available("load") {
		t.Fatalf("capability resurrected by Downgrade")
	}
}

func TestDowngradeStepsThroughFidelity(t *testing.T) {
	m := NewMap()
	m.set("telemetry", Entry{Available: true, Mode: ModeFull})

	e := m.Downgrade("telemetry")
	if !e.Available || e.Mode != ModeMinimal {
		t.Fatalf("first downgrade = %+v, want available minimal", e)
	}

	e = m.Downgrade("telemetry")
	if e.Available {
		t.Fatalf("second downgrade should exhaust fidelity, got %+v", e)
	}

	e = m.Downgrade("telemetry")
	if e.Available {
		t.Fatalf("downgrading an unavailable capability must stay unavailable")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewMap()
	m.set("health", Entry{Available: true, Mode: ModeFull})

	snap := m.Snapshot()
	snap["health"] = Entry{Available: false, Mode: ModeUnknown}

	if !m.Available("health") {
		t.Fatalf("mutating a snapshot leaked into the map")
	}
}

func TestIsDisabledStatus(t *testing.T) {
	if !IsDisabledStatus(404) {
		t.Fatalf("404 must signal capability disabled")
	}
	for _, code := range []int{200, 400, 403, 410, 500, 503} {
		if IsDisabledStatus(code) {
			t.Fatalf("status %d wrongly treated as capability disabled", code)
		}
	}
}
