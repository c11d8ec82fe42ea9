// Package capability discovers which optional endpoints exist on a target
// device build and tracks their availability for the remainder of a run.
//
// The 404-as-disabled convention lives here and in the telemetry collector
// only: HTTP 404 on an optional endpoint means "not compiled into this
// build". Every other non-2xx status is an ordinary failure.
package capability

import (
	"sync"
)

// Mode describes the fidelity a capability was probed at.
type Mode string

const (
	// ModeFull means the primary endpoint answered.
	ModeFull Mode = "full"
	// ModeMinimal means only the fallback endpoint answered.
	ModeMinimal Mode = "minimal"
	// ModeUnknown means the probe could not establish fidelity.
	ModeUnknown Mode = "unknown"
)

// Entry is the probed state of one logical capability.
type Entry struct {
	Available bool `json:"available"`
	Mode      Mode `json:"mode"`
}

// Map tracks capability state for one run. Entries may only be downgraded
// (available to unavailable) after probing, never upgraded: an endpoint
// observed once as disabled stays disabled for the rest of the run.
// Safe for concurrent use.
type Map struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMap creates an empty capability map.
func NewMap() *Map {
	return &Map{entries: make(map[string]Entry)}
}

// set records the probed state of a capability. Probe-time only.
func (m *Map) set(name string, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = e
}

// Lookup returns the entry for a capability. A capability never probed
// reports unavailable with unknown mode.
func (m *Map) Lookup(name string) Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return Entry{Available: false, Mode: ModeUnknown}
	}
	return e
}

// Available reports whether a capability can be planned against.
func (m *Map) Available(name string) bool {
	return m.Lookup(name).Available
}

// Disable downgrades a capability to unavailable. Idempotent: any worker or
// tick may observe the 404 first, later calls are no-ops, and nothing ever
// re-enables the entry.
func (m *Map) Disable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[name]
	e.Available = false
	m.entries[name] = e
}

// Downgrade steps a capability one level down in fidelity: full becomes
// minimal, minimal becomes unavailable. It never upgrades and is safe to
// call from any tick or worker. The post-downgrade entry is returned.
func (m *Map) Downgrade(name string) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[name]
	switch {
	case e.Available && e.Mode == ModeFull:
		e.Mode = ModeMinimal
	case e.Available:
		e.Available = false
	}
	m.entries[name] = e
	return e
}

// Snapshot returns a copy of the map as finally observed, for reporting.
func (m *Map) Snapshot() map[string]Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Entry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// IsDisabledStatus reports whether an HTTP status carries the
// capability-disabled signal. Exactly one status does.
func IsDisabledStatus(code int) bool {
	return code == 404
}
