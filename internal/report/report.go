// Package report assembles the structured, regenerable report for a run.
// Building is purely derived: call it at any point of a run's lifetime, as
// often as needed, and the run is never mutated. Writing the report
// anywhere is the caller's concern.
package report

import (
	"github.com/torosent/crankwatch/internal/capability"
	"github.com/torosent/crankwatch/internal/stats"
	"github.com/torosent/crankwatch/internal/testrun"
)

// SectionStatus is the verdict for one test category.
type SectionStatus string

const (
	// SectionPassed means the category ran and met its threshold.
	SectionPassed SectionStatus = "passed"
	// SectionFailed means the category ran and missed its threshold.
	SectionFailed SectionStatus = "failed"
	// SectionSkipped means the capability behind the category is absent
	// from this build. Skipped is not failed: it is excluded from the
	// overall score's denominator.
	SectionSkipped SectionStatus = "skipped"
)

// Thresholds below which a category that did run counts as failed. Sampling
// tolerates more noise than load because a single dropped poll of an
// embedded device is routine.
const (
	monitoringPassRate = 80.0
	loadPassRate       = 90.0
)

// Report is the full structured output of one run.
type Report struct {
	RunID        string                      `json:"run_id"`
	Config       testrun.RunConfig           `json:"config"`
	Cancelled    bool                        `json:"cancelled,omitempty"`
	Capabilities map[string]capability.Entry `json:"capabilities"`
	Samples      []testrun.Sample            `json:"samples"`
	Stats        stats.Aggregate             `json:"stats"`
	Errors       []testrun.RunError          `json:"errors,omitempty"`

	Monitoring SectionStatus `json:"monitoring"`
	LoadTest   SectionStatus `json:"load_test"`

	// Success and Score fold the section verdicts into the externally
	// visible result. Skipped sections are excluded from the denominator;
	// NoVerdict flags the degenerate everything-skipped case.
	Success   bool    `json:"success"`
	Score     float64 `json:"score"`
	NoVerdict bool    `json:"no_verdict,omitempty"`
}

// Builder derives reports from run state. It holds only configuration, no
// run state, so one builder serves checkpoints and the final report alike.
type Builder struct {
	caps *capability.Map
	opts stats.Options
}

// NewBuilder creates a builder reading capability state from caps.
func NewBuilder(caps *capability.Map, opts stats.Options) *Builder {
	return &Builder{caps: caps, opts: opts}
}

// Build assembles the report for the run's current state. Two calls on an
// unchanged run yield identical aggregates.
func (b *Builder) Build(run *testrun.TestRun) Report {
	agg := stats.Compute(run, b.opts)

	r := Report{
		RunID:        run.ID,
		Config:       run.Config,
		Cancelled:    run.Cancelled,
		Capabilities: b.caps.Snapshot(),
		Samples:      run.Samples,
		Stats:        agg,
		Errors:       run.Errors,
		Monitoring:   monitoringStatus(agg),
		LoadTest:     loadStatus(agg),
	}

	r.Success, r.Score, r.NoVerdict = verdict(r.Monitoring, r.LoadTest)
	return r
}

func monitoringStatus(agg stats.Aggregate) SectionStatus {
	if agg.Samples.Total == 0 {
		return SectionSkipped
	}
	if agg.Samples.SuccessRate >= monitoringPassRate {
		return SectionPassed
	}
	return SectionFailed
}

func loadStatus(agg stats.Aggregate) SectionStatus {
	if agg.Load.NoResults {
		return SectionSkipped
	}
	// Every attempt bouncing off a 404 means the endpoint is not compiled
	// into this build: the category never really ran.
	if agg.Load.Successes == 0 && agg.Load.Disabled == agg.Load.Failures {
		return SectionSkipped
	}
	if agg.Load.SuccessRate >= loadPassRate {
		return SectionPassed
	}
	return SectionFailed
}

// verdict folds section statuses into the overall pass/fail plus a score
// over the categories that actually ran.
func verdict(sections ...SectionStatus) (success bool, score float64, noVerdict bool) {
	ran, passed := 0, 0
	for _, s := range sections {
		if s == SectionSkipped {
			continue
		}
		ran++
		if s == SectionPassed {
			passed++
		}
	}
	if ran == 0 {
		return true, 0, true
	}
	return passed == ran, float64(passed) / float64(ran) * 100, false
}
