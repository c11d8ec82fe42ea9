// Package stats classifies telemetry time series for trend and stability
// and aggregates load-test outcomes. Every function here is pure: the same
// inputs always produce the same outputs and nothing mutates the run.
package stats

import (
	"math"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/crankwatch/internal/testrun"
)

// TrendClass is the qualitative direction of a series.
type TrendClass string

const (
	TrendStable       TrendClass = "stable"
	TrendImproving    TrendClass = "improving"
	TrendDeclining    TrendClass = "declining"
	TrendInsufficient TrendClass = "insufficient_data"
)

// StabilityClass buckets a series by coefficient of variation.
type StabilityClass string

const (
	StabilityExcellent    StabilityClass = "excellent"
	StabilityGood         StabilityClass = "good"
	StabilityModerate     StabilityClass = "moderate"
	StabilityPoor         StabilityClass = "poor"
	StabilityInsufficient StabilityClass = "insufficient_data"
)

// DefaultStableThreshold is the absolute half-mean delta below which a heap
// series counts as stable: one kilobyte of drift over a run is noise.
const DefaultStableThreshold = 1000.0

// nearZero guards the coefficient-of-variation division.
const nearZero = 1e-9

// ClassifyTrend splits the series into halves, compares their means, and
// classifies the delta against the threshold. Order matters: the same
// values in a different order can classify differently.
func ClassifyTrend(series []float64, stableThreshold float64) TrendClass {
	if len(series) < 2 {
		return TrendInsufficient
	}
	if stableThreshold <= 0 {
		stableThreshold = DefaultStableThreshold
	}

	half := len(series) / 2
	firstMean := mean(series[:half])
	secondMean := mean(series[half:])
	delta := secondMean - firstMean

	switch {
	case math.Abs(delta) < stableThreshold:
		return TrendStable
	case delta > 0:
		return TrendImproving
	default:
		return TrendDeclining
	}
}

// ClassifyStability buckets the population coefficient of variation. A zero
// or near-zero mean yields insufficient_data rather than a division fault.
func ClassifyStability(series []float64) StabilityClass {
	if len(series) < 3 {
		return StabilityInsufficient
	}

	avg := mean(series)
	if math.Abs(avg) < nearZero {
		return StabilityInsufficient
	}

	variance := 0.0
	for _, v := range series {
		d := v - avg
		variance += d * d
	}
	variance /= float64(len(series))
	ratio := math.Sqrt(variance) / math.Abs(avg)

	switch {
	case ratio < 0.05:
		return StabilityExcellent
	case ratio < 0.10:
		return StabilityGood
	case ratio < 0.20:
		return StabilityModerate
	default:
		return StabilityPoor
	}
}

func mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range series {
		total += v
	}
	return total / float64(len(series))
}

// SeriesSummary aggregates a numeric time series.
type SeriesSummary struct {
	Count     int            `json:"count"`
	Min       float64        `json:"min"`
	Max       float64        `json:"max"`
	Avg       float64        `json:"avg"`
	Trend     TrendClass     `json:"trend"`
	Stability StabilityClass `json:"stability"`
}

// SummarizeSeries computes min/max/avg plus trend and stability classes.
func SummarizeSeries(series []float64, stableThreshold float64) SeriesSummary {
	s := SeriesSummary{
		Count:     len(series),
		Trend:     ClassifyTrend(series, stableThreshold),
		Stability: ClassifyStability(series),
	}
	if len(series) == 0 {
		return s
	}
	s.Min = series[0]
	s.Max = series[0]
	total := 0.0
	for _, v := range series {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		total += v
	}
	s.Avg = total / float64(len(series))
	return s
}

// LoadSummary aggregates load-test worker outcomes. Latency statistics
// cover only the successful subset.
type LoadSummary struct {
	Total     int `json:"total"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
	Disabled  int `json:"disabled"`

	// NoResults flags the degenerate zero-request case explicitly instead
	// of reporting a meaningless 0% rate.
	NoResults   bool    `json:"no_results,omitempty"`
	SuccessRate float64 `json:"success_rate"`

	LatencyAvgMs    float64 `json:"latency_avg_ms"`
	LatencyMinMs    float64 `json:"latency_min_ms"`
	LatencyMaxMs    float64 `json:"latency_max_ms"`
	LatencyMedianMs float64 `json:"latency_median_ms"`
	LatencyP90Ms    float64 `json:"latency_p90_ms"`
	LatencyP99Ms    float64 `json:"latency_p99_ms"`

	RequestsPerSec float64 `json:"requests_per_sec"`
}

// SummarizeLoad partitions worker results and computes latency aggregates
// over the successes. Throughput is successes over the configured window.
func SummarizeLoad(results []testrun.WorkerResult, duration time.Duration) LoadSummary {
	s := LoadSummary{Total: len(results)}
	if len(results) == 0 {
		s.NoResults = true
		return s
	}

	// Latencies from 1µs to 60s at 3 significant figures.
	hist := hdrhistogram.New(1, 60_000_000, 3)
	var sumLatency time.Duration
	var minLatency, maxLatency time.Duration

	for _, r := range results {
		if !r.Success {
			s.Failures++
			if r.ErrorKind == testrun.ErrorKindCapabilityDisabled {
				s.Disabled++
			}
			continue
		}
		s.Successes++
		sumLatency += r.Latency
		if s.Successes == 1 || r.Latency < minLatency {
			minLatency = r.Latency
		}
		if r.Latency > maxLatency {
			maxLatency = r.Latency
		}
		us := r.Latency.Microseconds()
		if us < hist.LowestTrackableValue() {
			us = hist.LowestTrackableValue()
		}
		if us > hist.HighestTrackableValue() {
			us = hist.HighestTrackableValue()
		}
		_ = hist.RecordValue(us)
	}

	s.SuccessRate = float64(s.Successes) / float64(s.Total) * 100

	if s.Successes > 0 {
		s.LatencyAvgMs = float64(sumLatency) / float64(s.Successes) / float64(time.Millisecond)
		s.LatencyMinMs = float64(minLatency) / float64(time.Millisecond)
		s.LatencyMaxMs = float64(maxLatency) / float64(time.Millisecond)
		s.LatencyMedianMs = float64(hist.ValueAtQuantile(50)) / 1000
		s.LatencyP90Ms = float64(hist.ValueAtQuantile(90)) / 1000
		s.LatencyP99Ms = float64(hist.ValueAtQuantile(99)) / 1000
		if duration > 0 {
			s.RequestsPerSec = float64(s.Successes) / duration.Seconds()
		}
	}
	return s
}

// SampleSummary aggregates the scheduler's sample series outcomes.
type SampleSummary struct {
	Total       int     `json:"total"`
	Successes   int     `json:"successes"`
	Failures    int     `json:"failures"`
	SuccessRate float64 `json:"success_rate"`
	LatencyAvgMs float64 `json:"latency_avg_ms"`
}

// Aggregate is the full derived view of one run. It is recomputable at any
// point of the run's lifetime and never mutates the run.
type Aggregate struct {
	Heap    SeriesSummary `json:"heap"`
	Samples SampleSummary `json:"samples"`
	Load    LoadSummary   `json:"load"`
}

// Options tune aggregation.
type Options struct {
	// StableThreshold is the absolute delta below which a heap trend is
	// stable. Zero selects DefaultStableThreshold.
	StableThreshold float64
	// LoadWindow is the configured load-test duration, for throughput.
	LoadWindow time.Duration
}

// Compute derives the aggregate view of a run.
func Compute(run *testrun.TestRun, opts Options) Aggregate {
	agg := Aggregate{
		Heap: SummarizeSeries(run.HeapSeries(), opts.StableThreshold),
		Load: SummarizeLoad(run.LoadResults, opts.LoadWindow),
	}

	agg.Samples.Total = len(run.Samples)
	var sumLatency time.Duration
	for _, s := range run.Samples {
		if s.Success {
			agg.Samples.Successes++
			sumLatency += s.Latency
		} else {
			agg.Samples.Failures++
		}
	}
	if agg.Samples.Total > 0 {
		agg.Samples.SuccessRate = float64(agg.Samples.Successes) / float64(agg.Samples.Total) * 100
	}
	if agg.Samples.Successes > 0 {
		agg.Samples.LatencyAvgMs = float64(sumLatency) / float64(agg.Samples.Successes) / float64(time.Millisecond)
	}
	return agg
}
