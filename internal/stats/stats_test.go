package stats_test

import (
	"testing"
	"time"

	"github.com/torosent/crankwatch/internal/stats"
	"github.com/torosent/crankwatch/internal/testrun"
)

func TestClassifyTrend(t *testing.T) {
	cases := []struct {
		name      string
		series    []float64
		threshold float64
		want      stats.TrendClass
	}{
		{
			name:   "small drift is stable",
			series: []float64{120000, 119500, 119000, 119200, 119300},
			want:   stats.TrendStable,
		},
		{
			name:   "rising halves improve",
			series: []float64{100000, 100000, 140000, 140000},
			want:   stats.TrendImproving,
		},
		{
			name:   "falling halves decline",
			series: []float64{140000, 140000, 100000, 100000},
			want:   stats.TrendDeclining,
		},
		{
			name:   "single point insufficient",
			series: []float64{120000},
			want:   stats.TrendInsufficient,
		},
		{
			name:   "empty insufficient",
			series: nil,
			want:   stats.TrendInsufficient,
		},
		{
			name:      "threshold widens the stable band",
			series:    []float64{100000, 100000, 140000, 140000},
			threshold: 50000,
			want:      stats.TrendStable,
		},
		{
			name: "order matters for identical values",
			// Same multiset as "rising halves" but interleaved.
			series: []float64{100000, 140000, 100000, 140000},
			want:   stats.TrendStable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := stats.ClassifyTrend(tc.series, tc.threshold)
			if got != tc.want {
				t.Fatalf("ClassifyTrend(%v) = %s, want %s", tc.series, got, tc.want)
			}
		})
	}
}

func TestClassifyStability(t *testing.T) {
	cases := []struct {
		name   string
		series []float64
		want   stats.StabilityClass
	}{
		{
			name:   "tight series is excellent",
			series: []float64{100000, 101000, 99500},
			want:   stats.StabilityExcellent,
		},
		{
			name:   "wild series is poor",
			series: []float64{100000, 150000, 50000},
			want:   stats.StabilityPoor,
		},
		{
			name:   "two points insufficient",
			series: []float64{100000, 100000},
			want:   stats.StabilityInsufficient,
		},
		{
			name:   "zero mean insufficient",
			series: []float64{0, 0, 0},
			want:   stats.StabilityInsufficient,
		},
		{
			// Dispersion is sign-blind: a wildly varying negative series
			// must not bucket as excellent through a negative ratio.
			name:   "negative mean uses absolute value",
			series: []float64{-100000, -150000, -50000},
			want:   stats.StabilityPoor,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := stats.ClassifyStability(tc.series)
			if got != tc.want {
				t.Fatalf("ClassifyStability(%v) = %s, want %s", tc.series, got, tc.want)
			}
		})
	}
}

func TestSummarizeSeries(t *testing.T) {
	s := stats.SummarizeSeries([]float64{120000, 119500, 119000, 119200, 119300}, 0)
	if s.Count != 5 {
		t.Fatalf("count = %d, want 5", s.Count)
	}
	if s.Min != 119000 || s.Max != 120000 {
		t.Fatalf("min/max = %.0f/%.0f, want 119000/120000", s.Min, s.Max)
	}
	if s.Trend != stats.TrendStable {
		t.Fatalf("trend = %s, want stable", s.Trend)
	}
	if s.Stability != stats.StabilityExcellent {
		t.Fatalf("stability = %s, want excellent", s.Stability)
	}
}

func TestSummarizeLoadPartitionsOutcomes(t *testing.T) {
	results := []testrun.WorkerResult{
		{Success: true, Latency: 10 * time.Millisecond},
		{Success: true, Latency: 20 * time.Millisecond},
		{Success: true, Latency: 30 * time.Millisecond},
		{Success: false, ErrorKind: testrun.ErrorKindTransport},
		{Success: false, ErrorKind: testrun.ErrorKindCapabilityDisabled},
	}

	s := stats.SummarizeLoad(results, 10*time.Second)
	if s.Total != 5 || s.Successes != 3 || s.Failures != 2 || s.Disabled != 1 {
		t.Fatalf("partition off: total=%d successes=%d failures=%d disabled=%d",
			s.Total, s.Successes, s.Failures, s.Disabled)
	}
	if s.SuccessRate != 60 {
		t.Fatalf("success rate = %.1f, want 60", s.SuccessRate)
	}
	if s.LatencyMinMs != 10 || s.LatencyMaxMs != 30 {
		t.Fatalf("latency min/max = %.1f/%.1f, want 10/30", s.LatencyMinMs, s.LatencyMaxMs)
	}
	if s.LatencyAvgMs != 20 {
		t.Fatalf("latency avg = %.1f, want 20", s.LatencyAvgMs)
	}
	// Three successes over a ten second window.
	if s.RequestsPerSec != 0.3 {
		t.Fatalf("throughput = %.2f, want 0.30", s.RequestsPerSec)
	}
}

func TestSummarizeLoadNoResults(t *testing.T) {
	s := stats.SummarizeLoad(nil, time.Minute)
	if !s.NoResults {
		t.Fatalf("expected NoResults for empty input")
	}
	if s.SuccessRate != 0 {
		t.Fatalf("success rate = %.1f, want 0", s.SuccessRate)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	run := testrun.New(testrun.RunConfig{Target: "http://device"})
	run.AppendSample(testrun.Sample{Success: true, FreeHeap: 120000, HasHeap: true, Latency: 5 * time.Millisecond})
	run.AppendSample(testrun.Sample{Success: true, FreeHeap: 119000, HasHeap: true, Latency: 7 * time.Millisecond})
	run.AppendSample(testrun.Sample{Success: false, ErrorKind: testrun.ErrorKindTransport})
	run.LoadResults = []testrun.WorkerResult{
		{Success: true, Latency: 12 * time.Millisecond},
	}

	opts := stats.Options{LoadWindow: time.Second}
	first := stats.Compute(run, opts)
	second := stats.Compute(run, opts)
	if first != second {
		t.Fatalf("aggregates differ across identical computes:\n%+v\n%+v", first, second)
	}
	if first.Samples.Total != 3 || first.Samples.Successes != 2 {
		t.Fatalf("sample summary off: %+v", first.Samples)
	}
	if first.Heap.Count != 2 {
		t.Fatalf("heap series should skip samples without a heap figure, count = %d", first.Heap.Count)
	}
}
