// Package output renders reports for humans and machines and persists
// checkpoint artifacts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/torosent/crankwatch/internal/report"
)

// PrintReport writes a human-readable summary.
func PrintReport(w io.Writer, r report.Report) {
	fmt.Fprintf(w, "\n--- Device Harness Report (%s) ---\n", r.RunID)
	fmt.Fprintf(w, "Target:            %s\n", r.Config.Target)
	if r.Cancelled {
		fmt.Fprintln(w, "Run:               cancelled early")
	}

	fmt.Fprintln(w, "\nCapabilities:")
	names := make([]string, 0, len(r.Capabilities))
	for name := range r.Capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := r.Capabilities[name]
		state := "absent"
		if entry.Available {
			state = string(entry.Mode)
		}
		fmt.Fprintf(w, "  - %-12s %s\n", name+":", state)
	}

	fmt.Fprintf(w, "\nMonitoring [%s]:\n", r.Monitoring)
	fmt.Fprintf(w, "  Samples:         %d (%.1f%% ok)\n", r.Stats.Samples.Total, r.Stats.Samples.SuccessRate)
	if r.Stats.Heap.Count > 0 {
		fmt.Fprintf(w, "  Free heap:       %.0f - %.0f bytes (avg %.0f)\n",
			r.Stats.Heap.Min, r.Stats.Heap.Max, r.Stats.Heap.Avg)
		fmt.Fprintf(w, "  Trend:           %s\n", r.Stats.Heap.Trend)
		fmt.Fprintf(w, "  Stability:       %s\n", r.Stats.Heap.Stability)
	}

	fmt.Fprintf(w, "\nLoad Test [%s]:\n", r.LoadTest)
	if r.LoadTest != report.SectionSkipped {
		load := r.Stats.Load
		fmt.Fprintf(w, "  Requests:        %d (%.1f%% ok)\n", load.Total, load.SuccessRate)
		fmt.Fprintf(w, "  Requests/sec:    %.2f\n", load.RequestsPerSec)
		fmt.Fprintln(w, "  Latency:")
		fmt.Fprintf(w, "    Min:           %.1fms\n", load.LatencyMinMs)
		fmt.Fprintf(w, "    Max:           %.1fms\n", load.LatencyMaxMs)
		fmt.Fprintf(w, "    Mean:          %.1fms\n", load.LatencyAvgMs)
		fmt.Fprintf(w, "    Median:        %.1fms\n", load.LatencyMedianMs)
		fmt.Fprintf(w, "    P99:           %.1fms\n", load.LatencyP99Ms)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors (%d):\n", len(r.Errors))
		shown := r.Errors
		if len(shown) > 5 {
			shown = shown[len(shown)-5:]
		}
		for _, e := range shown {
			fmt.Fprintf(w, "  - %s %s [%s] %s\n",
				e.Timestamp.Format("15:04:05"), e.Endpoint, e.Kind, e.Message)
		}
	}

	fmt.Fprintln(w, "\nOverall:")
	if r.NoVerdict {
		fmt.Fprintln(w, "  No categories ran (all capabilities absent)")
		return
	}
	verdict := "FAIL"
	if r.Success {
		verdict = "PASS"
	}
	fmt.Fprintf(w, "  %s (score %.0f/100)\n", verdict, r.Score)
}

// PrintJSON writes the report as indented JSON.
func PrintJSON(w io.Writer, r report.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
