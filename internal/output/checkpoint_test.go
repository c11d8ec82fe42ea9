package output_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/torosent/crankwatch/internal/output"
	"github.com/torosent/crankwatch/internal/report"
)

func TestCheckpointWriteAndReload(t *testing.T) {
	dir := t.TempDir()
	w := output.NewCheckpointWriter(dir, "01JTESTRUN", nil)

	if !strings.HasSuffix(w.Path(), "crankwatch_01JTESTRUN.json") {
		t.Fatalf("artifact path = %q", w.Path())
	}

	r := report.Report{RunID: "01JTESTRUN", Score: 100, Success: true}
	if err := w.Write(r); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := os.ReadFile(w.Path())
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var got report.Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	if got.RunID != "01JTESTRUN" || !got.Success {
		t.Fatalf("reloaded report off: %+v", got)
	}
}

func TestCheckpointOverwriteKeepsLatest(t *testing.T) {
	dir := t.TempDir()
	w := output.NewCheckpointWriter(dir, "01JTESTRUN", nil)

	if err := w.Write(report.Report{RunID: "01JTESTRUN", Score: 50}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := w.Write(report.Report{RunID: "01JTESTRUN", Score: 100}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, err := os.ReadFile(w.Path())
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var got report.Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Score != 100 {
		t.Fatalf("score = %.0f, want the later write", got.Score)
	}

	// One artifact per run, no tmp leftovers.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFinalWriteOutlivesPendingCheckpoint(t *testing.T) {
	for i := 0; i < 20; i++ {
		dir := t.TempDir()
		w := output.NewCheckpointWriter(dir, "01JFINAL", nil)

		// A checkpoint still in flight must never clobber the report
		// issued after it, whichever order the goroutine lands in.
		w.WriteAsync(report.Report{RunID: "01JFINAL", Score: 10})
		if err := w.Write(report.Report{RunID: "01JFINAL", Score: 100, Success: true}); err != nil {
			t.Fatalf("final write: %v", err)
		}
		w.Flush()

		data, err := os.ReadFile(w.Path())
		if err != nil {
			t.Fatalf("read artifact: %v", err)
		}
		var got report.Report
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Score != 100 || !got.Success {
			t.Fatalf("artifact holds a stale checkpoint (score %.0f) instead of the final report", got.Score)
		}
	}
}

func TestCheckpointAsyncFlush(t *testing.T) {
	dir := t.TempDir()
	w := output.NewCheckpointWriter(dir, "01JASYNC", nil)

	w.WriteAsync(report.Report{RunID: "01JASYNC", Score: 75})
	w.Flush()

	if _, err := os.Stat(w.Path()); err != nil {
		t.Fatalf("artifact missing after flush: %v", err)
	}
}
