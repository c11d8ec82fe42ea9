package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/torosent/crankwatch/internal/report"
)

// CheckpointWriter persists intermediate and final reports so partial
// results survive a crash or forced stop. Writes go through a temp file
// plus rename, and a flock guards the artifact against a second harness
// instance pointed at the same path. Each write takes a sequence ticket at
// call time; a write whose ticket is older than the artifact's is dropped,
// so a checkpoint still pending in a goroutine can never clobber a report
// issued after it.
type CheckpointWriter struct {
	path   string
	logger *slog.Logger
	seq    atomic.Uint64

	mu      sync.Mutex
	written uint64 // ticket of the report on disk, guarded by mu
	wg      sync.WaitGroup
}

// NewCheckpointWriter writes artifacts to dir, one file per run ID.
func NewCheckpointWriter(dir, runID string, logger *slog.Logger) *CheckpointWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckpointWriter{
		path:   filepath.Join(dir, fmt.Sprintf("crankwatch_%s.json", runID)),
		logger: logger,
	}
}

// Path returns the artifact location.
func (c *CheckpointWriter) Path() string {
	return c.path
}

// WriteAsync persists the report in the background so the sampling loop is
// never paused by disk I/O. Writes are serialized; a newer report always
// lands after an older one.
func (c *CheckpointWriter) WriteAsync(r report.Report) {
	ticket := c.seq.Add(1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.write(ticket, r); err != nil {
			c.logger.Warn("checkpoint write failed", "path", c.path, "err", err)
		}
	}()
}

// Write persists the report synchronously.
func (c *CheckpointWriter) Write(r report.Report) error {
	return c.write(c.seq.Add(1), r)
}

func (c *CheckpointWriter) write(ticket uint64, r report.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A pending checkpoint that lost the race to a later report is stale;
	// the artifact already holds something newer.
	if ticket <= c.written {
		return nil
	}

	lock := flock.New(c.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock checkpoint artifact: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("publish checkpoint: %w", err)
	}
	c.written = ticket
	return nil
}

// Flush waits for in-flight background writes to land.
func (c *CheckpointWriter) Flush() {
	c.wg.Wait()
}
