package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/torosent/crankwatch/internal/capability"
	"github.com/torosent/crankwatch/internal/config"
	"github.com/torosent/crankwatch/internal/control"
	"github.com/torosent/crankwatch/internal/httpclient"
	"github.com/torosent/crankwatch/internal/loadgen"
	"github.com/torosent/crankwatch/internal/output"
	"github.com/torosent/crankwatch/internal/report"
	"github.com/torosent/crankwatch/internal/scheduler"
	"github.com/torosent/crankwatch/internal/stats"
	"github.com/torosent/crankwatch/internal/telemetry"
	"github.com/torosent/crankwatch/internal/testrun"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := httpclient.New(cfg.Timeout)

	logger.Info("probing device capabilities", "target", cfg.Target)
	probe := capability.NewProbe(client, cfg.Target, cfg.Timeout, logger)
	caps := probe.Run(ctx, capability.DefaultDescriptors)

	// A device that answers nothing at all is a configuration problem, not
	// a degraded build. Refuse to start a long run against it.
	if !anyAvailable(caps) {
		return fmt.Errorf("device at %s answered no known endpoint; check the address", cfg.Target)
	}
	if !caps.Available("health") {
		logger.Warn("health endpoint absent, continuing on the remaining capabilities")
	}

	run := testrun.New(testrun.RunConfig{
		Target:          cfg.Target,
		Duration:        cfg.Duration,
		Interval:        cfg.Interval,
		Workers:         cfg.Workers,
		CheckpointEvery: cfg.CheckpointEvery,
	})
	logger.Info("run started", "id", run.ID,
		"duration", cfg.Duration, "interval", cfg.Interval)

	builder := report.NewBuilder(caps, stats.Options{
		StableThreshold: cfg.StableThreshold,
		LoadWindow:      cfg.LoadDuration,
	})
	writer := output.NewCheckpointWriter(cfg.OutputDir, run.ID, logger)

	if cfg.ToggleSimulation {
		ctl := control.NewClient(client, cfg.Target, caps, cfg.Timeout, logger)
		if err := ctl.ToggleSimulation(ctx, true); err != nil {
			// Scenario setup is best effort; the run proceeds either way.
			logger.Warn("could not enable simulation mode", "err", err)
			run.RecordError("/simulation-toggle", testrun.ErrorKindCapabilityDisabled, err.Error())
		} else {
			defer func() {
				restoreCtx, restoreCancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Timeout)
				defer restoreCancel()
				if err := ctl.ToggleSimulation(restoreCtx, false); err != nil {
					logger.Warn("could not restore simulation mode", "err", err)
				}
			}()
		}
	}

	collector := telemetry.NewCollector(client, cfg.Target, caps, cfg.Timeout, logger)
	sched := scheduler.New(scheduler.Options{
		Duration:        cfg.Duration,
		Interval:        cfg.Interval,
		CheckpointEvery: cfg.CheckpointEvery,
		Collector:       collector,
		Checkpoint: func(r *testrun.TestRun) {
			writer.WriteAsync(builder.Build(r))
			logger.Info("checkpoint written", "samples", len(r.Samples), "path", writer.Path())
		},
		Logger: logger,
	})
	sched.Run(ctx, run)

	runLoadPhase(ctx, cfg, caps, client, run, logger)

	run.End = time.Now()
	final := builder.Build(run)

	// Settle pending checkpoints before the final write so the artifact
	// ends the run holding the full report.
	writer.Flush()
	if err := writer.Write(final); err != nil {
		logger.Warn("final artifact write failed", "err", err)
	}
	logger.Info("run finished", "id", run.ID, "artifact", writer.Path())

	if cfg.JSONOutput {
		if err := output.PrintJSON(os.Stdout, final); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, final)
	}

	if !final.Success {
		return fmt.Errorf("run %s failed (score %.0f/100)", run.ID, final.Score)
	}
	return nil
}

// runLoadPhase drives the load test after sampling, skipping it when the
// window is zero, the run was already cancelled, or the endpoint's
// capability is known absent.
func runLoadPhase(ctx context.Context, cfg *config.Config, caps *capability.Map,
	client *http.Client, run *testrun.TestRun, logger *slog.Logger) {

	if cfg.LoadDuration <= 0 || run.Cancelled || ctx.Err() != nil {
		return
	}

	capName := capabilityForPath(cfg.LoadPath)
	if capName != "" && !caps.Available(capName) {
		logger.Info("load endpoint absent in this build, skipping load phase",
			"path", cfg.LoadPath)
		return
	}

	logger.Info("load phase started",
		"workers", cfg.Workers, "duration", cfg.LoadDuration, "path", cfg.LoadPath)

	gen := loadgen.New(loadgen.Options{
		Workers:       cfg.Workers,
		Duration:      cfg.LoadDuration,
		Target:        cfg.Target + cfg.LoadPath,
		Pacing:        cfg.Pacing,
		RatePerSecond: cfg.Rate,
		Capability:    capName,
		Caps:          caps,
		Client:        client,
		Timeout:       cfg.Timeout,
		Logger:        logger,
	})

	if !cfg.JSONOutput {
		progress := output.NewProgressReporter(func() output.ProgressSnapshot {
			total, successes := gen.Progress()
			return output.ProgressSnapshot{Total: total, Successes: successes}
		}, time.Second, os.Stderr)
		progress.Start()
		defer func() {
			progress.Stop()
			fmt.Fprintln(os.Stderr)
		}()
	}

	run.LoadResults = gen.Run(ctx)

	if ctx.Err() != nil {
		run.Cancelled = true
	}
	logger.Info("load phase finished", "requests", len(run.LoadResults))
}

// capabilityForPath maps an endpoint path back to the probed capability
// guarding it. Unknown paths are driven without capability gating.
func capabilityForPath(path string) string {
	for _, d := range capability.DefaultDescriptors {
		if d.Primary == path {
			return d.Name
		}
	}
	return ""
}

func anyAvailable(caps *capability.Map) bool {
	for _, entry := range caps.Snapshot() {
		if entry.Available {
			return true
		}
	}
	return false
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	}))
}
