package config

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crankwatch",
		Short:         "Monitoring and load-testing harness for embedded HTTP devices",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target
	flags.String("target", "", "Device base address (e.g. http://192.168.4.1:8080)")

	// Monitoring loop
	flags.DurationP("duration", "d", time.Minute, "How long to sample telemetry (e.g. 30s, 24h)")
	flags.DurationP("interval", "i", 5*time.Second, "Cadence between telemetry samples")
	flags.Int("checkpoint-every", 10, "Emit an intermediate report every N samples (0 disables)")

	// Load test
	flags.IntP("workers", "c", 3, "Number of concurrent load workers")
	flags.Duration("load-duration", 30*time.Second, "Load test window (0 skips the load phase)")
	flags.String("load-path", "/api/performance/load", "Endpoint path to drive load against")
	flags.Duration("pacing", 100*time.Millisecond, "Fixed delay each worker sleeps between requests")
	flags.IntP("rate", "r", 0, "Aggregate requests per second cap (0 means unlimited)")

	// Shared
	flags.Duration("timeout", 10*time.Second, "Per-request timeout")
	flags.Float64("stable-threshold", 1000, "Absolute free-heap delta below which a trend is stable")
	flags.Bool("toggle-simulation", false, "Toggle device simulation mode around the run")

	// Output
	flags.Bool("json-output", false, "Emit the final report as JSON on stdout")
	flags.String("output-dir", ".", "Directory for checkpoint artifacts")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
}

func displayHelp(cmd *cobra.Command) {
	_ = cmd.Help()
}
