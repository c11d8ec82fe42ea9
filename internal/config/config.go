// Package config loads and validates harness configuration from flags and
// optional config files.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds everything one harness invocation needs. Validation errors
// are fatal and raised before any run begins; no partial run is attempted.
type Config struct {
	// Target is the device base address, e.g. "http://192.168.4.1:8080".
	Target string `mapstructure:"target"`

	// Monitoring loop.
	Duration        time.Duration `mapstructure:"duration"`
	Interval        time.Duration `mapstructure:"interval"`
	CheckpointEvery int           `mapstructure:"checkpoint_every"`

	// Load test.
	Workers      int           `mapstructure:"workers"`
	LoadDuration time.Duration `mapstructure:"load_duration"`
	LoadPath     string        `mapstructure:"load_path"`
	Pacing       time.Duration `mapstructure:"pacing"`
	Rate         int           `mapstructure:"rate"`

	// Shared.
	Timeout         time.Duration `mapstructure:"timeout"`
	StableThreshold float64       `mapstructure:"stable_threshold"`

	// Scenario: toggle device simulation mode around the run.
	ToggleSimulation bool `mapstructure:"toggle_simulation"`

	// Output.
	JSONOutput bool   `mapstructure:"json_output"`
	OutputDir  string `mapstructure:"output_dir"`
	LogLevel   string `mapstructure:"log_level"`

	ConfigFile string `mapstructure:"-"`
}

// ValidationError aggregates every configuration issue found.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

// Issues returns the individual problems.
func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the configuration before a run starts.
func (c Config) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.Target)
	if target == "" {
		issues = append(issues, "target is required")
	} else {
		u, err := url.Parse(target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			issues = append(issues, fmt.Sprintf("target %q is not a valid http(s) address", target))
		}
	}

	if c.Duration <= 0 {
		issues = append(issues, "duration must be > 0")
	}
	if c.Interval <= 0 {
		issues = append(issues, "interval must be > 0")
	}
	if c.CheckpointEvery < 0 {
		issues = append(issues, "checkpoint-every must be >= 0")
	}
	if c.Workers < 1 {
		issues = append(issues, "workers must be >= 1")
	}
	if c.LoadDuration < 0 {
		issues = append(issues, "load-duration must be >= 0")
	}
	if c.Pacing < 0 {
		issues = append(issues, "pacing must be >= 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.StableThreshold < 0 {
		issues = append(issues, "stable-threshold must be >= 0")
	}
	if c.LoadPath != "" && !strings.HasPrefix(c.LoadPath, "/") {
		issues = append(issues, "load-path must start with /")
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log-level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
