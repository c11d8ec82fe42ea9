package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load([]string{"--target", "http://192.168.4.1:8080"})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Target != "http://192.168.4.1:8080" {
		t.Fatalf("target = %q", cfg.Target)
	}
	if cfg.Duration != time.Minute {
		t.Fatalf("default duration = %s, want 1m", cfg.Duration)
	}
	if cfg.Interval != 5*time.Second {
		t.Fatalf("default interval = %s, want 5s", cfg.Interval)
	}
	if cfg.CheckpointEvery != 10 {
		t.Fatalf("default checkpoint-every = %d, want 10", cfg.CheckpointEvery)
	}
	if cfg.Workers != 3 {
		t.Fatalf("default workers = %d, want 3", cfg.Workers)
	}
	if cfg.Pacing != 100*time.Millisecond {
		t.Fatalf("default pacing = %s, want 100ms", cfg.Pacing)
	}
	if cfg.LoadPath != "/api/performance/load" {
		t.Fatalf("default load-path = %q", cfg.LoadPath)
	}
	if cfg.StableThreshold != 1000 {
		t.Fatalf("default stable-threshold = %.0f, want 1000", cfg.StableThreshold)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("default log-level = %q, want info", cfg.LogLevel)
	}
}

func TestLoadNoArgsRequestsHelp(t *testing.T) {
	_, err := NewLoader().Load(nil)
	if !errors.Is(err, ErrHelpRequested) {
		t.Fatalf("err = %v, want ErrHelpRequested", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harness.yaml")
	content := `
target: http://10.0.0.5
duration: 2h
interval: 30s
workers: 5
load_duration: 1m
stable_threshold: 2000
json_output: true
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Target != "http://10.0.0.5" {
		t.Fatalf("target = %q", cfg.Target)
	}
	if cfg.Duration != 2*time.Hour {
		t.Fatalf("duration = %s, want 2h", cfg.Duration)
	}
	if cfg.Interval != 30*time.Second {
		t.Fatalf("interval = %s, want 30s", cfg.Interval)
	}
	if cfg.Workers != 5 {
		t.Fatalf("workers = %d, want 5", cfg.Workers)
	}
	if cfg.LoadDuration != time.Minute {
		t.Fatalf("load-duration = %s, want 1m", cfg.LoadDuration)
	}
	if cfg.StableThreshold != 2000 {
		t.Fatalf("stable-threshold = %.0f, want 2000", cfg.StableThreshold)
	}
	if !cfg.JSONOutput {
		t.Fatalf("json_output not honored")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log-level = %q, want debug", cfg.LogLevel)
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harness.yaml")
	content := `
target: http://10.0.0.5
workers: 5
interval: 30s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := NewLoader().Load([]string{
		"--config", path,
		"--workers", "8",
		"--target", "http://10.0.0.9",
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Workers != 8 {
		t.Fatalf("flag did not override config file: workers = %d", cfg.Workers)
	}
	if cfg.Target != "http://10.0.0.9" {
		t.Fatalf("flag did not override config file: target = %q", cfg.Target)
	}
	// Untouched settings still come from the file.
	if cfg.Interval != 30*time.Second {
		t.Fatalf("interval = %s, want 30s from file", cfg.Interval)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := NewLoader().Load([]string{"--config", "/does/not/exist.yaml"})
	if err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
