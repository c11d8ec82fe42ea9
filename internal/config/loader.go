package config

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line
// arguments. Flag values override config-file values.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and an optional config file into a
// Config. Defaults come from the flag definitions.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flags := cmd.Flags()
	if helpFlag := flags.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flags.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfg := defaultsFromFlags(flags)
	cfg.ConfigFile = configPath

	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		if err := decodeSettings(v.AllSettings(), cfg); err != nil {
			return nil, err
		}
	}

	if err := applyFlagOverrides(cfg, flags); err != nil {
		return nil, err
	}

	cfg.Target = strings.TrimSpace(cfg.Target)
	cfg.LoadPath = strings.TrimSpace(cfg.LoadPath)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	return cfg, nil
}

// defaultsFromFlags seeds the config with flag default values.
func defaultsFromFlags(flags *pflag.FlagSet) *Config {
	cfg := &Config{}
	// Errors are impossible here: the flags were just defined with typed
	// defaults.
	cfg.Target, _ = flags.GetString("target")
	cfg.Duration, _ = flags.GetDuration("duration")
	cfg.Interval, _ = flags.GetDuration("interval")
	cfg.CheckpointEvery, _ = flags.GetInt("checkpoint-every")
	cfg.Workers, _ = flags.GetInt("workers")
	cfg.LoadDuration, _ = flags.GetDuration("load-duration")
	cfg.LoadPath, _ = flags.GetString("load-path")
	cfg.Pacing, _ = flags.GetDuration("pacing")
	cfg.Rate, _ = flags.GetInt("rate")
	cfg.Timeout, _ = flags.GetDuration("timeout")
	cfg.StableThreshold, _ = flags.GetFloat64("stable-threshold")
	cfg.ToggleSimulation, _ = flags.GetBool("toggle-simulation")
	cfg.JSONOutput, _ = flags.GetBool("json-output")
	cfg.OutputDir, _ = flags.GetString("output-dir")
	cfg.LogLevel, _ = flags.GetString("log-level")
	return cfg
}

// decodeSettings maps config-file settings onto cfg, accepting duration
// strings like "30s" and bare numbers of seconds.
func decodeSettings(settings map[string]any, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(settings)
}

// applyFlagOverrides re-applies any flag the user set explicitly so it wins
// over the config file.
func applyFlagOverrides(cfg *Config, flags *pflag.FlagSet) error {
	var firstErr error
	set := func(name string, apply func() error) {
		if flags.Changed(name) {
			if err := apply(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	set("target", func() error { v, err := flags.GetString("target"); cfg.Target = v; return err })
	set("duration", func() error { v, err := flags.GetDuration("duration"); cfg.Duration = v; return err })
	set("interval", func() error { v, err := flags.GetDuration("interval"); cfg.Interval = v; return err })
	set("checkpoint-every", func() error { v, err := flags.GetInt("checkpoint-every"); cfg.CheckpointEvery = v; return err })
	set("workers", func() error { v, err := flags.GetInt("workers"); cfg.Workers = v; return err })
	set("load-duration", func() error { v, err := flags.GetDuration("load-duration"); cfg.LoadDuration = v; return err })
	set("load-path", func() error { v, err := flags.GetString("load-path"); cfg.LoadPath = v; return err })
	set("pacing", func() error { v, err := flags.GetDuration("pacing"); cfg.Pacing = v; return err })
	set("rate", func() error { v, err := flags.GetInt("rate"); cfg.Rate = v; return err })
	set("timeout", func() error { v, err := flags.GetDuration("timeout"); cfg.Timeout = v; return err })
	set("stable-threshold", func() error { v, err := flags.GetFloat64("stable-threshold"); cfg.StableThreshold = v; return err })
	set("toggle-simulation", func() error { v, err := flags.GetBool("toggle-simulation"); cfg.ToggleSimulation = v; return err })
	set("json-output", func() error { v, err := flags.GetBool("json-output"); cfg.JSONOutput = v; return err })
	set("output-dir", func() error { v, err := flags.GetString("output-dir"); cfg.OutputDir = v; return err })
	set("log-level", func() error { v, err := flags.GetString("log-level"); cfg.LogLevel = v; return err })

	return firstErr
}
