// Package config loads storclid and storclictl settings.
// Precedence: defaults < TOML file < env (STORCLI_*) < flags.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

// DefaultPath is read when no --config is given.
const DefaultPath = "/etc/storcli/storcli.toml"

type Config struct {
	StorCLI   StorCLIConfig             `toml:"storcli" mapstructure:"storcli"`
	Daemon    DaemonConfig              `toml:"daemon" mapstructure:"daemon"`
	Log       LogConfig                 `toml:"log" mapstructure:"log"`
	Templates map[string]TemplateConfig `toml:"templates" mapstructure:"templates"`
}

// StorCLIConfig configures the execution core. Durations are Go duration
// strings ("90s", "2m").
type StorCLIConfig struct {
	Binary           string `toml:"binary" mapstructure:"binary"` // empty searches the usual locations
	Mode             string `toml:"mode" mapstructure:"mode"`     // error | result
	Timeout          string `toml:"timeout" mapstructure:"timeout"`
	CacheEnabled     bool   `toml:"cache_enabled" mapstructure:"cache_enabled"`
	MaxOutputBytes   int64  `toml:"max_output_bytes" mapstructure:"max_output_bytes"`
	TerminationGrace string `toml:"termination_grace" mapstructure:"termination_grace"`
	ReplayDir        string `toml:"replay_dir" mapstructure:"replay_dir"` // serve recorded samples instead of running the binary
	RecordDir        string `toml:"record_dir" mapstructure:"record_dir"` // record every output as a sample
}

type DaemonConfig struct {
	Socket      string `toml:"socket" mapstructure:"socket"`
	MetricsAddr string `toml:"metrics_addr" mapstructure:"metrics_addr"` // empty disables /metrics
	Parallel    int    `toml:"parallel" mapstructure:"parallel"`         // controllers collected at once
	WatchConfig bool   `toml:"watch_config" mapstructure:"watch_config"`
}

type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"`
}

// TemplateConfig is a named command line, see storcli.Templates.
type TemplateConfig struct {
	Command string `toml:"command" mapstructure:"command"`
	Text    bool   `toml:"text" mapstructure:"text"`
	Timeout string `toml:"timeout" mapstructure:"timeout"`
}

// DefaultTemplates are merged under any configured templates.
var DefaultTemplates = map[string]TemplateConfig{
	"controllers": {Command: "show"},
	"controller":  {Command: "/c{ctl} show all"},
	"vds":         {Command: "/c{ctl}/vall show all"},
	"drives":      {Command: "/c{ctl}/eall/sall show all"},
	"cachevault":  {Command: "/c{ctl}/cv show all"},
	"events":      {Command: "/c{ctl} show events", Text: true, Timeout: "5m"},
}

func DefaultConfig() Config {
	tmpls := make(map[string]TemplateConfig, len(DefaultTemplates))
	for k, v := range DefaultTemplates {
		tmpls[k] = v
	}
	return Config{
		StorCLI: StorCLIConfig{
			Mode:             "error",
			Timeout:          storcli.DefaultTimeout.String(),
			CacheEnabled:     true,
			MaxOutputBytes:   64 << 20,
			TerminationGrace: "2s",
		},
		Daemon: DaemonConfig{
			Socket:      "/var/run/storclid/storclid.grpc",
			MetricsAddr: "127.0.0.1:9272",
			Parallel:    2,
			WatchConfig: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Templates: tmpls,
	}
}

// Validate checks values the loader cannot type-check.
func Validate(cfg Config) error {
	if _, err := storcli.ParseMode(cfg.StorCLI.Mode); err != nil {
		return fmt.Errorf("storcli.mode: %w", err)
	}
	if _, err := parseDuration(cfg.StorCLI.Timeout); err != nil {
		return fmt.Errorf("storcli.timeout: %w", err)
	}
	if _, err := parseDuration(cfg.StorCLI.TerminationGrace); err != nil {
		return fmt.Errorf("storcli.termination_grace: %w", err)
	}
	if cfg.StorCLI.MaxOutputBytes < 0 {
		return fmt.Errorf("storcli.max_output_bytes must not be negative")
	}
	if cfg.StorCLI.ReplayDir != "" && cfg.StorCLI.RecordDir != "" {
		return fmt.Errorf("storcli.replay_dir and storcli.record_dir are exclusive")
	}
	if cfg.Daemon.Parallel < 0 {
		return fmt.Errorf("daemon.parallel must not be negative")
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Log.Format)
	}
	if _, err := cfg.CommandTemplates(); err != nil {
		return err
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// Build turns the storcli section into a storcli.Config. log and metrics
// may be nil.
func (c StorCLIConfig) Build(log *zerolog.Logger, metrics *storcli.Metrics) (storcli.Config, error) {
	mode, err := storcli.ParseMode(c.Mode)
	if err != nil {
		return storcli.Config{}, err
	}
	timeout, err := parseDuration(c.Timeout)
	if err != nil {
		return storcli.Config{}, fmt.Errorf("timeout: %w", err)
	}
	grace, err := parseDuration(c.TerminationGrace)
	if err != nil {
		return storcli.Config{}, fmt.Errorf("termination_grace: %w", err)
	}
	cfg := storcli.Config{
		Binary:           c.Binary,
		Mode:             mode,
		Timeout:          timeout,
		CacheEnabled:     c.CacheEnabled,
		MaxOutputBytes:   c.MaxOutputBytes,
		TerminationGrace: grace,
		Logger:           log,
		Metrics:          metrics,
	}
	switch {
	case c.ReplayDir != "":
		cfg.Invoker = storcli.NewReplayInvoker(c.ReplayDir)
		if cfg.Binary == "" {
			cfg.Binary = "/opt/MegaRAID/storcli/storcli64"
		}
	case c.RecordDir != "":
		cfg.Invoker = &storcli.Recorder{
			Next: storcli.NewExecInvoker(storcli.ExecConfig{
				MaxOutputBytes:   c.MaxOutputBytes,
				TerminationGrace: grace,
				Logger:           log,
				Metrics:          metrics,
			}),
			Dir: c.RecordDir,
		}
	}
	return cfg, nil
}

// CommandTemplates parses the [templates] table.
func (c Config) CommandTemplates() (storcli.Templates, error) {
	out := make(storcli.Templates, len(c.Templates))
	for name, tc := range c.Templates {
		tmpl, err := storcli.ParseTemplate(tc.Command)
		if err != nil {
			return nil, fmt.Errorf("templates.%s: %w", name, err)
		}
		tmpl.Text = tc.Text
		if tmpl.Timeout, err = parseDuration(tc.Timeout); err != nil {
			return nil, fmt.Errorf("templates.%s.timeout: %w", name, err)
		}
		out[name] = tmpl
	}
	return out, nil
}

// Encode writes cfg as TOML.
func Encode(w io.Writer, cfg Config) error {
	enc := toml.NewEncoder(w)
	enc.Indent = "  "
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
