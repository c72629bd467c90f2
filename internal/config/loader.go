package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// LoadOptions controls configuration loading.
type LoadOptions struct {
	// Path of the TOML file. Empty means DefaultPath; a missing file is not
	// an error.
	Path string
	// FlagOverrides are dot-notated keys set from CLI flags.
	FlagOverrides map[string]any
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load returns the effective configuration.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	path := opts.Path
	if path == "" {
		path = DefaultPath
	}
	if err := mergeConfigFile(v, path); err != nil {
		return Config{}, err
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := applyEnvOverrides(v, getenv); err != nil {
		return Config{}, err
	}
	for k, val := range opts.FlagOverrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Templates == nil {
		cfg.Templates = map[string]TemplateConfig{}
	}
	for name, tc := range DefaultTemplates {
		if _, ok := cfg.Templates[name]; !ok {
			cfg.Templates[name] = tc
		}
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("storcli.binary", def.StorCLI.Binary)
	v.SetDefault("storcli.mode", def.StorCLI.Mode)
	v.SetDefault("storcli.timeout", def.StorCLI.Timeout)
	v.SetDefault("storcli.cache_enabled", def.StorCLI.CacheEnabled)
	v.SetDefault("storcli.max_output_bytes", def.StorCLI.MaxOutputBytes)
	v.SetDefault("storcli.termination_grace", def.StorCLI.TerminationGrace)
	v.SetDefault("storcli.replay_dir", def.StorCLI.ReplayDir)
	v.SetDefault("storcli.record_dir", def.StorCLI.RecordDir)

	v.SetDefault("daemon.socket", def.Daemon.Socket)
	v.SetDefault("daemon.metrics_addr", def.Daemon.MetricsAddr)
	v.SetDefault("daemon.parallel", def.Daemon.Parallel)
	v.SetDefault("daemon.watch_config", def.Daemon.WatchConfig)

	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
}

func mergeConfigFile(v *viper.Viper, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindInt
)

var envBindings = []struct {
	Env  string
	Key  string
	Kind valueKind
}{
	{"STORCLI_BINARY", "storcli.binary", kindString},
	{"STORCLI_MODE", "storcli.mode", kindString},
	{"STORCLI_TIMEOUT", "storcli.timeout", kindString},
	{"STORCLI_CACHE_ENABLED", "storcli.cache_enabled", kindBool},
	{"STORCLI_MAX_OUTPUT_BYTES", "storcli.max_output_bytes", kindInt},
	{"STORCLI_TERMINATION_GRACE", "storcli.termination_grace", kindString},
	{"STORCLI_REPLAY_DIR", "storcli.replay_dir", kindString},
	{"STORCLI_RECORD_DIR", "storcli.record_dir", kindString},

	{"STORCLI_SOCKET", "daemon.socket", kindString},
	{"STORCLI_METRICS_ADDR", "daemon.metrics_addr", kindString},
	{"STORCLI_PARALLEL", "daemon.parallel", kindInt},

	{"STORCLI_LOG_LEVEL", "log.level", kindString},
	{"STORCLI_LOG_FORMAT", "log.format", kindString},
}

func applyEnvOverrides(v *viper.Viper, getenv func(string) string) error {
	for _, b := range envBindings {
		raw := getenv(b.Env)
		if raw == "" {
			continue
		}
		val, err := parseValueByKind(raw, b.Kind)
		if err != nil {
			return fmt.Errorf("env %s: %w", b.Env, err)
		}
		v.Set(b.Key, val)
	}
	return nil
}

func parseValueByKind(raw string, kind valueKind) (any, error) {
	switch kind {
	case kindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected boolean: %w", err)
		}
		return v, nil
	case kindInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer: %w", err)
		}
		return v, nil
	default:
		return raw, nil
	}
}

// WriteDefault writes the default configuration to path. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create config %s: %w", path, err)
	}
	defer f.Close()
	return Encode(f, DefaultConfig())
}

// DecodeFile reads path with the TOML decoder alone, reporting keys that no
// field consumed.
func DecodeFile(path string) (Config, []string, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, nil, fmt.Errorf("decode %s: %w", path, err)
	}
	var unknown []string
	for _, k := range md.Undecoded() {
		unknown = append(unknown, k.String())
	}
	return cfg, unknown, nil
}
