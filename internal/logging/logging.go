// Package logging builds the process logger for storclid and storclictl.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "STORCLI_LOG_LEVEL"
	EnvLogFormat  = "STORCLI_LOG_FORMAT"
	EnvLogNoColor = "STORCLI_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileCLI
	ProfileTest
)

// Config is the resolved logger setup.
type Config struct {
	Level   zerolog.Level
	Format  string // "json" or "console"
	NoColor bool
	Out     io.Writer
}

var (
	configureOnce sync.Once
	logger        zerolog.Logger
)

// Configure builds the global logger once. Later calls return the logger
// built by the first one.
func Configure(profile Profile, app string) zerolog.Logger {
	configureOnce.Do(func() {
		cfg := DefaultConfig(profile)
		ApplyEnv(&cfg, os.Getenv)
		logger = New(cfg, app)
		log.Logger = logger
	})
	return logger
}

// DefaultConfig: the daemon logs JSON at info, the CLI logs warnings to a
// console, tests log everything.
func DefaultConfig(profile Profile) Config {
	switch profile {
	case ProfileCLI:
		return Config{Level: zerolog.WarnLevel, Format: "console", Out: os.Stderr}
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Format: "console", NoColor: true, Out: os.Stderr}
	default:
		return Config{Level: zerolog.InfoLevel, Format: "json", Out: os.Stderr}
	}
}

// ApplyEnv overrides cfg from the STORCLI_LOG_* variables. Unparsable
// values are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if lvl, ok := ParseLevel(getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	switch strings.ToLower(strings.TrimSpace(getenv(EnvLogFormat))) {
	case "json":
		cfg.Format = "json"
	case "console", "text", "pretty":
		cfg.Format = "console"
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(getenv(EnvLogNoColor))); err == nil {
		cfg.NoColor = v
	}
}

// Settings starts from the profile defaults, applies configured level and
// format, then the environment.
func Settings(profile Profile, level, format string) Config {
	cfg := DefaultConfig(profile)
	if lvl, ok := ParseLevel(level); ok {
		cfg.Level = lvl
	}
	if format != "" {
		cfg.Format = strings.ToLower(format)
	}
	ApplyEnv(&cfg, os.Getenv)
	return cfg
}

// New returns a logger for cfg without touching the global one.
func New(cfg Config, app string) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		}
	}
	ctx := zerolog.New(out).Level(cfg.Level).With().Timestamp()
	if app != "" {
		ctx = ctx.Str("app", app)
	}
	return ctx.Logger()
}

// ParseLevel maps a level name. The empty string is not a level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
