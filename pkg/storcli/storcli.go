// Package storcli runs the MegaRAID storcli utility and turns its output
// into classified results.
//
// A StorCLI composes an Invoker (the subprocess), Parse (the vendor JSON
// envelope and its text fallbacks), the classifier (the ErrorKind taxonomy)
// and a Cache of read-only results. Domain code calls Run with a Command
// and branches on Result.Kind, or on the *Error returned in ModeError.
package storcli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every run that does not set its own timeout.
const DefaultTimeout = 2 * time.Minute

// BinaryNames are tried in order when no binary is configured.
var BinaryNames = []string{"storcli64", "storcli", "perccli64", "perccli"}

// DefaultSearchPaths are scanned after $PATH.
var DefaultSearchPaths = []string{
	"/opt/MegaRAID/storcli",
	"/opt/MegaRAID/perccli",
	"/opt/lsi/storcli",
	"/usr/sbin",
}

// Config configures a StorCLI.
type Config struct {
	// Binary overrides path resolution. A bare name is looked up in $PATH.
	Binary string
	// SearchPaths replaces DefaultSearchPaths when non-nil.
	SearchPaths []string

	Mode         Mode
	Timeout      time.Duration // default DefaultTimeout
	CacheEnabled bool

	// Invoker defaults to an ExecInvoker built from the fields below.
	Invoker          Invoker
	MaxOutputBytes   int64
	TerminationGrace time.Duration

	Logger  *zerolog.Logger
	Metrics *Metrics
}

// DefaultConfig is the configuration used by Default.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeError,
		Timeout:      DefaultTimeout,
		CacheEnabled: true,
	}
}

// Stats is a snapshot of a StorCLI's counters.
type Stats struct {
	Runs         int64 // calls to Run
	Invocations  int64 // subprocesses started
	CacheEntries int
	CacheEnabled bool
	Binary       string
}

// StorCLI is the execution facade. It is safe for concurrent use.
type StorCLI struct {
	cfg     Config
	invoker Invoker
	cache   *Cache
	log     zerolog.Logger
	metrics *Metrics

	mu       sync.RWMutex
	override string
	binary   string

	runs        atomic.Int64
	invocations atomic.Int64
}

// New builds an independent StorCLI.
func New(cfg Config) *StorCLI {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SearchPaths == nil {
		cfg.SearchPaths = DefaultSearchPaths
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "storcli").Logger()
	}
	inv := cfg.Invoker
	if inv == nil {
		inv = NewExecInvoker(ExecConfig{
			MaxOutputBytes:   cfg.MaxOutputBytes,
			TerminationGrace: cfg.TerminationGrace,
			Logger:           &log,
			Metrics:          cfg.Metrics,
		})
	}
	s := &StorCLI{
		cfg:      cfg,
		invoker:  inv,
		cache:    NewCache(cfg.CacheEnabled),
		log:      log,
		metrics:  cfg.Metrics,
		override: cfg.Binary,
	}
	s.cache.observe(cfg.Metrics, log)
	return s
}

// RunOption adjusts a single Run call.
type RunOption func(*runOptions)

type runOptions struct {
	mode    Mode
	timeout time.Duration
	allow   []int
	noCache bool
}

// WithMode overrides the configured Mode.
func WithMode(m Mode) RunOption { return func(o *runOptions) { o.mode = m } }

// WithTimeout overrides the configured timeout. A read that joins an
// identical read already in flight waits under the first caller's timeout;
// bound the wait with ctx when that matters.
func WithTimeout(d time.Duration) RunOption {
	return func(o *runOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithAllowCodes treats the given vendor return codes as success.
func WithAllowCodes(codes ...int) RunOption {
	return func(o *runOptions) { o.allow = append(o.allow, codes...) }
}

// WithNoCache bypasses cache lookup and storage for a read-only command.
func WithNoCache() RunOption { return func(o *runOptions) { o.noCache = true } }

// Run executes cmd and classifies the outcome. In ModeError a failure is
// also returned as a *Error; in ModeResult the error is always nil and the
// failure is described by the Result. Cancelling ctx is reported as
// KindTimeout, the same as an expired deadline or timeout.
func (s *StorCLI) Run(ctx context.Context, cmd Command, opts ...RunOption) (Result, error) {
	o := runOptions{mode: s.cfg.Mode, timeout: s.cfg.Timeout}
	for _, opt := range opts {
		opt(&o)
	}
	s.runs.Add(1)

	if cmd.IsZero() {
		res := Result{Kind: KindInvalidArguments, Code: -1, Detail: "empty command"}
		s.metrics.result(res.Kind)
		return Enforce(res, o.mode)
	}

	compute := func(ctx context.Context) (Result, error) {
		return s.execute(ctx, cmd, o.timeout)
	}

	var (
		res    Result
		cached bool
		err    error
	)
	if o.noCache && !cmd.Mutating() {
		res, err = compute(ctx)
	} else {
		res, cached, err = s.cache.GetOrCompute(ctx, cmd, compute)
	}

	if err != nil {
		var ce *Error
		var pe *ProcessError
		if !errors.As(err, &ce) && !errors.As(err, &pe) && ctx.Err() != nil {
			err = &ProcessError{Kind: KindTimeout, Binary: s.binaryName(), Err: ctx.Err()}
		}
		res = ClassifyError(err)
		res.cause = err
	}
	res.Command = cmd.String()
	if !res.OK && len(o.allow) > 0 && allowed(res.Code, o.allow) && err == nil {
		res = ClassifyResponse(res.Response, o.allow...)
		res.Command = cmd.String()
	}

	s.metrics.result(res.Kind)
	ev := s.log.Debug()
	if !res.OK {
		ev = s.log.Info()
	}
	ev.Str("event", "run").
		Str("command", res.Command).
		Str("kind", string(res.Kind)).
		Int("code", res.Code).
		Bool("cached", cached).
		Msg("storcli run")

	return Enforce(res, o.mode)
}

// RunArgs is Run with NewCommand(args...).
func (s *StorCLI) RunArgs(ctx context.Context, args ...string) (Result, error) {
	return s.Run(ctx, NewCommand(args...))
}

func (s *StorCLI) execute(ctx context.Context, cmd Command, timeout time.Duration) (Result, error) {
	bin, err := s.Binary()
	if err != nil {
		return Result{}, err
	}
	s.invocations.Add(1)
	raw, err := s.invoker.Invoke(ctx, bin, cmd.Argv(), timeout)
	if err != nil {
		return Result{}, err
	}
	resp, err := Parse(raw, cmd.JSON())
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Command = cmd.String()
		}
		return Result{}, err
	}
	if resp.Truncated {
		s.log.Warn().Str("command", cmd.String()).Err(ErrOutputTruncated).Msg("storcli output truncated")
	}
	res := ClassifyResponse(resp)
	res.Command = cmd.String()
	return res, nil
}

// Binary returns the resolved binary path. Only a successful resolution is
// remembered.
func (s *StorCLI) Binary() (string, error) {
	s.mu.RLock()
	b := s.binary
	s.mu.RUnlock()
	if b != "" {
		return b, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.binary != "" {
		return s.binary, nil
	}
	b, err := ResolveBinary(s.override, s.cfg.SearchPaths)
	if err != nil {
		return "", err
	}
	s.binary = b
	return b, nil
}

func (s *StorCLI) binaryName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return firstNonEmpty(s.binary, s.override, BinaryNames[0])
}

// SetBinaryOverride points the instance at another binary and drops the
// cache. An empty path restores automatic resolution.
func (s *StorCLI) SetBinaryOverride(path string) {
	s.mu.Lock()
	s.override = path
	s.binary = ""
	s.mu.Unlock()
	s.cache.Clear()
}

// Cache exposes the response cache for invalidation hooks.
func (s *StorCLI) Cache() *Cache { return s.cache }

// ClearCache drops every cached result.
func (s *StorCLI) ClearCache() { s.cache.Clear() }

// Invalidate drops cached results whose command satisfies pred.
func (s *StorCLI) Invalidate(pred func(Command) bool) int { return s.cache.Invalidate(pred) }

// InvalidateScope drops cached results for one controller ("/c0").
func (s *StorCLI) InvalidateScope(scope string) int { return s.cache.InvalidateScope(scope) }

func (s *StorCLI) CacheEnabled() bool { return s.cache.Enabled() }

func (s *StorCLI) SetCacheEnabled(on bool) { s.cache.SetEnabled(on) }

// Mode returns the configured default mode.
func (s *StorCLI) Mode() Mode { return s.cfg.Mode }

func (s *StorCLI) Stats() Stats {
	s.mu.RLock()
	bin := s.binary
	s.mu.RUnlock()
	return Stats{
		Runs:         s.runs.Load(),
		Invocations:  s.invocations.Load(),
		CacheEntries: s.cache.Len(),
		CacheEnabled: s.cache.Enabled(),
		Binary:       bin,
	}
}

// FullVersion returns the CLI Version string as printed by "show".
func (s *StorCLI) FullVersion(ctx context.Context) (string, error) {
	res, err := s.Run(ctx, NewCommand("show"), WithMode(ModeError))
	if err != nil {
		return "", err
	}
	v, _ := res.Response.CommandStatus()["CLI Version"].(string)
	if v == "" {
		return "", &Error{Kind: KindUnclassified, Code: -1, Detail: "no CLI Version in response", Command: res.Command}
	}
	return v, nil
}

// Version returns the CLI version without the build date and with leading
// zeros stripped from each component ("007.1017.0000.0000" -> "7.1017.0.0").
func (s *StorCLI) Version(ctx context.Context) (string, error) {
	full, err := s.FullVersion(ctx)
	if err != nil {
		return "", err
	}
	return CleanVersion(full), nil
}

// CleanVersion normalizes a vendor version string.
func CleanVersion(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	parts := strings.Split(fields[0], ".")
	for i, p := range parts {
		if t := strings.TrimLeft(p, "0"); t != "" {
			parts[i] = t
		} else if p != "" {
			parts[i] = "0"
		}
	}
	return strings.Join(parts, ".")
}

// ResolveBinary finds the vendor binary. A non-empty override is used as
// is when it contains a path separator and looked up in $PATH otherwise.
// Without an override each of BinaryNames is tried in $PATH and then in
// every directory of searchPaths.
func ResolveBinary(override string, searchPaths []string) (string, error) {
	if override != "" {
		if strings.ContainsRune(override, filepath.Separator) {
			return override, nil
		}
		p, err := exec.LookPath(override)
		if err != nil {
			return "", &ProcessError{Kind: KindBinaryNotFound, Binary: override, Err: err}
		}
		return p, nil
	}
	for _, name := range BinaryNames {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	for _, dir := range searchPaths {
		for _, name := range BinaryNames {
			p := filepath.Join(dir, name)
			if isExecutable(p) {
				return p, nil
			}
		}
	}
	return "", &ProcessError{
		Kind:   KindBinaryNotFound,
		Binary: BinaryNames[0],
		Err:    fmt.Errorf("none of %s found in $PATH or %s: %w", strings.Join(BinaryNames, ", "), strings.Join(searchPaths, ", "), exec.ErrNotFound),
	}
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Mode().Perm()&0o111 != 0
}

var (
	defaultMu       sync.Mutex
	defaultInstance *StorCLI
	defaultOverride string
)

// Default returns the process-wide StorCLI, creating it with DefaultConfig
// on first use.
func Default() *StorCLI {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultInstance == nil {
		cfg := DefaultConfig()
		cfg.Binary = defaultOverride
		defaultInstance = New(cfg)
	}
	return defaultInstance
}

// SetDefault installs s as the process-wide StorCLI.
func SetDefault(s *StorCLI) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultInstance = s
}

// SetBinaryOverride sets the binary of the process-wide StorCLI, including
// one that Default creates later.
func SetBinaryOverride(path string) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultOverride = path
	if defaultInstance != nil {
		defaultInstance.SetBinaryOverride(path)
	}
}

// ResetDefault drops the process-wide StorCLI and its override.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultInstance = nil
	defaultOverride = ""
}
