package storcli

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// RawResult is what one run of the binary produced. Only the parser reads it.
type RawResult struct {
	ExitCode  int
	Stdout    []byte
	Stderr    []byte
	Duration  time.Duration
	Truncated bool // stdout or stderr hit MaxOutputBytes
}

// Invoker runs the vendor binary. Implementations never retry.
type Invoker interface {
	Invoke(ctx context.Context, binary string, args []string, timeout time.Duration) (RawResult, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, binary string, args []string, timeout time.Duration) (RawResult, error)

func (f InvokerFunc) Invoke(ctx context.Context, binary string, args []string, timeout time.Duration) (RawResult, error) {
	return f(ctx, binary, args, timeout)
}

// ExecConfig controls ExecInvoker.
type ExecConfig struct {
	// Per-stream capture limit; bytes beyond it are discarded. Default 64 MiB.
	MaxOutputBytes int64

	// Time between SIGTERM and SIGKILL when a run times out or is canceled.
	TerminationGrace time.Duration // default 2s

	// Extra environment entries appended to the inherited environment.
	Env []string

	Logger  *zerolog.Logger
	Metrics *Metrics
}

// ExecInvoker runs the binary as a child process in its own process group.
type ExecInvoker struct {
	cfg ExecConfig
	log zerolog.Logger
}

// NewExecInvoker applies defaults to cfg.
func NewExecInvoker(cfg ExecConfig) *ExecInvoker {
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 64 << 20
	}
	if cfg.TerminationGrace <= 0 {
		cfg.TerminationGrace = 2 * time.Second
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &ExecInvoker{cfg: cfg, log: log}
}

// Invoke starts binary with args, drains stdout and stderr while waiting and
// returns the exit status. On timeout or cancellation the process group is
// sent SIGTERM, then SIGKILL after the grace period, and the child is reaped
// before a Timeout ProcessError is returned.
func (i *ExecInvoker) Invoke(ctx context.Context, binary string, args []string, timeout time.Duration) (RawResult, error) {
	start := time.Now()

	cmd := exec.Command(binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = append(append(os.Environ(), "LC_ALL=C"), i.cfg.Env...)

	stdout := newBoundedBuffer(i.cfg.MaxOutputBytes)
	stderr := newBoundedBuffer(i.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Bounds the wait for pipes held open by stray descendants.
	cmd.WaitDelay = i.cfg.TerminationGrace

	i.log.Debug().
		Str("event", "exec.start").
		Str("binary", binary).
		Strs("args", args).
		Dur("timeout", timeout).
		Msg("starting storcli")

	if err := cmd.Start(); err != nil {
		pe := startError(binary, err)
		i.log.Warn().
			Str("event", "exec.spawn_error").
			Str("binary", binary).
			Str("kind", string(pe.Kind)).
			Err(err).
			Msg("storcli did not start")
		i.cfg.Metrics.observeInvocation(pe.Kind, time.Since(start))
		return RawResult{ExitCode: -1}, pe
	}
	i.cfg.Metrics.activeInc()
	defer i.cfg.Metrics.activeDec()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var (
		waitErr error
		cause   error
	)
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		cause = ctx.Err()
		waitErr = i.terminateProcessGroup(cmd.Process.Pid, done)
	case <-expired:
		cause = context.DeadlineExceeded
		waitErr = i.terminateProcessGroup(cmd.Process.Pid, done)
	}

	res := RawResult{
		ExitCode:  -1,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Duration:  time.Since(start),
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	ev := i.log.Debug()
	if cause != nil {
		ev = i.log.Warn()
	}
	ev.Str("event", "exec.finish").
		Str("binary", binary).
		Strs("args", args).
		Int("exit_code", res.ExitCode).
		Dur("duration", res.Duration).
		Int("stdout_bytes", len(res.Stdout)).
		Bool("truncated", res.Truncated).
		AnErr("cause", cause).
		AnErr("wait_error", ignoreExitError(waitErr)).
		Msg("storcli finished")

	if cause != nil {
		i.cfg.Metrics.observeInvocation(KindTimeout, res.Duration)
		return res, &ProcessError{Kind: KindTimeout, Binary: binary, Err: cause}
	}
	i.cfg.Metrics.observeInvocation(KindSuccess, res.Duration)
	return res, nil
}

// terminateProcessGroup signals the whole group, escalating to SIGKILL when
// the child outlives the grace period, and returns the reaped Wait error.
func (i *ExecInvoker) terminateProcessGroup(pid int, done <-chan error) error {
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	grace := time.NewTimer(i.cfg.TerminationGrace)
	defer grace.Stop()
	select {
	case err := <-done:
		// The leader is gone; sweep anything left in its group.
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		return err
	case <-grace.C:
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	return <-done
}

func startError(binary string, err error) *ProcessError {
	kind := KindBinaryNotFound
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
		kind = KindPermissionDenied
	}
	return &ProcessError{Kind: kind, Binary: binary, Err: err}
}

func ignoreExitError(err error) error {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return nil
	}
	return err
}

// boundedBuffer keeps the first limit bytes written and silently drops the
// rest, so a chatty child can never block on a full pipe.
type boundedBuffer struct {
	mu      sync.Mutex
	b       []byte
	limit   int64
	dropped int64
}

func newBoundedBuffer(limit int64) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

func (w *boundedBuffer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	room := w.limit - int64(len(w.b))
	switch {
	case room <= 0:
		w.dropped += int64(len(p))
	case int64(len(p)) > room:
		w.b = append(w.b, p[:room]...)
		w.dropped += int64(len(p)) - room
	default:
		w.b = append(w.b, p...)
	}
	return len(p), nil
}

func (w *boundedBuffer) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]byte, len(w.b))
	copy(out, w.b)
	return out
}

func (w *boundedBuffer) Truncated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped > 0
}
