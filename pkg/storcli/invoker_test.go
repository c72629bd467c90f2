package storcli_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

func TestExecInvokerCapturesStreams(t *testing.T) {
	bin := writeScript(t, `echo "args:$*"
echo "warn" >&2
exit 3
`)
	inv := storcli.NewExecInvoker(storcli.ExecConfig{})
	raw, err := inv.Invoke(ctxT(t), bin, []string{"/c0", "show", "J"}, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", raw.ExitCode)
	}
	if got, want := string(raw.Stdout), "args:/c0 show J\n"; got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}
	if got, want := string(raw.Stderr), "warn\n"; got != want {
		t.Fatalf("stderr = %q, want %q", got, want)
	}
}

// Output larger than any pipe buffer on both streams must not deadlock.
func TestExecInvokerLargeOutput(t *testing.T) {
	lookupOrSkip(t, "head")
	lookupOrSkip(t, "tr")
	bin := writeScript(t, `head -c 2000000 /dev/zero | tr '\0' 'x'
head -c 2000000 /dev/zero | tr '\0' 'y' >&2
`)
	inv := storcli.NewExecInvoker(storcli.ExecConfig{})
	raw, err := inv.Invoke(ctxT(t), bin, nil, 20*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw.Stdout) != 2000000 || len(raw.Stderr) != 2000000 {
		t.Fatalf("captured %d/%d bytes, want 2000000/2000000", len(raw.Stdout), len(raw.Stderr))
	}
	if raw.Truncated {
		t.Fatalf("truncated without a limit")
	}

	small := storcli.NewExecInvoker(storcli.ExecConfig{MaxOutputBytes: 1000})
	raw, err = small.Invoke(ctxT(t), bin, nil, 20*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw.Stdout) != 1000 || !raw.Truncated {
		t.Fatalf("stdout = %d bytes, truncated = %v; want 1000, true", len(raw.Stdout), raw.Truncated)
	}
}

func TestExecInvokerStartErrors(t *testing.T) {
	inv := storcli.NewExecInvoker(storcli.ExecConfig{})

	_, err := inv.Invoke(ctxT(t), filepath.Join(t.TempDir(), "missing"), nil, time.Second)
	var pe *storcli.ProcessError
	if !errors.As(err, &pe) || pe.Kind != storcli.KindBinaryNotFound {
		t.Fatalf("missing binary: err = %v, want BinaryNotFound ProcessError", err)
	}

	noexec := filepath.Join(t.TempDir(), "storcli64")
	if err := os.WriteFile(noexec, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = inv.Invoke(ctxT(t), noexec, nil, time.Second)
	if !errors.Is(err, storcli.ErrPermissionDenied) {
		t.Fatalf("non-executable binary: err = %v, want PermissionDenied", err)
	}
}

func TestExecInvokerTimeoutKillsProcessGroup(t *testing.T) {
	lookupOrSkip(t, "sleep")
	pidFile := filepath.Join(t.TempDir(), "pids")
	// The shell ignores TERM (and so does its child), forcing the SIGKILL
	// escalation; the background sleep checks that the whole group dies.
	bin := writeScript(t, `trap '' TERM
sleep 30 &
echo "$$ $!" > `+pidFile+`
wait
`)
	inv := storcli.NewExecInvoker(storcli.ExecConfig{TerminationGrace: 200 * time.Millisecond})

	start := time.Now()
	_, err := inv.Invoke(ctxT(t), bin, nil, 300*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, storcli.ErrTimeout) {
		t.Fatalf("err = %v, want Timeout", err)
	}
	if elapsed < 500*time.Millisecond || elapsed > 10*time.Second {
		t.Fatalf("elapsed = %v, want timeout plus grace", elapsed)
	}
	for _, pid := range readPids(t, pidFile) {
		waitGone(t, pid)
	}
}

func TestExecInvokerContextCancel(t *testing.T) {
	lookupOrSkip(t, "sleep")
	bin := writeScript(t, "exec sleep 30\n")
	inv := storcli.NewExecInvoker(storcli.ExecConfig{TerminationGrace: 100 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	_, err := inv.Invoke(ctx, bin, nil, time.Minute)
	if storcli.KindOf(err) != storcli.KindTimeout {
		t.Fatalf("kind = %s, want Timeout", storcli.KindOf(err))
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want wrapped context.Canceled", err)
	}
}

func readPids(t *testing.T, path string) []int32 {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	var out []int32
	for _, f := range strings.Fields(string(b)) {
		n, err := strconv.Atoi(f)
		if err != nil {
			t.Fatalf("bad pid %q", f)
		}
		out = append(out, int32(n))
	}
	if len(out) == 0 {
		t.Fatalf("no pids recorded")
	}
	return out
}

// waitGone polls until pid no longer runs. A zombie awaiting its reaper
// counts as gone.
func waitGone(t *testing.T, pid int32) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		exists, err := process.PidExists(pid)
		if err != nil || !exists {
			return
		}
		p, err := process.NewProcess(pid)
		if err != nil {
			return
		}
		if st, err := p.Status(); err == nil {
			for _, s := range st {
				if s == process.Zombie {
					return
				}
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("process %d still running", pid)
}
