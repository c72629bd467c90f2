package storcli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var sampleNameRe = regexp.MustCompile(`[/\\:]`)

// SampleName is the file name under which the output of args is recorded:
// "_" + args joined by "_", with path separators and colons replaced, plus
// ".json". args is the full argument vector, including the trailing "J".
func SampleName(args []string) string {
	return sampleNameRe.ReplaceAllString("_"+strings.Join(args, "_"), "_") + ".json"
}

// ReplayInvoker answers invocations from recorded stdout samples instead of
// running a binary. The exit code is inferred from the sample: the first
// failing controller's ErrCd, or the code matching its Description.
type ReplayInvoker struct {
	Dir string
}

// NewReplayInvoker serves samples from dir.
func NewReplayInvoker(dir string) *ReplayInvoker {
	return &ReplayInvoker{Dir: dir}
}

func (r *ReplayInvoker) Invoke(ctx context.Context, _ string, args []string, _ time.Duration) (RawResult, error) {
	if err := ctx.Err(); err != nil {
		return RawResult{ExitCode: -1}, err
	}
	start := time.Now()
	path := filepath.Join(r.Dir, SampleName(args))
	b, err := os.ReadFile(path)
	if err != nil {
		return RawResult{ExitCode: -1}, fmt.Errorf("replay sample for %q: %w", strings.Join(args, " "), err)
	}
	return RawResult{ExitCode: inferExitCode(b), Stdout: b, Duration: time.Since(start)}, nil
}

func inferExitCode(stdout []byte) int {
	doc, ok := decodeObject(stdout)
	if !ok {
		return 0
	}
	ctrls, _ := doc["Controllers"].([]any)
	for idx, c := range ctrls {
		cr := parseController(idx, c)
		if cr.OK() {
			continue
		}
		if cr.ReturnCode >= 0 {
			return cr.ReturnCode
		}
		return CodeInvalidStatus
	}
	return 0
}

// Recorder wraps an Invoker and writes each successful invocation's stdout
// to Dir under SampleName, producing samples a ReplayInvoker can serve.
type Recorder struct {
	Next Invoker
	Dir  string
}

func (r *Recorder) Invoke(ctx context.Context, binary string, args []string, timeout time.Duration) (RawResult, error) {
	raw, err := r.Next.Invoke(ctx, binary, args, timeout)
	if err != nil || len(raw.Stdout) == 0 {
		return raw, err
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return raw, fmt.Errorf("record sample: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.Dir, SampleName(args)), raw.Stdout, 0o644); err != nil {
		return raw, fmt.Errorf("record sample: %w", err)
	}
	return raw, nil
}
