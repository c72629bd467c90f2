package storcli_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

const successEnvelope = `{
"Controllers":[
{
	"Command Status" : {
		"CLI Version" : "007.1017.0000.0000 May 10, 2019",
		"Operating system" : "Linux 5.15.0",
		"Controller" : 0,
		"Status" : "Success",
		"Description" : "None"
	},
	"Response Data" : {
		"Basics" : {
			"Controller" : 0,
			"Model" : "PERC H730P Mini",
			"Serial Number" : "5AF0047"
		}
	}
}
]
}`

const notFoundEnvelope = `{
"Controllers":[
{
	"Command Status" : {
		"CLI Version" : "007.1017.0000.0000 May 10, 2019",
		"Operating system" : "Linux 5.15.0",
		"Status Code" : 0,
		"Status" : "Failure",
		"Description" : "None",
		"Detailed Status" : [
			{"Ctrl" : 3, "Status" : "Failure", "ErrMsg" : "Controller 3 not found", "ErrCd" : 255}
		]
	}
}
]
}`

func lookupOrSkip(t *testing.T, name string) string {
	t.Helper()
	p, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not found in PATH; skipping", name)
	}
	if !filepath.IsAbs(p) {
		t.Skipf("%s resolved to non-absolute path %q; skipping", name, p)
	}
	return p
}

// writeScript writes an executable /bin/sh script standing in for the
// vendor binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	sh := lookupOrSkip(t, "sh")
	path := filepath.Join(t.TempDir(), "storcli64")
	if err := os.WriteFile(path, []byte("#!"+sh+"\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

// countingScript prints a success envelope whose Response Data carries the
// invocation number, and appends each argv to a calls file.
func countingScript(t *testing.T, delay string) (bin, calls string) {
	t.Helper()
	dir := t.TempDir()
	calls = filepath.Join(dir, "calls")
	counter := filepath.Join(dir, "count")
	body := `n=$(cat ` + counter + ` 2>/dev/null || echo 0)
n=$((n+1))
echo $n > ` + counter + `
echo "$*" >> ` + calls + `
` + delay + `
cat <<EOF
{"Controllers":[{"Command Status":{"Controller":0,"Status":"Success","Description":"None"},"Response Data":{"Invocation":$n}}]}
EOF
`
	return writeScript(t, body), calls
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatalf("read %s: %v", path, err)
	}
	return len(strings.Split(strings.TrimSpace(string(b)), "\n"))
}

func ctxT(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// fakeInvoker answers from a function of the argument vector and counts
// invocations.
type fakeInvoker struct {
	mu    sync.Mutex
	calls [][]string
	n     atomic.Int64
	fn    func(args []string) (storcli.RawResult, error)
}

func (f *fakeInvoker) Invoke(ctx context.Context, _ string, args []string, _ time.Duration) (storcli.RawResult, error) {
	f.n.Add(1)
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.mu.Unlock()
	return f.fn(args)
}

func (f *fakeInvoker) count() int { return int(f.n.Load()) }

func stdout(s string) func([]string) (storcli.RawResult, error) {
	return func([]string) (storcli.RawResult, error) {
		return storcli.RawResult{Stdout: []byte(s)}, nil
	}
}

func newFakeCLI(t *testing.T, fn func([]string) (storcli.RawResult, error)) (*storcli.StorCLI, *fakeInvoker) {
	t.Helper()
	inv := &fakeInvoker{fn: fn}
	cfg := storcli.DefaultConfig()
	cfg.Binary = "/opt/MegaRAID/storcli/storcli64"
	cfg.Invoker = inv
	return storcli.New(cfg), inv
}
