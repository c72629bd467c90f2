package storcli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

func TestSampleName(t *testing.T) {
	tests := map[string][]string{
		"__c0_show_J.json":             {"/c0", "show", "J"},
		"__c0_e252_s4_show_all_J.json": {"/c0/e252/s4", "show", "all", "J"},
		"_show_J.json":                 {"show", "J"},
	}
	for want, args := range tests {
		if got := storcli.SampleName(args); got != want {
			t.Fatalf("SampleName(%q) = %q, want %q", args, got, want)
		}
	}
}

func TestReplayInvoker(t *testing.T) {
	dir := t.TempDir()
	write := func(args []string, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, storcli.SampleName(args)), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write([]string{"show", "J"}, successEnvelope)
	write([]string{"/c3", "show", "J"}, notFoundEnvelope)

	cfg := storcli.DefaultConfig()
	cfg.Binary = "/replay/storcli64"
	cfg.Invoker = storcli.NewReplayInvoker(dir)
	cli := storcli.New(cfg)

	v, err := cli.Version(ctxT(t))
	if err != nil || v != "7.1017.0.0" {
		t.Fatalf("Version = %q, %v", v, err)
	}

	raw, err := cfg.Invoker.Invoke(ctxT(t), "", []string{"/c3", "show", "J"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.ExitCode != 255 {
		t.Fatalf("inferred exit code = %d, want 255", raw.ExitCode)
	}
	res, _ := cli.Run(ctxT(t), storcli.NewCommand("/c3", "show"), storcli.WithMode(storcli.ModeResult))
	if res.Kind != storcli.KindDeviceNotFound {
		t.Fatalf("kind = %s, want DeviceNotFound", res.Kind)
	}

	if _, err := cli.Run(ctxT(t), storcli.NewCommand("/c9", "show")); err == nil {
		t.Fatalf("expected error for a missing sample")
	}
}

func TestRecorderWritesSamples(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "samples")
	rec := &storcli.Recorder{
		Next: storcli.InvokerFunc(func(context.Context, string, []string, time.Duration) (storcli.RawResult, error) {
			return storcli.RawResult{Stdout: []byte(successEnvelope)}, nil
		}),
		Dir: dir,
	}
	args := []string{"/c0", "show", "J"}
	if _, err := rec.Invoke(context.Background(), "storcli64", args, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := storcli.NewReplayInvoker(dir).Invoke(context.Background(), "", args, time.Second)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if string(raw.Stdout) != successEnvelope || raw.ExitCode != 0 {
		t.Fatalf("replayed exit %d stdout %q", raw.ExitCode, raw.Stdout)
	}
}
