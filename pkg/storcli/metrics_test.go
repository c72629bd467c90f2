package storcli_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

func TestMetricsCountCacheAndResults(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	inv := &fakeInvoker{fn: stdout(successEnvelope)}
	cfg := storcli.DefaultConfig()
	cfg.Binary = "/opt/MegaRAID/storcli/storcli64"
	cfg.Invoker = inv
	cfg.Metrics = storcli.NewMetrics(reg)
	cli := storcli.New(cfg)

	cli.Run(ctxT(t), storcli.NewCommand("/c0", "show"))
	cli.Run(ctxT(t), storcli.NewCommand("/c0", "show"))
	cli.Run(ctxT(t), storcli.Command{}, storcli.WithMode(storcli.ModeResult))
	cli.InvalidateScope("/c0")

	want := `
# HELP storcli_cache_hits_total Runs answered from the response cache.
# TYPE storcli_cache_hits_total counter
storcli_cache_hits_total 1
# HELP storcli_cache_misses_total Cacheable runs that had to invoke the binary.
# TYPE storcli_cache_misses_total counter
storcli_cache_misses_total 1
# HELP storcli_cache_invalidated_entries_total Cache entries dropped by invalidation or clear.
# TYPE storcli_cache_invalidated_entries_total counter
storcli_cache_invalidated_entries_total 1
# HELP storcli_run_results_total Classified run results by error kind.
# TYPE storcli_run_results_total counter
storcli_run_results_total{kind="InvalidArguments"} 1
storcli_run_results_total{kind="Success"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want),
		"storcli_cache_hits_total",
		"storcli_cache_misses_total",
		"storcli_cache_invalidated_entries_total",
		"storcli_run_results_total",
	); err != nil {
		t.Fatal(err)
	}
}

func TestMetricsCountInvocations(t *testing.T) {
	bin := writeScript(t, "exit 0\n")
	reg := prometheus.NewRegistry()
	inv := storcli.NewExecInvoker(storcli.ExecConfig{Metrics: storcli.NewMetrics(reg)})

	if _, err := inv.Invoke(ctxT(t), bin, nil, 5*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, err := testutil.GatherAndCount(reg, "storcli_exec_invocations_total", "storcli_exec_duration_seconds")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("series = %d, want one invocation and one histogram", n)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	cli, _ := newFakeCLI(t, stdout(successEnvelope))
	if _, err := cli.Run(ctxT(t), storcli.NewCommand("show")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
