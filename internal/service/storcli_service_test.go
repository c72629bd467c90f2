package service_test

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/WangQiHao-Charlie/storcli/internal/service"
	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

var fixtures = map[string]string{
	"show J":          `{"Controllers":[{"Command Status":{"CLI Version":"007.1017.0000.0000 May 10, 2019","Status":"Success","Description":"None"},"Response Data":{"Number of Controllers":0}}]}`,
	"/c0 show J":      `{"Controllers":[{"Command Status":{"Controller":0,"Status":"Success","Description":"None"},"Response Data":{"Product Name":"PERC H730P Mini"}}]}`,
	"/c9 show J":      `{"Controllers":[{"Command Status":{"Controller":9,"Status":"Failure","Description":"Controller 9 not found"}}]}`,
	"/c0 show events": "Event log\nseq 1 boot\n",
}

type harness struct {
	client      *service.Client
	conn        *grpc.ClientConn
	invocations *atomic.Int64
}

func newHarness(t *testing.T) harness {
	t.Helper()
	var n atomic.Int64
	cfg := storcli.DefaultConfig()
	cfg.Binary = "/opt/MegaRAID/storcli/storcli64"
	cfg.Invoker = storcli.InvokerFunc(func(_ context.Context, _ string, args []string, _ time.Duration) (storcli.RawResult, error) {
		n.Add(1)
		out, ok := fixtures[strings.Join(args, " ")]
		if !ok {
			return storcli.RawResult{ExitCode: 1, Stderr: []byte("Invalid command.")}, nil
		}
		return storcli.RawResult{Stdout: []byte(out)}, nil
	})
	cli := storcli.New(cfg)

	tmpls := storcli.Templates{}
	ctl, err := storcli.ParseTemplate("/c{ctl} show")
	if err != nil {
		t.Fatal(err)
	}
	tmpls["controller"] = ctl
	events, _ := storcli.ParseTemplate("/c{ctl} show events")
	events.Text = true
	tmpls["events"] = events

	impl := service.NewStorCLIServer(cli, tmpls, zerolog.Nop())
	impl.Metadata["impl"] = "test"

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(service.UnaryLogger(zerolog.Nop())))
	service.RegisterStorCLIServer(srv, impl)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return harness{client: service.NewClient(conn), conn: conn, invocations: &n}
}

func TestRunOverGRPC(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.client.Run(ctx, service.RunRequest{Args: []string{"/c0", "show"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["ok"] != true || out["kind"] != "Success" || out["command"] != "/c0 show J" {
		t.Fatalf("unexpected reply: %v", out)
	}
	ctrls, _ := out["payload"].(map[string]any)["Controllers"].([]any)
	if len(ctrls) != 1 {
		t.Fatalf("payload lost: %v", out["payload"])
	}

	if _, err := h.client.RunLine(ctx, "/c0 show"); err != nil {
		t.Fatalf("RunLine: %v", err)
	}
	if n := h.invocations.Load(); n != 1 {
		t.Fatalf("invocations = %d, want 1 (second call cached)", n)
	}
}

func TestRunFailureModes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.client.Run(ctx, service.RunRequest{Args: []string{"/c9", "show"}})
	var ce *storcli.Error
	if !errors.As(err, &ce) || ce.Kind != storcli.KindDeviceNotFound || ce.Command != "/c9 show J" {
		t.Fatalf("err = %#v, want DeviceNotFound *storcli.Error", err)
	}
	if !errors.Is(err, storcli.ErrDeviceNotFound) {
		t.Fatalf("errors.Is(ErrDeviceNotFound) = false for %v", err)
	}

	out, err := h.client.Run(ctx, service.RunRequest{Args: []string{"/c9", "show"}, Mode: "result"})
	if err != nil {
		t.Fatalf("result mode returned error: %v", err)
	}
	if out["ok"] != false || out["kind"] != "DeviceNotFound" {
		t.Fatalf("unexpected reply: %v", out)
	}

	if _, err := h.client.Run(ctx, service.RunRequest{Args: []string{"/c0", "show"}, Mode: "loud"}); err == nil {
		t.Fatalf("bad mode accepted")
	}
}

func TestRunNamed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.client.RunNamed(ctx, "controller", map[string]string{"ctl": "0"}, "")
	if err != nil || out["command"] != "/c0 show J" {
		t.Fatalf("RunNamed(controller) = %v, %v", out, err)
	}
	out, err = h.client.RunNamed(ctx, "events", map[string]string{"ctl": "0"}, "")
	text, _ := out["output"].(string)
	if err != nil || out["command"] != "/c0 show events" || !strings.HasPrefix(text, "Event log") {
		t.Fatalf("RunNamed(events) = %v, %v", out, err)
	}
	if _, err := h.client.RunNamed(ctx, "nope", nil, ""); err == nil {
		t.Fatalf("unknown template accepted")
	}
}

func TestCacheAdministration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := h.client.RunLine(ctx, "/c0 show"); err != nil {
			t.Fatal(err)
		}
	}
	n, err := h.client.Invalidate(ctx, "/c0")
	if err != nil || n != 1 {
		t.Fatalf("Invalidate(/c0) = %d, %v; want 1", n, err)
	}
	if _, err := h.client.RunLine(ctx, "/c0 show"); err != nil {
		t.Fatal(err)
	}
	if err := h.client.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if _, err := h.client.RunLine(ctx, "/c0 show"); err != nil {
		t.Fatal(err)
	}
	if got := h.invocations.Load(); got != 3 {
		t.Fatalf("invocations = %d, want 3", got)
	}
}

func TestDiscoverAndReport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	info, err := h.client.Discover(ctx)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if info["version"] != "7.1017.0.0" || info["binary"] != "/opt/MegaRAID/storcli/storcli64" {
		t.Fatalf("unexpected discovery: %v", info)
	}
	if meta, _ := info["metadata"].(map[string]any); meta["impl"] != "test" {
		t.Fatalf("metadata = %v", info["metadata"])
	}

	rep, err := h.client.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if ctrls, _ := rep["controller"].(map[string]any); len(ctrls) != 0 {
		t.Fatalf("report of a host without controllers = %v", rep)
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newHarness(t)
	ctx := metadata.AppendToOutgoingContext(context.Background(), service.RequestIDKey, "req-42")

	var header metadata.MD
	err := h.conn.Invoke(ctx, "/"+service.ServiceName+"/ClearCache", &emptypb.Empty{}, &emptypb.Empty{}, grpc.Header(&header))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got := header.Get(service.RequestIDKey); len(got) != 1 || got[0] != "req-42" {
		t.Fatalf("request id header = %v", got)
	}

	header = nil
	if err := h.conn.Invoke(context.Background(), "/"+service.ServiceName+"/ClearCache", &emptypb.Empty{}, &emptypb.Empty{}, grpc.Header(&header)); err != nil {
		t.Fatal(err)
	}
	if got := header.Get(service.RequestIDKey); len(got) != 1 || len(got[0]) != 36 {
		t.Fatalf("generated request id = %v", got)
	}
}

func TestDialTarget(t *testing.T) {
	conn, err := service.Dial("/var/run/storclid/storclid.grpc")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	if got := conn.Target(); got != "unix:///var/run/storclid/storclid.grpc" {
		t.Fatalf("target = %q", got)
	}
}
