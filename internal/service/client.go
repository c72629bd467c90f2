package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

// Client calls a storclid.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Dial connects to a storclid listening on a unix socket. target may also
// be any gRPC target ("dns:///host:port").
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if strings.HasPrefix(target, "/") {
		target = "unix://" + target
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return conn, nil
}

// Run executes req remotely. A classified failure comes back as a
// *storcli.Error.
func (c *Client) Run(ctx context.Context, req RunRequest) (map[string]any, error) {
	in, err := structpb.NewStruct(req.toMap())
	if err != nil {
		return nil, err
	}
	return c.callStruct(ctx, "Run", in)
}

func (c *Client) RunLine(ctx context.Context, line string) (map[string]any, error) {
	return c.callStruct(ctx, "RunLine", wrapperspb.String(line))
}

func (c *Client) RunNamed(ctx context.Context, name string, params map[string]string, mode string) (map[string]any, error) {
	p := make(map[string]any, len(params))
	for k, v := range params {
		p[k] = v
	}
	m := map[string]any{"name": name, "params": p}
	if mode != "" {
		m["mode"] = mode
	}
	in, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return c.callStruct(ctx, "RunNamed", in)
}

func (c *Client) Invalidate(ctx context.Context, scope string) (int64, error) {
	out := &wrapperspb.Int64Value{}
	if err := c.cc.Invoke(ctx, fullMethod("Invalidate"), wrapperspb.String(scope), out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *Client) ClearCache(ctx context.Context) error {
	return c.cc.Invoke(ctx, fullMethod("ClearCache"), &emptypb.Empty{}, &emptypb.Empty{})
}

func (c *Client) Report(ctx context.Context) (map[string]any, error) {
	return c.callStruct(ctx, "Report", &emptypb.Empty{})
}

func (c *Client) Discover(ctx context.Context) (map[string]any, error) {
	return c.callStruct(ctx, "Discover", &emptypb.Empty{})
}

func (c *Client) callStruct(ctx context.Context, method string, in any) (map[string]any, error) {
	out := &structpb.Struct{}
	var trailer metadata.MD
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, grpc.Trailer(&trailer)); err != nil {
		return nil, fromStatus(err, trailer)
	}
	return out.AsMap(), nil
}

// fromStatus rebuilds the *storcli.Error the server classified. Transport
// errors are returned unchanged.
func fromStatus(err error, trailer metadata.MD) error {
	kinds := trailer.Get(TrailerKind)
	if len(kinds) == 0 {
		return err
	}
	kind, _ := storcli.ParseKind(kinds[0])
	code := -1
	if v := trailer.Get(TrailerCode); len(v) > 0 {
		if n, convErr := strconv.Atoi(v[0]); convErr == nil {
			code = n
		}
	}
	e := &storcli.Error{Kind: kind, Code: code, Detail: status.Convert(err).Message()}
	if v := trailer.Get(TrailerCommand); len(v) > 0 {
		e.Command = v[0]
	}
	return e
}
