package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/WangQiHao-Charlie/storcli/pkg/raid"
	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

// Trailer keys carrying the classification of a failed run.
const (
	TrailerKind    = "storcli-kind"
	TrailerCode    = "storcli-code"
	TrailerCommand = "storcli-command"
)

// StorCLIServer exposes a StorCLI over gRPC.
type StorCLIServer struct {
	cli *storcli.StorCLI
	log zerolog.Logger

	mu        sync.RWMutex
	templates storcli.Templates

	// Optional discovery data
	Features []string
	Metadata map[string]string
	// Parallel bounds the controllers Report collects at once.
	Parallel int
}

func NewStorCLIServer(cli *storcli.StorCLI, templates storcli.Templates, log zerolog.Logger) *StorCLIServer {
	return &StorCLIServer{
		cli:       cli,
		log:       log,
		templates: templates,
		Features:  []string{"run", "run_line", "run_named", "invalidate", "clear_cache", "report"},
		Metadata:  map[string]string{},
		Parallel:  1,
	}
}

// SetTemplates replaces the named templates, e.g. after a config reload.
func (s *StorCLIServer) SetTemplates(t storcli.Templates) {
	s.mu.Lock()
	s.templates = t
	s.mu.Unlock()
}

func (s *StorCLIServer) Templates() storcli.Templates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates
}

// Run executes {"args": [...], "text": bool, "mode": "error"|"result",
// "timeout": "30s", "allow_codes": [59], "no_cache": bool}. The reply is
// ResultMap of the outcome. In error mode a failure is returned as a gRPC
// status with the kind and code in the trailer.
func (s *StorCLIServer) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRunRequest(in.AsMap())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	cmd := storcli.NewCommand(req.Args...)
	if req.Text {
		cmd = storcli.NewTextCommand(req.Args...)
	}
	return s.run(ctx, cmd, req)
}

// RunLine executes a shell-style command line in the server's default mode.
func (s *StorCLIServer) RunLine(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	cmd, err := storcli.ParseLine(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return s.run(ctx, cmd, RunRequest{Mode: s.cli.Mode().String()})
}

// RunNamed renders {"name": "...", "params": {...}} through the configured
// templates and executes the result. "mode" works as in Run.
func (s *StorCLIServer) RunNamed(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	m := in.AsMap()
	name, _ := m["name"].(string)
	params := map[string]string{}
	if p, ok := m["params"].(map[string]any); ok {
		for k, v := range p {
			params[k] = scalarString(v)
		}
	}
	cmd, timeout, err := s.Templates().Render(name, params)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	mode, _ := m["mode"].(string)
	return s.run(ctx, cmd, RunRequest{Mode: mode, Timeout: timeout})
}

func (s *StorCLIServer) run(ctx context.Context, cmd storcli.Command, req RunRequest) (*structpb.Struct, error) {
	mode := s.cli.Mode()
	if req.Mode != "" {
		m, err := storcli.ParseMode(req.Mode)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		mode = m
	}
	opts := []storcli.RunOption{storcli.WithMode(storcli.ModeResult)}
	if req.Timeout > 0 {
		opts = append(opts, storcli.WithTimeout(req.Timeout))
	}
	if len(req.AllowCodes) > 0 {
		opts = append(opts, storcli.WithAllowCodes(req.AllowCodes...))
	}
	if req.NoCache {
		opts = append(opts, storcli.WithNoCache())
	}

	res, _ := s.cli.Run(ctx, cmd, opts...)
	s.log.Debug().
		Str("request_id", RequestID(ctx)).
		Str("command", res.Command).
		Str("kind", string(res.Kind)).
		Msg("run")
	if !res.OK && mode == storcli.ModeError {
		_ = grpc.SetTrailer(ctx, metadata.Pairs(
			TrailerKind, string(res.Kind),
			TrailerCode, strconv.Itoa(res.Code),
			TrailerCommand, res.Command,
		))
		return nil, status.Error(statusCode(res.Kind), res.Detail)
	}
	out, err := toStruct(ResultMap(res))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Invalidate drops the cached results of one controller scope ("/c0"), or
// everything when the scope is empty. It returns the number of entries
// dropped.
func (s *StorCLIServer) Invalidate(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	scope := in.GetValue()
	if scope == "" {
		n := s.cli.Cache().Len()
		s.cli.ClearCache()
		return wrapperspb.Int64(int64(n)), nil
	}
	return wrapperspb.Int64(int64(s.cli.InvalidateScope(scope))), nil
}

func (s *StorCLIServer) ClearCache(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	s.cli.ClearCache()
	return &emptypb.Empty{}, nil
}

// Report collects the metrics tree of every controller.
func (s *StorCLIServer) Report(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	rep, err := raid.CollectMetrics(ctx, s.cli, s.Parallel)
	if err != nil {
		return nil, status.Error(statusCode(storcli.KindOf(err)), err.Error())
	}
	out, err := toStruct(rep)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Discover returns capabilities, the resolved binary and counters.
func (s *StorCLIServer) Discover(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.cli.Stats()
	meta := make(map[string]any, len(s.Metadata))
	for k, v := range s.Metadata {
		meta[k] = v
	}
	info := map[string]any{
		"features":  s.Features,
		"metadata":  meta,
		"templates": s.Templates().Names(),
		"mode":      s.cli.Mode().String(),
		"stats": map[string]any{
			"runs":          st.Runs,
			"invocations":   st.Invocations,
			"cache_entries": st.CacheEntries,
			"cache_enabled": st.CacheEnabled,
		},
	}
	if bin, err := s.cli.Binary(); err == nil {
		info["binary"] = bin
	}
	if v, err := s.cli.Version(ctx); err == nil {
		info["version"] = v
	}
	out, err := toStruct(info)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// RunRequest is the decoded form of a Run message.
type RunRequest struct {
	Args       []string
	Text       bool
	Mode       string
	Timeout    time.Duration
	AllowCodes []int
	NoCache    bool
}

func decodeRunRequest(m map[string]any) (RunRequest, error) {
	var req RunRequest
	raw, _ := m["args"].([]any)
	for _, a := range raw {
		s, ok := a.(string)
		if !ok {
			return req, fmt.Errorf("args: %v is not a string", a)
		}
		req.Args = append(req.Args, s)
	}
	req.Text, _ = m["text"].(bool)
	req.NoCache, _ = m["no_cache"].(bool)
	req.Mode, _ = m["mode"].(string)
	if t, ok := m["timeout"].(string); ok && t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return req, fmt.Errorf("timeout: %w", err)
		}
		req.Timeout = d
	}
	codesRaw, _ := m["allow_codes"].([]any)
	for _, c := range codesRaw {
		f, ok := c.(float64)
		if !ok {
			return req, fmt.Errorf("allow_codes: %v is not a number", c)
		}
		req.AllowCodes = append(req.AllowCodes, int(f))
	}
	return req, nil
}

func (r RunRequest) toMap() map[string]any {
	m := map[string]any{"text": r.Text, "no_cache": r.NoCache}
	args := make([]any, 0, len(r.Args))
	for _, a := range r.Args {
		args = append(args, a)
	}
	m["args"] = args
	if r.Mode != "" {
		m["mode"] = r.Mode
	}
	if r.Timeout > 0 {
		m["timeout"] = r.Timeout.String()
	}
	if len(r.AllowCodes) > 0 {
		allow := make([]any, 0, len(r.AllowCodes))
		for _, c := range r.AllowCodes {
			allow = append(allow, c)
		}
		m["allow_codes"] = allow
	}
	return m
}

func statusCode(k storcli.ErrorKind) codes.Code {
	switch k {
	case storcli.KindSuccess:
		return codes.OK
	case storcli.KindInvalidArguments:
		return codes.InvalidArgument
	case storcli.KindDeviceNotFound:
		return codes.NotFound
	case storcli.KindTimeout:
		return codes.DeadlineExceeded
	case storcli.KindPermissionDenied:
		return codes.PermissionDenied
	case storcli.KindBinaryNotFound:
		return codes.FailedPrecondition
	case storcli.KindBusy:
		return codes.Unavailable
	case storcli.KindUnsupported:
		return codes.Unimplemented
	case storcli.KindNonJSONResponse:
		return codes.DataLoss
	}
	return codes.Unknown
}
