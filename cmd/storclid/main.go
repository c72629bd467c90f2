package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/WangQiHao-Charlie/storcli/internal/config"
	"github.com/WangQiHao-Charlie/storcli/internal/logging"
	"github.com/WangQiHao-Charlie/storcli/internal/service"
	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	socket      string
	metricsAddr string
	binary      string
	features    string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:          "storclid",
		Short:        "Serve storcli over gRPC on a unix socket",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides := map[string]any{}
			if cmd.Flags().Changed("socket") {
				overrides["daemon.socket"] = o.socket
			}
			if cmd.Flags().Changed("metrics-addr") {
				overrides["daemon.metrics_addr"] = o.metricsAddr
			}
			if cmd.Flags().Changed("binary") {
				overrides["storcli.binary"] = o.binary
			}
			if o.verbose {
				overrides["log.level"] = "debug"
			}
			opts := config.LoadOptions{Path: o.configPath, FlagOverrides: overrides}
			cfg, err := config.Load(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, opts, splitComma(o.features))
		},
	}
	cmd.Flags().StringVar(&o.configPath, "config", config.DefaultPath, "config file")
	cmd.Flags().StringVar(&o.socket, "socket", "", "unix socket path (overrides daemon.socket)")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "address of the /metrics listener, empty disables it")
	cmd.Flags().StringVar(&o.binary, "binary", "", "storcli binary (overrides storcli.binary)")
	cmd.Flags().StringVar(&o.features, "features", "", "comma-separated feature list added to Discover")
	cmd.Flags().BoolVar(&o.verbose, "verbose", false, "enable debug logging")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, opts config.LoadOptions, features []string) error {
	log := logging.New(logging.Settings(logging.ProfileRuntime, cfg.Log.Level, cfg.Log.Format), "storclid")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := storcli.NewMetrics(reg)

	sc, err := cfg.StorCLI.Build(&log, metrics)
	if err != nil {
		return err
	}
	cli := storcli.New(sc)
	storcli.SetDefault(cli)

	tmpls, err := cfg.CommandTemplates()
	if err != nil {
		return err
	}
	impl := service.NewStorCLIServer(cli, tmpls, log)
	impl.Features = append(impl.Features, features...)
	impl.Metadata["impl"] = "storcli"
	impl.Parallel = cfg.Daemon.Parallel

	l, err := listenUnix(cfg.Daemon.Socket)
	if err != nil {
		return err
	}
	defer l.Close()

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(service.UnaryLogger(log)))
	service.RegisterStorCLIServer(grpcServer, impl)
	// Enable server reflection for grpcurl and other tools
	reflection.Register(grpcServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("socket", cfg.Daemon.Socket).Msg("storclid listening")
		if err := grpcServer.Serve(l); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			grpcServer.Stop()
		}
		return nil
	})

	if addr := cfg.Daemon.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info().Str("addr", addr).Msg("metrics listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if cfg.Daemon.WatchConfig {
		g.Go(func() error {
			err := config.Watch(gctx, opts, func(next config.Config, err error) {
				if err != nil {
					log.Warn().Err(err).Msg("config reload failed")
					return
				}
				applyReload(log, cli, impl, cfg, next)
				cfg = next
			})
			if err != nil {
				// A missing config directory only disables reloading.
				log.Warn().Err(err).Msg("config watch disabled")
			}
			return nil
		})
	}

	err = g.Wait()
	log.Info().Msg("storclid stopped")
	return err
}

// applyReload applies the settings that can change without a restart: the
// binary, the cache switch and the templates.
func applyReload(log zerolog.Logger, cli *storcli.StorCLI, impl *service.StorCLIServer, prev, next config.Config) {
	if next.StorCLI.Binary != prev.StorCLI.Binary {
		cli.SetBinaryOverride(next.StorCLI.Binary)
		log.Info().Str("binary", next.StorCLI.Binary).Msg("binary override changed")
	}
	if next.StorCLI.CacheEnabled != cli.CacheEnabled() {
		cli.SetCacheEnabled(next.StorCLI.CacheEnabled)
		log.Info().Bool("enabled", next.StorCLI.CacheEnabled).Msg("cache toggled")
	}
	if tmpls, err := next.CommandTemplates(); err == nil {
		impl.SetTemplates(tmpls)
	}
}

func listenUnix(sock string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(sock), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	// Remove existing socket file if any
	if _, err := os.Stat(sock); err == nil {
		_ = os.Remove(sock)
	}
	l, err := net.Listen("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	_ = os.Chmod(sock, 0o766)
	return l, nil
}

func splitComma(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
