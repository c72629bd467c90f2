package main

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/WangQiHao-Charlie/storcli/internal/config"
	"github.com/WangQiHao-Charlie/storcli/internal/logging"
	"github.com/WangQiHao-Charlie/storcli/internal/service"
	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

var errNeedsRemote = errors.New("this command talks to a storclid; pass --remote")

type globalOptions struct {
	configPath string
	remote     string
	output     string
	replayDir  string
	binary     string
	mode       string
	timeout    time.Duration
	verbose    bool
}

// app carries what every subcommand needs. The storcli facade and the
// remote client are built on first use.
type app struct {
	opts globalOptions
	cfg  *config.Config
	cli  *storcli.StorCLI
	log  zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop()}
	cmd := &cobra.Command{
		Use:           "storclictl",
		Short:         "Query and administer RAID controllers through storcli",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := outputFormat(a.opts.output); err != nil {
				return err
			}
			cfg := logging.Settings(logging.ProfileCLI, "", "")
			if a.opts.verbose {
				cfg.Level = zerolog.DebugLevel
			}
			cfg.Out = cmd.ErrOrStderr()
			a.log = logging.New(cfg, "storclictl")
			return nil
		},
	}
	f := cmd.PersistentFlags()
	f.StringVar(&a.opts.configPath, "config", config.DefaultPath, "config file")
	f.StringVar(&a.opts.remote, "remote", "", "storclid socket or gRPC target; empty runs storcli locally")
	f.StringVarP(&a.opts.output, "output", "o", "json", "output format: json or yaml")
	f.StringVar(&a.opts.replayDir, "replay-dir", "", "answer from recorded samples in this directory")
	f.StringVar(&a.opts.binary, "binary", "", "storcli binary")
	f.StringVar(&a.opts.mode, "mode", "", "failure mode: error or result")
	f.DurationVar(&a.opts.timeout, "timeout", 0, "per-command timeout")
	f.BoolVarP(&a.opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newRunCmd(a),
		newExecCmd(a),
		newMetricsCmd(a),
		newControllersCmd(a),
		newVersionCmd(a),
		newCacheCmd(a),
		newConfigCmd(a),
		newDoctorCmd(a),
	)
	return cmd
}

// config loads the configuration once, with the global flags applied on
// top.
func (a *app) config() (config.Config, error) {
	if a.cfg != nil {
		return *a.cfg, nil
	}
	overrides := map[string]any{}
	if a.opts.binary != "" {
		overrides["storcli.binary"] = a.opts.binary
	}
	if a.opts.replayDir != "" {
		overrides["storcli.replay_dir"] = a.opts.replayDir
		overrides["storcli.record_dir"] = ""
	}
	if a.opts.mode != "" {
		overrides["storcli.mode"] = a.opts.mode
	}
	if a.opts.timeout > 0 {
		overrides["storcli.timeout"] = a.opts.timeout.String()
	}
	cfg, err := config.Load(config.LoadOptions{Path: a.opts.configPath, FlagOverrides: overrides})
	if err != nil {
		return config.Config{}, err
	}
	a.cfg = &cfg
	return cfg, nil
}

// local returns the in-process facade and installs it as the default.
func (a *app) local() (*storcli.StorCLI, error) {
	if a.cli != nil {
		return a.cli, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	sc, err := cfg.StorCLI.Build(&a.log, nil)
	if err != nil {
		return nil, err
	}
	a.cli = storcli.New(sc)
	storcli.SetDefault(a.cli)
	return a.cli, nil
}

// client dials --remote. The returned func closes the connection.
func (a *app) client() (*service.Client, func(), error) {
	if a.opts.remote == "" {
		return nil, nil, errNeedsRemote
	}
	conn, err := service.Dial(a.opts.remote)
	if err != nil {
		return nil, nil, err
	}
	return service.NewClient(conn), func() { _ = conn.Close() }, nil
}

func (a *app) print(cmd *cobra.Command, v any) error {
	return render(cmd.OutOrStdout(), a.opts.output, v)
}
