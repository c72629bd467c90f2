package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cobra"

	"github.com/WangQiHao-Charlie/storcli/internal/config"
	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Administer the result cache of a storclid",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear [SCOPE]",
		Short: "Drop cached results, all of them or those of one controller (/c0)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := a.client()
			if err != nil {
				return err
			}
			defer done()
			scope := ""
			if len(args) == 1 {
				scope = args[0]
			}
			n, err := client.Invalidate(cmd.Context(), scope)
			if err != nil {
				return err
			}
			return a.print(cmd, map[string]any{"scope": scope, "dropped": n})
		},
	})
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write a config file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.opts.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			return config.Encode(cmd.OutOrStdout(), cfg)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check [PATH]",
		Short: "Validate a config file and report keys it does not know",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.opts.configPath
			if len(args) == 1 {
				path = args[0]
			}
			cfg, unknown, err := config.DecodeFile(path)
			if err != nil {
				return err
			}
			report := map[string]any{"path": path, "valid": true}
			if len(unknown) > 0 {
				report["unknown_keys"] = unknown
			}
			verr := config.Validate(cfg)
			if verr != nil {
				report["valid"] = false
				report["error"] = verr.Error()
			}
			if err := a.print(cmd, report); err != nil {
				return err
			}
			return verr
		},
	}

	cmd.AddCommand(initCmd, showCmd, checkCmd)
	return cmd
}

// doctor reports what a local run would use and whether another storcli is
// already running, which makes the vendor tool answer "busy".
func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the local storcli installation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			report := map[string]any{"replay": cfg.StorCLI.ReplayDir != ""}

			bin, err := storcli.ResolveBinary(cfg.StorCLI.Binary, storcli.DefaultSearchPaths)
			if err != nil && cfg.StorCLI.ReplayDir == "" {
				report["binary_error"] = err.Error()
			} else {
				if bin != "" {
					report["binary"] = bin
				}
				cli, err := a.local()
				if err != nil {
					return err
				}
				if v, err := cli.Version(cmd.Context()); err != nil {
					report["version_error"] = err.Error()
				} else {
					report["version"] = v
				}
			}

			procs, err := runningStorCLI(cmd.Context())
			if err != nil {
				report["process_error"] = err.Error()
			} else {
				report["running"] = procs
			}
			return a.print(cmd, report)
		},
	}
}

type runningProcess struct {
	PID     int32  `json:"pid"`
	Name    string `json:"name"`
	Cmdline string `json:"cmdline,omitempty"`
}

func runningStorCLI(ctx context.Context) ([]runningProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	out := []runningProcess{}
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// exited while we walked the table
			continue
		}
		if !slices.Contains(storcli.BinaryNames, filepath.Base(name)) {
			continue
		}
		cmdline, _ := p.CmdlineWithContext(ctx)
		out = append(out, runningProcess{PID: p.Pid, Name: name, Cmdline: strings.TrimSpace(cmdline)})
	}
	return out, nil
}
