package main

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/WangQiHao-Charlie/storcli/pkg/raid"
	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

func newMetricsCmd(a *app) *cobra.Command {
	var parallel int
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print the metrics tree of every controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.opts.remote != "" {
				client, done, err := a.client()
				if err != nil {
					return err
				}
				defer done()
				rep, err := client.Report(cmd.Context())
				if err != nil {
					return err
				}
				return a.print(cmd, rep)
			}
			cli, err := a.local()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("parallel") {
				cfg, _ := a.config()
				parallel = cfg.Daemon.Parallel
			}
			rep, err := raid.CollectMetrics(cmd.Context(), cli, parallel)
			if err != nil {
				return err
			}
			return a.print(cmd, rep)
		},
	}
	cmd.Flags().IntVar(&parallel, "parallel", 1, "controllers collected at once (default from daemon.parallel)")
	return cmd
}

func newControllersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "controllers",
		Short: "List controller ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.opts.remote != "" {
				client, done, err := a.client()
				if err != nil {
					return err
				}
				defer done()
				rep, err := client.Report(cmd.Context())
				if err != nil {
					return err
				}
				ctls, _ := rep["controller"].(map[string]any)
				ids := make([]int, 0, len(ctls))
				for k := range ctls {
					if id, err := strconv.Atoi(k); err == nil {
						ids = append(ids, id)
					}
				}
				sort.Ints(ids)
				return a.print(cmd, ids)
			}
			cli, err := a.local()
			if err != nil {
				return err
			}
			ids, err := raid.NewControllers(cli).IDs(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, ids)
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the storcli version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.opts.remote != "" {
				client, done, err := a.client()
				if err != nil {
					return err
				}
				defer done()
				info, err := client.Discover(cmd.Context())
				if err != nil {
					return err
				}
				return a.print(cmd, map[string]any{
					"version": info["version"],
					"binary":  info["binary"],
					"remote":  a.opts.remote,
				})
			}
			cli, err := a.local()
			if err != nil {
				return err
			}
			full, err := cli.FullVersion(cmd.Context())
			if err != nil {
				return err
			}
			bin, _ := cli.Binary()
			return a.print(cmd, map[string]any{
				"version": storcli.CleanVersion(full),
				"full":    full,
				"binary":  bin,
			})
		},
	}
}
