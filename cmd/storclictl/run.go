package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WangQiHao-Charlie/storcli/internal/service"
	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		text       bool
		allowCodes []int
		noCache    bool
	)
	cmd := &cobra.Command{
		Use:   "run ARGS... | run \"LINE\"",
		Short: "Run one storcli command and print the classified result",
		Example: `  storclictl run /c0 show all
  storclictl run "/c0/vall show"
  storclictl run --text /c0 show events`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := commandFromArgs(args, text)
			if err != nil {
				return err
			}
			if a.opts.remote != "" {
				client, done, err := a.client()
				if err != nil {
					return err
				}
				defer done()
				out, err := client.Run(cmd.Context(), service.RunRequest{
					Args:       c.Args(),
					Text:       !c.JSON(),
					Mode:       a.opts.mode,
					Timeout:    a.opts.timeout,
					AllowCodes: allowCodes,
					NoCache:    noCache,
				})
				if err != nil {
					return err
				}
				return a.print(cmd, out)
			}

			cli, err := a.local()
			if err != nil {
				return err
			}
			var opts []storcli.RunOption
			if len(allowCodes) > 0 {
				opts = append(opts, storcli.WithAllowCodes(allowCodes...))
			}
			if noCache {
				opts = append(opts, storcli.WithNoCache())
			}
			res, runErr := cli.Run(cmd.Context(), c, opts...)
			if err := a.print(cmd, service.ResultMap(res)); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "do not request JSON output")
	cmd.Flags().IntSliceVar(&allowCodes, "allow-code", nil, "vendor codes treated as success")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the result cache")
	return cmd
}

func newExecCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec NAME [KEY=VALUE...]",
		Short: "Run a named command template",
		Example: `  storclictl exec controller ctl=0
  storclictl exec events ctl=0 timeout=10m`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			if a.opts.remote != "" {
				client, done, err := a.client()
				if err != nil {
					return err
				}
				defer done()
				out, err := client.RunNamed(cmd.Context(), args[0], params, a.opts.mode)
				if err != nil {
					return err
				}
				return a.print(cmd, out)
			}

			cfg, err := a.config()
			if err != nil {
				return err
			}
			tmpls, err := cfg.CommandTemplates()
			if err != nil {
				return err
			}
			c, timeout, err := tmpls.Render(args[0], params)
			if err != nil {
				return fmt.Errorf("%w (known: %s)", err, strings.Join(tmpls.Names(), ", "))
			}
			cli, err := a.local()
			if err != nil {
				return err
			}
			var opts []storcli.RunOption
			if timeout > 0 {
				opts = append(opts, storcli.WithTimeout(timeout))
			}
			res, runErr := cli.Run(cmd.Context(), c, opts...)
			if err := a.print(cmd, service.ResultMap(res)); err != nil {
				return err
			}
			return runErr
		},
	}
}

// commandFromArgs accepts either an argument vector or a single quoted
// command line.
func commandFromArgs(args []string, text bool) (storcli.Command, error) {
	words := args
	if len(args) == 1 && strings.ContainsAny(args[0], " \t") {
		c, err := storcli.ParseLine(args[0])
		if err != nil {
			return storcli.Command{}, err
		}
		words = c.Args()
	}
	if text {
		return storcli.NewTextCommand(words...), nil
	}
	return storcli.NewCommand(words...), nil
}

// parseParams turns KEY=VALUE words into template parameters.
func parseParams(words []string) (map[string]string, error) {
	params := make(map[string]string, len(words))
	for _, w := range words {
		k, v, ok := strings.Cut(w, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("parameter %q is not KEY=VALUE", w)
		}
		params[k] = v
	}
	return params, nil
}
