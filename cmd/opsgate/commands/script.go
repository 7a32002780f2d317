package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/scijava/opsgate/pkg/config"
	"github.com/scijava/opsgate/pkg/ndarray"
	"github.com/scijava/opsgate/pkg/starbind"
)

func newScriptCommand(opts *globalOptions) *cobra.Command {
	var (
		watch       bool
		timeout     time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "script <file.star>",
		Short: "Run a Starlark script against the gateway",
		Long: `Run a Starlark script with the gateway bound to the global name "ops".

Scripts call operations with attribute access, for example
ops.math.add(2, 3) or ops.math.add(2, 3, run=False) for a deferred
executor. The helpers help, help_verbose, zeros, array and struct are
predeclared. Public globals left by the script are printed when it ends.

With --watch the script is rerun whenever the file changes, until
interrupted.`,
		Example: `  opsgate script analysis.star --builtin
  opsgate script analysis.star --watch --timeout 10s
  opsgate script analysis.star --metrics-addr :9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			s, err := openSession(ctx, opts, func(cfg *config.Config) {
				if timeout > 0 {
					cfg.Script.Timeout = timeout
				}
				if metricsAddr != "" {
					cfg.Telemetry.Metrics.Enabled = true
					cfg.Telemetry.Metrics.ListenAddress = metricsAddr
				}
			})
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			if metricsAddr != "" {
				logger := s.tel.Logger.NewComponentLogger("metrics")
				server, err := s.tel.Metrics.StartMetricsServer(func(err error) {
					logger.WithError(err).Error("metrics server failed")
				})
				if err != nil {
					return err
				}
				defer server.Close()
				logger.WithField("address", metricsAddr).Info("serving metrics")
			}

			out := cmd.OutOrStdout()
			evaluator := starbind.NewEvaluator(s.gw,
				starbind.WithTimeout(s.cfg.Script.Timeout),
				starbind.WithOutput(out),
				starbind.WithLogger(s.tel.Logger),
				starbind.WithMetrics(s.tel.Metrics),
			)

			run := func(ctx context.Context) error {
				src, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read script: %w", err)
				}
				result, err := evaluator.Exec(ctx, path, src)
				if err != nil {
					return err
				}
				return printOutput(out, opts.jsonOutput, result)
			}

			if !watch {
				return run(ctx)
			}

			ctx = s.tel.WithContext(ctx)
			if err := run(ctx); err != nil {
				s.tel.Logger.WithError(err).Error("script failed")
			}
			return watchFile(ctx, path, func() {
				if err := run(ctx); err != nil {
					s.tel.Logger.WithError(err).Error("script failed")
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rerun the script when the file changes")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "bound each run (default from config, 30s)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	return cmd
}

func printOutput(w io.Writer, jsonOutput bool, result *starbind.Result) error {
	if jsonOutput {
		return writeJSON(w, map[string]any{
			"output":         result.Output,
			"execution_time": result.ExecutionTime.String(),
		})
	}

	names := make([]string, 0, len(result.Output))
	for name := range result.Output {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := result.Output[name]
		if a, ok := v.(*ndarray.Array); ok {
			fmt.Fprintf(w, "%s = %s %v\n", name, a, a.Data())
			continue
		}
		fmt.Fprintf(w, "%s = %v\n", name, v)
	}
	return nil
}
