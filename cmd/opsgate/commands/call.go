package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scijava/opsgate/pkg/ndarray"
	"github.com/scijava/opsgate/pkg/ops"
)

func newCallCommand(opts *globalOptions) *cobra.Command {
	var deferred bool

	cmd := &cobra.Command{
		Use:   "call <operation> [args...]",
		Short: "Call an operation",
		Long: `Call an operation with positional arguments.

Arguments are parsed as numbers or booleans when possible. A JSON list is
passed as a list and a JSON object with shape, dtype and data fields as an
array. Anything else is passed as a string.

With --defer the operation is resolved but not run, and the resulting
executor is printed.`,
		Example: `  opsgate call math.add 2 3 --builtin
  opsgate call stats.mean '{"shape":[3],"dtype":"float64","data":[1,2,3]}' --builtin
  opsgate call math.add 2 3 --defer --builtin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			inputs := make([]any, len(args)-1)
			for i, arg := range args[1:] {
				v, err := parseArg(arg)
				if err != nil {
					return fmt.Errorf("argument %d: %w", i+1, err)
				}
				inputs[i] = v
			}

			s, err := openSession(ctx, opts, nil)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			op, err := s.gw.Resolve(args[0])
			if err != nil {
				return err
			}

			if deferred {
				exec, err := op.Executor(ctx, inputs)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), opts.jsonOutput, describeExecutor(exec))
			}

			result, err := op.Call(ctx, inputs)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.jsonOutput, result)
		},
	}

	cmd.Flags().BoolVar(&deferred, "defer", false, "resolve the operation without running it")

	return cmd
}

// parseArg converts one command-line argument to an operation input.
func parseArg(arg string) (any, error) {
	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		return f, nil
	}
	if b, err := strconv.ParseBool(arg); err == nil {
		return b, nil
	}

	trimmed := strings.TrimSpace(arg)
	switch {
	case strings.HasPrefix(trimmed, "{"):
		a := &ndarray.Array{}
		if err := json.Unmarshal([]byte(trimmed), a); err != nil {
			return nil, fmt.Errorf("invalid array: %w", err)
		}
		return a, nil
	case strings.HasPrefix(trimmed, "["):
		var list []any
		if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
			return nil, fmt.Errorf("invalid list: %w", err)
		}
		return list, nil
	}
	return arg, nil
}

func describeExecutor(exec ops.Executor) map[string]string {
	return map[string]string{
		"executor": exec.Name(),
		"form":     string(exec.Kind()),
	}
}

func printResult(w io.Writer, jsonOutput bool, result any) error {
	if jsonOutput {
		return writeJSON(w, map[string]any{"result": result})
	}

	switch r := result.(type) {
	case *ndarray.Array:
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n%s\n", r, data)
	case map[string]string:
		fmt.Fprintf(w, "executor %s (%s)\n", r["executor"], r["form"])
	default:
		fmt.Fprintln(w, r)
	}
	return nil
}
