package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scijava/opsgate/pkg/ops"
)

func newListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [prefix]",
		Short: "List available operations",
		Long: `List the names of every operation reachable through the gateway.

With a prefix only names starting with it are listed. With --json the
operation descriptors are printed instead.`,
		Example: `  # All operations
  opsgate list --builtin

  # Operations in the math namespace, with descriptors
  opsgate list math. --builtin --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts, nil)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}

			var names []string
			for _, name := range s.gw.OpNames() {
				if strings.HasPrefix(name, prefix) {
					names = append(names, name)
				}
			}

			out := cmd.OutOrStdout()
			if !opts.jsonOutput {
				for _, name := range names {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			infos, err := s.gw.Environment().Infos(ctx)
			if err != nil {
				return fmt.Errorf("failed to enumerate operations: %w", err)
			}
			selected := []ops.Info{}
			for _, info := range infos {
				for _, n := range info.Names {
					if strings.HasPrefix(n, prefix) {
						selected = append(selected, info)
						break
					}
				}
			}
			return writeJSON(out, selected)
		},
	}
}
