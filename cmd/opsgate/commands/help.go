package commands

import (
	"github.com/spf13/cobra"
)

// newHelpCommand replaces cobra's help command. A command name shows that
// command's usage; anything else is looked up as an operation.
func newHelpCommand(opts *globalOptions, root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help [command | operation]",
		Short: "Describe a command or an operation",
		Long: `Describe a command, an operation, or every operation.

Operation help lists each signature registered under the name. With
--verbose the descriptions, aliases, supported forms and parameters are
included.`,
		Example: `  opsgate help math.add --builtin
  opsgate help --builtin --verbose
  opsgate help list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if sub, _, err := root.Find(args); err == nil && sub != root {
					return sub.Help()
				}
			}

			ctx := cmd.Context()
			s, err := openSession(ctx, opts, nil)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			var name string
			if len(args) == 1 {
				name = args[0]
			}
			if opts.verbose {
				return s.gw.HelpVerbose(ctx, cmd.OutOrStdout(), name)
			}
			return s.gw.Help(ctx, cmd.OutOrStdout(), name)
		},
	}
}
