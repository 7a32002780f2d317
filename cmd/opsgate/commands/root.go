package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	endpoints  []string
	builtin    bool
	jsonOutput bool
	verbose    bool
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "opsgate",
		Short: "opsgate - gateway to SciJava Ops operation libraries",
		Long: `opsgate starts a WebAssembly runtime hosting SciJava Ops operation
libraries and exposes their operations as a namespaced tree.

Operations are addressed by dotted names such as "math.add" or
"filter.gauss". They can be listed, described, called from the command
line, or scripted with Starlark.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (.yaml, .json or .cue)")
	rootCmd.PersistentFlags().StringArrayVarP(&opts.endpoints, "endpoint", "e", nil, "library coordinate to load (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&opts.builtin, "builtin", false, "serve the built-in operations instead of starting the runtime")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newListCommand(opts))
	rootCmd.AddCommand(newCallCommand(opts))
	rootCmd.AddCommand(newScriptCommand(opts))
	rootCmd.SetHelpCommand(newHelpCommand(opts, rootCmd))

	return rootCmd
}
