// Package cli implements the queryc command line tool: operator tooling
// for validating, explaining, and running analytical query specs against a
// ledger database.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintalk/queryc/internal/config"
)

// RootOptions holds global flags and configuration shared by all commands.
// Config comes from the QUERYC_* environment; flags override it per run.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json"
	Config  *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the queryc CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Config: config.Load()}

	cmd := &cobra.Command{
		Use:   "queryc",
		Short: "Analytical query compiler for the household ledger",
		Long: "queryc validates, explains, and executes whitelisted analytical query\n" +
			"specs against a ledger database, with enforced tenant scoping.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.Config.Validate()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
