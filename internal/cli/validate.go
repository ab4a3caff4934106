package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintalk/queryc/internal/spec"
)

// NewValidateCommand creates the validate command: check a spec file
// against the whitelist grammar and report every violation.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <spec-file>",
		Short: "Validate a query spec against the whitelist grammar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := LoadSpecFile(args[0])
			if err != nil {
				return err
			}

			valid, err := spec.Validate(doc, opts.Config.Caps())
			if err != nil {
				var vs spec.Violations
				if errors.As(err, &vs) {
					printViolations(cmd, opts, vs)
					return fmt.Errorf("spec is invalid: %d violation(s)", len(vs))
				}
				return err
			}

			if opts.Format == "json" {
				out, _ := json.Marshal(map[string]any{"valid": true, "version": valid.Version})
				cmd.Println(string(out))
			} else {
				cmd.Printf("spec is valid (schema version %d)\n", valid.Version)
			}
			return nil
		},
	}
}

func printViolations(cmd *cobra.Command, opts *RootOptions, vs spec.Violations) {
	if opts.Format == "json" {
		out, _ := json.Marshal(vs)
		cmd.Println(string(out))
		return
	}
	for _, v := range vs {
		cmd.Printf("  %s\n", v.Error())
	}
}
