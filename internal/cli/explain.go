package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fintalk/queryc/internal/normalize"
	"github.com/fintalk/queryc/internal/plan"
	"github.com/fintalk/queryc/internal/plansql"
	"github.com/fintalk/queryc/internal/spec"
)

// NewExplainCommand creates the explain command: compile a spec file and
// show the canonical plan and the parameterized SQL without executing
// anything.
func NewExplainCommand(opts *RootOptions) *cobra.Command {
	var (
		tenants []string
		asOf    string
		tz      string
	)

	cmd := &cobra.Command{
		Use:   "explain <spec-file>",
		Short: "Compile a query spec and print the plan and SQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := LoadSpecFile(args[0])
			if err != nil {
				return err
			}

			asOfTime, loc, err := resolveClock(asOf, tz)
			if err != nil {
				return err
			}

			valid, err := spec.Validate(doc, opts.Config.Caps())
			if err != nil {
				return err
			}
			canonical, notes, err := normalize.Normalize(valid, asOfTime, loc)
			if err != nil {
				return err
			}
			compiled, err := plan.Compile(canonical)
			if err != nil {
				return err
			}
			stmt, err := plansql.Compile(compiled, tenants, compiled.Limit)
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				out, err := json.Marshal(map[string]any{
					"plan": compiled,
					"sql":  stmt.SQL,
					"args": stmt.Args,
				})
				if err != nil {
					return err
				}
				cmd.Println(string(out))
				return nil
			}

			for _, n := range notes {
				cmd.Printf("note (%s): %s\n", n.Kind, n.Message)
			}
			encoded, err := plan.MarshalCanonical(compiled)
			if err != nil {
				return err
			}
			cmd.Printf("plan: %s\n", encoded)
			cmd.Printf("sql:  %s\n", stmt.SQL)
			cmd.Printf("args: %v\n", stmt.Args)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tenants, "tenant", []string{"tenant"}, "tenant id(s) to scope the plan to")
	cmd.Flags().StringVar(&asOf, "as-of", "", "as-of instant for relative periods (RFC3339 or YYYY-MM-DD, default now)")
	cmd.Flags().StringVar(&tz, "tz", "UTC", "tenant timezone for relative periods")

	return cmd
}

// resolveClock parses the as-of flag and timezone.
func resolveClock(asOf, tz string) (time.Time, *time.Location, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("unknown timezone %q: %w", tz, err)
	}

	if asOf == "" {
		return time.Now(), loc, nil
	}
	if t, err := time.Parse(time.RFC3339, asOf); err == nil {
		return t, loc, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", asOf, loc); err == nil {
		return t, loc, nil
	}
	return time.Time{}, nil, fmt.Errorf("cannot parse as-of %q (want RFC3339 or YYYY-MM-DD)", asOf)
}
