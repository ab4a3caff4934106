package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fintalk/queryc/internal/exec"
	"github.com/fintalk/queryc/internal/log"
	"github.com/fintalk/queryc/internal/pipeline"
	"github.com/fintalk/queryc/internal/plansql"
	"github.com/fintalk/queryc/internal/store"
)

// NewQueryCommand creates the query command: run a spec file against a
// ledger database under an explicit tenant scope.
func NewQueryCommand(opts *RootOptions) *cobra.Command {
	var (
		dbPath  string
		tenants []string
		asOf    string
		tz      string
		timeout string
	)

	cmd := &cobra.Command{
		Use:   "query <spec-file>",
		Short: "Execute a query spec against a ledger database",
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
			scope, err := exec.NewScope(tenants...)
			if err != nil {
				return err
			}

			st, err := store.OpenReadOnly(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			logger := log.New(level)

			statementTimeout := opts.Config.StatementTimeout
			if timeout != "" {
				statementTimeout, err = time.ParseDuration(timeout)
				if err != nil {
					return fmt.Errorf("invalid timeout %q: %w", timeout, err)
				}
			}

			sink := exec.MultiSink{&exec.Metrics{}, &exec.SlogSink{Log: logger.WithComponent("audit")}}
			executor := exec.New(st, statementTimeout, sink, logger)
			pipe := pipeline.New(executor, opts.Config.Caps(), sink, logger)

			result, err := pipe.Answer(cmd.Context(), pipeline.Request{
				Doc:      doc,
				Scope:    scope,
				AsOf:     asOfTime,
				Location: loc,
			})
			if err != nil {
				var qe *exec.QueryError
				if errors.As(err, &qe) {
					if opts.Verbose {
						return fmt.Errorf("%s (%s)", qe.Message, qe.Error())
					}
					return fmt.Errorf("%s", qe.Message)
				}
				return err
			}

			return printResult(cmd, opts, result)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", opts.Config.DBPath, "path to the ledger database")
	cmd.Flags().StringSliceVar(&tenants, "tenant", nil, "tenant id(s) authorized for this query (required)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "as-of instant for relative periods (default now)")
	cmd.Flags().StringVar(&tz, "tz", "UTC", "tenant timezone for relative periods")
	cmd.Flags().StringVar(&timeout, "timeout", "", "statement timeout override (e.g. 500ms, 2s)")
	cmd.MarkFlagRequired("tenant")

	return cmd
}

// printResult renders a result shape for operators.
func printResult(cmd *cobra.Command, opts *RootOptions, r *exec.ResultShape) error {
	if opts.Format == "json" {
		out, err := json.Marshal(map[string]any{
			"rows":       r.Rows,
			"row_count":  r.RowCount,
			"truncated":  r.Truncated,
			"entity":     r.Entity,
			"group_by":   r.GroupBy,
			"date_range": r.DateRange,
		})
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	if r.DateRange != nil {
		cmd.Printf("period: %s .. %s\n",
			r.DateRange.From.Format("2006-01-02"), r.DateRange.To.Format("2006-01-02"))
	}
	if r.Empty() {
		cmd.Println("no data for the selected filters")
		return nil
	}

	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	cmd.Println(strings.Join(names, "\t"))
	for _, row := range r.Rows {
		cells := make([]string, len(r.Columns))
		for i, c := range r.Columns {
			cells[i] = renderCell(row[c.Name], c.Type)
		}
		cmd.Println(strings.Join(cells, "\t"))
	}
	cmd.Printf("%d row(s)", r.RowCount)
	if r.Truncated {
		cmd.Printf(" (truncated; more data may exist)")
	}
	cmd.Println()
	return nil
}

// renderCell formats one scalar. Cents render as a decimal amount.
func renderCell(v any, t plansql.ColumnType) string {
	if v == nil {
		return "-"
	}
	if t == plansql.TypeCents {
		if cents, ok := v.(int64); ok {
			sign := ""
			if cents < 0 {
				sign = "-"
				cents = -cents
			}
			return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
		}
	}
	return fmt.Sprintf("%v", v)
}
