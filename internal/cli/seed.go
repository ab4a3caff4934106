package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fintalk/queryc/internal/spec"
	"github.com/fintalk/queryc/internal/store"
)

// seedFixture is the YAML shape of one ledger row in a fixture file.
type seedFixture struct {
	Tenant     string `yaml:"tenant"`
	Kind       string `yaml:"kind"`
	Amount     string `yaml:"amount"` // decimal string, e.g. "12.50"
	CategoryID int64  `yaml:"category_id"`
	Category   string `yaml:"category"`
	Note       string `yaml:"note"`
	Date       string `yaml:"date"` // YYYY-MM-DD
}

// NewSeedCommand creates the seed command: load fixture operations into a
// ledger database. Development tooling; the production write path lives
// elsewhere in the product.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "seed <fixture-file>",
		Short: "Load fixture operations into a ledger database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read fixture file: %w", err)
			}

			var fixtures []seedFixture
			if err := yaml.Unmarshal(data, &fixtures); err != nil {
				return fmt.Errorf("parse fixture file: %w", err)
			}

			ops := make([]store.Operation, 0, len(fixtures))
			for i, f := range fixtures {
				op, err := fixtureOperation(f)
				if err != nil {
					return fmt.Errorf("fixture %d: %w", i, err)
				}
				ops = append(ops, op)
			}

			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.InsertAll(cmd.Context(), ops); err != nil {
				return err
			}
			cmd.Printf("seeded %d operation(s) into %s\n", len(ops), dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", opts.Config.DBPath, "path to the ledger database")

	return cmd
}

// fixtureOperation converts one fixture entry to a ledger row.
func fixtureOperation(f seedFixture) (store.Operation, error) {
	if f.Kind != "expense" && f.Kind != "income" {
		return store.Operation{}, fmt.Errorf("kind must be expense or income, got %q", f.Kind)
	}

	d, _, err := apd.NewFromString(f.Amount)
	if err != nil {
		return store.Operation{}, fmt.Errorf("amount %q is not a valid decimal", f.Amount)
	}
	cents, ok := spec.CentsOf(d)
	if !ok || cents < 0 {
		return store.Operation{}, fmt.Errorf("amount %q is not a non-negative cent value", f.Amount)
	}

	day, err := time.Parse("2006-01-02", f.Date)
	if err != nil {
		return store.Operation{}, fmt.Errorf("date %q is not YYYY-MM-DD", f.Date)
	}

	return store.Operation{
		TenantID:    f.Tenant,
		Kind:        f.Kind,
		AmountCents: cents,
		CategoryID:  f.CategoryID,
		Category:    f.Category,
		Note:        f.Note,
		OccurredOn:  day,
	}, nil
}
