package exec

import (
	"github.com/fintalk/queryc/internal/normalize"
	"github.com/fintalk/queryc/internal/plansql"
	"github.com/fintalk/queryc/internal/spec"
)

// Row maps a result column name to its typed scalar value. Values are
// int64 (cents, counts, ids, weekday numbers), float64 (avg), or string
// (text and ISO dates); a SQL NULL becomes an absent key.
type Row map[string]any

// ResultShape is the typed result handed to the formatter collaborator.
// It carries enough metadata for the formatter to say what was actually
// queried, not just the numbers.
type ResultShape struct {
	// Columns lists the result columns in order with their scan types.
	Columns []plansql.Column

	// Rows in the effective sort order. Never more than the plan limit.
	Rows []Row

	RowCount int

	// Truncated is true when the limit was hit and more matching data may
	// exist beyond it.
	Truncated bool

	Entity  spec.Entity
	GroupBy spec.GroupBy

	// DateRange is the effective post-normalization interval the query
	// covered; nil when the query was unbounded in time.
	DateRange *normalize.DateRange
}

// Empty reports whether the result has no rows. An empty result is not an
// error; it renders as "no data for the selected filters".
func (r *ResultShape) Empty() bool {
	return r.RowCount == 0
}
