package plan

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/fintalk/queryc/internal/normalize"
	"github.com/fintalk/queryc/internal/spec"
)

// entitySources maps every entity to its physical source. The table is
// exhaustive; unmapped entities cannot pass validation.
var entitySources = map[spec.Entity]string{
	spec.EntityExpense:   "operations",
	spec.EntityIncome:    "operations",
	spec.EntityOperation: "operations",
}

// entityKinds maps entities to the kind discriminator. The combined
// operation entity has no entry: it scans both kinds.
var entityKinds = map[spec.Entity]string{
	spec.EntityExpense: "expense",
	spec.EntityIncome:  "income",
}

// Compile translates a canonical spec into an execution plan.
//
// Compile is total over canonical specs: an error return means the input
// violated a grammar invariant and is a programming error upstream, not an
// expected failure path.
func Compile(c *normalize.CanonicalSpec) (*Plan, error) {
	source, ok := entitySources[c.Entity]
	if !ok {
		return nil, fmt.Errorf("no physical source for entity %q", c.Entity)
	}
	if c.Limit < 1 || c.Limit > normalize.MaxLimit {
		return nil, fmt.Errorf("limit %d outside canonical bounds", c.Limit)
	}

	p := &Plan{
		Entity:     c.Entity,
		Source:     source,
		GroupBy:    c.GroupBy,
		Aggregates: append([]spec.Aggregate{}, c.Aggregates...),
		Limit:      c.Limit,
		Projection: append([]spec.Field{}, c.Projection...),
		DateRange:  c.DateRange,
	}

	if kind, has := entityKinds[c.Entity]; has {
		p.Clauses = append(p.Clauses, Clause{Column: ColKind, Op: OpEq, Param: ParamString(kind)})
	}

	if r := c.DateRange; r != nil {
		p.Clauses = append(p.Clauses,
			Clause{Column: ColDate, Op: OpGte, Param: ParamString(r.From.Format("2006-01-02"))},
			Clause{Column: ColDate, Op: OpLte, Param: ParamString(r.To.Format("2006-01-02"))},
		)
	}

	if cf := c.Category; cf != nil {
		switch cf.Match {
		case spec.CategoryEq:
			p.Clauses = append(p.Clauses, Clause{Column: ColCategory, Op: OpEq, Param: ParamString(cf.Name)})
		case spec.CategoryContains:
			p.Clauses = append(p.Clauses, Clause{Column: ColCategory, Op: OpContains, Param: ParamString(likePattern(cf.Name))})
		case spec.CategoryID:
			p.Clauses = append(p.Clauses, Clause{Column: ColCategoryID, Op: OpEq, Param: ParamInt(cf.ID)})
		default:
			return nil, fmt.Errorf("unknown category match mode %q", cf.Match)
		}
	}

	if c.AmountMinCents != nil {
		p.Clauses = append(p.Clauses, Clause{Column: ColAmount, Op: OpGte, Param: ParamInt(*c.AmountMinCents)})
	}
	if c.AmountMaxCents != nil {
		p.Clauses = append(p.Clauses, Clause{Column: ColAmount, Op: OpLte, Param: ParamInt(*c.AmountMaxCents)})
	}

	if c.Text != "" {
		p.Clauses = append(p.Clauses, Clause{Column: ColNote, Op: OpContains, Param: ParamString(likePattern(c.Text))})
	}

	p.Order = compileOrder(c)

	return p, nil
}

// compileOrder resolves the requested sort and guarantees a deterministic
// final tie-break key.
func compileOrder(c *normalize.CanonicalSpec) []OrderKey {
	keys := make([]OrderKey, 0, len(c.Sort)+1)
	for _, s := range c.Sort {
		keys = append(keys, OrderKey{By: s.By, Dir: s.Dir})
	}

	grouped := c.GroupBy != spec.GroupNone
	listMode := !grouped && len(c.Aggregates) == 0

	if len(keys) == 0 {
		switch {
		case grouped:
			keys = append(keys, OrderKey{By: string(c.GroupBy), Dir: spec.Asc})
		case listMode:
			// Default detail order: most recent first, then newest id.
			keys = append(keys,
				OrderKey{By: string(spec.FieldDate), Dir: spec.Desc},
				OrderKey{By: ColID, Dir: spec.Desc},
			)
		}
		// Ungrouped aggregates produce a single row; no ordering needed.
	}

	// Tie-break: the grouping dimension is unique per grouped row, the
	// primary key per detail row. Append whichever is missing.
	switch {
	case grouped && !hasKey(keys, string(c.GroupBy)):
		keys = append(keys, OrderKey{By: string(c.GroupBy), Dir: spec.Asc})
	case listMode && !hasKey(keys, ColID):
		keys = append(keys, OrderKey{By: ColID, Dir: spec.Asc})
	}

	return keys
}

func hasKey(keys []OrderKey, by string) bool {
	for _, k := range keys {
		if k.By == by {
			return true
		}
	}
	return false
}

// likePattern builds the bound value for a case-insensitive substring
// match: Unicode case folding, LIKE metacharacter escaping, then wildcard
// wrapping. The SQL backend folds the column side with the same folding, so
// the comparison stays case-insensitive for non-ASCII text. The pattern is
// a parameter value only - it never enters the statement text.
func likePattern(s string) string {
	folded := cases.Fold().String(s)
	var b strings.Builder
	b.Grow(len(folded) + 4)
	b.WriteByte('%')
	for _, r := range folded {
		switch r {
		case '%', '_', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('%')
	return b.String()
}
