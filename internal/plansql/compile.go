// Package plansql compiles execution plans to parameterized SQLite.
//
// Two rules are absolute here:
//
//  1. Caller values never enter statement text. Every value, including the
//     injected tenant scope, is a ? placeholder with a bound argument.
//  2. Every multi-row statement carries an ORDER BY ending in a
//     deterministic tie-break, so repeated executions return identical row
//     order.
package plansql

import (
	"fmt"
	"strings"

	"github.com/fintalk/queryc/internal/plan"
	"github.com/fintalk/queryc/internal/spec"
)

// ColumnType tells the executor how to scan a result column.
type ColumnType string

const (
	TypeCents ColumnType = "cents" // int64 amount in cents
	TypeInt   ColumnType = "int"   // int64 (counts, ids, weekday numbers)
	TypeFloat ColumnType = "float" // float64 (avg only)
	TypeText  ColumnType = "text"
	TypeDate  ColumnType = "date" // ISO calendar date string
)

// Column describes one column of the compiled SELECT list, in order.
type Column struct {
	Name string
	Type ColumnType
}

// Statement is a compiled, ready-to-execute query. SQL is always a single
// SELECT; Args line up with the ? placeholders left to right.
type Statement struct {
	SQL     string
	Args    []any
	Columns []Column
}

// predicateColumns is the closed set of physical columns predicates may
// reference. Defense in depth: the plan compiler only emits these, but the
// backend refuses anything else regardless.
var predicateColumns = map[string]bool{
	plan.ColKind:       true,
	plan.ColDate:       true,
	plan.ColCategory:   true,
	plan.ColCategoryID: true,
	plan.ColAmount:     true,
	plan.ColNote:       true,
}

// Compile renders a plan against the given tenant scope.
//
// The scope is appended as a final conjunct after every plan clause; it is
// supplied by the executor, never taken from the plan, and the grammar has
// no OR that could widen past it. fetch is the row count to request
// (typically limit+1 so the executor can detect truncation).
func Compile(p *plan.Plan, tenants []string, fetch int) (*Statement, error) {
	if p == nil {
		return nil, fmt.Errorf("cannot compile nil plan")
	}
	if len(tenants) == 0 {
		return nil, fmt.Errorf("tenant scope must not be empty")
	}
	if fetch < 1 {
		return nil, fmt.Errorf("fetch count must be positive, got %d", fetch)
	}

	stmt := &Statement{}

	selectList, cols, err := compileSelect(p)
	if err != nil {
		return nil, err
	}
	stmt.Columns = cols

	where, args, err := compileWhere(p)
	if err != nil {
		return nil, err
	}
	stmt.Args = args

	// Tenant scope, appended exactly once after all plan clauses.
	var scope strings.Builder
	scope.WriteString(plan.ColTenant + " IN (")
	for i, id := range tenants {
		if i > 0 {
			scope.WriteString(", ")
		}
		scope.WriteString("?")
		stmt.Args = append(stmt.Args, id)
	}
	scope.WriteString(")")

	var sql strings.Builder
	sql.WriteString("SELECT ")
	sql.WriteString(selectList)
	sql.WriteString(" FROM ")
	sql.WriteString(p.Source)
	sql.WriteString(" WHERE ")
	if where != "" {
		sql.WriteString("(")
		sql.WriteString(where)
		sql.WriteString(") AND ")
	}
	sql.WriteString(scope.String())

	if expr := groupExpr(p.GroupBy); expr != "" {
		sql.WriteString(" GROUP BY ")
		sql.WriteString(expr)
	}

	orderBy, err := compileOrder(p)
	if err != nil {
		return nil, err
	}
	if orderBy != "" {
		sql.WriteString(" ORDER BY ")
		sql.WriteString(orderBy)
	}

	sql.WriteString(" LIMIT ?")
	stmt.Args = append(stmt.Args, fetch)

	stmt.SQL = sql.String()
	return stmt, nil
}

// compileSelect builds the SELECT list and the matching column metadata.
// Never SELECT *: every column is named.
func compileSelect(p *plan.Plan) (string, []Column, error) {
	var parts []string
	var cols []Column

	grouped := p.GroupBy != spec.GroupNone

	if grouped {
		switch p.GroupBy {
		case spec.GroupDate:
			parts = append(parts, `date(occurred_on) AS "date"`)
			cols = append(cols, Column{Name: "date", Type: TypeDate})
		case spec.GroupCategory:
			// Group by category identity, not display name; the label
			// rides along deterministically for the formatter.
			parts = append(parts, `category_id AS "category"`, `MIN(category) AS "category_label"`)
			cols = append(cols, Column{Name: "category", Type: TypeInt}, Column{Name: "category_label", Type: TypeText})
		case spec.GroupWeekday:
			// Monday = 0 .. Sunday = 6. strftime('%w') counts from Sunday.
			parts = append(parts, weekdayExpr+` AS "weekday"`)
			cols = append(cols, Column{Name: "weekday", Type: TypeInt})
		default:
			return "", nil, fmt.Errorf("unsupported grouping %q", p.GroupBy)
		}
	}

	if grouped || len(p.Aggregates) > 0 {
		for _, a := range p.Aggregates {
			expr, col, err := aggregateExpr(a)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, expr)
			cols = append(cols, col)
		}
		return strings.Join(parts, ", "), cols, nil
	}

	// List mode: whitelisted projection only.
	if len(p.Projection) == 0 {
		return "", nil, fmt.Errorf("list plan has no projection")
	}
	for _, f := range p.Projection {
		switch f {
		case spec.FieldDate:
			parts = append(parts, `occurred_on AS "date"`)
			cols = append(cols, Column{Name: "date", Type: TypeDate})
		case spec.FieldAmount:
			parts = append(parts, `amount_cents AS "amount"`)
			cols = append(cols, Column{Name: "amount", Type: TypeCents})
		case spec.FieldCategory:
			parts = append(parts, `category AS "category"`)
			cols = append(cols, Column{Name: "category", Type: TypeText})
		case spec.FieldNote:
			parts = append(parts, `note AS "note"`)
			cols = append(cols, Column{Name: "note", Type: TypeText})
		default:
			return "", nil, fmt.Errorf("field %q is not projectable", f)
		}
	}
	return strings.Join(parts, ", "), cols, nil
}

// weekdayExpr shifts SQLite's Sunday-based day number to Monday = 0.
const weekdayExpr = `(CAST(strftime('%w', occurred_on) AS INTEGER) + 6) % 7`

// aggregateExpr renders one aggregate computation. All aggregates share the
// single grouped scan; the plan never issues one query per aggregate.
func aggregateExpr(a spec.Aggregate) (string, Column, error) {
	switch a {
	case spec.AggSum:
		return `COALESCE(SUM(amount_cents), 0) AS "sum"`, Column{Name: "sum", Type: TypeCents}, nil
	case spec.AggCount:
		return `COUNT(*) AS "count"`, Column{Name: "count", Type: TypeInt}, nil
	case spec.AggAvg:
		return `AVG(amount_cents) AS "avg"`, Column{Name: "avg", Type: TypeFloat}, nil
	case spec.AggMax:
		return `MAX(amount_cents) AS "max"`, Column{Name: "max", Type: TypeCents}, nil
	case spec.AggMin:
		return `MIN(amount_cents) AS "min"`, Column{Name: "min", Type: TypeCents}, nil
	default:
		return "", Column{}, fmt.Errorf("unsupported aggregate %q", a)
	}
}

// compileWhere renders the plan clauses as a conjunction. Values are bound,
// never interpolated.
func compileWhere(p *plan.Plan) (string, []any, error) {
	if len(p.Clauses) == 0 {
		return "", nil, nil
	}

	var parts []string
	var args []any
	for _, c := range p.Clauses {
		if !predicateColumns[c.Column] {
			return "", nil, fmt.Errorf("column %q is not a permitted predicate target", c.Column)
		}
		val, err := paramValue(c.Param)
		if err != nil {
			return "", nil, err
		}
		switch c.Op {
		case plan.OpEq:
			parts = append(parts, c.Column+" = ?")
		case plan.OpGte:
			parts = append(parts, c.Column+" >= ?")
		case plan.OpLte:
			parts = append(parts, c.Column+" <= ?")
		case plan.OpContains:
			// Pattern is folded and escaped by the plan compiler; fold() is
			// the store-registered Unicode case folding, the same folding
			// applied to the pattern, so non-ASCII text matches too.
			parts = append(parts, `fold(`+c.Column+`) LIKE ? ESCAPE '\'`)
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", c.Op)
		}
		args = append(args, val)
	}

	return strings.Join(parts, " AND "), args, nil
}

// groupExpr returns the GROUP BY expression for a grouping dimension.
func groupExpr(g spec.GroupBy) string {
	switch g {
	case spec.GroupDate:
		return "date(occurred_on)"
	case spec.GroupCategory:
		return "category_id"
	case spec.GroupWeekday:
		return weekdayExpr
	default:
		return ""
	}
}

// compileOrder renders the ORDER BY list. Aliases cover aggregate and
// dimension targets; list-mode raw targets use physical columns so they
// stay valid even when not projected.
func compileOrder(p *plan.Plan) (string, error) {
	if len(p.Order) == 0 {
		return "", nil
	}

	grouped := p.GroupBy != spec.GroupNone
	aliases := map[string]bool{}
	for _, a := range p.Aggregates {
		aliases[string(a)] = true
	}
	if grouped {
		aliases[string(p.GroupBy)] = true
	}

	var parts []string
	for _, k := range p.Order {
		var expr string
		switch {
		case aliases[k.By]:
			expr = `"` + k.By + `"`
			if grouped && k.By == string(spec.GroupDate) {
				expr += " COLLATE BINARY"
			}
		case !grouped && k.By == string(spec.FieldDate):
			expr = plan.ColDate + " COLLATE BINARY"
		case !grouped && k.By == string(spec.FieldAmount):
			expr = plan.ColAmount
		case !grouped && k.By == plan.ColID:
			expr = plan.ColID + " COLLATE BINARY"
		default:
			return "", fmt.Errorf("sort key %q does not resolve in this plan", k.By)
		}

		switch k.Dir {
		case spec.Asc:
			expr += " ASC"
		case spec.Desc:
			expr += " DESC"
		default:
			return "", fmt.Errorf("invalid sort direction %q", k.Dir)
		}
		parts = append(parts, expr)
	}

	return strings.Join(parts, ", "), nil
}

// paramValue converts a sealed plan parameter to a driver value.
func paramValue(p plan.Param) (any, error) {
	switch v := p.(type) {
	case plan.ParamString:
		return string(v), nil
	case plan.ParamInt:
		return int64(v), nil
	case nil:
		return nil, fmt.Errorf("clause has no bound parameter")
	default:
		return nil, fmt.Errorf("unsupported parameter type %T", p)
	}
}
