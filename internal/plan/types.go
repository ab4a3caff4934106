package plan

import (
	"encoding/json"

	"github.com/fintalk/queryc/internal/normalize"
	"github.com/fintalk/queryc/internal/spec"
)

// Param is a sealed bound-parameter value. Only ParamString and ParamInt
// implement it - parameters are never floats, so plans encode and compare
// deterministically.
type Param interface {
	param() // sealed - only types in this package implement it
}

// ParamString is a bound string parameter.
type ParamString string

func (ParamString) param() {}

// MarshalJSON implements json.Marshaler for canonical plan encoding.
func (p ParamString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p))
}

// ParamInt is a bound integer parameter (cents, ids, weekday numbers).
type ParamInt int64

func (ParamInt) param() {}

// MarshalJSON implements json.Marshaler for canonical plan encoding.
func (p ParamInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(p))
}

// Op is a predicate operator. The set is closed; the SQL backend renders
// each operator against a fixed column expression.
type Op string

const (
	OpEq  Op = "eq"  // column = ?
	OpGte Op = "gte" // column >= ?
	OpLte Op = "lte" // column <= ?

	// OpContains is a case-insensitive substring match. The parameter is a
	// pre-folded, pre-escaped LIKE pattern; the column is always one of the
	// whitelisted text columns, never caller-chosen.
	OpContains Op = "contains"
)

// Physical columns of the operations ledger. Clauses may only reference
// these; the SQL backend rejects anything else.
const (
	ColID         = "id"
	ColTenant     = "tenant_id"
	ColKind       = "kind"
	ColAmount     = "amount_cents"
	ColCategoryID = "category_id"
	ColCategory   = "category"
	ColNote       = "note"
	ColDate       = "occurred_on"
)

// Clause is one fully-parameterized predicate. Clauses combine by
// conjunction only; the grammar has no OR, so nothing in a plan can widen
// the row set the executor scopes down to.
type Clause struct {
	Column string `json:"column"`
	Op     Op     `json:"op"`
	Param  Param  `json:"param"`
}

// OrderKey orders the result by a sort target: an aggregate alias, the
// grouping dimension, or a raw whitelisted column (list mode).
type OrderKey struct {
	By  string         `json:"by"`
	Dir spec.Direction `json:"dir"`
}

// Plan is the immutable execution plan for one request.
//
// A plan is deliberately tenant-free: the executor injects the
// authorization scope at execution time, appended after everything here.
// Plans must never be cached or reused across requests.
type Plan struct {
	Entity     spec.Entity          `json:"entity"`
	Source     string               `json:"source"`
	Clauses    []Clause             `json:"clauses"`
	GroupBy    spec.GroupBy         `json:"group_by"`
	Aggregates []spec.Aggregate     `json:"aggregates"`
	Order      []OrderKey           `json:"order"`
	Limit      int                  `json:"limit"`
	Projection []spec.Field         `json:"projection,omitempty"`
	DateRange  *normalize.DateRange `json:"date_range,omitempty"`
}
