package spec

import (
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Schema versions.
const (
	// Version1 is the first (and current) query spec grammar.
	Version1 = 1

	// CurrentVersion is the version new callers should emit.
	CurrentVersion = Version1
)

// SupportedVersions enumerates every grammar this validator accepts.
// Removing an entry is a reviewed, deliberate step - never automatic.
var SupportedVersions = map[int]bool{
	Version1: true,
}

// Entity identifies the ledger slice a query targets.
type Entity string

const (
	EntityExpense   Entity = "expense"
	EntityIncome    Entity = "income"
	EntityOperation Entity = "operation" // expenses and incomes combined
)

// GroupBy identifies the grouping dimension of a query.
type GroupBy string

const (
	GroupNone     GroupBy = "none"
	GroupDate     GroupBy = "date"     // calendar day
	GroupCategory GroupBy = "category" // category identity (id)
	GroupWeekday  GroupBy = "weekday"  // Monday = 0 .. Sunday = 6
)

// Aggregate identifies a computation over the filtered amount column.
type Aggregate string

const (
	AggSum   Aggregate = "sum"
	AggCount Aggregate = "count"
	AggAvg   Aggregate = "avg"
	AggMax   Aggregate = "max"
	AggMin   Aggregate = "min"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Period is a named relative date window, resolved by the normalizer
// against a caller-supplied as-of instant and timezone.
type Period string

const (
	PeriodToday     Period = "today"
	PeriodYesterday Period = "yesterday"
	PeriodWeek      Period = "week"
	PeriodMonth     Period = "month"
	PeriodYear      Period = "year"
)

// Field is a whitelisted raw column usable in projections and list-mode
// sorts. These are the only raw fields a caller can ever name.
type Field string

const (
	FieldDate     Field = "date"
	FieldAmount   Field = "amount"
	FieldCategory Field = "category"
	FieldNote     Field = "note"
)

// ValidSpec is a query specification that has passed whitelist validation
// for exactly one schema version. Every enum member is a known value and
// every cross-field reference (sort keys, projection) resolves.
//
// A ValidSpec may still carry legacy shapes (relative periods, implicit
// aggregate defaults); the normalizer rewrites those into a CanonicalSpec.
type ValidSpec struct {
	Version    int
	Entity     Entity
	Filters    Filters
	GroupBy    GroupBy
	Aggregates []Aggregate // deduplicated, order of first appearance; nil = absent
	Sort       []SortKey
	Limit      int // 0 = absent; normalizer defaults and clamps
	Projection []Field

	// Stripped lists recognized-but-disallowed keys (tenant scoping and
	// similar) that were discarded from the payload. The normalizer logs a
	// security note for each. Truly unknown keys reject instead.
	Stripped []string
}

// Filters is the optional filter composite. A nil member means the
// dimension is unconstrained.
type Filters struct {
	Date     *DateFilter
	Category *CategoryFilter
	Amount   *AmountFilter
	Text     *TextFilter
}

// DateFilter is either a named relative period or an absolute closed
// interval of calendar dates. Exactly one form is populated.
type DateFilter struct {
	Period Period // "" when absolute

	From time.Time // zero when relative
	To   time.Time

	// LegacyRange marks the deprecated {from, to} spelling of an absolute
	// interval. The normalizer rewrites it and logs a deprecation warning.
	LegacyRange bool
}

// CategoryMatch selects how a category filter matches.
type CategoryMatch string

const (
	CategoryEq       CategoryMatch = "eq"       // exact display-name match
	CategoryContains CategoryMatch = "contains" // case-insensitive substring
	CategoryID       CategoryMatch = "id"       // numeric category id
)

// CategoryFilter matches operations by category. Exactly one of Name/ID is
// meaningful, selected by Match.
type CategoryFilter struct {
	Match CategoryMatch
	Name  string // eq / contains
	ID    int64  // id
}

// AmountFilter bounds the amount column. Both bounds are inclusive and
// independently optional. Bounds are decimal, never floating point, so
// comparisons at the boundary are exact.
type AmountFilter struct {
	Min *apd.Decimal
	Max *apd.Decimal
}

// TextFilter is a substring match against the operation note. The target
// field is fixed; callers cannot choose columns.
type TextFilter struct {
	Contains string
}

// SortKey orders results by a requested aggregate alias, the grouping
// dimension, or (list mode) a whitelisted raw field.
type SortKey struct {
	By  string
	Dir Direction
}
