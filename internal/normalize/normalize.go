package normalize

import (
	"fmt"
	"time"

	"github.com/fintalk/queryc/internal/spec"
)

// Limit defaults. The ceiling is a hard product bound, not tuning.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// DateRange is an inclusive interval of calendar days (midnight UTC marks).
type DateRange struct {
	From time.Time
	To   time.Time
}

// Days returns the number of calendar days the range covers.
func (r DateRange) Days() int {
	return int(r.To.Sub(r.From)/(24*time.Hour)) + 1
}

// CanonicalSpec is the fully-resolved form of a valid query spec. Every
// invariant holds: dates are absolute and span at most 366 days, amounts
// are exact cents, the limit is always set and within bounds, and list
// queries always carry an explicit projection.
type CanonicalSpec struct {
	Version int
	Entity  spec.Entity

	// DateRange is nil when the query is unbounded in time.
	DateRange *DateRange

	Category *spec.CategoryFilter

	// Amount bounds in cents, inclusive. Nil means unbounded.
	AmountMinCents *int64
	AmountMaxCents *int64

	// Text is the note substring filter; empty means none.
	Text string

	GroupBy    spec.GroupBy
	Aggregates []spec.Aggregate // never nil; empty only in list mode
	Sort       []spec.SortKey
	Limit      int
	Projection []spec.Field // non-empty exactly when GroupBy == none
}

// NoteKind classifies normalization warnings.
type NoteKind string

const (
	// NoteSecurity marks a discarded tenant/scope field. The payload tried
	// to carry its own authorization; that is always ignored.
	NoteSecurity NoteKind = "security"

	// NoteDeprecation marks a legacy spelling or implicit default that was
	// rewritten to the canonical form.
	NoteDeprecation NoteKind = "deprecation"
)

// Note is a warning the caller should log. Notes never change the outcome
// of normalization.
type Note struct {
	Kind    NoteKind
	Message string
}

// AmbiguityError reports a spec that became unanswerable during
// normalization. It receives the same user-facing handling as a schema
// violation.
type AmbiguityError struct {
	Reason string
}

// Error implements the error interface.
func (e *AmbiguityError) Error() string {
	return "spec is ambiguous after normalization: " + e.Reason
}

// Normalize resolves a valid spec into its canonical form.
//
// asOf anchors relative periods; loc is the tenant's timezone, supplied by
// the session collaborator (never inferred from the spec). A nil loc means
// UTC.
func Normalize(v *spec.ValidSpec, asOf time.Time, loc *time.Location) (*CanonicalSpec, []Note, error) {
	if loc == nil {
		loc = time.UTC
	}

	var notes []Note
	for _, key := range v.Stripped {
		notes = append(notes, Note{
			Kind:    NoteSecurity,
			Message: fmt.Sprintf("discarded caller-supplied scope field %q; authorization is never taken from the spec", key),
		})
	}

	// The validator requires an entity, but a ValidSpec can also be built
	// programmatically. Without an entity there is nothing to answer.
	if v.Entity == "" {
		return nil, notes, &AmbiguityError{Reason: "no entity"}
	}

	c := &CanonicalSpec{
		Version: v.Version,
		Entity:  v.Entity,
		GroupBy: v.GroupBy,
	}
	if v.Filters.Text != nil {
		c.Text = v.Filters.Text.Contains
	}

	if df := v.Filters.Date; df != nil {
		if df.Period != "" {
			r := ResolvePeriod(df.Period, asOf, loc)
			c.DateRange = &r
		} else {
			if df.LegacyRange {
				notes = append(notes, Note{
					Kind:    NoteDeprecation,
					Message: "date filter uses the deprecated from/to spelling; rewritten to between",
				})
			}
			c.DateRange = &DateRange{From: df.From, To: df.To}
		}
	}

	c.Category = v.Filters.Category

	if af := v.Filters.Amount; af != nil {
		if af.Min != nil {
			cents, ok := spec.CentsOf(af.Min)
			if !ok {
				return nil, notes, &AmbiguityError{Reason: "amount lower bound is not an exact cent value"}
			}
			c.AmountMinCents = &cents
		}
		if af.Max != nil {
			cents, ok := spec.CentsOf(af.Max)
			if !ok {
				return nil, notes, &AmbiguityError{Reason: "amount upper bound is not an exact cent value"}
			}
			c.AmountMaxCents = &cents
		}
	}

	// Legacy convention: a grouped query with no aggregate key at all used
	// to mean sum. Make it explicit so the compiler never guesses.
	switch {
	case v.Aggregates == nil && v.GroupBy != spec.GroupNone:
		c.Aggregates = []spec.Aggregate{spec.AggSum}
		notes = append(notes, Note{
			Kind:    NoteDeprecation,
			Message: "grouped query without an aggregate key; defaulted to sum per the legacy convention",
		})
	case v.Aggregates == nil:
		c.Aggregates = []spec.Aggregate{}
	default:
		c.Aggregates = append([]spec.Aggregate{}, v.Aggregates...)
	}

	c.Sort = append([]spec.SortKey{}, v.Sort...)

	switch {
	case v.Limit == 0:
		c.Limit = DefaultLimit
	case v.Limit > MaxLimit:
		c.Limit = MaxLimit
	default:
		c.Limit = v.Limit
	}

	// List queries always carry an explicit column list; an absent
	// projection means the full whitelisted detail row.
	if c.GroupBy == spec.GroupNone && len(c.Aggregates) == 0 {
		if len(v.Projection) > 0 {
			c.Projection = append([]spec.Field{}, v.Projection...)
		} else {
			c.Projection = []spec.Field{spec.FieldDate, spec.FieldAmount, spec.FieldCategory, spec.FieldNote}
		}
	}

	return c, notes, nil
}
