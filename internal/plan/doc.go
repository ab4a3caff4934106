// Package plan compiles canonical query specs into immutable, fully
// parameterized execution plans.
//
// A Plan is a value: built once per request, never mutated, never cached or
// shared across requests. Every caller-supplied value in the plan lives in a
// bound parameter (a sealed Param type), never in a string fragment - there
// is no string interpolation anywhere between the spec and the database.
//
// The compiler is total: every CanonicalSpec that satisfies the grammar
// invariants compiles. An error from Compile is a programming error upstream
// (a broken normalizer or a hand-built spec), not an expected path.
//
// Ordering is always deterministic. The compiler appends a final tie-break
// key (primary key ascending in list mode, the grouping dimension in grouped
// mode) whenever the requested sort does not already pin it, so equal-ranked
// rows keep a stable order across repeated executions.
package plan
