// Package normalize rewrites a validated query spec into its canonical,
// fully-absolute form.
//
// The normalizer is the single place where implicit meaning becomes
// explicit: relative date periods resolve to absolute calendar intervals,
// legacy spellings rewrite to the current shape, the row limit is defaulted
// and clamped, and the list-mode projection is materialized. Downstream the
// plan compiler never branches on "is this field present".
//
// Normalization is pure and deterministic given (spec, as-of instant,
// timezone): the same inputs always produce the same CanonicalSpec. Nothing
// here reads the wall clock or the environment. Warnings the caller should
// log (stripped scope keys, deprecated spellings) are returned as structured
// notes rather than logged here.
package normalize
