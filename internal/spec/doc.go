// Package spec implements the schema validator for analytical query
// specifications.
//
// The input is a structured value decoded from the caller's transport. The
// caller is a language-model intent router and is treated as adversarial:
// nothing in the payload is trusted until it has passed the closed whitelist
// grammar defined here.
//
// VALIDATION MODEL:
//
// Validation is collect-all, not fail-fast. A rejected payload yields a
// *Violations error enumerating every offending field path with a stable
// error code, so the upstream router can log the full shape of what the
// model produced.
//
// The grammar is versioned. Each supported schema version has exactly one
// grammar; an unknown or missing version rejects the whole payload. Dropping
// support for an old version is a deliberate, reviewed change, never an
// automatic one.
//
// The grammar is shallow by design (three levels of nesting at most) and the
// decoder enforces byte-size and leaf-count caps before structural validation
// runs, so oversized or deeply nested payloads are rejected without walking
// them.
//
// Validation is a pure function: no I/O, no logging, no mutation of the
// input. The output is a strongly typed ValidSpec, so every later pipeline
// stage is type-exhaustive over the grammar and never touches a dynamic map.
package spec
