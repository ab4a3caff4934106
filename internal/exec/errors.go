package exec

import (
	"errors"
	"fmt"
)

// Code classifies a pipeline failure. Everything except COMPILE_INVARIANT
// is an expected path: the chat layer renders it as a plain user-facing
// message and never as a stack trace. Full detail goes to the audit sink
// only.
type Code string

const (
	// CodeSchemaViolation marks input that failed whitelist validation.
	CodeSchemaViolation Code = "SCHEMA_VIOLATION"

	// CodeAmbiguity marks a spec that became unanswerable during
	// normalization (for example nothing left to query after stripping).
	CodeAmbiguity Code = "NORMALIZATION_AMBIGUITY"

	// CodeCompileInvariant marks a plan compilation failure. Unreachable
	// for canonical specs; always a programming error, logged at high
	// severity and never swallowed.
	CodeCompileInvariant Code = "COMPILE_INVARIANT"

	// CodeTimeout marks a statement that exceeded its execution budget.
	CodeTimeout Code = "TIMEOUT"

	// CodeStorageUnavailable marks a storage collaborator failure. The
	// caller owns any retry policy; this core never retries.
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// userMessages are the only strings that ever reach an end user. None of
// them leaks grammar internals, column names, or SQL.
var userMessages = map[Code]string{
	CodeSchemaViolation:    "this request can't be answered in this form",
	CodeAmbiguity:          "this request can't be answered in this form",
	CodeCompileInvariant:   "something went wrong answering this request",
	CodeTimeout:            "the question took too long to answer; try a narrower date range",
	CodeStorageUnavailable: "the data store is temporarily unavailable; try again shortly",
}

// QueryError is a classified pipeline failure. Message is safe to show to
// an end user; the wrapped cause carries full detail for the audit sink.
type QueryError struct {
	Code    Code
	Message string
	cause   error
}

// NewQueryError wraps a cause under a classification code.
func NewQueryError(code Code, cause error) *QueryError {
	msg, ok := userMessages[code]
	if !ok {
		msg = userMessages[CodeCompileInvariant]
	}
	return &QueryError{Code: code, Message: msg, cause: cause}
}

// Error implements the error interface. The string includes the cause and
// is intended for logs and audit, not for end users; user rendering takes
// Message only.
func (e *QueryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *QueryError) Unwrap() error {
	return e.cause
}

// CodeOf extracts the classification of an error, or "" for unclassified
// errors. Uses errors.As to handle wrapping.
func CodeOf(err error) Code {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// IsTimeout reports whether the error is a statement-budget timeout.
func IsTimeout(err error) bool {
	return CodeOf(err) == CodeTimeout
}

// IsStorageUnavailable reports whether the error is a storage failure.
func IsStorageUnavailable(err error) bool {
	return CodeOf(err) == CodeStorageUnavailable
}

// IsRejection reports whether the error rejected the request itself
// (schema violation or normalization ambiguity) rather than failing its
// execution.
func IsRejection(err error) bool {
	c := CodeOf(err)
	return c == CodeSchemaViolation || c == CodeAmbiguity
}
