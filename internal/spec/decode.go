package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Caps bounds the raw payload before structural validation runs. The
// grammar is shallow and small; anything larger is hostile or broken and
// is rejected without being walked field by field.
type Caps struct {
	// MaxBytes caps the encoded payload size.
	MaxBytes int

	// MaxLeaves caps the total number of scalar leaves in the decoded tree.
	MaxLeaves int

	// MaxDepth caps container nesting. The grammar itself needs three
	// levels (spec → filters → date → between element counts as a leaf).
	MaxDepth int
}

// DefaultCaps returns the documented defaults. Operational tuning happens
// through configuration, not by editing these.
func DefaultCaps() Caps {
	return Caps{
		MaxBytes:  4096,
		MaxLeaves: 20,
		MaxDepth:  3,
	}
}

// Decode parses a raw JSON payload into the generic tree Validate consumes.
// Size is checked before parsing; numbers are kept as json.Number so amount
// bounds never pass through float64.
//
// Decode rejects anything that is not a single JSON object.
func Decode(raw []byte, caps Caps) (map[string]any, error) {
	if caps.MaxBytes > 0 && len(raw) > caps.MaxBytes {
		return nil, Violations{{
			Path:    "$",
			Code:    ErrOversizedInput,
			Message: fmt.Sprintf("payload is %d bytes, cap is %d", len(raw), caps.MaxBytes),
		}}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, Violations{{
			Path:    "$",
			Code:    ErrTypeMismatch,
			Message: fmt.Sprintf("payload is not a JSON object: %v", err),
		}}
	}
	// Trailing garbage after the object is as suspect as a malformed one.
	if dec.More() {
		return nil, Violations{{
			Path:    "$",
			Code:    ErrTypeMismatch,
			Message: "payload contains trailing data after the spec object",
		}}
	}

	return doc, nil
}

// checkShape enforces leaf and depth caps on a decoded tree.
func checkShape(doc map[string]any, caps Caps) Violations {
	var vs Violations

	// The root object is level 0; "filters" is level 1, "filters.date"
	// level 2, "filters.date.between" level 3.
	leaves, depth := measure(doc, 0)
	if caps.MaxLeaves > 0 && leaves > caps.MaxLeaves {
		vs = append(vs, Violation{
			Path:    "$",
			Code:    ErrOversizedInput,
			Message: fmt.Sprintf("payload has %d scalar leaves, cap is %d", leaves, caps.MaxLeaves),
		})
	}
	if caps.MaxDepth > 0 && depth > caps.MaxDepth {
		vs = append(vs, Violation{
			Path:    "$",
			Code:    ErrOversizedInput,
			Message: fmt.Sprintf("payload nests %d levels deep, cap is %d", depth, caps.MaxDepth),
		})
	}

	return vs
}

// measure walks a decoded tree counting scalar leaves and the deepest
// container nesting level.
func measure(v any, level int) (leaves, depth int) {
	switch t := v.(type) {
	case map[string]any:
		depth = level
		for _, elem := range t {
			l, d := measure(elem, level+1)
			leaves += l
			if d > depth {
				depth = d
			}
		}
		return leaves, depth
	case []any:
		depth = level
		for _, elem := range t {
			l, d := measure(elem, level+1)
			leaves += l
			if d > depth {
				depth = d
			}
		}
		return leaves, depth
	default:
		return 1, level - 1
	}
}
