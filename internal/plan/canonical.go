package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// MarshalCanonical encodes a plan into its canonical byte form.
//
// The encoding is deterministic: field order is fixed by the struct
// definitions, slices keep compilation order, and parameters carry no
// floats. Two equal plans always encode to identical bytes, which is what
// the determinism tests assert and what Fingerprint hashes.
func MarshalCanonical(p *Plan) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("cannot encode nil plan")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	return data, nil
}

// Fingerprint returns the SHA-256 of the canonical encoding, hex encoded.
// Audit records carry the fingerprint so repeated query shapes can be
// correlated without logging the bound values themselves.
func Fingerprint(p *Plan) (string, error) {
	data, err := MarshalCanonical(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
