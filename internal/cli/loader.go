package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// LoadSpecFile reads a query spec from a JSON, YAML, or CUE file into the
// generic tree the validator consumes. The format is chosen by extension.
//
// The loader does not validate: whatever the file contains goes through the
// same whitelist grammar as a payload arriving over the wire.
func LoadSpecFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".json":
		return decodeJSON(data)
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse YAML spec: %w", err)
		}
		return doc, nil
	case ".cue":
		return decodeCUE(data)
	default:
		return nil, fmt.Errorf("unsupported spec format %q (want .json, .yaml, or .cue)", filepath.Ext(path))
	}
}

// decodeJSON keeps numbers as json.Number so amounts never pass through
// float64.
func decodeJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse JSON spec: %w", err)
	}
	return doc, nil
}

// decodeCUE evaluates a CUE file and decodes the result.
func decodeCUE(data []byte) (map[string]any, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile CUE spec: %w", err)
	}
	var doc map[string]any
	if err := v.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode CUE spec: %w", err)
	}
	return doc, nil
}
