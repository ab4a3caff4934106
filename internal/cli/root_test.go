package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_ValidatesASpecFile(t *testing.T) {
	path := writeSpec(t, "q.json", `{"version": 1, "entity": "expense"}`)

	out, err := runCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "spec is valid")
}

func TestRootCommand_CapsComeFromTheEnvironment(t *testing.T) {
	// A leaf cap of 1 rejects even a minimal two-leaf spec: the QUERYC_*
	// tunables reach the validator, not just the config package.
	t.Setenv("QUERYC_MAX_PAYLOAD_LEAVES", "1")
	path := writeSpec(t, "q.json", `{"version": 1, "entity": "expense"}`)

	out, err := runCommand(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, out, "E106")
}

func TestRootCommand_RejectsUnusableConfig(t *testing.T) {
	t.Setenv("QUERYC_MAX_PAYLOAD_BYTES", "10")
	path := writeSpec(t, "q.json", `{"version": 1, "entity": "expense"}`)

	_, err := runCommand(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	path := writeSpec(t, "q.json", `{"version": 1, "entity": "expense"}`)

	_, err := runCommand(t, "--format", "xml", "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
