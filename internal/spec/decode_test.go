package spec

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestDecode_KeepsNumbersExact(t *testing.T) {
	doc, err := Decode([]byte(`{"version": 1, "limit": 10}`), DefaultCaps())
	require.NoError(t, err)

	_, ok := doc["version"].(json.Number)
	assert.True(t, ok, "numbers must decode as json.Number, not float64")
}

func TestDecode_RejectsOversizedPayload(t *testing.T) {
	padding := strings.Repeat("x", 5000)
	raw := []byte(`{"version": 1, "entity": "` + padding + `"}`)

	_, err := Decode(raw, DefaultCaps())
	var vs Violations
	require.ErrorAs(t, err, &vs)
	assert.Equal(t, ErrOversizedInput, vs[0].Code)
}

func TestDecode_RejectsNonObject(t *testing.T) {
	for _, raw := range []string{`[1, 2]`, `"spec"`, `42`, `{"a": }`} {
		t.Run(raw, func(t *testing.T) {
			_, err := Decode([]byte(raw), DefaultCaps())
			var vs Violations
			require.ErrorAs(t, err, &vs)
			assert.Equal(t, ErrTypeMismatch, vs[0].Code)
		})
	}
}

func TestDecode_RejectsTrailingData(t *testing.T) {
	_, err := Decode([]byte(`{"version": 1} {"version": 2}`), DefaultCaps())
	var vs Violations
	require.ErrorAs(t, err, &vs)
	assert.Contains(t, vs[0].Message, "trailing")
}

func TestCheckShape_LeafCap(t *testing.T) {
	doc := map[string]any{}
	for _, k := range strings.Split("abcdefghijklmnopqrstu", "") {
		doc[k] = json.Number("1")
	}
	require.Greater(t, len(doc), DefaultCaps().MaxLeaves)

	vs := checkShape(doc, DefaultCaps())
	require.Len(t, vs, 1)
	assert.Equal(t, ErrOversizedInput, vs[0].Code)
}

func TestCheckShape_DepthCap(t *testing.T) {
	t.Run("grammar depth passes", func(t *testing.T) {
		doc := map[string]any{
			"filters": map[string]any{
				"date": map[string]any{
					"between": []any{"2025-01-01", "2025-01-31"},
				},
			},
		}
		assert.Empty(t, checkShape(doc, DefaultCaps()))
	})

	t.Run("one level deeper rejects", func(t *testing.T) {
		doc := map[string]any{
			"filters": map[string]any{
				"date": map[string]any{
					"between": map[string]any{"nested": []any{"x"}},
				},
			},
		}
		vs := checkShape(doc, DefaultCaps())
		require.Len(t, vs, 1)
		assert.Equal(t, ErrOversizedInput, vs[0].Code)
	})
}

func TestCentsOf(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"0", 0, true},
		{"12.50", 1250, true},
		{"12.5", 1250, true},
		{"200", 20000, true},
		{"0.01", 1, true},
		{"10.505", 0, false},
		{"1E-3", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			d := mustDecimal(t, tc.in)
			cents, ok := CentsOf(d)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.cents, cents)
			}
		})
	}
}
