package format

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxpack/pkg/types"
)

func samplePack() *types.PackResult {
	stats := types.NewCacheStats(1, 1)
	return &types.PackResult{
		SessionID: "s1",
		Pack: &types.ContextPack{
			Slices: []types.ContextSlice{
				{
					ID:        "a.py:f",
					Signature: "def f()",
					Code:      types.FullCode("def f():\n    return g()"),
					Lines:     &types.LineRange{Start: 1, End: 2},
					Label:     types.LabelEntry,
					ETag:      "e1",
				},
				{
					ID:        "a.py:g",
					Signature: "def g()",
					Code:      types.Omitted(),
					Label:     types.LabelCallee,
					ETag:      "e2",
				},
			},
			SignaturesOnly:    []string{},
			BudgetUsed:        9,
			Unchanged:         []string{"a.py:g"},
			CacheStats:        &stats,
			CoherenceWarnings: []string{"x dropped"},
		},
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", JSON, false},
		{"json", JSON, false},
		{" TEXT ", Text, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_JSON(t *testing.T) {
	out, err := String(samplePack(), JSON)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "s1", decoded["session_id"])
	assert.Equal(t, float64(9), decoded["budget_used"])
	assert.Equal(t, []any{"a.py:g"}, decoded["unchanged"])

	slices := decoded["slices"].([]any)
	require.Len(t, slices, 2)
	first := slices[0].(map[string]any)
	assert.Equal(t, "full", first["representation"])
	assert.Equal(t, "def f():\n    return g()", first["code"])

	// omitted slices carry no code key
	second := slices[1].(map[string]any)
	assert.NotContains(t, second, "code")
	assert.Equal(t, "omitted", second["representation"])
}

func TestRender_JSONAmbiguous(t *testing.T) {
	res := &types.PackResult{Ambiguous: types.NewAmbiguousResult("foo", []string{"a.py:foo", "b.py:foo"})}
	out, err := String(res, JSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":true,"code":"AMBIGUOUS","token":"foo","candidates":["a.py:foo","b.py:foo"]}`, out)
}

func TestRender_Text(t *testing.T) {
	out, err := String(samplePack(), Text)
	require.NoError(t, err)

	want := `# session s1
# 2 slices, 9 tokens

## a.py:f [entry, full] lines 1-2
def f():
    return g()

## a.py:g [callee, omitted]
def g()

unchanged: a.py:g

cache: 1 hits, 1 misses (50.0%)

warnings:
  - x dropped
`
	assert.Equal(t, want, out)
}

func TestRender_TextAmbiguous(t *testing.T) {
	res := &types.PackResult{Ambiguous: types.NewAmbiguousResult("foo", []string{"a.py:foo", "b.py:foo"})}
	out, err := String(res, Text)
	require.NoError(t, err)
	assert.Equal(t, "error: AMBIGUOUS: \"foo\" matches 2 symbols\n  a.py:foo\n  b.py:foo\n", out)
}

func TestRender_Errors(t *testing.T) {
	_, err := String(&types.PackResult{}, JSON)
	assert.Error(t, err)

	_, err = String(samplePack(), Format("xml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
