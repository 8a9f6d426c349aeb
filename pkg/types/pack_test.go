package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextSlice_MarshalJSON(t *testing.T) {
	t.Run("full slice carries code", func(t *testing.T) {
		s := ContextSlice{ID: "a.py:foo", Signature: "def foo()", Code: FullCode("def foo():\n    pass"), Label: LabelEntry, ETag: "abc"}
		data, err := json.Marshal(s)
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, "def foo():\n    pass", out["code"])
		assert.Equal(t, "full", out["representation"])
		assert.Equal(t, "entry", out["relevance"])
	})

	t.Run("omitted slice has no code field", func(t *testing.T) {
		s := ContextSlice{ID: "a.py:foo", Signature: "def foo()", Code: Omitted(), ETag: "abc"}
		data, err := json.Marshal(s)
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal(data, &out))
		_, hasCode := out["code"]
		assert.False(t, hasCode)
		assert.Equal(t, "omitted", out["representation"])
	})
}

func TestNewCacheStats(t *testing.T) {
	assert.Equal(t, 0.0, NewCacheStats(0, 0).HitRate)
	assert.Equal(t, 1.0, NewCacheStats(3, 0).HitRate)
	assert.Equal(t, 0.25, NewCacheStats(1, 3).HitRate)
}

func TestSplitSymbolID(t *testing.T) {
	tests := []struct {
		id        string
		file      string
		qualified string
		ok        bool
	}{
		{"a.py:foo", "a.py", "foo", true},
		{"pkg/b.py:Cls.run", "pkg/b.py", "Cls.run", true},
		{"C:/src/a.py:foo", "C:/src/a.py", "foo", true},
		{"foo", "", "", false},
		{"a.py:", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			file, qualified, ok := SplitSymbolID(tt.id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.file, file)
			assert.Equal(t, tt.qualified, qualified)
		})
	}
}

func TestBudget(t *testing.T) {
	assert.False(t, NoBudget().Limited())
	assert.True(t, TokenBudget(0).Limited())
	assert.Equal(t, -5, TokenBudget(-5).Tokens())
}

func TestSymbolValidate(t *testing.T) {
	sym := Symbol{
		ID: "a.py:foo", File: "a.py", Name: "foo", QualifiedName: "foo",
		Kind: KindFunction, Lines: LineRange{Start: 1, End: 3},
	}
	assert.NoError(t, sym.Validate())

	sym.Lines = LineRange{Start: 4, End: 3}
	assert.Error(t, sym.Validate())
}

func TestComputeETag(t *testing.T) {
	a := ComputeETag("def foo()", "def foo():\n    return 1")
	assert.Len(t, a, 64)
	assert.Equal(t, a, ComputeETag("def foo()", "def foo():\n    return 1"))
	assert.NotEqual(t, a, ComputeETag("def foo()", "def foo():\n    return 2"))
	// the separator keeps signature and body boundaries distinct
	assert.NotEqual(t, ComputeETag("ab", "c"), ComputeETag("a", "bc"))
}
