package project

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxpack/internal/contextpack"
	"github.com/dshills/ctxpack/pkg/types"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

var files = map[string]string{
	"app.py":        "def run():\n    return helper()\n\n\ndef helper():\n    return 1\n",
	".ctxpack.yaml": "budget: 500\nscores:\n  callee: 42\n",
}

func TestOpen(t *testing.T) {
	root := writeProject(t, files)
	ctx := context.Background()

	p, err := Open(ctx, root, Options{})
	require.NoError(t, err)

	assert.False(t, p.CacheHit)
	assert.NotNil(t, p.Store)
	assert.Equal(t, 2, p.Index.Len())
	assert.Equal(t, 42, p.Service.Scores.Callee)
	assert.FileExists(t, filepath.Join(root, ".ctxpack", "state.db"))

	res, err := p.Service.GetRelevantContext(ctx, contextpack.Request{Entry: "run", Budget: p.Config.TokenBudget()})
	require.NoError(t, err)
	require.Len(t, res.Pack.Slices, 2)
	assert.Equal(t, types.RepFull, res.Pack.Slices[1].Code.Rep)
	require.NoError(t, p.Close())

	// second open reuses the snapshot
	again, err := Open(ctx, root, Options{NoStore: true})
	require.NoError(t, err)
	defer again.Close()
	assert.True(t, again.CacheHit)
	assert.Nil(t, again.Store)
}

func TestOpen_LanguageOverride(t *testing.T) {
	root := writeProject(t, map[string]string{
		"app.py":  "def run():\n    pass\n",
		"main.go": "package main\n\nfunc main() {}\n",
	})

	p, err := Open(context.Background(), root, Options{Language: "go", NoStore: true})
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, []string{"main.go:main"}, p.Index.SymbolIDs())

	_, err = Open(context.Background(), root, Options{Language: "rust", NoStore: true})
	assert.Error(t, err)
}

func TestOpen_CorruptStateDB(t *testing.T) {
	root := writeProject(t, files)
	dbPath := filepath.Join(root, ".ctxpack", "state.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(dbPath), 0o755))
	require.NoError(t, os.WriteFile(dbPath, bytes.Repeat([]byte("not a database "), 512), 0o644))
	ctx := context.Background()

	p, err := Open(ctx, root, Options{})
	require.NoError(t, err)
	defer p.Close()
	assert.Nil(t, p.Store)
	assert.Error(t, p.Service.StoreErr)

	res, err := p.Service.GetSymbolContextPack(ctx, contextpack.Request{Entry: "run", SessionID: "s1", Budget: p.Config.TokenBudget()})
	require.NoError(t, err)
	require.Len(t, res.Pack.Slices, 2)
	assert.Empty(t, res.Pack.Unchanged)
	require.NotEmpty(t, res.Pack.CoherenceWarnings)
	assert.Contains(t, res.Pack.CoherenceWarnings[len(res.Pack.CoherenceWarnings)-1], "state store unavailable:")
}
