package contextpack

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxpack/internal/indexer"
	"github.com/dshills/ctxpack/internal/parser"
)

func TestMaterializer_Load(t *testing.T) {
	root := writeTree(t, serviceFixture)
	idx, err := indexer.Build(context.Background(), root, indexer.Options{})
	require.NoError(t, err)

	m, err := NewMaterializer(idx, nil, 2)
	require.NoError(t, err)

	body, err := m.Load("app.py:step_two")
	require.NoError(t, err)
	assert.Equal(t, "def step_two(x):\n    return finish(x)", body.Code)
	assert.Equal(t, 10, body.Lines.Start)
	_, isPython := body.Segmenter.(*parser.PythonAdapter)
	assert.True(t, isPython)

	_, err = m.Load("app.py:nope")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestMaterializer_DetectsStaleFile(t *testing.T) {
	root := writeTree(t, serviceFixture)
	idx, err := indexer.Build(context.Background(), root, indexer.Options{})
	require.NoError(t, err)

	m, err := NewMaterializer(idx, nil, 0)
	require.NoError(t, err)

	rewritten := "def entry():\n    return 42\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "other.py"), []byte(rewritten), 0o644))

	_, err = m.Load("other.py:caller")
	assert.ErrorIs(t, err, ErrStaleSymbol)
}
