package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: dev")
	assert.Contains(t, out, "SQLite Driver:")
}

func TestRelevantCommand(t *testing.T) {
	root := t.TempDir()
	src := "def entry():\n    return helper()\n\n\ndef helper():\n    return 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte(src), 0o644))

	out, err := execute(t, "relevant", "entry", "--project", root, "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "## app.py:entry [entry, full]")
	assert.Contains(t, out, "## app.py:helper [callee, full]")
}

func TestReadDiff(t *testing.T) {
	data, err := readDiff(strings.NewReader("from stdin"), "-")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", string(data))

	path := filepath.Join(t.TempDir(), "change.diff")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o644))
	data, err = readDiff(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "from file", string(data))

	_, err = readDiff(nil, filepath.Join(t.TempDir(), "missing.diff"))
	assert.Error(t, err)
}
