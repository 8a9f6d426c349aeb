package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestIterFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":                 "package main",
		"b.py":                    "def b(): pass",
		"a.py":                    "def a(): pass",
		"README.md":               "# readme",
		"pkg/util/util.go":        "package util",
		"pkg/util/gen.go":         "package util",
		"pkg/util/.gitignore":     "gen.go\n",
		"build/out.go":            "package out",
		"vendor/dep/dep.go":       "package dep",
		"node_modules/x/index.py": "",
		".git/config.py":          "",
		"scripts/tool.py":         "",
		".ctxpackignore":          "build/\n",
	})

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "respect ignore files",
			opts: Options{Extensions: []string{".go", ".py"}, RespectIgnore: true},
			want: []string{"a.py", "b.py", "main.go", "pkg/util/util.go", "scripts/tool.py"},
		},
		{
			name: "without ignore files",
			opts: Options{Extensions: []string{".go", ".py"}},
			want: []string{"a.py", "b.py", "build/out.go", "main.go", "pkg/util/gen.go", "pkg/util/util.go", "scripts/tool.py"},
		},
		{
			name: "extension filter",
			opts: Options{Extensions: []string{".py"}, RespectIgnore: true},
			want: []string{"a.py", "b.py", "scripts/tool.py"},
		},
		{
			name: "extra patterns",
			opts: Options{Extensions: []string{".py"}, ExtraIgnore: []string{"scripts/"}},
			want: []string{"a.py", "b.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := IterFiles(context.Background(), root, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, files)
		})
	}
}

func TestIterFiles_NestedIgnoreIsScoped(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"gen.go":         "package root",
		"sub/gen.go":     "package sub",
		"sub/.gitignore": "gen.go\n",
		"other/keep.go":  "package other",
		"other/drop.log": "",
		".gitignore":     "*.log\n",
	})

	files, err := IterFiles(context.Background(), root, Options{RespectIgnore: true})
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore", "gen.go", "other/keep.go", "sub/.gitignore"}, files)
}

func TestIterFiles_Errors(t *testing.T) {
	_, err := IterFiles(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	assert.Error(t, err)

	root := t.TempDir()
	writeTree(t, root, map[string]string{"f.go": "package f"})
	_, err = IterFiles(context.Background(), filepath.Join(root, "f.go"), Options{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = IterFiles(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
