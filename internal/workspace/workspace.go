package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

const (
	// ProjectIgnoreFile holds project-level ignore patterns at the root
	ProjectIgnoreFile = ".ctxpackignore"

	// DirIgnoreFile is honored in every directory
	DirIgnoreFile = ".gitignore"
)

// skipDirs are never descended into
var skipDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"__pycache__":  true,
}

// Options controls file discovery
type Options struct {
	// Extensions restricts results to these suffixes (".go", ".py").
	// Empty means every file.
	Extensions []string

	// RespectIgnore enables .ctxpackignore and nested .gitignore handling
	RespectIgnore bool

	// ExtraIgnore holds additional gitignore-syntax patterns relative to root
	ExtraIgnore []string
}

// matcher is an ignore file scoped to the directory that contains it
type matcher struct {
	dir string
	gi  *ignore.GitIgnore
}

func (m matcher) ignores(rel string, isDir bool) bool {
	sub := rel
	if m.dir != "" {
		if !strings.HasPrefix(rel, m.dir+"/") {
			return false
		}
		sub = strings.TrimPrefix(rel, m.dir+"/")
	}
	if isDir {
		sub += "/"
	}
	return m.gi.MatchesPath(sub)
}

// IterFiles walks root and returns the slash-separated relative paths of
// matching files in sorted order. Hidden directories and dependency trees
// (vendor, node_modules, __pycache__) are skipped.
func IterFiles(ctx context.Context, root string, opts Options) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace: %s is not a directory", root)
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		exts[strings.ToLower(ext)] = true
	}

	var matchers []matcher
	if len(opts.ExtraIgnore) > 0 {
		matchers = append(matchers, matcher{gi: ignore.CompileIgnoreLines(opts.ExtraIgnore...)})
	}
	if opts.RespectIgnore {
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ProjectIgnoreFile)); err == nil {
			matchers = append(matchers, matcher{gi: gi})
		}
	}

	ignored := func(rel string, isDir bool) bool {
		for _, m := range matchers {
			if m.ignores(rel, isDir) {
				return true
			}
		}
		return false
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				rel = ""
			} else {
				name := d.Name()
				if strings.HasPrefix(name, ".") || skipDirs[name] || ignored(rel, true) {
					return filepath.SkipDir
				}
			}
			if opts.RespectIgnore {
				if gi, err := ignore.CompileIgnoreFile(filepath.Join(p, DirIgnoreFile)); err == nil {
					matchers = append(matchers, matcher{dir: rel, gi: gi})
				}
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if len(exts) > 0 && !exts[strings.ToLower(path.Ext(rel))] {
			return nil
		}
		if ignored(rel, false) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workspace: walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
