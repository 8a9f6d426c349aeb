package contextpack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/ctxpack/internal/indexer"
	"github.com/dshills/ctxpack/internal/parser"
	"github.com/dshills/ctxpack/pkg/types"
)

// DefaultLineCacheSize is the number of files whose lines are kept
const DefaultLineCacheSize = 256

var (
	// ErrUnknownSymbol is returned for ids the index does not contain
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrStaleSymbol means the file changed since the index was built
	ErrStaleSymbol = errors.New("symbol content changed since indexing")
)

// Materializer reads symbol bodies from disk using the ranges recorded in
// an index. File lines are cached, so bodies of symbols sharing a file
// are sliced from a single read.
type Materializer struct {
	index    *indexer.Index
	registry *parser.Registry
	lines    *lru.Cache[string, []string]
}

// NewMaterializer creates a materializer over idx. A nil registry uses the
// built-in adapters for segmentation.
func NewMaterializer(idx *indexer.Index, registry *parser.Registry, cacheSize int) (*Materializer, error) {
	if registry == nil {
		registry = parser.NewRegistry()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultLineCacheSize
	}
	cache, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create line cache: %w", err)
	}
	return &Materializer{index: idx, registry: registry, lines: cache}, nil
}

// Load implements Loader. The body is verified against the indexed
// content hash.
func (m *Materializer) Load(symbolID string) (Body, error) {
	sym, ok := m.index.Symbol(symbolID)
	if !ok {
		return Body{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbolID)
	}

	lines, err := m.fileLines(sym.File)
	if err != nil {
		return Body{}, err
	}
	if sym.Lines.Start <= 0 || sym.Lines.End > len(lines) || sym.Lines.Start > sym.Lines.End {
		return Body{}, fmt.Errorf("%w: %s", ErrStaleSymbol, symbolID)
	}

	code := strings.Join(lines[sym.Lines.Start-1:sym.Lines.End], "\n")
	if types.ComputeETag(sym.Signature, code) != sym.ContentHash {
		return Body{}, fmt.Errorf("%w: %s", ErrStaleSymbol, symbolID)
	}

	body := Body{Code: code, Lines: sym.Lines}
	if adapter, err := m.registry.ForFile(sym.File); err == nil {
		body.Segmenter = adapter
	}
	return body, nil
}

// fileLines returns the cached lines of a project file
func (m *Materializer) fileLines(file string) ([]string, error) {
	if lines, ok := m.lines.Get(file); ok {
		return lines, nil
	}

	content, err := os.ReadFile(filepath.Join(m.index.Root(), filepath.FromSlash(file)))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	lines := indexer.SplitLines(string(content))
	m.lines.Add(file, lines)
	return lines, nil
}
