package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/ctxpack/internal/parser"
	"github.com/dshills/ctxpack/internal/workspace"
	"github.com/dshills/ctxpack/pkg/types"
)

// Options controls an index build
type Options struct {
	Language      string   // go, python or auto (default: auto)
	RespectIgnore bool     // honor .ctxpackignore and nested .gitignore files
	ExtraIgnore   []string // additional gitignore-syntax patterns
	Workers       int      // concurrent parsers (default: runtime.NumCPU())

	Registry *parser.Registry // default: parser.NewRegistry()
	Logger   *slog.Logger     // default: discard
}

func (o Options) withDefaults() Options {
	if o.Language == "" {
		o.Language = parser.LanguageAuto
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Registry == nil {
		o.Registry = parser.NewRegistry()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// FileEntry describes one file seen by the build
type FileEntry struct {
	Path  string `cbor:"1,keyasint"`
	Hash  string `cbor:"2,keyasint"` // sha256 of the content, hex
	Lines int    `cbor:"3,keyasint"`
}

// FileError records a file whose symbols were skipped
type FileError struct {
	Path    string `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
}

func (e FileError) Error() string {
	return e.Path + ": " + e.Message
}

// Statistics contains statistics about a build
type Statistics struct {
	FilesIndexed     int
	FilesFailed      int
	SymbolsExtracted int
	EdgesResolved    int
	CallsDropped     int
	Duration         time.Duration
}

// Index is an immutable snapshot of a project's symbols and call graph.
// It is safe for concurrent readers once Build returns.
type Index struct {
	root        string
	language    string
	fingerprint string

	symbols     map[string]types.Symbol
	byName      map[string][]string
	byQualified map[string][]string
	byFile      map[string]map[string][]string
	fileOrder   map[string][]string // ids per file sorted by start line
	adjacency   map[string][]string
	reverse     map[string][]string

	files  []FileEntry
	errors []FileError
	stats  Statistics
}

func newIndex(root, language string) *Index {
	return &Index{
		root:        root,
		language:    language,
		symbols:     make(map[string]types.Symbol),
		byName:      make(map[string][]string),
		byQualified: make(map[string][]string),
		byFile:      make(map[string]map[string][]string),
		fileOrder:   make(map[string][]string),
		adjacency:   make(map[string][]string),
		reverse:     make(map[string][]string),
	}
}

// parsedFile is the per-file output of the parallel parse stage
type parsedFile struct {
	path   string
	hash   string
	lines  []string
	result *types.ParseResult
	err    error
}

// Build walks root, parses every supported file and constructs the symbol
// table and call graph. A file that fails to read or parse is recorded in
// Errors and skipped; only context cancellation aborts the build.
func Build(ctx context.Context, root string, opts Options) (*Index, error) {
	startTime := time.Now()
	opts = opts.withDefaults()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	files, err := discoverFiles(ctx, absRoot, opts)
	if err != nil {
		return nil, err
	}

	parsed, err := parseFiles(ctx, absRoot, files, opts)
	if err != nil {
		return nil, err
	}

	idx := newIndex(absRoot, opts.Language)

	// Registration is sequential in sorted file order so that duplicate
	// handling and edge order never depend on worker scheduling
	for i := range parsed {
		idx.addFile(&parsed[i], opts.Logger)
	}
	for i := range parsed {
		if parsed[i].err == nil {
			idx.resolveCalls(parsed[i].path, parsed[i].result.Calls)
		}
	}
	idx.finalize()

	idx.stats.Duration = time.Since(startTime)
	opts.Logger.Info("index built",
		"root", absRoot,
		"files", idx.stats.FilesIndexed,
		"failed", idx.stats.FilesFailed,
		"symbols", idx.stats.SymbolsExtracted,
		"edges", idx.stats.EdgesResolved,
		"duration", idx.stats.Duration)

	return idx, nil
}

// discoverFiles lists the files the registry can parse for the language
func discoverFiles(ctx context.Context, root string, opts Options) ([]string, error) {
	exts, err := opts.Registry.Extensions(opts.Language)
	if err != nil {
		return nil, err
	}
	files, err := workspace.IterFiles(ctx, root, workspace.Options{
		Extensions:    exts,
		RespectIgnore: opts.RespectIgnore,
		ExtraIgnore:   opts.ExtraIgnore,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	return files, nil
}

// parseFiles parses files concurrently; results keep the input order
func parseFiles(ctx context.Context, root string, files []string, opts Options) ([]parsedFile, error) {
	results := make([]parsedFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = parseFile(root, rel, opts.Registry)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// parseFile reads, hashes and parses a single file
func parseFile(root, rel string, registry *parser.Registry) parsedFile {
	pf := parsedFile{path: rel}

	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		pf.err = err
		return pf
	}
	pf.hash = hashContent(content)
	pf.lines = SplitLines(string(content))

	adapter, err := registry.ForFile(rel)
	if err != nil {
		pf.err = err
		return pf
	}
	pf.result, pf.err = adapter.Parse(content)
	return pf
}

// addFile registers the symbols of one parsed file
func (idx *Index) addFile(pf *parsedFile, logger *slog.Logger) {
	if pf.hash != "" {
		idx.files = append(idx.files, FileEntry{Path: pf.path, Hash: pf.hash, Lines: len(pf.lines)})
	}
	if pf.err != nil {
		idx.stats.FilesFailed++
		idx.errors = append(idx.errors, FileError{Path: pf.path, Message: pf.err.Error()})
		logger.Warn("skipping file", "path", pf.path, "error", pf.err)
		return
	}
	idx.stats.FilesIndexed++

	fns := pf.result.Functions
	ranges := computeRanges(fns, pf.lines)
	for i, fn := range fns {
		id := types.SymbolID(pf.path, fn.QualifiedName)
		if _, exists := idx.symbols[id]; exists {
			logger.Debug("duplicate symbol ignored", "id", id, "line", fn.Line)
			continue
		}
		r := ranges[i]
		body := strings.Join(pf.lines[r.Start-1:r.End], "\n")
		idx.register(types.Symbol{
			ID:            id,
			File:          pf.path,
			Name:          fn.Name,
			QualifiedName: fn.QualifiedName,
			Kind:          fn.Kind,
			Signature:     fn.Signature,
			Docstring:     fn.Docstring,
			ContentHash:   types.ComputeETag(fn.Signature, body),
			Lines:         r,
		})
	}
}

// register writes a symbol into every lookup table
func (idx *Index) register(sym types.Symbol) {
	idx.symbols[sym.ID] = sym
	idx.stats.SymbolsExtracted++

	idx.byName[sym.Name] = append(idx.byName[sym.Name], sym.ID)
	idx.byQualified[sym.QualifiedName] = append(idx.byQualified[sym.QualifiedName], sym.ID)
	if module := moduleName(sym.File); module != "" {
		alias := module + "." + sym.QualifiedName
		idx.byQualified[alias] = append(idx.byQualified[alias], sym.ID)
	}

	local := idx.byFile[sym.File]
	if local == nil {
		local = make(map[string][]string)
		idx.byFile[sym.File] = local
	}
	local[sym.Name] = append(local[sym.Name], sym.ID)
	if sym.QualifiedName != sym.Name {
		local[sym.QualifiedName] = append(local[sym.QualifiedName], sym.ID)
	}

	idx.fileOrder[sym.File] = append(idx.fileOrder[sym.File], sym.ID)
}

// addEdge records caller -> callee
func (idx *Index) addEdge(caller, callee string) {
	idx.adjacency[caller] = append(idx.adjacency[caller], callee)
}

// finalize sorts lookup lists, dedupes edges and builds the reverse graph
func (idx *Index) finalize() {
	for _, ids := range idx.byName {
		sort.Strings(ids)
	}
	for k, ids := range idx.byQualified {
		idx.byQualified[k] = sortedUnique(ids)
	}
	for _, local := range idx.byFile {
		for _, ids := range local {
			sort.Strings(ids)
		}
	}
	for _, ids := range idx.fileOrder {
		sort.SliceStable(ids, func(i, j int) bool {
			a, b := idx.symbols[ids[i]].Lines, idx.symbols[ids[j]].Lines
			if a.Start != b.Start {
				return a.Start < b.Start
			}
			return ids[i] < ids[j]
		})
	}

	idx.reverse = make(map[string][]string)
	idx.stats.EdgesResolved = 0
	for caller, callees := range idx.adjacency {
		callees = sortedUnique(callees)
		idx.adjacency[caller] = callees
		idx.stats.EdgesResolved += len(callees)
		for _, callee := range callees {
			idx.reverse[callee] = append(idx.reverse[callee], caller)
		}
	}
	for _, callers := range idx.reverse {
		sort.Strings(callers)
	}

	sort.Slice(idx.files, func(i, j int) bool { return idx.files[i].Path < idx.files[j].Path })
	sort.Slice(idx.errors, func(i, j int) bool { return idx.errors[i].Path < idx.errors[j].Path })
	idx.fingerprint = Fingerprint(idx.files)
}

// Root returns the absolute project root
func (idx *Index) Root() string { return idx.root }

// Language returns the language the index was built for
func (idx *Index) Language() string { return idx.language }

// Fingerprint identifies the indexed content; it changes when any file is
// added, removed or modified
func (idx *Index) Fingerprint() string { return idx.fingerprint }

// Stats returns build statistics
func (idx *Index) Stats() Statistics { return idx.stats }

// Len returns the number of symbols
func (idx *Index) Len() int { return len(idx.symbols) }

// Files returns the indexed files in path order
func (idx *Index) Files() []FileEntry { return slices.Clone(idx.files) }

// Errors returns the files that were skipped and why
func (idx *Index) Errors() []FileError { return slices.Clone(idx.errors) }

// Symbol looks up a symbol by id
func (idx *Index) Symbol(id string) (types.Symbol, bool) {
	sym, ok := idx.symbols[id]
	return sym, ok
}

// SymbolIDs returns every symbol id in lexicographic order
func (idx *Index) SymbolIDs() []string {
	ids := make([]string, 0, len(idx.symbols))
	for id := range idx.symbols {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Callees returns the symbols id calls, sorted
func (idx *Index) Callees(id string) []string { return slices.Clone(idx.adjacency[id]) }

// Callers returns the symbols that call id, sorted
func (idx *Index) Callers(id string) []string { return slices.Clone(idx.reverse[id]) }

// FileSymbols returns the symbols of a file ordered by start line
func (idx *Index) FileSymbols(file string) []string { return slices.Clone(idx.fileOrder[file]) }

// Overlapping returns the symbols of file whose range shares a line with r.
// A class is omitted when one of its members also overlaps, so the result
// names the innermost symbols.
func (idx *Index) Overlapping(file string, r types.LineRange) []string {
	var hits []types.Symbol
	for _, id := range idx.fileOrder[file] {
		if sym := idx.symbols[id]; sym.Lines.Overlaps(r) {
			hits = append(hits, sym)
		}
	}

	out := make([]string, 0, len(hits))
	for _, sym := range hits {
		container := false
		for _, other := range hits {
			if other.ID != sym.ID && strings.HasPrefix(other.QualifiedName, sym.QualifiedName+".") {
				container = true
				break
			}
		}
		if !container {
			out = append(out, sym.ID)
		}
	}
	return out
}

// Fingerprint hashes sorted path/content-hash pairs
func Fingerprint(files []FileEntry) string {
	sorted := slices.Clone(files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	for _, f := range sorted {
		h.Write([]byte(f.Path))
		h.Write([]byte{0})
		h.Write([]byte(f.Hash))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// moduleName is the dotted-resolution alias for a file: the package
// directory for Go, the file stem otherwise
func moduleName(file string) string {
	if path.Ext(file) == ".go" {
		dir := path.Dir(file)
		if dir == "." {
			return ""
		}
		return path.Base(dir)
	}
	return strings.TrimSuffix(path.Base(file), path.Ext(file))
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// SplitLines splits file content into lines without a phantom trailing
// entry. Carriage returns are stripped.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func sortedUnique(ids []string) []string {
	sort.Strings(ids)
	return slices.Compact(ids)
}
