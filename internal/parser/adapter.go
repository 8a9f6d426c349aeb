package parser

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/ctxpack/pkg/types"
)

// Language names understood by the registry
const (
	LanguageGo     = "go"
	LanguagePython = "python"

	// LanguageAuto selects adapters by file extension
	LanguageAuto = "auto"
)

// Adapter extracts functions, calls and body segments for one language
type Adapter interface {
	// Language returns the adapter's language name
	Language() string

	// Parse extracts functions and call sites in a single pass.
	// A non-nil error means the file is unusable and its symbols must be skipped.
	Parse(source []byte) (*types.ParseResult, error)

	// SegmentBlocks splits a symbol snippet starting at firstLine into
	// same-nesting-level blocks. Returns types.ErrUnsupported when the
	// adapter has no grammar for it.
	SegmentBlocks(source string, firstLine int) ([]types.CodeBlock, error)
}

// ExtractFunctions is a convenience wrapper around Adapter.Parse
func ExtractFunctions(a Adapter, source []byte) ([]types.FunctionInfo, error) {
	res, err := a.Parse(source)
	if err != nil {
		return nil, err
	}
	return res.Functions, nil
}

// ExtractCalls is a convenience wrapper around Adapter.Parse
func ExtractCalls(a Adapter, source []byte) ([]types.Call, error) {
	res, err := a.Parse(source)
	if err != nil {
		return nil, err
	}
	return res.Calls, nil
}

// Factory creates an adapter instance
type Factory func() Adapter

type registration struct {
	factory    Factory
	extensions []string
}

// Registry is an owned, per-language memoizing adapter factory.
// Adapters are created on first use and reused afterwards.
type Registry struct {
	mu       sync.Mutex
	langs    map[string]registration
	byExt    map[string]string
	adapters map[string]Adapter
}

// NewRegistry returns a registry with the built-in Go and Python adapters
func NewRegistry() *Registry {
	r := &Registry{
		langs:    make(map[string]registration),
		byExt:    make(map[string]string),
		adapters: make(map[string]Adapter),
	}
	r.Register(LanguageGo, []string{".go"}, func() Adapter { return NewGoAdapter() })
	r.Register(LanguagePython, []string{".py", ".pyi"}, func() Adapter { return NewPythonAdapter() })
	return r
}

// Register adds or replaces a language
func (r *Registry) Register(language string, extensions []string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	language = strings.ToLower(language)
	r.langs[language] = registration{factory: factory, extensions: extensions}
	delete(r.adapters, language)
	for _, ext := range extensions {
		r.byExt[strings.ToLower(ext)] = language
	}
}

// For returns the memoized adapter for a language
func (r *Registry) For(language string) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	language = strings.ToLower(language)
	if a, ok := r.adapters[language]; ok {
		return a, nil
	}
	reg, ok := r.langs[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedLanguage, language)
	}
	a := reg.factory()
	r.adapters[language] = a
	return a, nil
}

// ForFile returns the adapter registered for the file's extension
func (r *Registry) ForFile(filePath string) (Adapter, error) {
	r.mu.Lock()
	language, ok := r.byExt[strings.ToLower(path.Ext(filePath))]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedLanguage, path.Ext(filePath))
	}
	return r.For(language)
}

// Extensions lists the file extensions for a language, or for every
// registered language when language is empty or "auto"
func (r *Registry) Extensions(language string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	language = strings.ToLower(language)
	if language == "" || language == LanguageAuto {
		exts := make([]string, 0, len(r.byExt))
		for ext := range r.byExt {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		return exts, nil
	}
	reg, ok := r.langs[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedLanguage, language)
	}
	return append([]string(nil), reg.extensions...), nil
}
