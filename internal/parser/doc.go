// Package parser extracts symbols and call sites from source files.
//
// Each supported language is an Adapter. The Go adapter uses the standard
// go/parser AST; the Python adapter is an indentation scanner. A Registry
// owns one memoized adapter per language and maps file extensions to them.
//
// # Basic Usage
//
//	reg := parser.NewRegistry()
//	a, err := reg.ForFile("service/handler.go")
//	if err != nil {
//	    return err
//	}
//	res, err := a.Parse(src)
//	for _, fn := range res.Functions {
//	    fmt.Printf("%s %s:%d\n", fn.Kind, fn.QualifiedName, fn.Line)
//	}
//
// # Symbols
//
// Extraction covers top-level functions, methods (qualified as Type.Method)
// and classes. Go struct and interface types are reported as classes.
// Functions nested inside another function are part of the parent's body
// and are not reported.
//
// # Error Handling
//
// Parse returns an error when the file cannot be used at all (a Go syntax
// error, binary content). Callers skip such files and keep indexing.
//
// # Block Segmentation
//
// SegmentBlocks splits a function snippet into same-level blocks for the
// compressor. Adapters without a grammar return types.ErrUnsupported and the
// compressor falls back to indentation.
package parser
