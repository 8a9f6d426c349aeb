// Package indexer builds the ProjectIndex: a read-only snapshot of every
// function, method and class in a project plus the call graph between them.
//
// # Basic Usage
//
//	idx, err := indexer.Build(ctx, "/path/to/project", indexer.Options{
//	    Language:      "auto",
//	    RespectIgnore: true,
//	})
//	if err != nil {
//	    return err
//	}
//
//	res := idx.ResolveEntrySymbols("Service.run", false)
//	for _, id := range res.Matches {
//	    fmt.Println(id, idx.Callees(id))
//	}
//
// # Build Pipeline
//
//  1. Discovery: workspace.IterFiles with the registry's extensions
//  2. Parse: files are read, hashed and parsed concurrently (errgroup)
//  3. Register: symbols are added in sorted file order
//  4. Resolve: raw call sites become edges, ambiguous calls are dropped
//
// A file that cannot be read or parsed is skipped and reported by Errors;
// it never aborts the build.
//
// # Symbol Ids
//
// Ids are file-qualified: "pkg/service.py:Service.run". Within a file the
// first definition of a qualified name wins.
//
// # Lookup Tables
//
// Each symbol is registered under its raw name, its qualified name, a
// module alias (file stem for Python, package directory for Go, such as
// "util.Helper") and per-file raw and qualified names.
//
// # Snapshot Cache
//
// LoadOrBuild keeps a deterministic CBOR snapshot per language in a state
// directory. The snapshot is reused while the workspace fingerprint (hash
// of sorted paths and content hashes) is unchanged. Writes happen under a
// file lock.
package indexer
