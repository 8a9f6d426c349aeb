package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/dshills/ctxpack/pkg/types"
)

// snapshotVersion changes whenever the encoded layout does
const snapshotVersion = 1

// ErrStaleSnapshot is returned when a snapshot does not match the workspace
var ErrStaleSnapshot = errors.New("index snapshot is stale")

// snapshot is the persisted form of an Index. Lookup tables are rebuilt
// on load from the symbol list and edges.
type snapshot struct {
	Version     int                 `cbor:"1,keyasint"`
	Root        string              `cbor:"2,keyasint"`
	Language    string              `cbor:"3,keyasint"`
	Fingerprint string              `cbor:"4,keyasint"`
	Files       []FileEntry         `cbor:"5,keyasint"`
	Errors      []FileError         `cbor:"6,keyasint"`
	Symbols     []types.Symbol      `cbor:"7,keyasint"`
	Edges       map[string][]string `cbor:"8,keyasint"`
}

// encMode produces identical bytes for identical indexes
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("indexer: CBOR encoder initialization failed: " + err.Error())
	}
}

// MarshalSnapshot encodes the index with deterministic CBOR
func (idx *Index) MarshalSnapshot() ([]byte, error) {
	snap := snapshot{
		Version:     snapshotVersion,
		Root:        idx.root,
		Language:    idx.language,
		Fingerprint: idx.fingerprint,
		Files:       idx.files,
		Errors:      idx.errors,
		Edges:       idx.adjacency,
	}
	for _, id := range idx.SymbolIDs() {
		snap.Symbols = append(snap.Symbols, idx.symbols[id])
	}
	return encMode.Marshal(snap)
}

// UnmarshalSnapshot rebuilds an index from MarshalSnapshot output
func UnmarshalSnapshot(data []byte) (*Index, error) {
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d", ErrStaleSnapshot, snap.Version)
	}

	idx := newIndex(snap.Root, snap.Language)
	idx.files = snap.Files
	idx.errors = snap.Errors
	for _, sym := range snap.Symbols {
		idx.register(sym)
	}
	idx.stats.FilesIndexed = len(snap.Files) - len(snap.Errors)
	idx.stats.FilesFailed = len(snap.Errors)

	callers := make([]string, 0, len(snap.Edges))
	for caller := range snap.Edges {
		callers = append(callers, caller)
	}
	sort.Strings(callers)
	for _, caller := range callers {
		for _, callee := range snap.Edges[caller] {
			idx.addEdge(caller, callee)
		}
	}
	idx.finalize()

	if idx.fingerprint != snap.Fingerprint {
		return nil, fmt.Errorf("%w: fingerprint mismatch", ErrStaleSnapshot)
	}
	return idx, nil
}

// LoadOrBuild returns the cached index for root when its fingerprint still
// matches the workspace, and otherwise builds and caches a new one. The
// cache file lives in stateDir and is guarded by a file lock so parallel
// processes do not build the same project twice. The boolean reports a
// cache hit.
func LoadOrBuild(ctx context.Context, root, stateDir string, opts Options) (*Index, bool, error) {
	opts = opts.withDefaults()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve root: %w", err)
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("failed to create state dir: %w", err)
	}

	snapPath := filepath.Join(stateDir, "index-"+opts.Language+".cbor")
	unlock, err := acquireSnapshotLock(ctx, snapPath+".lock", defaultLockTimeout)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	current, err := currentFingerprint(ctx, absRoot, opts)
	if err != nil {
		return nil, false, err
	}

	if data, err := os.ReadFile(snapPath); err == nil {
		idx, err := UnmarshalSnapshot(data)
		switch {
		case err != nil:
			opts.Logger.Debug("snapshot unusable", "path", snapPath, "error", err)
		case idx.root != absRoot || idx.fingerprint != current:
			opts.Logger.Debug("snapshot miss", "path", snapPath)
		default:
			opts.Logger.Debug("snapshot hit", "path", snapPath, "symbols", idx.Len())
			return idx, true, nil
		}
	}

	idx, err := Build(ctx, absRoot, opts)
	if err != nil {
		return nil, false, err
	}

	data, err := idx.MarshalSnapshot()
	if err != nil {
		return nil, false, err
	}
	if err := writeFileAtomic(snapPath, data); err != nil {
		// the index itself is fine; only the cache write failed
		opts.Logger.Warn("failed to write snapshot", "path", snapPath, "error", err)
	}
	return idx, false, nil
}

// currentFingerprint hashes the workspace without parsing it
func currentFingerprint(ctx context.Context, root string, opts Options) (string, error) {
	files, err := discoverFiles(ctx, root, opts)
	if err != nil {
		return "", err
	}
	entries := make([]FileEntry, 0, len(files))
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		entries = append(entries, FileEntry{Path: rel, Hash: hashContent(content)})
	}
	return Fingerprint(entries), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
