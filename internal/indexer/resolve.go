package indexer

import (
	"slices"
	"sort"
	"strings"

	"github.com/dshills/ctxpack/pkg/types"
)

// resolveCalls turns the raw call sites of one file into graph edges.
// Calls whose callee cannot be pinned to exactly one symbol are dropped.
func (idx *Index) resolveCalls(file string, calls []types.Call) {
	for _, call := range calls {
		callerID := types.SymbolID(file, call.Caller)
		if _, ok := idx.symbols[callerID]; !ok {
			idx.stats.CallsDropped++
			continue
		}
		calleeID, ok := idx.resolveCall(file, call)
		if !ok || calleeID == callerID {
			idx.stats.CallsDropped++
			continue
		}
		idx.addEdge(callerID, calleeID)
	}
}

// resolveCall tries, in order: the callee's raw name in the caller's file,
// the caller's own class in that file, the receiver as a class or module
// alias, and finally a project-wide raw name.
func (idx *Index) resolveCall(file string, call types.Call) (string, bool) {
	local := idx.byFile[file]

	if id, ok := only(local[call.Callee]); ok {
		return id, true
	}

	if class := enclosingClass(call.Caller); class != "" {
		if id, ok := only(local[class+"."+call.Callee]); ok {
			return id, true
		}
	}

	if call.Receiver != "" {
		dotted := call.Receiver + "." + call.Callee
		if id, ok := only(local[dotted]); ok {
			return id, true
		}
		if id, ok := only(idx.byQualified[dotted]); ok {
			return id, true
		}
	}

	return only(idx.byName[call.Callee])
}

// enclosingClass returns the qualifier of a method name, "" for functions
func enclosingClass(qualified string) string {
	if i := strings.LastIndex(qualified, "."); i > 0 {
		return qualified[:i]
	}
	return ""
}

func only(ids []string) (string, bool) {
	if len(ids) == 1 {
		return ids[0], true
	}
	return "", false
}

// Resolution is the outcome of resolving one entry token
type Resolution struct {
	Token string

	// Matches are the symbol ids to use as entries. An unresolved token is
	// passed through unchanged as the single match.
	Matches []string

	// Candidates lists every symbol the token could mean when it was
	// ambiguous, in lexicographic order
	Candidates []string

	Ambiguous  bool
	Unresolved bool
}

// ResolveEntrySymbols maps a user token to symbol ids. Accepted forms are
// a literal id ("pkg/a.py:Cls.method"), a file:Name pair where the file may
// be a path suffix, a qualified name and a raw name, tried in that order.
// Several matches are ambiguous unless allowAmbiguous is set, in which
// case the lexicographically first id is chosen.
func (idx *Index) ResolveEntrySymbols(token string, allowAmbiguous bool) Resolution {
	token = strings.TrimSpace(token)
	res := Resolution{Token: token}

	if _, ok := idx.symbols[token]; ok {
		res.Matches = []string{token}
		return res
	}

	var ids []string
	if file, name, ok := types.SplitSymbolID(token); ok {
		ids = idx.lookupInFile(file, name)
	}
	if len(ids) == 0 {
		ids = idx.byQualified[token]
	}
	if len(ids) == 0 {
		ids = idx.byName[token]
	}

	switch len(ids) {
	case 0:
		res.Matches = []string{token}
		res.Unresolved = true
	case 1:
		res.Matches = []string{ids[0]}
	default:
		candidates := slices.Clone(ids)
		sort.Strings(candidates)
		res.Candidates = candidates
		if allowAmbiguous {
			res.Matches = candidates[:1]
		} else {
			res.Ambiguous = true
		}
	}
	return res
}

// lookupInFile finds name in file, or in every file whose path ends with
// "/"+file when there is no exact path match
func (idx *Index) lookupInFile(file, name string) []string {
	if local, ok := idx.byFile[file]; ok {
		return local[name]
	}

	var ids []string
	suffix := "/" + file
	for f, local := range idx.byFile {
		if strings.HasSuffix(f, suffix) {
			ids = append(ids, local[name]...)
		}
	}
	return sortedUnique(ids)
}
