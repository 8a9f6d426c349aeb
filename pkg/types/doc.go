// Package types provides shared type definitions for ctxpack.
//
// This package defines domain types used across the indexer, the block
// compressor, the state store and the context pack engine.
//
// # Core Types
//
// Symbol represents a function, method or class registered in a project index.
// Its ID is file-qualified so that same-named symbols in different files never
// collide:
//
//	symbol := &types.Symbol{
//	    ID:            "pkg/auth.py:Session.login",
//	    File:          "pkg/auth.py",
//	    Name:          "login",
//	    QualifiedName: "Session.login",
//	    Kind:          types.KindMethod,
//	}
//
// Candidate is a symbol under consideration for a pack, carrying an integer
// relevance score and a stable Order used to break ties:
//
//	c := types.Candidate{SymbolID: symbol.ID, Relevance: 100, Label: types.LabelEntry}
//
// # Slices and Representations
//
// ContextSlice.Code is a tagged variant rather than a nullable string:
//
//	types.FullCode(body)    // complete body
//	types.ElidedCode(text)  // compressed body with elision markers
//	types.SignatureOnly()   // budget ran out
//	types.Omitted()         // caller already holds this exact content
//
// # Budgets
//
// Budget distinguishes "no budget" from a zero budget:
//
//	types.NoBudget()        // every candidate at full tier
//	types.TokenBudget(0)    // only the top candidate, signature only
//
// # Ambiguity
//
// An entry token that names several symbols yields an AmbiguousResult with
// code AMBIGUOUS and the full candidate list instead of a pack.
package types
