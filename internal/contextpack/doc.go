// Package contextpack assembles budgeted context packs for coding agents.
//
// An Engine takes ranked candidates and gives each one the richest
// representation that still fits the token budget:
//
//   - full: the complete body
//   - elided: the body shrunk by the block compressor, with
//     "... (N lines elided)" markers where blocks were dropped
//   - signature: the signature only, listed in the pack's signatures_only
//
// Candidates are processed by relevance (descending) and then by their
// Order field, so identical input always yields an identical pack. The top
// candidate is kept at least as a signature even when the budget is zero.
//
// # Delta packs
//
// BuildContextPackDelta takes a DeltaResult from the state store. Symbols
// the session already holds with the same etag are emitted as omitted
// references and their bodies are never read. The pack's cache_stats
// report the hit rate.
//
// # Service
//
// Service gathers candidates from an indexer.Index and packs them:
//
//	svc, err := contextpack.NewService(idx, store)
//	res, err := svc.GetSymbolContextPack(ctx, contextpack.Request{
//	    Entry:     "pkg/api.py:Handler.get",
//	    Depth:     2,
//	    Budget:    types.TokenBudget(4000),
//	    SessionID: sessionID,
//	})
//	if res.Ambiguous != nil {
//	    // ask the caller to pick one of res.Ambiguous.Candidates
//	}
//
// GetRelevantContext walks callees from the entry, GetSymbolContextPack
// walks callers and callees with delta support, and GetDiffContext maps a
// unified diff onto the symbols it touches.
package contextpack
