// Package compressor shrinks a function body to a token budget.
//
// Compression has three stages:
//
//  1. Segmentation: the language adapter splits the body into
//     same-level blocks when it has a grammar; otherwise SegmentByIndent
//     starts a block at every indentation change.
//  2. Scoring: blocks overlapping a diff range are must-keep, their
//     neighbours and blocks ending in return/raise/yield/break/continue
//     earn bonuses (see Weights). Without diff ranges the first block is
//     must-keep so the signature line survives.
//  3. Selection: must-keep cost is debited first, then an exact 0/1
//     knapsack chooses the remaining blocks (SelectBlocks).
//
// Kept blocks are emitted in source order and each gap becomes a
// "... (N lines elided)" marker.
package compressor
