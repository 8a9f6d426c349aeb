// Package config loads ctxpack settings.
//
// Settings come from three layers, later ones winning:
//
//  1. built-in defaults (Default)
//  2. .ctxpack.yaml at the project root
//  3. CTXPACK_STATE_DIR, CTXPACK_TOKENIZER and CTXPACK_BUDGET
//
// Example .ctxpack.yaml:
//
//	language: python
//	budget: 4000
//	depth: 2
//	tokenizer: cl100k_base
//	ignore:
//	  - "migrations/"
//	weights:
//	  diff_overlap: 1000
//	  adjacency: 5
//	  control_flow: 3
//	  base: 1
package config
