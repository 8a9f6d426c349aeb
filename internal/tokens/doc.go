// Package tokens estimates token counts for budget packing.
//
// The default Heuristic estimator divides character count by four, which is
// cheap and deterministic. A Tiktoken estimator can be selected by encoding
// name (for example "cl100k_base") when exact BPE counts matter:
//
//	est, err := tokens.FromName(cfg.Tokenizer)
//	n := est.Count(body)
package tokens
