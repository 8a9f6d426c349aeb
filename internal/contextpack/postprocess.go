package contextpack

import (
	"fmt"

	"github.com/dshills/ctxpack/pkg/types"
)

// PostProcessor transforms the candidate list before tiering. It may
// reorder, rescore or annotate candidates but must not add or remove any.
type PostProcessor func([]types.Candidate) []types.Candidate

func applyPostProcessors(candidates []types.Candidate, post []PostProcessor) ([]types.Candidate, error) {
	current := candidates
	for i, fn := range post {
		if fn == nil {
			continue
		}
		next := fn(current)
		if len(next) != len(current) {
			return nil, fmt.Errorf("post-processor %d: %w (%d -> %d)",
				i, types.ErrCandidateCountChange, len(current), len(next))
		}
		current = next
	}
	return current, nil
}

// BoostLabel adds delta to the relevance of every candidate with label
func BoostLabel(label types.RelevanceLabel, delta int) PostProcessor {
	return func(in []types.Candidate) []types.Candidate {
		out := make([]types.Candidate, len(in))
		for i, c := range in {
			if c.Label == label {
				c.Relevance += delta
			}
			out[i] = c
		}
		return out
	}
}

// Annotate sets a metadata key on every candidate
func Annotate(key string, value any) PostProcessor {
	return func(in []types.Candidate) []types.Candidate {
		out := make([]types.Candidate, len(in))
		for i, c := range in {
			c.Metadata = withMetadata(c.Metadata, map[string]any{key: value})
			out[i] = c
		}
		return out
	}
}

// Relabel gives the listed symbols a new label and relevance, for example
// to mark candidates from a precomputed ranking or a structural search
func Relabel(ids []string, label types.RelevanceLabel, relevance int) PostProcessor {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(in []types.Candidate) []types.Candidate {
		out := make([]types.Candidate, len(in))
		for i, c := range in {
			if _, ok := set[c.SymbolID]; ok {
				c.Label = label
				c.Relevance = relevance
			}
			out[i] = c
		}
		return out
	}
}
