package contextpack

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dshills/ctxpack/internal/compressor"
	"github.com/dshills/ctxpack/internal/tokens"
	"github.com/dshills/ctxpack/pkg/types"
)

// Body is a materialized symbol body
type Body struct {
	Code      string
	Lines     types.LineRange
	Segmenter compressor.Segmenter // nil selects indentation segmentation
}

// Loader supplies bodies for candidates that arrive without code
type Loader interface {
	Load(symbolID string) (Body, error)
}

// Engine assembles budgeted context packs from ranked candidates. It holds
// no per-call state and is safe for concurrent use when its Loader is.
type Engine struct {
	Estimator  tokens.Estimator
	Compressor *compressor.Compressor
	Loader     Loader // optional
	Logger     *slog.Logger
}

// NewEngine creates an engine with the chars/4 estimator and default
// compressor weights
func NewEngine(loader Loader) *Engine {
	return &Engine{
		Estimator:  tokens.Heuristic{},
		Compressor: compressor.New(),
		Loader:     loader,
		Logger:     slog.New(slog.DiscardHandler),
	}
}

// BuildContextPack ranks candidates and assigns each the richest tier that
// fits: full code, elided code, then signature only. The top candidate is
// always kept at least as a signature, even with a zero or negative budget.
func (e *Engine) BuildContextPack(candidates []types.Candidate, budget types.Budget) *types.ContextPack {
	return e.build(candidates, nil, budget)
}

// BuildContextPackDelta is BuildContextPack with session awareness. Post
// processors run first, in order, and must keep the candidate count.
// Candidates in delta.Unchanged are emitted as omitted references without
// loading their bodies.
func (e *Engine) BuildContextPackDelta(candidates []types.Candidate, delta types.DeltaResult, budget types.Budget, post ...PostProcessor) (*types.ContextPack, error) {
	processed, err := applyPostProcessors(candidates, post)
	if err != nil {
		return nil, err
	}
	return e.build(processed, &delta, budget), nil
}

// SortCandidates returns a copy ordered by relevance desc, then Order asc.
// Candidates equal on both keep their input order.
func SortCandidates(candidates []types.Candidate) []types.Candidate {
	ordered := make([]types.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Relevance != ordered[j].Relevance {
			return ordered[i].Relevance > ordered[j].Relevance
		}
		return ordered[i].Order < ordered[j].Order
	})
	return ordered
}

// packer carries the running state of one build
type packer struct {
	*Engine
	pack      *types.ContextPack
	budget    types.Budget
	remaining int
}

func (e *Engine) build(candidates []types.Candidate, delta *types.DeltaResult, budget types.Budget) *types.ContextPack {
	eng := *e
	if eng.Estimator == nil {
		eng.Estimator = tokens.Heuristic{}
	}
	if eng.Logger == nil {
		eng.Logger = slog.New(slog.DiscardHandler)
	}

	p := &packer{
		Engine: &eng,
		pack: &types.ContextPack{
			Slices:         []types.ContextSlice{},
			SignaturesOnly: []string{},
			Unchanged:      []string{},
		},
		budget:    budget,
		remaining: budget.Tokens(),
	}

	hits, misses := 0, 0
	for i, c := range SortCandidates(candidates) {
		if delta != nil && delta.IsUnchanged(c.SymbolID) {
			hits++
			p.addUnchanged(c)
			continue
		}
		if delta != nil {
			misses++
		}
		p.add(c, i == 0)
	}

	if delta != nil {
		stats := types.NewCacheStats(hits, misses)
		p.pack.CacheStats = &stats
	}
	return p.pack
}

// fits reports whether cost tokens can still be spent
func (p *packer) fits(cost int) bool {
	return !p.budget.Limited() || cost <= p.remaining
}

func (p *packer) spend(slice types.ContextSlice) {
	p.pack.Slices = append(p.pack.Slices, slice)
	p.pack.BudgetUsed += slice.Tokens
	p.remaining -= slice.Tokens
}

func (p *packer) warn(format string, args ...any) {
	p.pack.CoherenceWarnings = append(p.pack.CoherenceWarnings, fmt.Sprintf(format, args...))
}

// addUnchanged emits an omitted reference. The agent already holds the
// body, so the reference is kept regardless of budget and costs only its
// signature.
func (p *packer) addUnchanged(c types.Candidate) {
	slice := p.newSlice(c, types.Omitted())
	slice.ETag = c.ETag
	slice.Tokens = p.count(c.Signature)
	p.spend(slice)
	p.pack.Unchanged = append(p.pack.Unchanged, c.SymbolID)
}

func (p *packer) add(c types.Candidate, top bool) {
	sigCost := p.count(c.Signature)

	body, ok := p.materialize(&c)
	if ok {
		etag := c.ETag
		if etag == "" {
			etag = types.ComputeETag(c.Signature, body.Code)
		}

		full := sigCost + p.count(body.Code)
		if p.fits(full) {
			slice := p.newSlice(c, types.FullCode(body.Code))
			slice.ETag = etag
			slice.Tokens = full
			p.spend(slice)
			return
		}

		if slice, ok := p.elide(c, body, sigCost); ok {
			slice.ETag = etag
			p.spend(slice)
			return
		}
		c.ETag = etag
	}

	if !p.fits(sigCost) && !top {
		p.warn("%s (%s) dropped: budget exhausted", c.SymbolID, c.Label)
		p.Logger.Debug("candidate dropped", "id", c.SymbolID, "remaining", p.remaining)
		return
	}

	slice := p.newSlice(c, types.SignatureOnly())
	slice.ETag = c.ETag
	slice.Tokens = sigCost
	p.spend(slice)
	p.pack.SignaturesOnly = append(p.pack.SignaturesOnly, c.SymbolID)

	if ok && (c.Label == types.LabelEntry || c.Label == types.LabelContainsDiff) {
		p.warn("%s (%s) reduced to signature", c.SymbolID, c.Label)
	}
}

// materialize returns the candidate body, loading it when the candidate
// carries none. Lines are filled in from the loaded body.
func (p *packer) materialize(c *types.Candidate) (Body, bool) {
	if c.HasCode {
		body := Body{Code: c.Code}
		if c.Lines != nil {
			body.Lines = *c.Lines
		}
		return body, true
	}
	if p.Loader == nil {
		return Body{}, false
	}

	body, err := p.Loader.Load(c.SymbolID)
	if err != nil {
		p.warn("%s: %v", c.SymbolID, err)
		p.Logger.Warn("failed to load symbol body", "id", c.SymbolID, "error", err)
		return Body{}, false
	}
	if c.Lines == nil && body.Lines.Start > 0 {
		lines := body.Lines
		c.Lines = &lines
	}
	return body, true
}

// maxElideAttempts bounds the shrink loop in elide
const maxElideAttempts = 8

// elide compresses the body into what is left after the signature.
// Elision markers are not budgeted by the compressor, so the target is
// lowered by the overshoot until the rendered text fits. The result is
// used only when it fits and actually dropped something.
func (p *packer) elide(c types.Candidate, body Body, sigCost int) (types.ContextSlice, bool) {
	if !p.budget.Limited() || p.Compressor == nil || p.remaining <= sigCost {
		return types.ContextSlice{}, false
	}

	target := p.remaining - sigCost
	for attempt := 0; attempt < maxElideAttempts; attempt++ {
		res := p.Compressor.Compress(compressor.Request{
			Source:     body.Code,
			FirstLine:  body.Lines.Start,
			Budget:     types.TokenBudget(target),
			DiffRanges: c.DiffLines,
			Segmenter:  body.Segmenter,
		})
		if res.DroppedBlockCount == 0 {
			return types.ContextSlice{}, false
		}

		cost := sigCost + p.count(res.Text)
		if p.fits(cost) {
			slice := p.newSlice(c, types.ElidedCode(res.Text))
			slice.Tokens = cost
			slice.Metadata = withMetadata(slice.Metadata, map[string]any{
				"blocks":         res.BlockCount,
				"dropped_blocks": res.DroppedBlockCount,
			})
			return slice, true
		}

		if target == 0 {
			break
		}
		target = max(0, target-(cost-p.remaining))
	}
	return types.ContextSlice{}, false
}

func (p *packer) newSlice(c types.Candidate, code types.SliceCode) types.ContextSlice {
	return types.ContextSlice{
		ID:        c.SymbolID,
		Signature: c.Signature,
		Code:      code,
		Lines:     c.Lines,
		Label:     c.Label,
		Metadata:  c.Metadata,
	}
}

func (p *packer) count(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return p.Estimator.Count(text)
}

// withMetadata returns a copy of base with extra merged in
func withMetadata(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
