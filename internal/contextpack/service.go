package contextpack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/dshills/ctxpack/internal/indexer"
	"github.com/dshills/ctxpack/internal/storage"
	"github.com/dshills/ctxpack/pkg/types"
)

// DefaultDepth is the call-graph distance walked when a request sets none
const DefaultDepth = 2

// ErrEmptyDiff is returned when a diff touches no indexed symbol
var ErrEmptyDiff = errors.New("diff touches no indexed symbols")

// Scores are the base relevance per label. Each hop away from the entry
// or diff costs DepthPenalty.
type Scores struct {
	Entry        int `yaml:"entry"`
	ContainsDiff int `yaml:"contains_diff"`
	CallerOfDiff int `yaml:"caller_of_diff"`
	Caller       int `yaml:"caller"`
	Callee       int `yaml:"callee"`
	DepthPenalty int `yaml:"depth_penalty"`
}

// DefaultScores returns the standard relevance scores
func DefaultScores() Scores {
	return Scores{
		Entry:        100,
		ContainsDiff: 100,
		CallerOfDiff: 70,
		Caller:       60,
		Callee:       50,
		DepthPenalty: 10,
	}
}

func (s Scores) forLabel(label types.RelevanceLabel) int {
	switch label {
	case types.LabelEntry:
		return s.Entry
	case types.LabelContainsDiff:
		return s.ContainsDiff
	case types.LabelCallerOfDiff:
		return s.CallerOfDiff
	case types.LabelCaller:
		return s.Caller
	default:
		return s.Callee
	}
}

// Request parameterizes one pack request
type Request struct {
	Entry          string // symbol token for relevant and symbol packs
	Diff           []byte // unified diff for diff packs
	Depth          int
	Budget         types.Budget
	AllowAmbiguous bool
	SessionID      string
	PostProcessors []PostProcessor
}

// Service gathers candidates from an index and packs them. Store is
// optional; without it every request is packed without delta.
type Service struct {
	Index  *indexer.Index
	Engine *Engine
	Store  storage.Store
	Scores Scores
	Logger *slog.Logger

	// StoreErr records why the state store could not be opened. Packs are
	// built without delta and carry a warning while it is set.
	StoreErr error
}

// NewService wires an engine with a materializer over idx
func NewService(idx *indexer.Index, store storage.Store) (*Service, error) {
	m, err := NewMaterializer(idx, nil, DefaultLineCacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		Index:  idx,
		Engine: NewEngine(m),
		Store:  store,
		Scores: DefaultScores(),
		Logger: slog.New(slog.DiscardHandler),
	}, nil
}

// GetRelevantContext packs the entry symbol and the symbols it calls, out
// to req.Depth hops
func (s *Service) GetRelevantContext(ctx context.Context, req Request) (*types.PackResult, error) {
	entries, amb := s.resolve(req)
	if amb != nil {
		return &types.PackResult{Ambiguous: amb}, nil
	}

	g := newGatherer(s.Index, s.Scores)
	for _, id := range entries {
		g.addEntry(id)
	}
	g.walk(entries, depthOf(req), types.LabelCallee, s.Index.Callees)

	return s.pack(ctx, req, g.candidates, false)
}

// GetSymbolContextPack packs the entry with its callers and callees. It is
// delta-first: a session id is generated when the request has none, and
// symbols already delivered unchanged in the session are omitted.
func (s *Service) GetSymbolContextPack(ctx context.Context, req Request) (*types.PackResult, error) {
	entries, amb := s.resolve(req)
	if amb != nil {
		return &types.PackResult{Ambiguous: amb}, nil
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	g := newGatherer(s.Index, s.Scores)
	for _, id := range entries {
		g.addEntry(id)
	}
	depth := depthOf(req)
	g.walk(entries, depth, types.LabelCallee, s.Index.Callees)
	g.walk(entries, depth, types.LabelCaller, s.Index.Callers)

	return s.pack(ctx, req, g.candidates, true)
}

// GetDiffContext packs the symbols a diff touches, the symbols that call
// them and the symbols they call
func (s *Service) GetDiffContext(ctx context.Context, req Request) (*types.PackResult, error) {
	changed, err := ParseDiff(req.Diff)
	if err != nil {
		return nil, err
	}

	g := newGatherer(s.Index, s.Scores)
	var touched []string
	for _, file := range changed.Files() {
		ranges := changed[file]
		for _, r := range ranges {
			for _, id := range s.Index.Overlapping(file, r) {
				sym, _ := s.Index.Symbol(id)
				if g.addDiff(id, clipRanges(ranges, sym.Lines)) {
					touched = append(touched, id)
				}
			}
		}
	}
	if len(touched) == 0 {
		return nil, ErrEmptyDiff
	}

	depth := depthOf(req)
	g.walk(touched, depth, types.LabelCallerOfDiff, s.Index.Callers)
	g.walk(touched, depth, types.LabelCallee, s.Index.Callees)

	return s.pack(ctx, req, g.candidates, false)
}

// resolve maps the request entry to symbol ids or an ambiguity result
func (s *Service) resolve(req Request) ([]string, *types.AmbiguousResult) {
	res := s.Index.ResolveEntrySymbols(req.Entry, req.AllowAmbiguous)
	if res.Ambiguous {
		return nil, types.NewAmbiguousResult(res.Token, res.Candidates)
	}
	if res.Unresolved {
		s.Logger.Debug("entry not found; passing through", "token", res.Token)
	}
	return res.Matches, nil
}

// pack builds the pack, with delta when a session and store are available
func (s *Service) pack(ctx context.Context, req Request, candidates []types.Candidate, deltaFirst bool) (*types.PackResult, error) {
	result := &types.PackResult{SessionID: req.SessionID}

	if !deltaFirst && (req.SessionID == "" || s.Store == nil) {
		processed, err := applyPostProcessors(candidates, req.PostProcessors)
		if err != nil {
			return nil, err
		}
		result.Pack = s.Engine.BuildContextPack(processed, req.Budget)
		s.warnStoreUnavailable(result.Pack)
		return result, nil
	}

	delta, warning := s.checkDelta(ctx, req.SessionID, candidates)
	pack, err := s.Engine.BuildContextPackDelta(candidates, delta, req.Budget, req.PostProcessors...)
	if err != nil {
		return nil, err
	}
	if warning != "" {
		pack.CoherenceWarnings = append(pack.CoherenceWarnings, warning)
	}
	s.recordDeliveries(ctx, req.SessionID, candidates, pack)
	s.warnStoreUnavailable(pack)

	result.Pack = pack
	return result, nil
}

func (s *Service) warnStoreUnavailable(pack *types.ContextPack) {
	if s.StoreErr != nil {
		pack.CoherenceWarnings = append(pack.CoherenceWarnings, fmt.Sprintf("state store unavailable: %v", s.StoreErr))
	}
}

// checkDelta asks the store which candidates the session already holds.
// Any store failure degrades to "everything changed".
func (s *Service) checkDelta(ctx context.Context, sessionID string, candidates []types.Candidate) (types.DeltaResult, string) {
	ids := make([]string, 0, len(candidates))
	etags := make(map[string]string, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.SymbolID)
		if c.ETag != "" {
			etags[c.SymbolID] = c.ETag
		}
	}

	if s.Store == nil {
		return types.AllChanged(ids), ""
	}

	if _, err := s.Store.OpenSession(ctx, sessionID, s.Index.Fingerprint(), s.Index.Language()); err != nil {
		s.Logger.Warn("state store unavailable; treating all symbols as changed", "error", err)
		return types.AllChanged(ids), fmt.Sprintf("state store unavailable: %v", err)
	}
	delta, err := s.Store.CheckDelta(ctx, sessionID, etags)
	if err != nil {
		s.Logger.Warn("delta check failed; treating all symbols as changed", "error", err)
		return types.AllChanged(ids), fmt.Sprintf("delta check failed: %v", err)
	}
	// ids without an etag were never checked
	for _, id := range ids {
		if _, ok := etags[id]; !ok {
			delta.Changed[id] = struct{}{}
		}
	}
	return delta, ""
}

// recordDeliveries stores the content etag of every candidate the pack
// considered. The tier goes in the representation column; candidates that
// did not fit are recorded as dropped so a repeat request sees them as
// unchanged.
func (s *Service) recordDeliveries(ctx context.Context, sessionID string, candidates []types.Candidate, pack *types.ContextPack) {
	if s.Store == nil {
		return
	}

	delivered := make(map[string]struct{}, len(pack.Slices))
	recs := make([]types.DeliveryRecord, 0, len(candidates))
	for _, slice := range pack.Slices {
		delivered[slice.ID] = struct{}{}
		if slice.Code.Rep == types.RepOmitted || slice.ETag == "" {
			continue
		}
		recs = append(recs, types.DeliveryRecord{
			SessionID:      sessionID,
			SymbolID:       slice.ID,
			ETag:           slice.ETag,
			Representation: slice.Code.Rep,
			TokenEstimate:  slice.Tokens,
		})
	}
	for _, c := range candidates {
		if _, ok := delivered[c.SymbolID]; ok || c.ETag == "" {
			continue
		}
		delivered[c.SymbolID] = struct{}{}
		recs = append(recs, types.DeliveryRecord{
			SessionID:      sessionID,
			SymbolID:       c.SymbolID,
			ETag:           c.ETag,
			Representation: types.RepDropped,
		})
	}
	if err := s.Store.RecordDeliveriesBatch(ctx, recs); err != nil {
		s.Logger.Warn("failed to record deliveries", "session", sessionID, "error", err)
		pack.CoherenceWarnings = append(pack.CoherenceWarnings, fmt.Sprintf("deliveries not recorded: %v", err))
	}
}

func depthOf(req Request) int {
	if req.Depth <= 0 {
		return DefaultDepth
	}
	return req.Depth
}

// gatherer accumulates candidates in discovery order. The first label a
// symbol receives wins.
type gatherer struct {
	index      *indexer.Index
	scores     Scores
	seen       map[string]int
	candidates []types.Candidate
}

func newGatherer(idx *indexer.Index, scores Scores) *gatherer {
	return &gatherer{index: idx, scores: scores, seen: make(map[string]int)}
}

func (g *gatherer) add(id string, label types.RelevanceLabel, relevance int) (*types.Candidate, bool) {
	if i, ok := g.seen[id]; ok {
		return &g.candidates[i], false
	}

	c := types.Candidate{
		SymbolID:  id,
		Relevance: relevance,
		Label:     label,
		Signature: id,
		Order:     len(g.candidates),
	}
	if sym, ok := g.index.Symbol(id); ok {
		lines := sym.Lines
		c.Signature = sym.Signature
		c.Lines = &lines
		c.ETag = sym.ContentHash
		c.Metadata = map[string]any{"file": sym.File, "kind": string(sym.Kind)}
	} else {
		c.Metadata = map[string]any{"unresolved": true}
	}

	g.seen[id] = len(g.candidates)
	g.candidates = append(g.candidates, c)
	return &g.candidates[len(g.candidates)-1], true
}

func (g *gatherer) addEntry(id string) {
	g.add(id, types.LabelEntry, g.scores.Entry)
}

// addDiff registers a symbol touched by the diff with its changed lines
func (g *gatherer) addDiff(id string, lines []types.LineRange) bool {
	c, added := g.add(id, types.LabelContainsDiff, g.scores.ContainsDiff)
	if c.Label == types.LabelContainsDiff {
		for _, r := range lines {
			if !slices.Contains(c.DiffLines, r) {
				c.DiffLines = append(c.DiffLines, r)
			}
		}
	}
	return added
}

// walk runs a breadth-first search from roots over next, labelling every
// newly reached symbol. Relevance drops by DepthPenalty per hop.
func (g *gatherer) walk(roots []string, depth int, label types.RelevanceLabel, next func(string) []string) {
	visited := make(map[string]bool, len(roots))
	frontier := make([]string, 0, len(roots))
	for _, id := range roots {
		if !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}

	base := g.scores.forLabel(label)
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var nextFrontier []string
		for _, id := range frontier {
			for _, n := range next(id) {
				if visited[n] {
					continue
				}
				visited[n] = true
				nextFrontier = append(nextFrontier, n)
				g.add(n, label, base-(d-1)*g.scores.DepthPenalty)
			}
		}
		frontier = nextFrontier
	}
}
