package types

import (
	"encoding/json"
	"time"
)

// Representation names the tier a slice was delivered at
type Representation string

const (
	RepFull          Representation = "full"
	RepElided        Representation = "elided"
	RepSignatureOnly Representation = "signature"
	RepOmitted       Representation = "omitted"

	// RepDropped is only recorded in delivery history: the candidate was
	// considered but did not fit the budget
	RepDropped Representation = "dropped"
)

// SliceCode is the code carried by a slice: Full(code), Elided(code),
// SignatureOnly or Omitted. Text is only meaningful for Full and Elided.
type SliceCode struct {
	Rep  Representation
	Text string
}

// FullCode wraps a complete body
func FullCode(text string) SliceCode { return SliceCode{Rep: RepFull, Text: text} }

// ElidedCode wraps a compressed body
func ElidedCode(text string) SliceCode { return SliceCode{Rep: RepElided, Text: text} }

// SignatureOnly carries no code
func SignatureOnly() SliceCode { return SliceCode{Rep: RepSignatureOnly} }

// Omitted marks code the caller already holds
func Omitted() SliceCode { return SliceCode{Rep: RepOmitted} }

// HasText reports whether the variant carries code
func (c SliceCode) HasText() bool {
	return c.Rep == RepFull || c.Rep == RepElided
}

// ContextSlice is one symbol's entry in a ContextPack
type ContextSlice struct {
	ID        string
	Signature string
	Code      SliceCode
	Lines     *LineRange
	Label     RelevanceLabel
	Metadata  map[string]any
	ETag      string
	Tokens    int
}

type sliceJSON struct {
	ID             string         `json:"id"`
	Signature      string         `json:"signature"`
	Code           *string        `json:"code,omitempty"`
	Representation Representation `json:"representation"`
	Lines          *LineRange     `json:"lines,omitempty"`
	Relevance      RelevanceLabel `json:"relevance"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ETag           string         `json:"etag"`
}

// MarshalJSON emits code only for the Full and Elided variants
func (s ContextSlice) MarshalJSON() ([]byte, error) {
	out := sliceJSON{
		ID:             s.ID,
		Signature:      s.Signature,
		Representation: s.Code.Rep,
		Lines:          s.Lines,
		Relevance:      s.Label,
		Metadata:       s.Metadata,
		ETag:           s.ETag,
	}
	if s.Code.HasText() {
		text := s.Code.Text
		out.Code = &text
	}
	return json.Marshal(out)
}

// CacheStats summarizes delta hits for one pack
type CacheStats struct {
	Hits    int     `json:"hits"`
	Misses  int     `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewCacheStats computes the hit rate; zero lookups give a zero rate
func NewCacheStats(hits, misses int) CacheStats {
	stats := CacheStats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// ContextPack is the budgeted bundle returned to callers
type ContextPack struct {
	Slices            []ContextSlice `json:"slices"`
	SignaturesOnly    []string       `json:"signatures_only"`
	BudgetUsed        int            `json:"budget_used"`
	Unchanged         []string       `json:"unchanged"`
	CacheStats        *CacheStats    `json:"cache_stats,omitempty"`
	CoherenceWarnings []string       `json:"coherence_warnings,omitempty"`
}

// AmbiguityCode is the code carried by AmbiguousResult
const AmbiguityCode = "AMBIGUOUS"

// AmbiguousResult is returned instead of a pack when an entry token names
// more than one symbol and disambiguation is off
type AmbiguousResult struct {
	Error      bool     `json:"error"`
	Code       string   `json:"code"`
	Token      string   `json:"token"`
	Candidates []string `json:"candidates"`
}

// NewAmbiguousResult builds the structured ambiguity result
func NewAmbiguousResult(token string, candidates []string) *AmbiguousResult {
	return &AmbiguousResult{
		Error:      true,
		Code:       AmbiguityCode,
		Token:      token,
		Candidates: candidates,
	}
}

// PackResult carries either a pack or an ambiguity result
type PackResult struct {
	Pack      *ContextPack
	Ambiguous *AmbiguousResult
	SessionID string
}

// DeltaResult partitions symbol ids into unchanged and changed for a session
type DeltaResult struct {
	Unchanged map[string]struct{}
	Changed   map[string]struct{}
}

// NewDeltaResult returns an empty delta
func NewDeltaResult() DeltaResult {
	return DeltaResult{
		Unchanged: make(map[string]struct{}),
		Changed:   make(map[string]struct{}),
	}
}

// AllChanged marks every id as changed; used when the store is unavailable
func AllChanged(ids []string) DeltaResult {
	d := NewDeltaResult()
	for _, id := range ids {
		d.Changed[id] = struct{}{}
	}
	return d
}

// IsUnchanged reports whether id was delivered with the same etag before
func (d DeltaResult) IsUnchanged(id string) bool {
	_, ok := d.Unchanged[id]
	return ok
}

// DeliveryRecord is the last delivery of a symbol within a session
type DeliveryRecord struct {
	SessionID      string
	SymbolID       string
	ETag           string
	Representation Representation
	ExternalRef    string
	TokenEstimate  int
	DeliveredAt    time.Time
}
