package types

// RelevanceLabel explains why a candidate was selected
type RelevanceLabel string

const (
	LabelEntry           RelevanceLabel = "entry"
	LabelContainsDiff    RelevanceLabel = "contains_diff"
	LabelCaller          RelevanceLabel = "caller"
	LabelCallee          RelevanceLabel = "callee"
	LabelCallerOfDiff    RelevanceLabel = "caller_of_diff"
	LabelStructuralMatch RelevanceLabel = "structural-match"
	LabelPrecomputed     RelevanceLabel = "precomputed"
)

// Candidate is a symbol under consideration for inclusion in a context pack
type Candidate struct {
	SymbolID  string
	Relevance int
	Label     RelevanceLabel
	Signature string

	// Code is the symbol body when already materialized. HasCode
	// distinguishes an empty body from one that was never loaded.
	Code    string
	HasCode bool

	Lines    *LineRange
	Metadata map[string]any

	// DiffLines marks body lines that must survive compression
	DiffLines []LineRange

	// ETag is the precomputed content hash. When empty it is derived from
	// Signature and Code.
	ETag string

	// Order breaks relevance ties; lower comes first
	Order int
}

// WithCode returns a copy of the candidate carrying the given body
func (c Candidate) WithCode(code string) Candidate {
	c.Code = code
	c.HasCode = true
	return c
}

// Budget is a token budget that may be unset. The zero value is unlimited.
type Budget struct {
	tokens  int
	limited bool
}

// NoBudget returns an unlimited budget
func NoBudget() Budget {
	return Budget{}
}

// TokenBudget returns a budget of n tokens. Zero and negative values are
// valid and mean "nothing fits".
func TokenBudget(n int) Budget {
	return Budget{tokens: n, limited: true}
}

// Limited reports whether the budget is set
func (b Budget) Limited() bool {
	return b.limited
}

// Tokens returns the budget size; meaningless when Limited is false
func (b Budget) Tokens() int {
	return b.tokens
}
