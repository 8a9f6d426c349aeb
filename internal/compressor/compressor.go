package compressor

import (
	"strconv"
	"strings"

	"github.com/dshills/ctxpack/internal/tokens"
	"github.com/dshills/ctxpack/pkg/types"
)

// Weights scores blocks for selection. Only the relative order matters:
// DiffOverlap must dominate every other bonus combined.
type Weights struct {
	DiffOverlap int `yaml:"diff_overlap"`
	Adjacency   int `yaml:"adjacency"`
	ControlFlow int `yaml:"control_flow"`
	Base        int `yaml:"base"`
}

// DefaultWeights returns the standard scoring weights
func DefaultWeights() Weights {
	return Weights{
		DiffOverlap: 1000,
		Adjacency:   5,
		ControlFlow: 3,
		Base:        1,
	}
}

// Segmenter splits a symbol snippet into blocks. parser.Adapter satisfies it.
type Segmenter interface {
	SegmentBlocks(source string, firstLine int) ([]types.CodeBlock, error)
}

// Request describes one body to compress
type Request struct {
	Source     string
	FirstLine  int // file line of the first source line
	Budget     types.Budget
	DiffRanges []types.LineRange // file lines that must survive
	Segmenter  Segmenter         // optional; indentation is the fallback
}

// Result is the compressed body
type Result struct {
	Text              string
	BlockCount        int
	DroppedBlockCount int
}

// Compressor shrinks function bodies to a token budget by dropping whole
// blocks. It holds no per-call state.
type Compressor struct {
	Weights   Weights
	Estimator tokens.Estimator
}

// New creates a compressor with default weights and the chars/4 estimator
func New() *Compressor {
	return &Compressor{
		Weights:   DefaultWeights(),
		Estimator: tokens.Heuristic{},
	}
}

// Compress segments the source, scores each block and keeps the best
// subset that fits the budget. Must-keep blocks survive even when they
// alone exceed it. Returns the source unchanged when no budget is set or
// it already fits.
func (c *Compressor) Compress(req Request) Result {
	if !req.Budget.Limited() || c.Estimator.Count(req.Source) <= req.Budget.Tokens() {
		return Result{Text: req.Source}
	}

	firstLine := req.FirstLine
	if firstLine <= 0 {
		firstLine = 1
	}

	blocks := c.segment(req.Source, firstLine, req.Segmenter)
	if len(blocks) == 0 {
		return Result{Text: req.Source}
	}

	for i := range blocks {
		blocks[i].TokenEstimate = max(1, c.Estimator.Count(blocks[i].Text))
	}
	scoreBlocks(blocks, req.DiffRanges, c.Weights)

	budget := max(0, req.Budget.Tokens())
	keep := SelectBlocks(blocks, budget)

	return Result{
		Text:              render(blocks, keep),
		BlockCount:        len(blocks),
		DroppedBlockCount: len(blocks) - len(keep),
	}
}

func (c *Compressor) segment(source string, firstLine int, seg Segmenter) []types.CodeBlock {
	if seg != nil {
		if blocks, err := seg.SegmentBlocks(source, firstLine); err == nil && len(blocks) > 0 {
			return blocks
		}
	}
	return SegmentByIndent(source, firstLine)
}

// controlFlowKeywords end a block with a change of control
var controlFlowKeywords = []string{"return", "raise", "yield", "break", "continue"}

// scoreBlocks assigns scores and must-keep flags in place
func scoreBlocks(blocks []types.CodeBlock, diff []types.LineRange, w Weights) {
	inDiff := make([]bool, len(blocks))
	for i, b := range blocks {
		for _, r := range diff {
			if b.Lines().Overlaps(r) {
				inDiff[i] = true
				break
			}
		}
	}

	for i := range blocks {
		b := &blocks[i]
		b.Score = w.Base
		if inDiff[i] {
			b.Score += w.DiffOverlap
			b.MustKeep = true
		}
		if (i > 0 && inDiff[i-1]) || (i+1 < len(blocks) && inDiff[i+1]) {
			b.Score += w.Adjacency
		}
		if endsWithControlFlow(b.Text) {
			b.Score += w.ControlFlow
		}
	}

	if len(diff) == 0 {
		blocks[0].MustKeep = true
	}
}

// endsWithControlFlow checks the last non-blank line of a block
func endsWithControlFlow(text string) bool {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		for _, kw := range controlFlowKeywords {
			if rest, ok := strings.CutPrefix(line, kw); ok {
				if rest == "" || !isIdentByte(rest[0]) {
					return true
				}
			}
		}
		return false
	}
	return false
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// render emits kept blocks in source order, replacing each gap with an
// elision marker indented like the first line it replaces
func render(blocks []types.CodeBlock, keep []int) string {
	var out []string
	next := blocks[0].StartLine
	var pendingIndent string
	havePending := false

	flush := func(upTo int) {
		if gap := upTo - next; gap > 0 {
			out = append(out, pendingIndent+ElisionMarker(gap))
		}
	}

	kept := make(map[int]bool, len(keep))
	for _, i := range keep {
		kept[i] = true
	}

	for i, b := range blocks {
		if !kept[i] {
			if !havePending {
				pendingIndent = leadingWhitespace(firstNonBlank(b.Text))
				havePending = true
			}
			continue
		}
		flush(b.StartLine)
		out = append(out, b.Text)
		next = b.EndLine + 1
		havePending = false
	}
	flush(blocks[len(blocks)-1].EndLine + 1)

	return strings.Join(out, "\n")
}

// ElisionMarker is the placeholder for n dropped lines
func ElisionMarker(n int) string {
	return "... (" + strconv.Itoa(n) + " lines elided)"
}

func firstNonBlank(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
