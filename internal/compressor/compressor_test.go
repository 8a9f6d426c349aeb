package compressor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxpack/internal/parser"
	"github.com/dshills/ctxpack/pkg/types"
)

const handleSource = `def handle(req):
    if req is None:
        return None
    data = parse(req)
    data = clean(data)
    for item in data:
        process(item)
        log(item)
    save(data)
    return data`

func TestCompress_NoOp(t *testing.T) {
	c := New()

	res := c.Compress(Request{Source: handleSource, FirstLine: 1, Budget: types.NoBudget()})
	assert.Equal(t, Result{Text: handleSource}, res)

	res = c.Compress(Request{Source: handleSource, FirstLine: 1, Budget: types.TokenBudget(1000)})
	assert.Equal(t, Result{Text: handleSource}, res)
}

func TestCompress_DiffBlockSurvivesSmallBudget(t *testing.T) {
	res := New().Compress(Request{
		Source:     handleSource,
		FirstLine:  1,
		Budget:     types.TokenBudget(5),
		DiffRanges: []types.LineRange{{Start: 2, End: 2}},
	})

	assert.Equal(t, "... (1 lines elided)\n    if req is None:\n        ... (8 lines elided)", res.Text)
	assert.Equal(t, 6, res.BlockCount)
	assert.Equal(t, 5, res.DroppedBlockCount)
}

func TestCompress_FillsRemainingBudget(t *testing.T) {
	res := New().Compress(Request{
		Source:     handleSource,
		FirstLine:  1,
		Budget:     types.TokenBudget(20),
		DiffRanges: []types.LineRange{{Start: 2, End: 2}},
	})

	want := "def handle(req):\n" +
		"    if req is None:\n" +
		"        return None\n" +
		"    ... (5 lines elided)\n" +
		"    save(data)\n" +
		"    return data"
	assert.Equal(t, want, res.Text)
	assert.Equal(t, 2, res.DroppedBlockCount)
}

func TestCompress_FirstBlockKeptWithoutDiff(t *testing.T) {
	res := New().Compress(Request{Source: handleSource, FirstLine: 1, Budget: types.TokenBudget(1)})

	assert.Equal(t, "def handle(req):\n    ... (9 lines elided)", res.Text)
	assert.Equal(t, 5, res.DroppedBlockCount)
}

func TestCompress_GoSegmentation(t *testing.T) {
	snippet := `func Process(items []int) int {
	total := 0
	count := 0
	for _, it := range items {
		total += it
	}
	if total > 10 {
		return total
	}
	return count
}`

	res := New().Compress(Request{
		Source:     snippet,
		FirstLine:  20,
		Budget:     types.TokenBudget(13),
		DiffRanges: []types.LineRange{{Start: 27, End: 27}},
		Segmenter:  parser.NewGoAdapter(),
	})

	assert.Equal(t, "... (6 lines elided)\n\tif total > 10 {\n\t\treturn total\n\t}\n\treturn count\n}", res.Text)
	assert.Equal(t, 6, res.BlockCount)
	assert.Equal(t, 3, res.DroppedBlockCount)
}

func TestCompress_Deterministic(t *testing.T) {
	req := Request{Source: handleSource, FirstLine: 1, Budget: types.TokenBudget(12)}
	first := New().Compress(req)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, New().Compress(req))
	}
}

func blocksWith(costs, scores []int, mustKeep ...int) []types.CodeBlock {
	blocks := make([]types.CodeBlock, len(costs))
	for i := range costs {
		blocks[i] = types.CodeBlock{TokenEstimate: costs[i], Score: scores[i]}
	}
	for _, i := range mustKeep {
		blocks[i].MustKeep = true
	}
	return blocks
}

func TestSelectBlocks(t *testing.T) {
	tests := []struct {
		name     string
		costs    []int
		scores   []int
		mustKeep []int
		budget   int
		want     []int
	}{
		{
			name:     "must keep plus best optional",
			costs:    []int{10, 20, 10},
			scores:   []int{5, 3, 8},
			mustKeep: []int{0},
			budget:   20,
			want:     []int{0, 2},
		},
		{
			name:     "must keep dominates tiny budget",
			costs:    []int{50, 5},
			scores:   []int{1, 100},
			mustKeep: []int{0},
			budget:   10,
			want:     []int{0},
		},
		{
			name:   "everything fits",
			costs:  []int{3, 4, 5},
			scores: []int{0, 0, 0},
			budget: 12,
			want:   []int{0, 1, 2},
		},
		{
			name:   "tie prefers earlier block",
			costs:  []int{5, 5},
			scores: []int{3, 3},
			budget: 5,
			want:   []int{0},
		},
		{
			name:   "negative budget keeps nothing optional",
			costs:  []int{1},
			scores: []int{1},
			budget: -4,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectBlocks(blocksWith(tt.costs, tt.scores, tt.mustKeep...), tt.budget)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSegmentByIndent(t *testing.T) {
	blocks := SegmentByIndent("a\n  b\n\n  c\nd\n", 5)
	require.Len(t, blocks, 3)

	assert.Equal(t, types.CodeBlock{StartLine: 5, EndLine: 5, Text: "a"}, blocks[0])
	assert.Equal(t, types.CodeBlock{StartLine: 6, EndLine: 8, Text: "  b\n\n  c"}, blocks[1])
	assert.Equal(t, types.CodeBlock{StartLine: 9, EndLine: 9, Text: "d"}, blocks[2])

	assert.Nil(t, SegmentByIndent("", 1))
}

func TestScoreBlocks(t *testing.T) {
	blocks := []types.CodeBlock{
		{StartLine: 1, EndLine: 1, Text: "x = 1"},
		{StartLine: 2, EndLine: 3, Text: "if x:\n    y()"},
		{StartLine: 4, EndLine: 4, Text: "return x"},
	}
	scoreBlocks(blocks, []types.LineRange{{Start: 3, End: 3}}, DefaultWeights())

	assert.Equal(t, 1+5, blocks[0].Score)
	assert.False(t, blocks[0].MustKeep)
	assert.Equal(t, 1+1000, blocks[1].Score)
	assert.True(t, blocks[1].MustKeep)
	assert.Equal(t, 1+5+3, blocks[2].Score)
}

func TestEndsWithControlFlow(t *testing.T) {
	assert.True(t, endsWithControlFlow("x()\nreturn\n\n"))
	assert.True(t, endsWithControlFlow("raise ValueError()"))
	assert.True(t, endsWithControlFlow("    yield(x)"))
	assert.False(t, endsWithControlFlow("returned = 1"))
	assert.False(t, endsWithControlFlow(""))
}
