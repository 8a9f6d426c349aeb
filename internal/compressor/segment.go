package compressor

import (
	"strings"

	"github.com/dshills/ctxpack/internal/parser"
	"github.com/dshills/ctxpack/pkg/types"
)

// SegmentByIndent splits source into blocks of consecutive lines at the
// same indentation. A new block starts whenever the indentation of a
// non-blank line differs from the previous non-blank line; blank lines
// stay with the block before them.
func SegmentByIndent(source string, firstLine int) []types.CodeBlock {
	source = strings.TrimRight(source, "\n")
	if source == "" {
		return nil
	}
	lines := strings.Split(source, "\n")

	var blocks []types.CodeBlock
	var cur []string
	curStart := 0
	depth := -1

	closeBlock := func(end int) {
		if len(cur) == 0 {
			return
		}
		blocks = append(blocks, types.CodeBlock{
			StartLine: firstLine + curStart,
			EndLine:   firstLine + end,
			Text:      strings.Join(cur, "\n"),
		})
		cur = nil
	}

	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			d := parser.IndentWidth(line)
			if depth >= 0 && d != depth {
				closeBlock(i - 1)
			}
			depth = d
		}
		if len(cur) == 0 {
			curStart = i
		}
		cur = append(cur, line)
	}
	closeBlock(len(lines) - 1)

	return blocks
}
