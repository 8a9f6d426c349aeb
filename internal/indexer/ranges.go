package indexer

import (
	"sort"
	"strings"

	"github.com/dshills/ctxpack/pkg/types"
)

// computeRanges assigns a line range to each function, index-aligned with
// fns. An end line reported by the adapter is used as is. Otherwise a
// symbol ends one line before the next symbol that is not one of its
// members (or at EOF), so a class spans its methods. Trailing blank lines
// are trimmed.
func computeRanges(fns []types.FunctionInfo, lines []string) []types.LineRange {
	n := len(lines)
	if n == 0 {
		n = 1
	}

	order := make([]int, len(fns))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return fns[order[a]].Line < fns[order[b]].Line })

	ranges := make([]types.LineRange, len(fns))
	for pos, i := range order {
		fn := fns[i]
		start := clamp(fn.Line, 1, n)

		end := n
		if fn.EndLine > 0 {
			end = fn.EndLine
		} else {
			for _, j := range order[pos+1:] {
				next := fns[j]
				if next.Line <= fn.Line || isMember(next.QualifiedName, fn.QualifiedName) {
					continue
				}
				end = next.Line - 1
				break
			}
			for end > start && end <= len(lines) && strings.TrimSpace(lines[end-1]) == "" {
				end--
			}
		}

		end = clamp(end, start, n)
		ranges[i] = types.LineRange{Start: start, End: end}
	}
	return ranges
}

// isMember reports whether qualified names a member of parent
func isMember(qualified, parent string) bool {
	return strings.HasPrefix(qualified, parent+".")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
