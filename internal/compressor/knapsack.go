package compressor

import (
	"sort"

	"github.com/dshills/ctxpack/pkg/types"
)

// SelectBlocks picks the block indices to keep within budget tokens.
// Must-keep blocks are always selected and their cost is debited first,
// clamping the remainder at zero. The optional blocks are then chosen by
// an exact 0/1 knapsack on Score; among equal-score solutions the one
// keeping earlier blocks wins. Returned indices are in source order.
func SelectBlocks(blocks []types.CodeBlock, budget int) []int {
	residual := budget
	var keep, optional []int
	optionalCost := 0
	for i, b := range blocks {
		if b.MustKeep {
			keep = append(keep, i)
			residual -= b.TokenEstimate
		} else {
			optional = append(optional, i)
			optionalCost += b.TokenEstimate
		}
	}
	if residual < 0 {
		residual = 0
	}

	if optionalCost <= residual {
		keep = append(keep, optional...)
		sort.Ints(keep)
		return keep
	}

	keep = append(keep, knapsack(blocks, optional, residual)...)
	sort.Ints(keep)
	return keep
}

// knapsack solves the 0/1 problem over items (indices into blocks) and
// returns the chosen indices
func knapsack(blocks []types.CodeBlock, items []int, capacity int) []int {
	n := len(items)
	dp := make([][]int, n+1)
	for k := range dp {
		dp[k] = make([]int, capacity+1)
	}

	for k := 1; k <= n; k++ {
		b := blocks[items[k-1]]
		for w := 0; w <= capacity; w++ {
			dp[k][w] = dp[k-1][w]
			if b.TokenEstimate <= w {
				if v := dp[k-1][w-b.TokenEstimate] + b.Score; v > dp[k][w] {
					dp[k][w] = v
				}
			}
		}
	}

	// Walk back from the last item; on a tie the later item is left out
	// so capacity goes to earlier blocks
	var chosen []int
	w := capacity
	for k := n; k >= 1; k-- {
		if dp[k][w] != dp[k-1][w] {
			chosen = append(chosen, items[k-1])
			w -= blocks[items[k-1]].TokenEstimate
		}
	}
	return chosen
}
