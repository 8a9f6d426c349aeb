package contextpack

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/dshills/ctxpack/pkg/types"
)

// ChangedLines maps a slash-separated file path to the new-side line
// ranges touched by a diff, sorted and merged
type ChangedLines map[string][]types.LineRange

// Files returns the changed paths in sorted order
func (c ChangedLines) Files() []string {
	files := make([]string, 0, len(c))
	for f := range c {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// ParseDiff reads a unified diff and collects the touched lines of each
// file on the new side. A pure deletion marks the line that now sits where
// the removed lines were. Deleted files are skipped.
func ParseDiff(unified []byte) (ChangedLines, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(unified)
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}

	changed := make(ChangedLines)
	for _, fd := range fileDiffs {
		name := diffPath(fd.NewName)
		if name == "" {
			continue
		}
		var lines []int
		for _, h := range fd.Hunks {
			lines = append(lines, hunkLines(h)...)
		}
		if len(lines) > 0 {
			changed[name] = append(changed[name], mergeLines(lines)...)
		}
	}
	for f, ranges := range changed {
		changed[f] = mergeRanges(ranges)
	}
	return changed, nil
}

// diffPath strips the a/ b/ prefixes git adds; /dev/null yields ""
func diffPath(name string) string {
	if name == "" || name == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		name = name[2:]
	}
	return strings.TrimPrefix(name, "./")
}

// hunkLines walks a hunk body and returns new-side line numbers of added
// lines plus the anchor line of each deletion
func hunkLines(h *diff.Hunk) []int {
	var lines []int
	cur := int(h.NewStartLine)
	for _, raw := range bytes.Split(h.Body, []byte{'\n'}) {
		if len(raw) == 0 {
			continue
		}
		switch raw[0] {
		case '+':
			lines = append(lines, cur)
			cur++
		case '-':
			lines = append(lines, max(1, cur))
		case '\\':
			// "\ No newline at end of file"
		default:
			cur++
		}
	}
	return lines
}

// mergeLines turns line numbers into contiguous ranges
func mergeLines(lines []int) []types.LineRange {
	sort.Ints(lines)
	var out []types.LineRange
	for _, l := range lines {
		if n := len(out); n > 0 && l <= out[n-1].End+1 {
			out[n-1].End = max(out[n-1].End, l)
			continue
		}
		out = append(out, types.LineRange{Start: l, End: l})
	}
	return out
}

func mergeRanges(ranges []types.LineRange) []types.LineRange {
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
	var out []types.LineRange
	for _, r := range ranges {
		if n := len(out); n > 0 && r.Start <= out[n-1].End+1 {
			out[n-1].End = max(out[n-1].End, r.End)
			continue
		}
		out = append(out, r)
	}
	return out
}

// clipRanges returns the parts of ranges that fall inside bounds
func clipRanges(ranges []types.LineRange, bounds types.LineRange) []types.LineRange {
	var out []types.LineRange
	for _, r := range ranges {
		if !r.Overlaps(bounds) {
			continue
		}
		out = append(out, types.LineRange{Start: max(r.Start, bounds.Start), End: min(r.End, bounds.End)})
	}
	return out
}
