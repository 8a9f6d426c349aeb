package types

// CodeBlock is a contiguous sub-range of one symbol's body
type CodeBlock struct {
	StartLine     int
	EndLine       int
	Text          string
	TokenEstimate int
	Score         int
	MustKeep      bool
}

// Lines returns the block's line range
func (b CodeBlock) Lines() LineRange {
	return LineRange{Start: b.StartLine, End: b.EndLine}
}
