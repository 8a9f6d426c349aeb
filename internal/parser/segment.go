package parser

import (
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strings"

	"github.com/dshills/ctxpack/pkg/types"
)

// goSnippetPrefix turns a declaration snippet into a parseable file
const goSnippetPrefix = "package p\n"

// SegmentBlocks groups the top-level statements of a Go function body into
// blocks. The signature up to the opening brace is one block, each compound
// statement (if/for/switch/select/nested block) is its own block, runs of
// simple statements are merged, and the closing brace stands alone.
// Blank and comment lines attach to the preceding block.
func (p *GoAdapter) SegmentBlocks(source string, firstLine int) ([]types.CodeBlock, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", goSnippetPrefix+source, parser.ParseComments)
	if err != nil || len(file.Decls) != 1 {
		return nil, types.ErrUnsupported
	}
	funcDecl, ok := file.Decls[0].(*ast.FuncDecl)
	if !ok || funcDecl.Body == nil {
		return nil, types.ErrUnsupported
	}

	lines := strings.Split(strings.TrimRight(source, "\n"), "\n")
	// snippet-relative line (1-based) of a position
	rel := func(pos token.Pos) int {
		return fset.Position(pos).Line - 1
	}

	type span struct {
		start, end int
		compound   bool
	}

	spans := []span{{start: 1, end: rel(funcDecl.Body.Lbrace), compound: true}}
	for _, stmt := range funcDecl.Body.List {
		s := span{start: rel(stmt.Pos()), end: rel(stmt.End()), compound: isCompound(stmt)}
		last := &spans[len(spans)-1]
		switch {
		case s.start <= last.end:
			// shares a line with the previous block
			if s.end > last.end {
				last.end = s.end
			}
		case !s.compound && !last.compound:
			last.end = s.end
		default:
			spans = append(spans, s)
		}
	}
	if rbrace := rel(funcDecl.Body.Rbrace); rbrace > spans[len(spans)-1].end {
		spans = append(spans, span{start: rbrace, end: rbrace, compound: true})
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	// Extend each block to the line before the next so coverage is contiguous
	blocks := make([]types.CodeBlock, 0, len(spans))
	for i, s := range spans {
		end := len(lines)
		if i+1 < len(spans) {
			end = spans[i+1].start - 1
		}
		if end > len(lines) {
			end = len(lines)
		}
		if end < s.start {
			end = s.start
		}
		blocks = append(blocks, types.CodeBlock{
			StartLine: firstLine + s.start - 1,
			EndLine:   firstLine + end - 1,
			Text:      strings.Join(lines[s.start-1:end], "\n"),
		})
	}

	return blocks, nil
}

// isCompound reports statements that open their own nesting level
func isCompound(stmt ast.Stmt) bool {
	switch s := stmt.(type) {
	case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt, *ast.SwitchStmt,
		*ast.TypeSwitchStmt, *ast.SelectStmt, *ast.BlockStmt:
		return true
	case *ast.LabeledStmt:
		return isCompound(s.Stmt)
	case *ast.GoStmt:
		_, lit := s.Call.Fun.(*ast.FuncLit)
		return lit
	case *ast.DeferStmt:
		_, lit := s.Call.Fun.(*ast.FuncLit)
		return lit
	default:
		return false
	}
}
