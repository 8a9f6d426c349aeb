package parser

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dshills/ctxpack/pkg/types"
)

var (
	pyDefPattern    = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)
	pyClassPattern  = regexp.MustCompile(`^(\s*)class\s+([A-Za-z_]\w*)\s*[(:]`)
	pyCallPattern   = regexp.MustCompile(`([A-Za-z_][\w.]*)\s*\(`)
	pyStringPattern = regexp.MustCompile(`"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`)
	pyDocOpen       = regexp.MustCompile(`^[rRuUbB]{0,2}("""|''')`)

	errBinarySource = errors.New("source is not valid UTF-8 text")
)

// pyKeywords never name a callable even when followed by a parenthesis
var pyKeywords = map[string]bool{
	"if": true, "elif": true, "while": true, "for": true, "return": true,
	"not": true, "and": true, "or": true, "in": true, "is": true,
	"def": true, "class": true, "lambda": true, "with": true, "assert": true,
	"yield": true, "except": true, "raise": true, "del": true, "await": true,
	"import": true, "from": true, "as": true, "else": true, "print": false,
}

// PythonAdapter scans Python source by indentation. It has no grammar, so
// SegmentBlocks is unsupported and callers fall back to indentation
// segmentation.
type PythonAdapter struct{}

// NewPythonAdapter creates a new Python adapter
func NewPythonAdapter() *PythonAdapter {
	return &PythonAdapter{}
}

// Language implements Adapter
func (p *PythonAdapter) Language() string {
	return LanguagePython
}

// SegmentBlocks implements Adapter
func (p *PythonAdapter) SegmentBlocks(string, int) ([]types.CodeBlock, error) {
	return nil, types.ErrUnsupported
}

type pyFrame struct {
	indent    int
	qualified string
	kind      types.SymbolKind
}

// Parse extracts top-level functions, classes, methods and call sites.
// Functions nested inside functions are part of their parent's body.
func (p *PythonAdapter) Parse(source []byte) (*types.ParseResult, error) {
	if !utf8.Valid(source) || bytes.IndexByte(source, 0) >= 0 {
		return nil, errBinarySource
	}

	lines := strings.Split(string(source), "\n")
	result := &types.ParseResult{Language: LanguagePython}

	var stack []pyFrame
	inString := ""

	for i := 0; i < len(lines); i++ {
		raw := lines[i]

		if inString != "" {
			if strings.Count(raw, inString)%2 == 1 {
				inString = ""
			}
			continue
		}

		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		indent := indentWidth(raw)
		for len(stack) > 0 && indent <= stack[len(stack)-1].indent {
			stack = stack[:len(stack)-1]
		}

		classMatch := pyClassPattern.FindStringSubmatch(raw)
		defMatch := pyDefPattern.FindStringSubmatch(raw)
		if classMatch != nil || defMatch != nil {
			if len(stack) > 0 && stack[len(stack)-1].kind != types.KindClass {
				// nested inside a function: body text, not a symbol
				i = signatureEnd(lines, i)
				continue
			}

			name := ""
			kind := types.KindFunction
			if classMatch != nil {
				name = classMatch[2]
				kind = types.KindClass
			} else {
				name = defMatch[2]
				if len(stack) > 0 {
					kind = types.KindMethod
				}
			}

			qualified := name
			if len(stack) > 0 {
				qualified = stack[len(stack)-1].qualified + "." + name
			}

			end := signatureEnd(lines, i)
			signature := joinSignature(lines[i : end+1])
			info := types.FunctionInfo{
				Name:          name,
				QualifiedName: qualified,
				Kind:          kind,
				Signature:     signature,
				Line:          i + 1,
			}
			if kind != types.KindClass {
				info.Params, info.ReturnType = splitPySignature(signature)
			}

			doc, docEnd := extractPyDocstring(lines, end+1)
			info.Docstring = doc
			if docEnd > end {
				end = docEnd
			}

			result.Functions = append(result.Functions, info)
			stack = append(stack, pyFrame{indent: indent, qualified: qualified, kind: kind})
			i = end
			continue
		}

		if caller := innermostFunction(stack); caller != "" {
			result.Calls = append(result.Calls, scanPyCalls(caller, trimmed)...)
		}

		for _, delim := range []string{`"""`, `'''`} {
			if strings.Count(raw, delim)%2 == 1 {
				inString = delim
				break
			}
		}
	}

	return result, nil
}

// innermostFunction returns the qualified name of the nearest enclosing
// function or method, or "" in class or module scope
func innermostFunction(stack []pyFrame) string {
	if len(stack) == 0 {
		return ""
	}
	top := stack[len(stack)-1]
	if top.kind == types.KindClass {
		return ""
	}
	return top.qualified
}

// scanPyCalls finds call expressions on one code line
func scanPyCalls(caller, line string) []types.Call {
	code := pyStringPattern.ReplaceAllString(line, `""`)
	if idx := strings.Index(code, "#"); idx >= 0 {
		code = code[:idx]
	}

	var calls []types.Call
	for _, m := range pyCallPattern.FindAllStringSubmatch(code, -1) {
		expr := m[1]
		receiver := ""
		callee := expr
		if dot := strings.LastIndex(expr, "."); dot >= 0 {
			receiver = expr[:dot]
			callee = expr[dot+1:]
		}
		if callee == "" || (receiver == "" && pyKeywords[callee]) {
			continue
		}
		calls = append(calls, types.Call{Caller: caller, Callee: callee, Receiver: receiver})
	}
	return calls
}

// signatureEnd returns the index of the line that closes a def/class header
func signatureEnd(lines []string, start int) int {
	depth := 0
	for i := start; i < len(lines) && i < start+50; i++ {
		code := pyStringPattern.ReplaceAllString(lines[i], `""`)
		if idx := strings.Index(code, "#"); idx >= 0 {
			code = code[:idx]
		}
		depth += strings.Count(code, "(") + strings.Count(code, "[") -
			strings.Count(code, ")") - strings.Count(code, "]")
		if depth <= 0 && strings.HasSuffix(strings.TrimSpace(code), ":") {
			return i
		}
	}
	return start
}

// joinSignature collapses a possibly multi-line header into one line
func joinSignature(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if idx := strings.Index(l, "#"); idx >= 0 && !strings.ContainsAny(l[:idx], `"'`) {
			l = l[:idx]
		}
		if t := strings.TrimSpace(l); t != "" {
			parts = append(parts, t)
		}
	}
	sig := strings.Join(parts, " ")
	sig = strings.TrimSuffix(strings.TrimSpace(sig), ":")
	sig = strings.ReplaceAll(sig, "( ", "(")
	sig = strings.ReplaceAll(sig, " )", ")")
	return sig
}

// splitPySignature pulls parameters and the return annotation out of a
// "def name(params) -> ret" header
func splitPySignature(signature string) ([]string, string) {
	open := strings.Index(signature, "(")
	if open < 0 {
		return nil, ""
	}
	depth := 0
	closeIdx := -1
	var params []string
	last := open + 1
	for i := open; i < len(signature); i++ {
		switch signature[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				closeIdx = i
			}
		case ',':
			if depth == 1 {
				params = appendParam(params, signature[last:i])
				last = i + 1
			}
		}
		if closeIdx >= 0 {
			break
		}
	}
	if closeIdx < 0 {
		return params, ""
	}
	params = appendParam(params, signature[last:closeIdx])

	returnType := ""
	if rest := signature[closeIdx+1:]; strings.Contains(rest, "->") {
		returnType = strings.TrimSpace(rest[strings.Index(rest, "->")+2:])
	}
	return params, returnType
}

func appendParam(params []string, p string) []string {
	if p = strings.TrimSpace(p); p != "" {
		params = append(params, p)
	}
	return params
}

// extractPyDocstring reads a docstring starting at the first non-blank line
// at or after start. Returns the text and the index of its closing line,
// or -1 when there is none.
func extractPyDocstring(lines []string, start int) (string, int) {
	i := start
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i >= len(lines) {
		return "", -1
	}

	first := strings.TrimSpace(lines[i])
	m := pyDocOpen.FindStringSubmatch(first)
	if m == nil {
		return "", -1
	}
	delim := m[1]
	body := first[len(m[0]):]

	if idx := strings.Index(body, delim); idx >= 0 {
		return strings.TrimSpace(body[:idx]), i
	}

	parts := []string{body}
	for j := i + 1; j < len(lines); j++ {
		if idx := strings.Index(lines[j], delim); idx >= 0 {
			parts = append(parts, lines[j][:idx])
			return strings.TrimSpace(dedent(parts)), j
		}
		parts = append(parts, lines[j])
	}
	// unterminated docstring: treat as absent
	return "", -1
}

// dedent trims common leading whitespace from docstring continuation lines
func dedent(parts []string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return strings.Join(out, "\n")
}

// indentWidth counts leading whitespace, expanding tabs to 8 columns
func indentWidth(line string) int {
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 8 - width%8
		default:
			return width
		}
	}
	return width
}

// IndentWidth is exported for the indentation-based segmentation fallback
func IndentWidth(line string) int {
	return indentWidth(line)
}
