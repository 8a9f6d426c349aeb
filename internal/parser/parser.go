package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/dshills/ctxpack/pkg/types"
)

// GoAdapter handles AST-based parsing of Go source files
type GoAdapter struct{}

// NewGoAdapter creates a new Go adapter
func NewGoAdapter() *GoAdapter {
	return &GoAdapter{}
}

// Language implements Adapter
func (p *GoAdapter) Language() string {
	return LanguageGo
}

// Parse extracts functions, methods, types and call sites from Go source.
// Syntax errors are fatal for the file: a partial AST would register
// symbols with wrong ranges.
func (p *GoAdapter) Parse(source []byte) (*types.ParseResult, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", source, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}

	extractor := &symbolExtractor{
		fset:   fset,
		result: &types.ParseResult{Language: LanguageGo},
	}

	// Top-level declarations only; nested function literals belong to
	// their enclosing declaration
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			extractor.extractFunction(d)
		case *ast.GenDecl:
			extractor.extractGenDecl(d)
		}
	}

	return extractor.result, nil
}

// symbolExtractor collects symbols and calls from a parsed file
type symbolExtractor struct {
	fset   *token.FileSet
	result *types.ParseResult
}

// extractFunction extracts function and method declarations and their calls
func (e *symbolExtractor) extractFunction(funcDecl *ast.FuncDecl) {
	info := types.FunctionInfo{
		Name:          funcDecl.Name.Name,
		QualifiedName: funcDecl.Name.Name,
		Kind:          types.KindFunction,
		Docstring:     e.extractDocComment(funcDecl.Doc),
		Line:          e.line(funcDecl.Pos()),
		EndLine:       e.line(funcDecl.End()),
		Signature:     e.extractFunctionSignature(funcDecl),
		Params:        e.fieldListToSlice(funcDecl.Type.Params),
		ReturnType:    e.fieldListToString(funcDecl.Type.Results),
	}

	// Determine if this is a method or function
	if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
		if recv := e.extractReceiverType(funcDecl.Recv.List[0].Type); recv != "" {
			info.Kind = types.KindMethod
			info.QualifiedName = recv + "." + info.Name
		}
	}

	e.result.Functions = append(e.result.Functions, info)

	if funcDecl.Body != nil {
		e.extractCalls(info.QualifiedName, funcDecl.Body)
	}
}

// extractCalls records every call expression inside body
func (e *symbolExtractor) extractCalls(caller string, body *ast.BlockStmt) {
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		switch fn := call.Fun.(type) {
		case *ast.Ident:
			e.result.Calls = append(e.result.Calls, types.Call{Caller: caller, Callee: fn.Name})
		case *ast.SelectorExpr:
			e.result.Calls = append(e.result.Calls, types.Call{
				Caller:   caller,
				Callee:   fn.Sel.Name,
				Receiver: e.selectorReceiver(fn.X),
			})
		case *ast.IndexExpr:
			// Generic instantiation: Map[int](...)
			if ident, ok := fn.X.(*ast.Ident); ok {
				e.result.Calls = append(e.result.Calls, types.Call{Caller: caller, Callee: ident.Name})
			}
		}
		return true
	})
}

// selectorReceiver renders the qualifier of a selector call when it is a
// plain identifier chain; anything more complex yields ""
func (e *symbolExtractor) selectorReceiver(expr ast.Expr) string {
	switch x := expr.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.SelectorExpr:
		inner := e.selectorReceiver(x.X)
		if inner == "" {
			return ""
		}
		return inner + "." + x.Sel.Name
	default:
		return ""
	}
}

// extractGenDecl extracts struct and interface declarations as class symbols
func (e *symbolExtractor) extractGenDecl(genDecl *ast.GenDecl) {
	if genDecl.Tok != token.TYPE {
		return
	}
	for _, spec := range genDecl.Specs {
		typeSpec, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}

		doc := typeSpec.Doc
		if doc == nil && len(genDecl.Specs) == 1 {
			doc = genDecl.Doc
		}

		var signature string
		switch t := typeSpec.Type.(type) {
		case *ast.StructType:
			signature = e.extractStructSignature(typeSpec.Name.Name, t)
		case *ast.InterfaceType:
			signature = e.extractInterfaceSignature(typeSpec.Name.Name, t)
		default:
			signature = fmt.Sprintf("type %s %s", typeSpec.Name.Name, e.exprToString(typeSpec.Type))
		}

		start := typeSpec.Pos()
		if len(genDecl.Specs) == 1 {
			start = genDecl.Pos()
		}

		e.result.Functions = append(e.result.Functions, types.FunctionInfo{
			Name:          typeSpec.Name.Name,
			QualifiedName: typeSpec.Name.Name,
			Kind:          types.KindClass,
			Signature:     signature,
			Docstring:     e.extractDocComment(doc),
			Line:          e.line(start),
			EndLine:       e.line(typeSpec.End()),
		})
	}
}

// extractReceiverType extracts the receiver type name from a method
func (e *symbolExtractor) extractReceiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return e.extractReceiverType(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return e.extractReceiverType(t.X)
	case *ast.IndexListExpr:
		return e.extractReceiverType(t.X)
	}
	return ""
}

// extractFunctionSignature builds a function signature string
func (e *symbolExtractor) extractFunctionSignature(funcDecl *ast.FuncDecl) string {
	var sig strings.Builder

	sig.WriteString("func ")

	// Add receiver for methods
	if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
		sig.WriteString("(")
		sig.WriteString(e.fieldListToString(funcDecl.Recv))
		sig.WriteString(") ")
	}

	sig.WriteString(funcDecl.Name.Name)

	// Parameters
	sig.WriteString("(")
	sig.WriteString(e.fieldListToString(funcDecl.Type.Params))
	sig.WriteString(")")

	// Results
	if funcDecl.Type.Results != nil {
		results := e.fieldListToString(funcDecl.Type.Results)
		if results != "" {
			if funcDecl.Type.Results.NumFields() > 1 || len(funcDecl.Type.Results.List[0].Names) > 0 {
				sig.WriteString(" (")
				sig.WriteString(results)
				sig.WriteString(")")
			} else {
				sig.WriteString(" ")
				sig.WriteString(results)
			}
		}
	}

	return sig.String()
}

// extractStructSignature builds a struct signature string
func (e *symbolExtractor) extractStructSignature(name string, structType *ast.StructType) string {
	fieldCount := 0
	if structType.Fields != nil {
		fieldCount = structType.Fields.NumFields()
	}
	return fmt.Sprintf("type %s struct { ... } // %d fields", name, fieldCount)
}

// extractInterfaceSignature builds an interface signature string
func (e *symbolExtractor) extractInterfaceSignature(name string, interfaceType *ast.InterfaceType) string {
	methodCount := 0
	if interfaceType.Methods != nil {
		methodCount = interfaceType.Methods.NumFields()
	}
	return fmt.Sprintf("type %s interface { ... } // %d methods", name, methodCount)
}

// fieldListToSlice renders each parameter separately
func (e *symbolExtractor) fieldListToSlice(fieldList *ast.FieldList) []string {
	if fieldList == nil || len(fieldList.List) == 0 {
		return nil
	}

	var parts []string
	for _, field := range fieldList.List {
		typeStr := e.exprToString(field.Type)
		if len(field.Names) > 0 {
			for _, name := range field.Names {
				parts = append(parts, fmt.Sprintf("%s %s", name.Name, typeStr))
			}
		} else {
			parts = append(parts, typeStr)
		}
	}
	return parts
}

// fieldListToString converts a field list to a string representation
func (e *symbolExtractor) fieldListToString(fieldList *ast.FieldList) string {
	return strings.Join(e.fieldListToSlice(fieldList), ", ")
}

// exprToString converts an expression to a string representation
func (e *symbolExtractor) exprToString(expr ast.Expr) string {
	if expr == nil {
		return ""
	}

	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + e.exprToString(t.X)
	case *ast.ArrayType:
		if t.Len != nil {
			return "[" + e.exprToString(t.Len) + "]" + e.exprToString(t.Elt)
		}
		return "[]" + e.exprToString(t.Elt)
	case *ast.BasicLit:
		return t.Value
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", e.exprToString(t.Key), e.exprToString(t.Value))
	case *ast.ChanType:
		return "chan " + e.exprToString(t.Value)
	case *ast.FuncType:
		sig := "func(" + e.fieldListToString(t.Params) + ")"
		if results := e.fieldListToString(t.Results); results != "" {
			sig += " " + results
		}
		return sig
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.StructType:
		return "struct{...}"
	case *ast.SelectorExpr:
		return e.exprToString(t.X) + "." + t.Sel.Name
	case *ast.Ellipsis:
		return "..." + e.exprToString(t.Elt)
	case *ast.IndexExpr:
		return e.exprToString(t.X) + "[" + e.exprToString(t.Index) + "]"
	case *ast.IndexListExpr:
		args := make([]string, 0, len(t.Indices))
		for _, idx := range t.Indices {
			args = append(args, e.exprToString(idx))
		}
		return e.exprToString(t.X) + "[" + strings.Join(args, ", ") + "]"
	default:
		return "..."
	}
}

// extractDocComment extracts documentation from a comment group
func (e *symbolExtractor) extractDocComment(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}

// line converts a token position to a 1-based line number
func (e *symbolExtractor) line(pos token.Pos) int {
	return e.fset.Position(pos).Line
}
