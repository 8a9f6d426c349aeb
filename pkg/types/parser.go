package types

// FunctionInfo is what a language adapter reports for each function, method or class
type FunctionInfo struct {
	Name          string
	QualifiedName string // Class.method, Recv.Method, or Name for top-level symbols
	Kind          SymbolKind
	Params        []string
	ReturnType    string
	Signature     string
	Docstring     string
	Line          int
	EndLine       int // 0 when the adapter cannot tell; ranges are then computed
}

// Call is a call site reported by an adapter.
// Caller is the qualified name of the enclosing function; Callee is the raw
// name being called. Receiver holds the qualifier in front of the callee
// ("self", "utils", "fmt"), empty for bare calls.
type Call struct {
	Caller   string
	Callee   string
	Receiver string
}

// ParseError represents an error that occurred during parsing
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	if pe.File == "" {
		return pe.Message
	}
	return pe.File + ": " + pe.Message
}

// ParseResult is the output of one adapter pass over a source file
type ParseResult struct {
	Language  string
	Functions []FunctionInfo
	Calls     []Call

	// Errors encountered during parsing
	Errors []ParseError
}

// HasErrors returns true if any parsing errors occurred
func (pr *ParseResult) HasErrors() bool {
	return len(pr.Errors) > 0
}

// AddError adds a parsing error to the result
func (pr *ParseResult) AddError(file string, line, col int, msg string) {
	pr.Errors = append(pr.Errors, ParseError{
		File:    file,
		Line:    line,
		Column:  col,
		Message: msg,
	})
}
