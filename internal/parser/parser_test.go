package parser

import (
	"strings"
	"testing"

	"github.com/dshills/ctxpack/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSample = `package testpkg

// User represents a user
type User struct {
	ID   int
	Name string
}

// GetName returns the user's name
func (u *User) GetName() string {
	return strings.TrimSpace(u.Name)
}

// NewUser creates a new user
func NewUser(id int, name string) *User {
	u := &User{ID: id, Name: name}
	u.GetName()
	return u
}
`

const pySample = `import os


class Greeter(Base):
    """Says hello."""

    def greet(self, name: str) -> str:
        return self.format(name)

    def format(self, name):
        return "Hello, %s" % name.strip()


def main():
    g = Greeter()
    print(g.greet("x"))

    def inner():
        return helper()
    return inner


async def fetch(url,
                timeout=3):
    """Fetch a URL.

    Retries once.
    """
    return await client.get(url)
`

func findFunction(t *testing.T, fns []types.FunctionInfo, qualified string) types.FunctionInfo {
	t.Helper()
	for _, fn := range fns {
		if fn.QualifiedName == qualified {
			return fn
		}
	}
	require.Failf(t, "function not found", "%s", qualified)
	return types.FunctionInfo{}
}

func TestGoAdapter_Parse(t *testing.T) {
	res, err := NewGoAdapter().Parse([]byte(goSample))
	require.NoError(t, err)
	assert.Equal(t, LanguageGo, res.Language)
	require.Len(t, res.Functions, 3)

	user := findFunction(t, res.Functions, "User")
	assert.Equal(t, types.KindClass, user.Kind)
	assert.Equal(t, 4, user.Line)
	assert.Equal(t, 7, user.EndLine)
	assert.Equal(t, "User represents a user", user.Docstring)
	assert.Contains(t, user.Signature, "2 fields")

	getName := findFunction(t, res.Functions, "User.GetName")
	assert.Equal(t, types.KindMethod, getName.Kind)
	assert.Equal(t, "GetName", getName.Name)
	assert.Equal(t, "func (u *User) GetName() string", getName.Signature)
	assert.Equal(t, 10, getName.Line)
	assert.Equal(t, 12, getName.EndLine)
	assert.Equal(t, "GetName returns the user's name", getName.Docstring)

	newUser := findFunction(t, res.Functions, "NewUser")
	assert.Equal(t, types.KindFunction, newUser.Kind)
	assert.Equal(t, "func NewUser(id int, name string) *User", newUser.Signature)
	assert.Equal(t, []string{"id int", "name string"}, newUser.Params)
	assert.Equal(t, "*User", newUser.ReturnType)
}

func TestExtractFunctions(t *testing.T) {
	fns, err := ExtractFunctions(NewPythonAdapter(), []byte(pySample))
	require.NoError(t, err)
	assert.Equal(t, types.KindMethod, findFunction(t, fns, "Greeter.format").Kind)
	assert.Equal(t, types.KindFunction, findFunction(t, fns, "fetch").Kind)

	_, err = ExtractFunctions(NewGoAdapter(), []byte("package broken\nfunc {"))
	assert.Error(t, err)
}

func TestGoAdapter_Calls(t *testing.T) {
	calls, err := ExtractCalls(NewGoAdapter(), []byte(goSample))
	require.NoError(t, err)

	assert.Equal(t, []types.Call{
		{Caller: "User.GetName", Callee: "TrimSpace", Receiver: "strings"},
		{Caller: "NewUser", Callee: "GetName", Receiver: "u"},
	}, calls)
}

func TestGoAdapter_GenericCall(t *testing.T) {
	src := `package p

func Map[T any](xs []T) []T { return xs }

func use() {
	Map[int](nil)
}
`
	calls, err := ExtractCalls(NewGoAdapter(), []byte(src))
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "Map", calls[0].Callee)
}

func TestGoAdapter_SyntaxError(t *testing.T) {
	src := `package broken

func Valid() {}

func Broken( {
`
	_, err := NewGoAdapter().Parse([]byte(src))
	assert.Error(t, err)
}

func TestGoAdapter_SegmentBlocks(t *testing.T) {
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

	blocks, err := NewGoAdapter().SegmentBlocks(snippet, 20)
	require.NoError(t, err)
	require.Len(t, blocks, 6)

	starts := make([]int, len(blocks))
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		starts[i] = b.StartLine
		texts[i] = b.Text
	}
	assert.Equal(t, []int{20, 21, 23, 26, 29, 30}, starts)
	assert.Equal(t, 22, blocks[1].EndLine)
	assert.Equal(t, "\ttotal := 0\n\tcount := 0", blocks[1].Text)
	assert.Equal(t, snippet, strings.Join(texts, "\n"))
}

func TestGoAdapter_SegmentBlocksUnsupported(t *testing.T) {
	_, err := NewGoAdapter().SegmentBlocks("type X struct{}", 1)
	assert.ErrorIs(t, err, types.ErrUnsupported)

	_, err = NewGoAdapter().SegmentBlocks("func broken( {", 1)
	assert.ErrorIs(t, err, types.ErrUnsupported)
}

func TestPythonAdapter_Parse(t *testing.T) {
	res, err := NewPythonAdapter().Parse([]byte(pySample))
	require.NoError(t, err)
	assert.Equal(t, LanguagePython, res.Language)

	names := make([]string, 0, len(res.Functions))
	for _, fn := range res.Functions {
		names = append(names, fn.QualifiedName)
	}
	assert.Equal(t, []string{"Greeter", "Greeter.greet", "Greeter.format", "main", "fetch"}, names)

	greeter := findFunction(t, res.Functions, "Greeter")
	assert.Equal(t, types.KindClass, greeter.Kind)
	assert.Equal(t, 4, greeter.Line)
	assert.Equal(t, "class Greeter(Base)", greeter.Signature)
	assert.Equal(t, "Says hello.", greeter.Docstring)

	greet := findFunction(t, res.Functions, "Greeter.greet")
	assert.Equal(t, types.KindMethod, greet.Kind)
	assert.Equal(t, 7, greet.Line)
	assert.Equal(t, "def greet(self, name: str) -> str", greet.Signature)
	assert.Equal(t, []string{"self", "name: str"}, greet.Params)
	assert.Equal(t, "str", greet.ReturnType)

	fetch := findFunction(t, res.Functions, "fetch")
	assert.Equal(t, types.KindFunction, fetch.Kind)
	assert.Equal(t, 23, fetch.Line)
	assert.Equal(t, "async def fetch(url, timeout=3)", fetch.Signature)
	assert.Equal(t, []string{"url", "timeout=3"}, fetch.Params)
	assert.Equal(t, "Fetch a URL.\n\nRetries once.", fetch.Docstring)
}

func TestPythonAdapter_Calls(t *testing.T) {
	calls, err := ExtractCalls(NewPythonAdapter(), []byte(pySample))
	require.NoError(t, err)

	assert.Equal(t, []types.Call{
		{Caller: "Greeter.greet", Callee: "format", Receiver: "self"},
		{Caller: "Greeter.format", Callee: "strip", Receiver: "name"},
		{Caller: "main", Callee: "Greeter"},
		{Caller: "main", Callee: "print"},
		{Caller: "main", Callee: "greet", Receiver: "g"},
		{Caller: "main", Callee: "helper"},
		{Caller: "fetch", Callee: "get", Receiver: "client"},
	}, calls)
}

func TestPythonAdapter_Binary(t *testing.T) {
	_, err := NewPythonAdapter().Parse([]byte{0xff, 0xfe, 0x00})
	assert.Error(t, err)
}

func TestPythonAdapter_SegmentUnsupported(t *testing.T) {
	_, err := NewPythonAdapter().SegmentBlocks("def f():\n    pass", 1)
	assert.ErrorIs(t, err, types.ErrUnsupported)
}

func TestSplitPySignature(t *testing.T) {
	params, ret := splitPySignature("def f(a, b: Dict[str, int] = {}, *args) -> Optional[int]")
	assert.Equal(t, []string{"a", "b: Dict[str, int] = {}", "*args"}, params)
	assert.Equal(t, "Optional[int]", ret)

	params, ret = splitPySignature("def g()")
	assert.Empty(t, params)
	assert.Empty(t, ret)
}

func TestIndentWidth(t *testing.T) {
	assert.Equal(t, 0, IndentWidth("x"))
	assert.Equal(t, 4, IndentWidth("    x"))
	assert.Equal(t, 10, IndentWidth("\t  x"))
	assert.Equal(t, 3, IndentWidth("   "))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	a, err := reg.ForFile("pkg/service.py")
	require.NoError(t, err)
	assert.Equal(t, LanguagePython, a.Language())

	g1, err := reg.For("go")
	require.NoError(t, err)
	g2, err := reg.ForFile("main.GO")
	require.NoError(t, err)
	assert.Same(t, g1, g2)

	_, err = reg.For("rust")
	assert.ErrorIs(t, err, types.ErrUnsupportedLanguage)

	_, err = reg.ForFile("README.md")
	assert.ErrorIs(t, err, types.ErrUnsupportedLanguage)

	exts, err := reg.Extensions("")
	require.NoError(t, err)
	assert.Equal(t, []string{".go", ".py", ".pyi"}, exts)

	exts, err = reg.Extensions(LanguagePython)
	require.NoError(t, err)
	assert.Equal(t, []string{".py", ".pyi"}, exts)
}
