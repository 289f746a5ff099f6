package codegen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polysubml/polysubml/internal/codegen"
	"github.com/polysubml/polysubml/internal/parser"
	"github.com/polysubml/polysubml/internal/token"
)

func compile(t *testing.T, src string) string {
	t.Helper()
	p, err := parser.New(token.SourceID(0), src)
	require.Nil(t, err)
	prog, err := p.ParseProgram()
	require.Nil(t, err)

	b := codegen.NewBuilder()
	return codegen.CompileProgram(b, prog).ToSource()
}

func TestCompileSimpleLetAndPrintln(t *testing.T) {
	out := compile(t, `let x = 1
println(x)`)
	require.Contains(t, out, "p.println(")
	require.Contains(t, out, "1n")
}

func TestCompileFunctionCall(t *testing.T) {
	out := compile(t, `let id = fun (x) => x
println(id(1))`)
	require.Contains(t, out, "=> ")
	require.Contains(t, out, "p.println(")
}

func TestCompileRecordFieldAccess(t *testing.T) {
	out := compile(t, `let r = {x = 1, y = 2}
println(r.x)`)
	require.Contains(t, out, "'x': 1n")
	require.Contains(t, out, ".x")
}

func TestCompileMatchLowersToTernary(t *testing.T) {
	out := compile(t, "let v = `Some 1\nlet n = match v with { | `Some x => x | `None _ => 0 }\nprintln(n)")
	require.Contains(t, out, " ? ")
	require.Contains(t, out, " === ")
	require.True(t, strings.Contains(out, "$tag") || strings.Contains(out, "'Some'"))
}

func TestCompileIfLowersToTernary(t *testing.T) {
	out := compile(t, `let x = if true then 1 else 2
println(x)`)
	require.Contains(t, out, " ? ")
	require.Contains(t, out, " : ")
}
