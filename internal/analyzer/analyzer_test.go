package analyzer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polysubml/polysubml/internal/analyzer"
	"github.com/polysubml/polysubml/internal/parser"
	"github.com/polysubml/polysubml/internal/token"
)

func analyze(t *testing.T, src string) []string {
	t.Helper()
	p, err := parser.New(token.SourceID(0), src)
	require.Nil(t, err)
	prog, err := p.ParseProgram()
	require.Nil(t, err)

	a := analyzer.New()
	var msgs []string
	for _, e := range a.AnalyzeProgram(prog) {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

func TestAcceptsSimpleLet(t *testing.T) {
	require.Empty(t, analyze(t, `let x = 1
println(x)`))
}

func TestAcceptsFunctionAndCall(t *testing.T) {
	require.Empty(t, analyze(t, `let id = fun (x) => x
println(id(1))`))
}

func TestAcceptsRecordFieldAccess(t *testing.T) {
	require.Empty(t, analyze(t, `let r = {x = 1, y = 2}
println(r.x)`))
}

func TestAcceptsMatchOverCase(t *testing.T) {
	require.Empty(t, analyze(t, "let v = `Some 1\nlet n = match v with { | `Some x => x | `None _ => 0 }\nprintln(n)"))
}

func TestAcceptsLetRecFunctions(t *testing.T) {
	require.Empty(t, analyze(t, `let rec even = fun (n) => if n == 0 then true else odd(n - 1)
rec odd = fun (n) => if n == 0 then false else even(n - 1)
println(even(4))`))
}

func TestRejectsUndefinedVariable(t *testing.T) {
	msgs := analyze(t, `println(undefinedName)`)
	require.NotEmpty(t, msgs)
}

func TestRejectsMismatchedBinOpOperands(t *testing.T) {
	msgs := analyze(t, `let x = 1 + true
println(x)`)
	require.NotEmpty(t, msgs)
}

func TestRejectsFieldAccessOnNonRecord(t *testing.T) {
	msgs := analyze(t, `let x = 1
println(x.foo)`)
	require.NotEmpty(t, msgs)
}

func TestRejectsUselessPureExpressionStatement(t *testing.T) {
	msgs := analyze(t, `let x = 1
x
println(x)`)
	require.NotEmpty(t, msgs)
}

func TestAllowsUselessExpressionAsFinalTopLevelStatement(t *testing.T) {
	require.Empty(t, analyze(t, `let x = 1
x`))
}

func TestAllowsUselessExpressionAsFinalBlockStatement(t *testing.T) {
	require.Empty(t, analyze(t, `let y = { let x = 1
x }
println(y)`))
}

func TestAllowsImpureExpressionStatementMidBlock(t *testing.T) {
	require.Empty(t, analyze(t, `println(1)
println(2)`))
}

func TestFailingStatementDoesNotPoisonLaterOnes(t *testing.T) {
	msgs := analyze(t, `println(undefinedName)
let x = 1
println(x)`)
	require.Len(t, msgs, 1)
}

func TestBindingsPersistAcrossSeparateAnalyzeProgramCalls(t *testing.T) {
	p1, err := parser.New(token.SourceID(0), `let x = 1`)
	require.Nil(t, err)
	prog1, err := p1.ParseProgram()
	require.Nil(t, err)

	a := analyzer.New()
	require.Empty(t, a.AnalyzeProgram(prog1))

	p2, err := parser.New(token.SourceID(1), `println(x)`)
	require.Nil(t, err)
	prog2, err := p2.ParseProgram()
	require.Nil(t, err)

	require.Empty(t, a.AnalyzeProgram(prog2))
}

func TestErrorsDoNotLeakAcrossSeparateAnalyzeProgramCalls(t *testing.T) {
	p1, err := parser.New(token.SourceID(0), `println(undefinedName)`)
	require.Nil(t, err)
	prog1, err := p1.ParseProgram()
	require.Nil(t, err)

	a := analyzer.New()
	require.NotEmpty(t, a.AnalyzeProgram(prog1))

	p2, err := parser.New(token.SourceID(1), `let y = 1
println(y)`)
	require.Nil(t, err)
	prog2, err := p2.ParseProgram()
	require.Nil(t, err)

	require.Empty(t, a.AnalyzeProgram(prog2))
}
