package codegen

import (
	"fmt"

	"github.com/polysubml/polysubml/internal/ast"
)

// scope is a parent-linked ML-name -> JS-expr map, the codegen twin of
// internal/analyzer's Bindings: each `ml_scope` (block, match arm) gets
// its own child so names introduced there don't leak past it, while a
// lookup still walks outward to the enclosing function's bindings.
type scope struct {
	parent *scope
	vars   map[string]*Expr
}

func rootScope() *scope { return &scope{vars: map[string]*Expr{}} }

func (s *scope) child() *scope { return &scope{parent: s, vars: map[string]*Expr{}} }

func (s *scope) set(name string, e *Expr) { s.vars[name] = e }

func (s *scope) get(name string) *Expr {
	for cur := s; cur != nil; cur = cur.parent {
		if e, ok := cur.vars[name]; ok {
			return e
		}
	}
	return nil
}

// Builder accumulates the fresh-name counters a single compiled module
// needs; grounded on codegen.rs's ModuleBuilder, minus the lasso string
// interner (our ast already carries plain Go strings).
type Builder struct {
	scopeExpr    *Expr
	scopeCounter uint64
	paramCounter uint64
	varCounter   uint64
}

// NewBuilder starts a builder addressing the top-level module scope `$`.
func NewBuilder() *Builder {
	return &Builder{scopeExpr: Var("$")}
}

func (b *Builder) newVarName() string {
	name := fmt.Sprintf("v%d", b.varCounter)
	b.varCounter++
	return name
}

// newTempVarAssign binds rhs to a fresh scope field and appends the
// assignment to out, unless rhs is cheap enough to just reuse directly
// (codegen.rs's new_temp_var_assign).
func (b *Builder) newTempVarAssign(rhs *Expr, out *[]*Expr) *Expr {
	if rhs.shouldInline() {
		return rhs
	}
	name := fmt.Sprintf("t%d", b.varCounter)
	b.varCounter++
	expr := Field(b.scopeExpr, name)
	*out = append(*out, Assign(expr, rhs, false))
	return expr
}

func (b *Builder) newVar(mlName string, sc *scope) *Expr {
	name := b.newVarName()
	expr := Field(b.scopeExpr, name)
	sc.set(mlName, expr)
	return expr
}

// newVarAssign binds an ML name to rhs, inlining the binding instead of
// allocating a scope field when rhs is cheap (codegen.rs's new_var_assign).
func (b *Builder) newVarAssign(mlName string, rhs *Expr, sc *scope, out *[]*Expr) *Expr {
	if rhs.shouldInline() {
		sc.set(mlName, rhs)
		return rhs
	}
	expr := b.newVar(mlName, sc)
	*out = append(*out, Assign(expr, rhs, false))
	return expr
}

func (b *Builder) newScopeName() string {
	name := fmt.Sprintf("s%d", b.scopeCounter)
	b.scopeCounter++
	return name
}

func (b *Builder) newParamName() string {
	name := fmt.Sprintf("p%d", b.paramCounter)
	b.paramCounter++
	return name
}

// fnScope saves and restores the per-function counters around cb, the
// way codegen.rs's Context::fn_scope does: var numbering restarts at 0
// inside a nested closure so generated names stay short, while param and
// scope numbering carry on and are only restored afterwards.
func (b *Builder) fnScope(cb func()) {
	oldVar, oldParam, oldScope := b.varCounter, b.paramCounter, b.scopeCounter
	b.varCounter = 0
	cb()
	b.varCounter, b.paramCounter, b.scopeCounter = oldVar, oldParam, oldScope
}

// CompileProgram lowers every top-level statement into one comma-joined
// JS expression, the module's single compiled body (codegen.rs's
// compile_script).
func CompileProgram(b *Builder, prog *ast.Program) *Expr {
	sc := rootScope()
	var exprs []*Expr
	for _, stmt := range prog.Statements {
		compileStatement(b, sc, stmt, &exprs)
	}
	return CommaList(exprs)
}

func compileStatement(b *Builder, sc *scope, stmt ast.Statement, out *[]*Expr) {
	switch s := stmt.(type) {
	case *ast.EmptyStatement:
		// no-op

	case *ast.ExprStatement:
		*out = append(*out, compileExpr(b, sc, s.Expr))

	case *ast.LetDefStatement:
		rhs := compileExpr(b, sc, s.Value)
		compileLetPatternFlat(b, sc, s.Pattern, rhs, out)

	case *ast.LetRecDefStatement:
		vars := make([]*Expr, len(s.Bindings))
		for i, binding := range s.Bindings {
			vars[i] = b.newVar(binding.Name, sc)
		}
		for i, binding := range s.Bindings {
			rhs := compileExpr(b, sc, binding.Value)
			*out = append(*out, Assign(vars[i], rhs, true))
		}

	case *ast.PrintlnStatement:
		args := make([]*Expr, len(s.Args))
		for i, a := range s.Args {
			args[i] = compileExpr(b, sc, a)
		}
		*out = append(*out, Println(args))
	}
}

// compileLetPatternFlat destructures rhs directly into 0+ variable
// bindings appended to out, without building an intermediate JS pattern
// object (codegen.rs's compile_let_pattern_flat — used for `let` and for
// match-arm binding, where the scrutinee is already an Expr in hand).
func compileLetPatternFlat(b *Builder, sc *scope, pat ast.LetPattern, rhs *Expr, out *[]*Expr) {
	switch p := pat.(type) {
	case *ast.CasePattern:
		compileLetPatternFlat(b, sc, p.Sub, Field(rhs, "$val"), out)

	case *ast.RecordPattern:
		lhs := b.newTempVarAssign(rhs, out)
		for _, f := range p.Fields {
			if f.Sub == nil {
				b.newVarAssign(f.Name, Field(lhs, f.Name), sc, out)
				continue
			}
			compileLetPatternFlat(b, sc, f.Sub, Field(lhs, f.Name), out)
		}

	case *ast.VarPattern:
		if p.Name != "" {
			b.newVarAssign(p.Name, rhs, sc, out)
		}
	}
}

// compileLetPattern builds a destructuring JS parameter pattern in place
// (used only for function parameters, where JS lets us destructure in
// the arrow-function head itself). A VarPattern, the wildcard `_`
// included, always yields a fresh parameter name.
func compileLetPattern(b *Builder, sc *scope, pat ast.LetPattern) *Expr {
	switch p := pat.(type) {
	case *ast.CasePattern:
		inner := compileLetPattern(b, sc, p.Sub)
		if inner == nil {
			return nil
		}
		return Obj([]objField{{Name: "$val", Val: inner}})

	case *ast.RecordPattern:
		var fields []objField
		for _, f := range p.Fields {
			var inner *Expr
			if f.Sub == nil {
				inner = Var(b.newParamName())
				sc.set(f.Name, inner)
			} else {
				inner = compileLetPattern(b, sc, f.Sub)
			}
			if inner == nil {
				continue
			}
			fields = append(fields, objField{Name: f.Name, Val: inner})
		}
		return Obj(fields)

	case *ast.VarPattern:
		jsArg := Var(b.newParamName())
		if p.Name == "" {
			return jsArg
		}
		sc.set(p.Name, jsArg)
		return jsArg
	}
	return nil
}

func compileExpr(b *Builder, sc *scope, expr ast.Expression) *Expr {
	switch e := expr.(type) {
	case *ast.BinOp:
		lhs := compileExpr(b, sc, e.Left)
		rhs := compileExpr(b, sc, e.Right)
		return BinOp(lhs, rhs, jsBinOp(e.Op))

	case *ast.BlockExpr:
		inner := sc.child()
		var exprs []*Expr
		for _, stmt := range e.Statements {
			compileStatement(b, inner, stmt, &exprs)
		}
		exprs = append(exprs, compileExpr(b, inner, e.Result))
		return CommaList(exprs)

	case *ast.CallExpr:
		fn := compileExpr(b, sc, e.Function)
		arg := compileExpr(b, sc, e.Argument)
		return Call(fn, arg)

	case *ast.CaseExpr:
		tag := Lit(quoteJSString(e.Tag))
		val := compileExpr(b, sc, e.Value)
		return Obj([]objField{{Name: "$tag", Val: tag}, {Name: "$val", Val: val}})

	case *ast.FieldAccessExpr:
		lhs := compileExpr(b, sc, e.Target)
		return Field(lhs, e.Field)

	case *ast.FieldSetExpr:
		var exprs []*Expr
		lhsCompiled := compileExpr(b, sc, e.Target)
		lhsTemp := b.newTempVarAssign(lhsCompiled, &exprs)
		lhs := Field(lhsTemp, e.Field)
		resultTemp := b.newTempVarAssign(lhs, &exprs)
		exprs = append(exprs, Assign(lhs, compileExpr(b, sc, e.Value), false))
		exprs = append(exprs, resultTemp)
		return CommaList(exprs)

	case *ast.FuncDef:
		var result *Expr
		b.fnScope(func() {
			scopeName := b.newScopeName()
			oldScopeExpr := b.scopeExpr
			b.scopeExpr = Var(scopeName)

			inner := sc.child()
			jsPattern := compileLetPattern(b, inner, e.Param)
			if jsPattern == nil {
				jsPattern = Var("_")
			}
			body := compileExpr(b, inner, e.Body)

			b.scopeExpr = oldScopeExpr
			result = Func(jsPattern, scopeName, body)
		})
		return result

	case *ast.IfExpr:
		cond := compileExpr(b, sc, e.Condition)
		then := compileExpr(b, sc, e.Consequence)
		els := compileExpr(b, sc, e.Alternative)
		return Ternary(cond, then, els)

	case *ast.InstantiateExistExpr:
		// Existential packing / universal specialization are type-level
		// only; the runtime value underneath is unaffected (spec §4.6).
		return compileExpr(b, sc, e.Target)

	case *ast.InstantiateUniExpr:
		return compileExpr(b, sc, e.Target)

	case *ast.LiteralExpr:
		return compileLiteral(e)

	case *ast.LoopExpr:
		lhs := Var("loop")
		rhs := compileExpr(b, sc, e.Body)
		rhs = Func(Var("_"), "_loop", rhs)
		return Call(lhs, rhs)

	case *ast.MatchExpr:
		return compileMatch(b, sc, e)

	case *ast.RecordExpr:
		fields := make([]objField, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = objField{Name: f.Name, Val: compileExpr(b, sc, f.Value)}
		}
		return Obj(fields)

	case *ast.TypedExpr:
		return compileExpr(b, sc, e.Expr)

	case *ast.VariableExpr:
		if v := sc.get(e.Name); v != nil {
			return v
		}
		// Unresolved only if the analyzer failed to catch an undefined
		// variable; fall back to a bare reference rather than panicking.
		return Var(e.Name)
	}
	return Void()
}

func compileMatch(b *Builder, sc *scope, e *ast.MatchExpr) *Expr {
	var exprs []*Expr
	matchCompiled := compileExpr(b, sc, e.Value)
	tempVar := b.newTempVarAssign(matchCompiled, &exprs)

	tagExpr := Field(tempVar, "$tag")
	valExpr := Field(tempVar, "$val")

	type branch struct {
		tag  string
		body *Expr
	}
	var branches []branch
	var wildcard *Expr

	for _, arm := range e.Arms {
		if cp, ok := arm.Pattern.(*ast.CasePattern); ok {
			inner := sc.child()
			var armExprs []*Expr
			compileLetPatternFlat(b, inner, cp.Sub, valExpr, &armExprs)
			armExprs = append(armExprs, compileExpr(b, inner, arm.Expr))
			branches = append(branches, branch{tag: cp.Tag, body: CommaList(armExprs)})
			continue
		}
		inner := sc.child()
		var armExprs []*Expr
		compileLetPatternFlat(b, inner, arm.Pattern, tempVar, &armExprs)
		armExprs = append(armExprs, compileExpr(b, inner, arm.Expr))
		wc := CommaList(armExprs)
		wildcard = wc
	}

	var res *Expr
	if wildcard != nil {
		res = wildcard
	} else if len(branches) > 0 {
		last := branches[len(branches)-1]
		branches = branches[:len(branches)-1]
		res = last.body
	} else {
		res = Void()
	}
	for i := len(branches) - 1; i >= 0; i-- {
		br := branches[i]
		cond := Eq(tagExpr, Lit(quoteJSString(br.tag)))
		res = Ternary(cond, br.body, res)
	}

	exprs = append(exprs, res)
	return CommaList(exprs)
}

func compileLiteral(e *ast.LiteralExpr) *Expr {
	code := e.Lexeme
	if e.Kind == ast.LitInt {
		code += "n"
	}
	if len(code) > 0 && code[0] == '-' {
		return UnaryMinus(Lit(code[1:]))
	}
	return Lit(code)
}

func jsBinOp(op string) jsOp {
	switch op {
	case "+":
		return opAdd
	case "-":
		return opSub
	case "*":
		return opMul
	case "/":
		return opDiv
	case "%":
		return opRem
	case "<":
		return opLt
	case "<=":
		return opLte
	case ">":
		return opGt
	case ">=":
		return opGte
	case "!=":
		return opNeq
	default:
		return opEq
	}
}

func quoteJSString(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	out = append(out, '"')
	return string(out)
}
