// Package analyzer implements the bidirectional type checker that walks
// the surface AST and drives internal/typesystem's biunification engine.
// It follows funvibe/funxy's internal/analyzer shape: one Analyzer per
// compilation session, a dedup'd error set keyed by code+span, and a TypeMap
// side table rather than in-place AST annotation.
package analyzer

import (
	"fmt"

	"github.com/polysubml/polysubml/internal/ast"
	"github.com/polysubml/polysubml/internal/diagnostics"
	"github.com/polysubml/polysubml/internal/token"
	"github.com/polysubml/polysubml/internal/typesystem"
)

// Bindings is a parent-linked lexical scope of name -> inferred Value.
// Each block/function body opens a child scope so shadowing and scope
// exit are just pointer discipline. The root scope lives on the Analyzer
// and outlives every statement; each top-level statement binds into a
// child of it, and AnalyzeProgram copies those names into the root only
// when the statement succeeds, so a failed statement leaves no binding
// behind (the checker's own Save/Revert rolls back the graph side).
type Bindings struct {
	parent *Bindings
	vars   map[string]typesystem.Value
}

func rootBindings() *Bindings { return &Bindings{vars: map[string]typesystem.Value{}} }

func (b *Bindings) child() *Bindings { return &Bindings{parent: b, vars: map[string]typesystem.Value{}} }

func (b *Bindings) lookup(name string) (typesystem.Value, bool) {
	for e := b; e != nil; e = e.parent {
		if v, ok := e.vars[name]; ok {
			return v, true
		}
	}
	return typesystem.Value{}, false
}

func (b *Bindings) bind(name string, v typesystem.Value) {
	if name == "" || name == "_" {
		return
	}
	b.vars[name] = v
}

// Analyzer owns one Checker and accumulates diagnostics across every
// top-level statement of a compilation unit.
type Analyzer struct {
	Checker  *typesystem.Checker
	TypeMap  map[ast.Node]typesystem.Value
	bindings *Bindings

	errorSet map[string]*diagnostics.DiagnosticError
	errOrder []string
}

func New() *Analyzer {
	return &Analyzer{
		Checker:  typesystem.NewChecker(),
		TypeMap:  map[ast.Node]typesystem.Value{},
		bindings: rootBindings(),
		errorSet: map[string]*diagnostics.DiagnosticError{},
	}
}

func (a *Analyzer) report(err *diagnostics.DiagnosticError) {
	key := fmt.Sprintf("%s@%d:%d-%d", err.Code, err.Primary.Source, err.Primary.Start, err.Primary.End)
	if _, ok := a.errorSet[key]; ok {
		return
	}
	a.errorSet[key] = err
	a.errOrder = append(a.errOrder, key)
}

// Errors returns every distinct diagnostic collected so far, in the order
// first encountered.
func (a *Analyzer) Errors() []*diagnostics.DiagnosticError {
	out := make([]*diagnostics.DiagnosticError, len(a.errOrder))
	for i, k := range a.errOrder {
		out[i] = a.errorSet[k]
	}
	return out
}

// AnalyzeProgram type-checks every top-level statement independently: a
// statement that fails is rolled back (spec §4.8 "no partial effect from
// a failing top-level statement") and analysis continues with the next
// one so a single mistake doesn't hide every other diagnostic in the file.
//
// Top-level bindings persist on the Analyzer across calls, so a caller
// that feeds successive programs through the same Analyzer (a REPL-style
// session, see internal/compiler.State) sees later statements resolve
// names bound by earlier ones. Diagnostics are scoped to this call only:
// errors from a prior AnalyzeProgram never resurface in a later one.
func (a *Analyzer) AnalyzeProgram(prog *ast.Program) []*diagnostics.DiagnosticError {
	a.errorSet = map[string]*diagnostics.DiagnosticError{}
	a.errOrder = nil
	last := len(prog.Statements) - 1
	for i, stmt := range prog.Statements {
		a.Checker.Save()
		stmtScope := a.bindings.child()
		if err := a.checkStatement(stmt, stmtScope, i == last); err != nil {
			a.report(err)
			a.Checker.Revert()
			continue
		}
		a.Checker.MakePermanent()
		for name, v := range stmtScope.vars {
			a.bindings.vars[name] = v
		}
	}
	return a.Errors()
}

// pureExprStatement reports whether expr's value is syntactically "pure" —
// a literal, binop, case-constructor, function, record, variable, or
// instantiation. A bare statement with one of these values does nothing
// useful and discards a result that was almost certainly meant to be used.
func pureExprStatement(expr ast.Expression) bool {
	switch expr.(type) {
	case *ast.LiteralExpr, *ast.BinOp, *ast.CaseExpr, *ast.FuncDef, *ast.RecordExpr,
		*ast.VariableExpr, *ast.InstantiateExistExpr, *ast.InstantiateUniExpr:
		return true
	}
	return false
}

func (a *Analyzer) checkStatement(stmt ast.Statement, b *Bindings, allowUseless bool) *diagnostics.DiagnosticError {
	switch s := stmt.(type) {
	case *ast.EmptyStatement:
		return nil

	case *ast.ExprStatement:
		if !allowUseless && pureExprStatement(s.Expr) {
			return diagnostics.New(diagnostics.KindSyntaxError, s.Expr.GetToken().Span,
				"this expression's value is never used; assign it or call a function with a side effect instead")
		}
		_, err := a.infer(s.Expr, b)
		return err

	case *ast.LetDefStatement:
		val, err := a.infer(s.Value, b)
		if err != nil {
			return err
		}
		return a.bindPattern(s.Pattern, val, b)

	case *ast.LetRecDefStatement:
		return a.checkLetRec(s, b)

	case *ast.PrintlnStatement:
		for _, arg := range s.Args {
			if _, err := a.infer(arg, b); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// checkLetRec binds every name to a fresh variable up front (so the
// bodies may call each other), then checks each *FuncDef body against
// its own variable as an upper bound — mirroring letrec in any
// HM-family checker, and the only place the surface grammar requires
// the bound expression to literally be a function (spec §6.2).
func (a *Analyzer) checkLetRec(s *ast.LetRecDefStatement, b *Bindings) *diagnostics.DiagnosticError {
	type slot struct {
		val typesystem.Value
		use typesystem.Use
	}
	slots := make(map[string]slot, len(s.Bindings))
	for _, bind := range s.Bindings {
		v, u := a.Checker.NewVar(typesystem.HoleSrc{Tag: bind.Name, Span: bind.Span})
		slots[bind.Name] = slot{val: v, use: u}
		b.bind(bind.Name, v)
	}
	for _, bind := range s.Bindings {
		fd, ok := bind.Value.(*ast.FuncDef)
		if !ok {
			return diagnostics.New(diagnostics.KindTypeMismatch, bind.Value.GetToken().Span,
				"`let rec` bindings must be function literals")
		}
		v, err := a.infer(fd, b)
		if err != nil {
			return err
		}
		if err := a.Checker.Flow(v, slots[bind.Name].use, bind.Span); err != nil {
			return err
		}
	}
	return nil
}

// bindPattern destructures val against pat, binding every variable it
// introduces. It works by materializing the shape pat demands as a Use
// and flowing val into it, then reading back the Values the materializer
// allocated for each leaf — the same check-by-flowing-into-a-use
// technique infer/check use throughout.
func (a *Analyzer) bindPattern(pat ast.LetPattern, val typesystem.Value, b *Bindings) *diagnostics.DiagnosticError {
	switch p := pat.(type) {
	case *ast.VarPattern:
		if p.TypeAnnot != nil {
			env := a.Checker.RootEnv()
			annotUse := a.Checker.MaterializeUse(p.TypeAnnot, env)
			if err := a.Checker.Flow(val, annotUse, p.Span); err != nil {
				return err
			}
		} else {
			v, u := a.Checker.NewVar(typesystem.HoleSrc{Tag: p.Name, Span: p.Span})
			if err := a.Checker.Flow(val, u, p.Span); err != nil {
				return err
			}
			val = v
		}
		b.bind(p.Name, val)
		return nil

	case *ast.CasePattern:
		innerV, innerU := a.Checker.NewVar(typesystem.HoleSrc{Tag: p.Tag, Span: p.TagSpan})
		use := a.Checker.NewUse(typesystem.CaseUse(p.Tag, innerU), p.Span, nil)
		if err := a.Checker.Flow(val, use, p.Span); err != nil {
			return err
		}
		return a.bindPattern(p.Sub, innerV, b)

	case *ast.RecordPattern:
		fieldVars := map[string]typesystem.Value{}
		fieldUses := map[string]typesystem.Use{}
		for _, f := range p.Fields {
			v, u := a.Checker.NewVar(typesystem.HoleSrc{Tag: f.Name, Span: f.Span})
			fieldVars[f.Name] = v
			fieldUses[f.Name] = u
		}
		use := a.Checker.NewUse(typesystem.ObjUse(fieldUses), p.Token.Span, nil)
		if err := a.Checker.Flow(val, use, p.Token.Span); err != nil {
			return err
		}
		for _, f := range p.Fields {
			if f.Sub != nil {
				if err := a.bindPattern(f.Sub, fieldVars[f.Name], b); err != nil {
					return err
				}
			} else {
				b.bind(f.Name, fieldVars[f.Name])
			}
		}
		return nil
	}
	return nil
}

// infer synthesizes a Value (lower bound) for expr bottom-up — the
// "infer" half of bidirectional checking (spec §4.7).
func (a *Analyzer) infer(expr ast.Expression, b *Bindings) (typesystem.Value, *diagnostics.DiagnosticError) {
	switch e := expr.(type) {
	case *ast.LiteralExpr:
		name := map[ast.LiteralKind]string{
			ast.LitBool: "bool", ast.LitFloat: "float", ast.LitInt: "int", ast.LitStr: "str",
		}[e.Kind]
		ctor, ok := a.Checker.TypeCtorByName(name)
		if !ok {
			ctor = a.Checker.RegisterTypeCtor(name, e.Token.Span)
		}
		v := a.Checker.NewValue(typesystem.AbstractValue(ctor), e.Token.Span, nil)
		a.TypeMap[e] = v
		return v, nil

	case *ast.VariableExpr:
		v, ok := b.lookup(e.Name)
		if !ok {
			return typesystem.Value{}, diagnostics.New(diagnostics.KindTypeMismatch, e.Token.Span,
				fmt.Sprintf("undefined variable `%s`", e.Name))
		}
		a.TypeMap[e] = v
		return v, nil

	case *ast.BinOp:
		argUse := typesystem.TopUse()
		if e.ArgClass != nil {
			argUse = a.classUse(*e.ArgClass, e.Token.Span)
		}
		lv, err := a.infer(e.Left, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		if e.ArgClass != nil {
			if err := a.Checker.Flow(lv, argUse, e.Left.GetToken().Span); err != nil {
				return typesystem.Value{}, err
			}
		}
		rv, err := a.infer(e.Right, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		if e.ArgClass != nil {
			if err := a.Checker.Flow(rv, argUse, e.Right.GetToken().Span); err != nil {
				return typesystem.Value{}, err
			}
		}
		ctor, _ := a.Checker.TypeCtorByName(classCtorName(e.RetClass))
		v := a.Checker.NewValue(typesystem.AbstractValue(ctor), e.Token.Span, nil)
		a.TypeMap[e] = v
		return v, nil

	case *ast.BlockExpr:
		inner := b.child()
		for _, stmt := range e.Statements {
			if err := a.checkStatement(stmt, inner, false); err != nil {
				return typesystem.Value{}, err
			}
		}
		if e.Result == nil {
			unit, _ := a.Checker.TypeCtorByName("unit")
			v := a.Checker.NewValue(typesystem.AbstractValue(unit), e.Token.Span, nil)
			return v, nil
		}
		return a.infer(e.Result, inner)

	case *ast.IfExpr:
		cond, err := a.infer(e.Condition, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		boolCtor, ok := a.Checker.TypeCtorByName("bool")
		if !ok {
			boolCtor = a.Checker.RegisterTypeCtor("bool", e.Token.Span)
		}
		boolUse := a.Checker.NewUse(typesystem.AbstractUse(boolCtor), e.Condition.GetToken().Span, nil)
		if err := a.Checker.Flow(cond, boolUse, e.Condition.GetToken().Span); err != nil {
			return typesystem.Value{}, err
		}
		cv, err := a.infer(e.Consequence, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		av, err := a.infer(e.Alternative, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		return a.joinValues(e.Token.Span, cv, av)

	case *ast.LoopExpr:
		a.Checker.EnterFunc()
		defer a.Checker.LeaveFunc()
		if _, err := a.infer(e.Body, b); err != nil {
			return typesystem.Value{}, err
		}
		bot, _ := a.Checker.TypeCtorByName("never")
		v := a.Checker.NewValue(typesystem.AbstractValue(bot), e.Token.Span, nil)
		return v, nil

	case *ast.FuncDef:
		return a.inferFunc(e, b)

	case *ast.CallExpr:
		fv, err := a.infer(e.Function, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		av, err := a.infer(e.Argument, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		retV, retU := a.Checker.NewVar(typesystem.HoleSrc{Tag: "call", Span: e.Token.Span})
		argU := a.Checker.NewUse(typesystem.FuncUse(av, retU), e.Token.Span, nil)
		if err := a.Checker.Flow(fv, argU, e.Function.GetToken().Span); err != nil {
			return typesystem.Value{}, err
		}
		a.TypeMap[e] = retV
		return retV, nil

	case *ast.RecordExpr:
		fields := map[string]typesystem.ObjFieldValue{}
		for _, f := range e.Fields {
			fv, err := a.infer(f.Value, b)
			if err != nil {
				return typesystem.Value{}, err
			}
			of := typesystem.ObjFieldValue{Read: fv, Span: f.Span}
			if f.Mutable {
				env := a.Checker.RootEnv()
				var write typesystem.Use
				if f.TypeAnnot != nil {
					write = a.Checker.MaterializeUse(f.TypeAnnot, env)
					if err := a.Checker.Flow(fv, write, f.Span); err != nil {
						return typesystem.Value{}, err
					}
				} else {
					_, write = a.Checker.NewVar(typesystem.HoleSrc{Tag: f.Name, Span: f.Span})
					if err := a.Checker.Flow(fv, write, f.Span); err != nil {
						return typesystem.Value{}, err
					}
				}
				of.Write = &write
			}
			fields[f.Name] = of
		}
		v := a.Checker.NewValue(typesystem.ObjValue(fields), e.Token.Span, nil)
		a.TypeMap[e] = v
		return v, nil

	case *ast.FieldAccessExpr:
		target, err := a.infer(e.Target, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		fv, fu := a.Checker.NewVar(typesystem.HoleSrc{Tag: e.Field, Span: e.FieldSpan})
		use := a.Checker.NewUse(typesystem.ObjUse(map[string]typesystem.Use{e.Field: fu}), e.FieldSpan, nil)
		if err := a.Checker.Flow(target, use, e.FieldSpan); err != nil {
			return typesystem.Value{}, err
		}
		a.TypeMap[e] = fv
		return fv, nil

	case *ast.FieldSetExpr:
		target, err := a.infer(e.Target, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		val, err := a.infer(e.Value, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		use := a.Checker.NewUse(typesystem.ObjWriteUse(e.Field, val), e.FieldSpan, nil)
		if err := a.Checker.Flow(target, use, e.FieldSpan); err != nil {
			return typesystem.Value{}, err
		}
		unit, _ := a.Checker.TypeCtorByName("unit")
		return a.Checker.NewValue(typesystem.AbstractValue(unit), e.Token.Span, nil), nil

	case *ast.CaseExpr:
		val, err := a.infer(e.Value, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		v := a.Checker.NewValue(typesystem.CaseValue(e.Tag, val), e.Token.Span, nil)
		a.TypeMap[e] = v
		return v, nil

	case *ast.MatchExpr:
		return a.inferMatch(e, b)

	case *ast.TypedExpr:
		inner, err := a.infer(e.Expr, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		env := a.Checker.RootEnv()
		use := a.Checker.MaterializeUse(e.Type, env)
		if err := a.Checker.Flow(inner, use, e.Token.Span); err != nil {
			return typesystem.Value{}, err
		}
		v := a.Checker.MaterializeValue(e.Type, env)
		a.TypeMap[e] = v
		return v, nil

	case *ast.InstantiateExistExpr:
		target, err := a.infer(e.Target, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		env := a.Checker.RootEnv()
		return a.Checker.InstantiateExist(target, e.Args, env, e.Token.Span), nil

	case *ast.InstantiateUniExpr:
		target, err := a.infer(e.Target, b)
		if err != nil {
			return typesystem.Value{}, err
		}
		env := a.Checker.RootEnv()
		use, result := a.Checker.InstantiateUni(e.Args, env, e.Token.Span)
		if err := a.Checker.Flow(target, use, e.Token.Span); err != nil {
			return typesystem.Value{}, err
		}
		return result, nil
	}
	return typesystem.Value{}, diagnostics.New(diagnostics.KindTypeMismatch, expr.GetToken().Span, "unsupported expression")
}

func (a *Analyzer) inferFunc(e *ast.FuncDef, b *Bindings) (typesystem.Value, *diagnostics.DiagnosticError) {
	a.Checker.EnterFunc()
	defer a.Checker.LeaveFunc()

	inner := b.child()
	env := a.Checker.RootEnv()

	var paramV typesystem.Value
	switch p := e.Param.(type) {
	case *ast.VarPattern:
		if p.TypeAnnot != nil {
			paramV = a.Checker.MaterializeValue(p.TypeAnnot, env)
		} else {
			v, _ := a.Checker.NewVar(typesystem.HoleSrc{Tag: p.Name, Span: p.Span})
			paramV = v
		}
		inner.bind(p.Name, paramV)
	default:
		v, u := a.Checker.NewVar(typesystem.HoleSrc{Tag: "param", Span: e.Param.GetToken().Span})
		if err := a.bindPatternFromUse(e.Param, u, inner); err != nil {
			return typesystem.Value{}, err
		}
		paramV = v
	}

	bodyV, err := a.infer(e.Body, inner)
	if err != nil {
		return typesystem.Value{}, err
	}
	if e.ReturnType != nil {
		retUse := a.Checker.MaterializeUse(e.ReturnType, env)
		if err := a.Checker.Flow(bodyV, retUse, e.Token.Span); err != nil {
			return typesystem.Value{}, err
		}
		bodyV = a.Checker.MaterializeValue(e.ReturnType, env)
	}

	funcV := a.Checker.NewValue(typesystem.FuncValue(a.paramUseFor(e.Param, paramV), bodyV), e.Token.Span, nil)

	if len(e.TypeParams) == 0 {
		a.TypeMap[e] = funcV
		return funcV, nil
	}

	loc := a.Checker.FreshLoc()
	params := make([]typesystem.PolyParam, len(e.TypeParams))
	for i, tp := range e.TypeParams {
		params[i] = typesystem.PolyParam{Name: tp.Name, Span: tp.Span}
	}
	polyV := a.Checker.NewValue(typesystem.PolyValue(ast.PolyUniversal, loc, params, funcV), e.Token.Span, nil)
	a.TypeMap[e] = polyV
	return polyV, nil
}

// paramUseFor rebuilds the parameter's upper bound for the function-value
// head: when the pattern carried an explicit annotation we already have
// the Use materialized; for a bare name we synthesize one bound to the
// same var node infer() used so contravariant call-site checks see the
// parameter's true (possibly still-unresolved) type.
func (a *Analyzer) paramUseFor(pat ast.LetPattern, paramV typesystem.Value) typesystem.Use {
	if vp, ok := pat.(*ast.VarPattern); ok && vp.TypeAnnot != nil {
		env := a.Checker.RootEnv()
		return a.Checker.MaterializeUse(vp.TypeAnnot, env)
	}
	return typesystem.Use{Ind: paramV.Ind}
}

func (a *Analyzer) bindPatternFromUse(pat ast.LetPattern, use typesystem.Use, b *Bindings) *diagnostics.DiagnosticError {
	// Only reached for non-VarPattern function parameters (record/case
	// destructuring directly in a signature); the corresponding Value half
	// of the same var node stands in for the whole pattern there.
	v := typesystem.Value{Ind: use.Ind}
	return a.bindPattern(pat, v, b)
}

func (a *Analyzer) inferMatch(e *ast.MatchExpr, b *Bindings) (typesystem.Value, *diagnostics.DiagnosticError) {
	val, err := a.infer(e.Value, b)
	if err != nil {
		return typesystem.Value{}, err
	}

	cases := map[string]typesystem.Use{}
	var wildcard *typesystem.Use
	var branchValues []typesystem.Value
	seen := map[string]bool{}

	for _, arm := range e.Arms {
		inner := b.child()
		switch p := arm.Pattern.(type) {
		case *ast.CasePattern:
			if seen[p.Tag] {
				return typesystem.Value{}, diagnostics.New(diagnostics.KindUnhandledVariant, p.TagSpan,
					fmt.Sprintf("duplicate case `%s` in match", p.Tag))
			}
			seen[p.Tag] = true
			subV, subU := a.Checker.NewVar(typesystem.HoleSrc{Tag: p.Tag, Span: p.TagSpan})
			cases[p.Tag] = subU
			if err := a.bindPattern(p.Sub, subV, inner); err != nil {
				return typesystem.Value{}, err
			}
		case *ast.VarPattern:
			wv, wu := a.Checker.NewVar(typesystem.HoleSrc{Tag: "_", Span: p.Span})
			wildcard = &wu
			inner.bind(p.Name, wv)
		default:
			return typesystem.Value{}, diagnostics.New(diagnostics.KindTypeMismatch, arm.Pattern.GetToken().Span,
				"match arms must be case patterns or a trailing wildcard")
		}
		bv, err := a.infer(arm.Expr, inner)
		if err != nil {
			return typesystem.Value{}, err
		}
		branchValues = append(branchValues, bv)
	}

	use := a.Checker.NewUse(typesystem.CaseUseSet(cases, wildcard), e.Token.Span, nil)
	if err := a.Checker.Flow(val, use, e.Value.GetToken().Span); err != nil {
		return typesystem.Value{}, err
	}

	joinV, joinU := a.Checker.NewVar(typesystem.HoleSrc{Tag: "match", Span: e.Token.Span})
	for i, bv := range branchValues {
		if err := a.Checker.Flow(bv, joinU, e.Arms[i].Expr.GetToken().Span); err != nil {
			return typesystem.Value{}, err
		}
	}
	return joinV, nil
}

// joinValues merges two branch values into one fresh variable's lower
// bound — the standard "introduce a fresh var, flow both arms into its
// use side" technique used for if/match join points throughout.
func (a *Analyzer) joinValues(span token.Span, vs ...typesystem.Value) (typesystem.Value, *diagnostics.DiagnosticError) {
	jv, ju := a.Checker.NewVar(typesystem.HoleSrc{Tag: "join", Span: span})
	for _, v := range vs {
		if err := a.Checker.Flow(v, ju, span); err != nil {
			return typesystem.Value{}, err
		}
	}
	return jv, nil
}

func (a *Analyzer) classUse(c ast.OperatorClass, span token.Span) typesystem.Use {
	ctor, ok := a.Checker.TypeCtorByName(classCtorName(c))
	if !ok {
		ctor = a.Checker.RegisterTypeCtor(classCtorName(c), span)
	}
	return a.Checker.NewUse(typesystem.AbstractUse(ctor), span, nil)
}

func classCtorName(c ast.OperatorClass) string {
	switch c {
	case ast.ClassBool:
		return "bool"
	case ast.ClassFloat:
		return "float"
	case ast.ClassInt:
		return "int"
	case ast.ClassStr:
		return "str"
	}
	return "bool"
}
