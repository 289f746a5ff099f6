package typesystem

import (
	"github.com/polysubml/polysubml/internal/ast"
	"github.com/polysubml/polysubml/internal/token"
)

// materializeEnv threads the lexical context a type expression is
// materialized under: which surface names are bound by an enclosing
// quantifier (and at which SourceLoc), which are tied to an enclosing
// recursive type binder, and the running set of quantifier deps every
// node produced under them must carry (spec §4.6).
type materializeEnv struct {
	binders map[string]SourceLoc
	recVars map[string]NodeInd
	deps    PolyDeps
}

func newMaterializeEnv() materializeEnv {
	return materializeEnv{binders: map[string]SourceLoc{}, recVars: map[string]NodeInd{}, deps: PolyDeps{}}
}

// RootEnv returns the empty materializer environment a top-level type
// annotation (one with no enclosing quantifier or recursive binder) is
// materialized under. The analyzer asks for a fresh one for every
// annotation it materializes; binders of nested quantifiers are added
// while that one annotation is walked.
func (c *Checker) RootEnv() materializeEnv { return newMaterializeEnv() }

func (e materializeEnv) withBinder(name string, loc SourceLoc) materializeEnv {
	binders := make(map[string]SourceLoc, len(e.binders)+1)
	for k, v := range e.binders {
		binders[k] = v
	}
	binders[name] = loc
	deps := make(PolyDeps, len(e.deps)+1)
	for k := range e.deps {
		deps[k] = struct{}{}
	}
	deps[loc] = struct{}{}
	return materializeEnv{binders: binders, recVars: e.recVars, deps: deps}
}

func (e materializeEnv) withRecVar(name string, ind NodeInd) materializeEnv {
	recVars := make(map[string]NodeInd, len(e.recVars)+1)
	for k, v := range e.recVars {
		recVars[k] = v
	}
	recVars[name] = ind
	return materializeEnv{binders: e.binders, recVars: recVars, deps: e.deps}
}

// TypeCtorByName resolves a nominal type-expression identifier to its
// registered constructor, used by the materializer for IdentType nodes
// that name an abstract type rather than a bound quantifier parameter.
func (c *Checker) TypeCtorByName(name string) (TypeCtorInd, bool) {
	for i, ctor := range c.typeCtors {
		if ctor.Name == name {
			return TypeCtorInd(i), true
		}
	}
	return 0, false
}

// MaterializeValue and MaterializeUse are the two halves of the
// materializer: a surface TypeExpr is walked once per occurrence, in the
// polarity it appears in (spec §4.6 "the only component producing
// quantifier and disjoint-union/intersection heads"). Unlike instantiation
// (instantiate.go), which copies already-materialized graph structure,
// materialization runs directly off the AST and is not memoized — the
// same annotation written twice in source produces two independent graph
// fragments, exactly as two occurrences of a type in the original source
// would.
func (c *Checker) MaterializeValue(t ast.TypeExpr, env materializeEnv) Value {
	switch n := t.(type) {
	case nil:
		v, _ := c.NewVar(HoleSrc{Tag: "_"})
		return v
	case *ast.BotType:
		return Bot()
	case *ast.TopType:
		return c.NewValue(vTop{}, n.Token.Span, env.deps)
	case *ast.HoleType:
		v, _ := c.NewVar(HoleSrc{Tag: "_", Span: n.Token.Span})
		return v
	case *ast.IdentType:
		if ind, ok := env.recVars[n.Name]; ok {
			return Value{Ind: ind}
		}
		if loc, ok := env.binders[n.Name]; ok {
			return c.NewValue(vTypeVar{Spec: VarSpec{Loc: loc, Name: n.Name}}, n.Token.Span, env.deps)
		}
		ctor, ok := c.TypeCtorByName(n.Name)
		if !ok {
			ctor = c.RegisterTypeCtor(n.Name, n.Token.Span)
		}
		return c.NewValue(vAbstract{Ty: ctor}, n.Token.Span, env.deps)
	case *ast.FuncType:
		arg := c.MaterializeUse(n.Arg, env)
		ret := c.MaterializeValue(n.Ret, env)
		return c.NewValue(vFunc{Arg: arg, Ret: ret}, n.Token.Span, env.deps)
	case *ast.RecordType:
		fields := make(map[string]vObjField, len(n.Fields))
		for _, f := range n.Fields {
			vf := vObjField{Read: c.MaterializeValue(f.Type, env), Span: f.Span}
			if f.Mutable {
				w := c.MaterializeUse(f.Type, env)
				vf.Write = &w
			}
			fields[f.Name] = vf
		}
		return c.NewValue(vObj{Fields: fields}, n.Token.Span, env.deps)
	case *ast.CaseType:
		values := make([]Value, 0, len(n.Arms))
		for _, a := range n.Arms {
			values = append(values, c.NewValue(vCase{Tag: a.Tag, Value: c.MaterializeValue(a.Type, env)}, a.Span, env.deps))
		}
		if len(values) == 1 {
			return values[0]
		}
		return c.NewValue(vUnion{Values: values}, n.Token.Span, env.deps)
	case *ast.PolyType:
		loc := c.FreshLoc()
		bodyEnv := env
		for _, p := range n.Params {
			bodyEnv = bodyEnv.withBinder(p.Name, loc)
		}
		params := make([]PolyParam, len(n.Params))
		for i, p := range n.Params {
			params[i] = PolyParam{Name: p.Name, Span: p.Span}
		}
		body := c.MaterializeValue(n.Body, bodyEnv)
		return c.NewValue(vPolyHead{Poly: &PolyHeadData{Kind: n.Kind, Loc: loc, Params: params}, Body: body}, n.Token.Span, env.deps)
	case *ast.VarJoinType:
		if vars, ok := classifyVarJoin(n.Children, env); ok {
			return c.NewValue(vDisjointIntersect{Vars: vars}, n.Token.Span, env.deps)
		}
		values := make([]Value, len(n.Children))
		for i, ch := range n.Children {
			values[i] = c.MaterializeValue(ch, env)
		}
		return c.NewValue(vUnion{Values: values}, n.Token.Span, env.deps)
	case *ast.RecursiveDefType:
		v, u := c.NewVar(HoleSrc{Tag: n.Name, Span: n.Token.Span})
		bodyEnv := env.withRecVar(n.Name, v.Ind)
		body := c.MaterializeValue(n.Body, bodyEnv)
		c.Flow(body, u, n.Token.Span)
		return v
	}
	v, _ := c.NewVar(HoleSrc{Tag: "_"})
	return v
}

func (c *Checker) MaterializeUse(t ast.TypeExpr, env materializeEnv) Use {
	switch n := t.(type) {
	case nil:
		_, u := c.NewVar(HoleSrc{Tag: "_"})
		return u
	case *ast.BotType:
		_, u := c.NewVar(HoleSrc{Tag: "_", Span: n.Token.Span})
		return u
	case *ast.TopType:
		return TopUse()
	case *ast.HoleType:
		_, u := c.NewVar(HoleSrc{Tag: "_", Span: n.Token.Span})
		return u
	case *ast.IdentType:
		if ind, ok := env.recVars[n.Name]; ok {
			return Use{Ind: ind}
		}
		if loc, ok := env.binders[n.Name]; ok {
			return c.NewUse(uTypeVar{Spec: VarSpec{Loc: loc, Name: n.Name}}, n.Token.Span, env.deps)
		}
		ctor, ok := c.TypeCtorByName(n.Name)
		if !ok {
			ctor = c.RegisterTypeCtor(n.Name, n.Token.Span)
		}
		return c.NewUse(uAbstract{Ty: ctor}, n.Token.Span, env.deps)
	case *ast.FuncType:
		arg := c.MaterializeValue(n.Arg, env)
		ret := c.MaterializeUse(n.Ret, env)
		return c.NewUse(uFunc{Arg: arg, Ret: ret}, n.Token.Span, env.deps)
	case *ast.RecordType:
		fields := make(map[string]uObjField, len(n.Fields))
		for _, f := range n.Fields {
			uf := uObjField{Read: c.MaterializeUse(f.Type, env), Span: f.Span}
			if f.Mutable {
				w := c.MaterializeValue(f.Type, env)
				uf.Write = &w
			}
			fields[f.Name] = uf
		}
		return c.NewUse(uObj{Fields: fields}, n.Token.Span, env.deps)
	case *ast.CaseType:
		cases := make(map[string]Use, len(n.Arms))
		for _, a := range n.Arms {
			cases[a.Tag] = c.MaterializeUse(a.Type, env)
		}
		var wild *Use
		if n.Wildcard != nil {
			w := c.MaterializeUse(n.Wildcard, env)
			wild = &w
		}
		return c.NewUse(uCase{Cases: cases, Wildcard: wild}, n.Token.Span, env.deps)
	case *ast.PolyType:
		loc := c.FreshLoc()
		bodyEnv := env
		for _, p := range n.Params {
			bodyEnv = bodyEnv.withBinder(p.Name, loc)
		}
		params := make([]PolyParam, len(n.Params))
		for i, p := range n.Params {
			params[i] = PolyParam{Name: p.Name, Span: p.Span}
		}
		body := c.MaterializeUse(n.Body, bodyEnv)
		return c.NewUse(uPolyHead{Poly: &PolyHeadData{Kind: n.Kind, Loc: loc, Params: params}, Body: body}, n.Token.Span, env.deps)
	case *ast.VarJoinType:
		if vars, ok := classifyVarJoin(n.Children, env); ok {
			return c.NewUse(uDisjointUnion{Vars: vars}, n.Token.Span, env.deps)
		}
		uses := make([]Use, len(n.Children))
		for i, ch := range n.Children {
			uses[i] = c.MaterializeUse(ch, env)
		}
		return c.NewUse(uIntersection{Uses: uses}, n.Token.Span, env.deps)
	case *ast.RecursiveDefType:
		v, u := c.NewVar(HoleSrc{Tag: n.Name, Span: n.Token.Span})
		bodyEnv := env.withRecVar(n.Name, u.Ind)
		body := c.MaterializeUse(n.Body, bodyEnv)
		c.Flow(v, body, n.Token.Span)
		return u
	}
	_, u := c.NewVar(HoleSrc{Tag: "_"})
	return u
}

func classifyVarJoin(children []ast.TypeExpr, env materializeEnv) (map[VarSpec]struct{}, bool) {
	vars := make(map[VarSpec]struct{}, len(children))
	for _, ch := range children {
		id, ok := ch.(*ast.IdentType)
		if !ok {
			return nil, false
		}
		loc, ok := env.binders[id.Name]
		if !ok {
			return nil, false
		}
		vars[VarSpec{Loc: loc, Name: id.Name}] = struct{}{}
	}
	return vars, true
}

// InstantiateExist and InstantiateUni materialize the explicit `e :< T`
// (pack an existential witness) and `e :> T` (specialize a universal
// value) instantiation expressions into a fresh request head, to be
// connected by the analyzer's check/infer pass (spec §6.2).
func (c *Checker) InstantiateExist(target Value, args []ast.TypeArg, env materializeEnv, span token.Span) Value {
	params := newInstantiationParams()
	for _, a := range args {
		v := c.MaterializeValue(a.Expr, env)
		_, u := c.NewVar(HoleSrc{Tag: a.Name, Span: span})
		params.m[a.Name] = instantiationHole{Value: v, Use: u}
	}
	head := vInstantiateExist{Params: params, Target: target, SrcTemplate: instantiateSrc{Span: span, Kind: int(ast.InstantiateExistKind)}}
	return c.NewValue(head, span, env.deps)
}

// InstantiateUni returns the Use that the universal value being
// specialized must flow into, and the Value that the whole expression
// evaluates to once that happens (the copied, substituted body).
func (c *Checker) InstantiateUni(args []ast.TypeArg, env materializeEnv, span token.Span) (Use, Value) {
	params := newInstantiationParams()
	for _, a := range args {
		u := c.MaterializeUse(a.Expr, env)
		v, _ := c.NewVar(HoleSrc{Tag: a.Name, Span: span})
		params.m[a.Name] = instantiationHole{Value: v, Use: u}
	}
	resultV, resultU := c.NewVar(HoleSrc{Tag: "specialize", Span: span})
	head := uInstantiateUni{Params: params, Target: resultU, SrcTemplate: instantiateSrc{Span: span, Kind: int(ast.InstantiateUniKind)}}
	return c.NewUse(head, span, env.deps), resultV
}
