package typesystem

// bodyCopier performs the copy-with-substitution pass of on-demand
// polymorphic instantiation (spec §4.4): a node is copied only if it
// depends on the quantifier being instantiated (PolyDeps contains
// poly.Loc); every other node — anything from an outer scope, or a
// sibling branch unrelated to this binder — is shared unchanged. A memo
// map keeps shared sub-structure shared exactly once per instantiation
// site, matching the original's single-pass recursive copy.
type bodyCopier struct {
	c      *Checker
	poly   *PolyHeadData
	params *instantiationParams
	memo   map[NodeInd]NodeInd
}

func (c *Checker) runInstantiate(req instantiateRequest, out *[]pendingPair) {
	cp := &bodyCopier{c: c, poly: req.poly, params: req.params, memo: make(map[NodeInd]NodeInd)}

	lhs, rhs := req.lhsSub, req.rhsSub
	if req.bodyIsValue {
		lhs = Value{Ind: cp.copyValue(req.lhsSub.Ind)}
	} else {
		rhs = Use{Ind: cp.copyUse(req.rhsSub.Ind)}
	}
	c.g.addEdge(lhs.Ind, rhs.Ind, typeEdge{funcLvl: c.funcLvl, reason: req.reason}, out)
}

// holeFor returns the fresh (Value, Use) pair shared by every occurrence of
// bound parameter name across every instantiation site of this request
// node, allocating it lazily on first reference.
func (cp *bodyCopier) holeFor(name string, src HoleSrc) instantiationHole {
	if h, ok := cp.params.m[name]; ok {
		return h
	}
	v, u := cp.c.NewVar(src)
	h := instantiationHole{Value: v, Use: u}
	cp.params.m[name] = h
	return h
}

func (cp *bodyCopier) copyValue(ind NodeInd) NodeInd {
	if out, ok := cp.memo[ind]; ok {
		return out
	}
	n := cp.c.g.get(ind)
	if n == nil || n.Kind != kindValue || !n.Value.Deps.has(cp.poly.Loc) {
		cp.memo[ind] = ind
		return ind
	}

	if tv, ok := n.Value.Head.(vTypeVar); ok && tv.Spec.Loc == cp.poly.Loc {
		hole := cp.holeFor(tv.Spec.Name, HoleSrc{Tag: tv.Spec.Name, Span: n.Value.Span})
		cp.memo[ind] = hole.Value.Ind
		return hole.Value.Ind
	}

	deps := PolyDeps{}
	for k := range n.Value.Deps {
		if k != cp.poly.Loc {
			deps[k] = struct{}{}
		}
	}
	head := cp.copyVHead(n.Value.Head)
	out := cp.c.g.addNode(typeNode{Kind: kindValue, Value: valueNode{Head: head, Span: n.Value.Span, Deps: deps}})
	cp.memo[ind] = out
	return out
}

func (cp *bodyCopier) copyUse(ind NodeInd) NodeInd {
	if out, ok := cp.memo[ind]; ok {
		return out
	}
	n := cp.c.g.get(ind)
	if n == nil || n.Kind != kindUse || !n.Use.Deps.has(cp.poly.Loc) {
		cp.memo[ind] = ind
		return ind
	}

	if tv, ok := n.Use.Head.(uTypeVar); ok && tv.Spec.Loc == cp.poly.Loc {
		hole := cp.holeFor(tv.Spec.Name, HoleSrc{Tag: tv.Spec.Name, Span: n.Use.Span})
		cp.memo[ind] = hole.Use.Ind
		return hole.Use.Ind
	}

	deps := PolyDeps{}
	for k := range n.Use.Deps {
		if k != cp.poly.Loc {
			deps[k] = struct{}{}
		}
	}
	head := cp.copyUHead(n.Use.Head)
	out := cp.c.g.addNode(typeNode{Kind: kindUse, Use: useNode{Head: head, Span: n.Use.Span, Deps: deps}})
	cp.memo[ind] = out
	return out
}

func (cp *bodyCopier) copyV(v Value) Value { return Value{Ind: cp.copyValue(v.Ind)} }
func (cp *bodyCopier) copyU(u Use) Use     { return Use{Ind: cp.copyUse(u.Ind)} }

func (cp *bodyCopier) copyVHead(h vHead) vHead {
	switch v := h.(type) {
	case vUnion:
		vs := make([]Value, len(v.Values))
		for i, x := range v.Values {
			vs[i] = cp.copyV(x)
		}
		return vUnion{Values: vs}
	case vInstantiateExist:
		return vInstantiateExist{Params: v.Params, Target: cp.copyV(v.Target), SrcTemplate: v.SrcTemplate}
	case vTop:
		return v
	case vFunc:
		return vFunc{Arg: cp.copyU(v.Arg), Ret: cp.copyV(v.Ret)}
	case vObj:
		fields := make(map[string]vObjField, len(v.Fields))
		for name, f := range v.Fields {
			nf := vObjField{Read: cp.copyV(f.Read), Span: f.Span}
			if f.Write != nil {
				w := cp.copyU(*f.Write)
				nf.Write = &w
			}
			fields[name] = nf
		}
		return vObj{Fields: fields}
	case vCase:
		return vCase{Tag: v.Tag, Value: cp.copyV(v.Value)}
	case vAbstract:
		return v
	case vPolyHead:
		return vPolyHead{Poly: v.Poly, Body: cp.copyV(v.Body), Poison: v.Poison}
	case vTypeVar:
		return v
	case vDisjointIntersect:
		var def *Value
		if v.Default != nil {
			d := cp.copyV(*v.Default)
			def = &d
		}
		return vDisjointIntersect{Vars: v.Vars, Default: def}
	}
	return h
}

func (cp *bodyCopier) copyUHead(h uHead) uHead {
	switch u := h.(type) {
	case uIntersection:
		us := make([]Use, len(u.Uses))
		for i, x := range u.Uses {
			us[i] = cp.copyU(x)
		}
		return uIntersection{Uses: us}
	case uInstantiateUni:
		return uInstantiateUni{Params: u.Params, Target: cp.copyU(u.Target), SrcTemplate: u.SrcTemplate}
	case uBot:
		return u
	case uFunc:
		return uFunc{Arg: cp.copyV(u.Arg), Ret: cp.copyU(u.Ret)}
	case uObj:
		fields := make(map[string]uObjField, len(u.Fields))
		for name, f := range u.Fields {
			nf := uObjField{Read: cp.copyU(f.Read), Span: f.Span}
			if f.Write != nil {
				w := cp.copyV(*f.Write)
				nf.Write = &w
			}
			fields[name] = nf
		}
		return uObj{Fields: fields}
	case uCase:
		cases := make(map[string]Use, len(u.Cases))
		for tag, x := range u.Cases {
			cases[tag] = cp.copyU(x)
		}
		var wild *Use
		if u.Wildcard != nil {
			w := cp.copyU(*u.Wildcard)
			wild = &w
		}
		return uCase{Cases: cases, Wildcard: wild}
	case uAbstract:
		return u
	case uPolyHead:
		return uPolyHead{Poly: u.Poly, Body: cp.copyU(u.Body), Poison: u.Poison}
	case uTypeVar:
		return u
	case uDisjointUnion:
		var def *Use
		if u.Default != nil {
			d := cp.copyU(*u.Default)
			def = &d
		}
		return uDisjointUnion{Vars: u.Vars, Default: def}
	}
	return h
}
