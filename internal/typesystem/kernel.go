package typesystem

import (
	"fmt"

	"github.com/polysubml/polysubml/internal/ast"
	"github.com/polysubml/polysubml/internal/diagnostics"
)

// checkResult is the outcome of one head-matching step (spec §4.3/§4.4).
type checkResult struct {
	instantiate *instantiateRequest
}

type instantiateRequest struct {
	poly       *PolyHeadData
	params     *instantiationParams
	srcTemplate instantiateSrc
	reason     flowReason
	// bodyIsValue selects which of lhsSub/rhsSub is the quantifier body
	// template that must be copied-with-substitution; the other side is
	// already a concrete placeholder and is used as-is.
	bodyIsValue bool
	lhsSub      Value
	rhsSub      Use
}

// checkHeads decomposes a freshly-reachable (Value, Use) head pair into
// subordinate obligations (appended to out), a polymorphic-instantiation
// request, or a typed error. Grounded on original_source/src/core.rs
// check_heads; rule order and semantics are unchanged (spec §4.3).
func (c *Checker) checkHeads(lhsInd Value, lhs *valueNode, rhsInd Use, rhs *useNode, edge typeEdge, out *[]pendingPair) (checkResult, *diagnostics.DiagnosticError) {
	edge.reason = flowReason{kind: reasonCheck, lhs: lhsInd, rhs: rhsInd}

	edge.boundPairs.FilterLeft(lhs.Deps.has)
	edge.boundPairs.FilterRight(rhs.Deps.has)

	push := func(l Value, u Use, e typeEdge) {
		*out = append(*out, pendingPair{lhs: l.Ind, rhs: u.Ind, edge: e})
	}

	// 1. Unions / intersections (unconditional).
	if union, ok := lhs.Head.(vUnion); ok {
		for _, l2 := range union.Values {
			push(l2, rhsInd, edge)
		}
		return checkResult{}, nil
	}
	if inter, ok := rhs.Head.(uIntersection); ok {
		for _, u2 := range inter.Uses {
			push(lhsInd, u2, edge)
		}
		return checkResult{}, nil
	}

	// 2. Disjoint intersection / union.
	if di, ok := lhs.Head.(vDisjointIntersect); ok {
		matched := false
		switch rh := rhs.Head.(type) {
		case uDisjointUnion:
			matched = edge.boundPairs.DisjointUnionVarsHaveMatch(di.Vars, rh.Vars)
		case uTypeVar:
			matched = edge.boundPairs.DisjointUnionVarsHaveMatch(di.Vars, map[VarSpec]struct{}{rh.Spec: {}})
		}
		if matched {
			return checkResult{}, nil
		}
		if di.Default != nil {
			push(*di.Default, rhsInd, edge)
			return checkResult{}, nil
		}
	} else if du, ok := rhs.Head.(uDisjointUnion); ok {
		if tv, ok := lhs.Head.(vTypeVar); ok {
			if edge.boundPairs.DisjointUnionVarsHaveMatch(map[VarSpec]struct{}{tv.Spec: {}}, du.Vars) {
				return checkResult{}, nil
			}
		}
		if du.Default != nil {
			push(lhsInd, *du.Default, edge)
			return checkResult{}, nil
		}
	}

	// 3. Instantiation request meets matching quantifier.
	if ie, ok := lhs.Head.(vInstantiateExist); ok {
		if ph, ok := rhs.Head.(uPolyHead); ok && ph.Poly.Kind == ast.PolyExistential {
			if ph.Poison {
				return checkResult{}, poisonedPolyErr(lhs.Span)
			}
			return checkResult{instantiate: &instantiateRequest{
				poly: ph.Poly, params: ie.Params, srcTemplate: ie.SrcTemplate,
				reason: edge.reason, bodyIsValue: false, lhsSub: ie.Target, rhsSub: ph.Body,
			}}, nil
		}
		push(ie.Target, rhsInd, edge)
		return checkResult{}, nil
	}
	if iu, ok := rhs.Head.(uInstantiateUni); ok {
		if ph, ok := lhs.Head.(vPolyHead); ok && ph.Poly.Kind == ast.PolyUniversal {
			if ph.Poison {
				return checkResult{}, poisonedPolyErr(rhs.Span)
			}
			return checkResult{instantiate: &instantiateRequest{
				poly: ph.Poly, params: iu.Params, srcTemplate: iu.SrcTemplate,
				reason: edge.reason, bodyIsValue: true, lhsSub: ph.Body, rhsSub: iu.Target,
			}}, nil
		}
		push(lhsInd, iu.Target, edge)
		return checkResult{}, nil
	}

	// 4. Quantifier heads.
	lPoly, lIsPoly := lhs.Head.(vPolyHead)
	rPoly, rIsPoly := rhs.Head.(uPolyHead)
	switch {
	case lIsPoly && rIsPoly:
		edge.boundPairs.Push(lPoly.Poly.Loc, rPoly.Poly.Loc)
		push(lPoly.Body, rPoly.Body, edge)
		return checkResult{}, nil
	case lIsPoly:
		push(lPoly.Body, rhsInd, edge)
		return checkResult{}, nil
	case rIsPoly:
		push(lhsInd, rPoly.Body, edge)
		return checkResult{}, nil
	}

	switch l := lhs.Head.(type) {
	case vFunc:
		r, ok := rhs.Head.(uFunc)
		if !ok {
			return checkResult{}, typeMismatchErr(c, lhs, rhs)
		}
		push(r.Arg, l.Arg, edge.flip())
		push(l.Ret, r.Ret, edge)
		return checkResult{}, nil

	case vObj:
		r, ok := rhs.Head.(uObj)
		if !ok {
			return checkResult{}, typeMismatchErr(c, lhs, rhs)
		}
		for name, rf := range r.Fields {
			lf, ok := l.Fields[name]
			if !ok {
				return checkResult{}, missingFieldErr(lhs.Span, rf.Span, name)
			}
			push(lf.Read, rf.Read, edge)
			if rf.Write != nil {
				if lf.Write == nil {
					return checkResult{}, immutableFieldErr(lf.Span, rf.Span, name)
				}
				push(*rf.Write, *lf.Write, edge.flip())
			}
		}
		return checkResult{}, nil

	case vCase:
		r, ok := rhs.Head.(uCase)
		if !ok {
			return checkResult{}, typeMismatchErr(c, lhs, rhs)
		}
		if rhs2, ok := r.Cases[l.Tag]; ok {
			push(l.Value, rhs2, edge)
			return checkResult{}, nil
		}
		if r.Wildcard != nil {
			push(lhsInd, *r.Wildcard, edge)
			return checkResult{}, nil
		}
		return checkResult{}, unhandledVariantErr(lhs.Span, rhs.Span, l.Tag)

	case vAbstract:
		r, ok := rhs.Head.(uAbstract)
		if !ok {
			return checkResult{}, typeMismatchErr(c, lhs, rhs)
		}
		if l.Ty != r.Ty {
			return checkResult{}, typeMismatchErr(c, lhs, rhs)
		}
		ctorLvl := c.typeCtors[l.Ty].FuncLvl
		if edge.funcLvl < ctorLvl {
			return checkResult{}, typeEscapeErr(c, l.Ty, lhs.Span, rhs.Span, edge.funcLvl)
		}
		return checkResult{}, nil

	case vTypeVar:
		r, ok := rhs.Head.(uTypeVar)
		if !ok || l.Spec.Name != r.Spec.Name || !edge.boundPairs.Get(l.Spec.Loc, r.Spec.Loc) {
			return checkResult{}, typeMismatchErr(c, lhs, rhs)
		}
		return checkResult{}, nil
	}

	return checkResult{}, typeMismatchErr(c, lhs, rhs)
}

func describeVHead(h vHead) string {
	switch v := h.(type) {
	case vUnion:
		return "union"
	case vInstantiateExist:
		return "existential instantiation"
	case vTop:
		return "top"
	case vFunc:
		return "function"
	case vObj:
		return "record"
	case vCase:
		return fmt.Sprintf("case `%s", v.Tag)
	case vAbstract:
		return "abstract type"
	case vPolyHead:
		return "polymorphic value"
	case vTypeVar:
		return fmt.Sprintf("type variable %s", v.Spec.Name)
	case vDisjointIntersect:
		return "disjoint intersection"
	}
	return "value"
}

func describeUHead(h uHead) string {
	switch u := h.(type) {
	case uIntersection:
		return "intersection"
	case uInstantiateUni:
		return "universal instantiation"
	case uBot:
		return "bottom"
	case uFunc:
		return "function"
	case uObj:
		return "record"
	case uCase:
		return "case"
	case uAbstract:
		return "abstract type"
	case uPolyHead:
		return "polymorphic use"
	case uTypeVar:
		return fmt.Sprintf("type variable %s", u.Spec.Name)
	case uDisjointUnion:
		return "disjoint union"
	}
	return "use"
}
