package typesystem

import (
	"github.com/polysubml/polysubml/internal/ast"
	"github.com/polysubml/polysubml/internal/token"
)

// TypeCtorInd is a dense index into the Checker's type-constructor
// registry (spec §3).
type TypeCtorInd int

// TypeCtor records one nominal/abstract type: built-in primitives (bool,
// float, int, str) plus every user-declared abstract type.
type TypeCtor struct {
	Name    string
	Span    *token.Span // nil for built-ins
	FuncLvl uint32       // function-nesting depth at which it was introduced
}

// PolyHeadData is shared between a quantifier head node and every edge
// context that records its loc in BoundPairsSet (spec §3).
type PolyHeadData struct {
	Kind   ast.PolyKind
	Loc    SourceLoc
	Params []PolyParam
}

type PolyParam struct {
	Name string
	Span token.Span
}

// instantiationParams is the shared, growable map of parameter name to the
// fresh (Value, Use) hole pair assigned to it on first need (spec §4.4).
// It is deliberately a plain pointer-to-map rather than anything
// reference-counted: a Checker is single-owner and single-threaded, so
// Go's normal reference semantics already give the sharing the spec asks
// for (multiple instantiation sites of the same request node observe the
// same fills).
type instantiationParams struct {
	m map[string]instantiationHole
}

type instantiationHole struct {
	Value Value
	Use   Use
}

func newInstantiationParams() *instantiationParams {
	return &instantiationParams{m: make(map[string]instantiationHole)}
}

// PolyDeps is the set of SourceLocs of enclosing binders referenced by a
// type-graph fragment, computed by the materializer (spec §4.6) and used
// by the head-matching kernel to prune a BoundPairsSet edge context down
// to only the binders actually in scope for a given pair.
type PolyDeps map[SourceLoc]struct{}

func (d PolyDeps) has(loc SourceLoc) bool {
	_, ok := d[loc]
	return ok
}

func unionDeps(sets ...PolyDeps) PolyDeps {
	out := make(PolyDeps)
	for _, s := range sets {
		for k := range s {
			out[k] = struct{}{}
		}
	}
	return out
}

// ---- Positive (Value) heads ----

type vHead interface{ isVHead() }

type vUnion struct{ Values []Value }
type vInstantiateExist struct {
	Params      *instantiationParams
	Target      Value
	SrcTemplate instantiateSrc
}
type vTop struct{}
type vFunc struct {
	Arg Use
	Ret Value
}
type vObjField struct {
	Read    Value
	Write   *Use // nil if immutable
	Span    token.Span
}
type vObj struct{ Fields map[string]vObjField }
type vCase struct {
	Tag   string
	Value Value
}
type vAbstract struct{ Ty TypeCtorInd }
type vPolyHead struct {
	Poly   *PolyHeadData
	Body   Value
	Poison bool
}
type vTypeVar struct{ Spec VarSpec }
type vDisjointIntersect struct {
	Vars    map[VarSpec]struct{}
	Default *Value
}

func (vUnion) isVHead()              {}
func (vInstantiateExist) isVHead()   {}
func (vTop) isVHead()                {}
func (vFunc) isVHead()               {}
func (vObj) isVHead()                {}
func (vCase) isVHead()               {}
func (vAbstract) isVHead()           {}
func (vPolyHead) isVHead()           {}
func (vTypeVar) isVHead()            {}
func (vDisjointIntersect) isVHead()  {}

// ---- Negative (Use) heads ----

type uHead interface{ isUHead() }

type uIntersection struct{ Uses []Use }
type uInstantiateUni struct {
	Params      *instantiationParams
	Target      Use
	SrcTemplate instantiateSrc
}
type uBot struct{}
type uFunc struct {
	Arg Value
	Ret Use
}
type uObjField struct {
	Read  Use
	Write *Value // nil if immutable
	Span  token.Span
}
type uObj struct{ Fields map[string]uObjField }
type uCase struct {
	Cases    map[string]Use
	Wildcard *Use
}
type uAbstract struct{ Ty TypeCtorInd }
type uPolyHead struct {
	Poly   *PolyHeadData
	Body   Use
	Poison bool
}
type uTypeVar struct{ Spec VarSpec }
type uDisjointUnion struct {
	Vars    map[VarSpec]struct{}
	Default *Use
}

func (uIntersection) isUHead()    {}
func (uInstantiateUni) isUHead()  {}
func (uBot) isUHead()             {}
func (uFunc) isUHead()            {}
func (uObj) isUHead()             {}
func (uCase) isUHead()            {}
func (uAbstract) isUHead()        {}
func (uPolyHead) isUHead()        {}
func (uTypeVar) isUHead()         {}
func (uDisjointUnion) isUHead()   {}

// instantiateSrc is the provenance template recorded on an instantiation
// request node, used to tag freshly-allocated holes (HoleSrc equivalent).
type instantiateSrc struct {
	Span token.Span
	Kind int // mirrors ast.InstantiateSourceKind
}

// valueNode / useNode bundle a head with its span and poly-deps (spec's
// VTypeNode / UTypeNode pairs).
type valueNode struct {
	Head vHead
	Span token.Span
	Deps PolyDeps
}

type useNode struct {
	Head uHead
	Span token.Span
	Deps PolyDeps
}

// nodeKind enumerates the four mutually exclusive node shapes (spec
// invariant 1).
type nodeKind int

const (
	kindVar nodeKind = iota
	kindValue
	kindUse
	kindPlaceholder
)

// HoleSrc is a human-readable origin tag for an inference variable, used
// only for diagnostics.
type HoleSrc struct {
	Tag  string
	Span token.Span
}

type varData struct {
	FuncLvl uint32
	Src     HoleSrc
}

// typeNode is the tagged union of spec §3's four node kinds. Exactly one
// of the kind-specific fields is meaningful, selected by Kind.
type typeNode struct {
	Kind  nodeKind
	Var   varData
	Value valueNode
	Use   useNode
}

// funcLvl returns the node's funclvl for edge-expansion purposes: a
// variable carries its creation level, every head is treated as +Inf
// (spec §4.1 "expand... hole... variables carry one, heads are treated as
// u32::MAX").
func (n *typeNode) funcLvl() uint32 {
	if n.Kind == kindVar {
		return n.Var.FuncLvl
	}
	return ^uint32(0)
}

// truncate drops any instantiation-hole entries whose Value/Use indices
// are at or beyond i — called during revert() to keep a surviving
// instantiation-request node's params map consistent with a truncated
// graph (spec invariant preserved by ExtNodeDataTrait::truncate in the
// original source).
func (n *typeNode) truncate(i NodeInd) {
	var params *instantiationParams
	switch h := n.Value.Head.(type) {
	case vInstantiateExist:
		params = h.Params
	}
	if params == nil {
		if h, ok := n.Use.Head.(uInstantiateUni); ok {
			params = h.Params
		}
	}
	if params == nil {
		return
	}
	for k, hole := range params.m {
		keepV := hole.Value.Ind < i || hole.Value.Ind == None
		keepU := hole.Use.Ind < i || hole.Use.Ind == None
		if !keepV || !keepU {
			delete(params.m, k)
		}
	}
}
