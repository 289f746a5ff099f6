package typesystem

import (
	"github.com/polysubml/polysubml/internal/diagnostics"
	"github.com/polysubml/polysubml/internal/token"
)

// Checker is the biunification engine of spec.md §3/§4: a reachability
// graph plus a registry of nominal type constructors and the current
// function-nesting depth, grounded on original_source/src/core.rs's
// TypeCheckerCore.
type Checker struct {
	g         *graph
	typeCtors []TypeCtor
	locs      locGen
	funcLvl   uint32
	flowCount uint64
	varCount  uint64
}

// Stats mirrors original_source/src/core.rs's TypeCheckerCore bookkeeping
// fields, exposed read-only for the CLI's --stats flag and for gRPC
// response metadata (SPEC_FULL.md §6.1).
type Stats struct {
	NodeCount int
	FlowCount uint64
	VarCount  uint64
}

func (c *Checker) Stats() Stats {
	return Stats{NodeCount: c.g.len(), FlowCount: c.flowCount, VarCount: c.varCount}
}

// NewChecker returns a Checker preloaded with the built-in scalar type
// constructors (spec §2 "bool, float, int, str are abstract types baked
// into the root scope").
func NewChecker() *Checker {
	c := &Checker{g: newGraph()}
	for _, name := range []string{"bool", "float", "int", "str"} {
		c.typeCtors = append(c.typeCtors, TypeCtor{Name: name})
	}
	return c
}

// RegisterTypeCtor introduces a user-declared abstract type at the
// checker's current function level, returning its index for use in
// vAbstract/uAbstract heads.
func (c *Checker) RegisterTypeCtor(name string, span token.Span) TypeCtorInd {
	i := TypeCtorInd(len(c.typeCtors))
	c.typeCtors = append(c.typeCtors, TypeCtor{Name: name, Span: &span, FuncLvl: c.funcLvl})
	return i
}

// EnterFunc/LeaveFunc bracket the body of a function or loop literal,
// raising funclvl for the duration so abstract types introduced inside
// cannot later escape through a returned value (spec §4.5).
func (c *Checker) EnterFunc() uint32 {
	c.funcLvl++
	return c.funcLvl
}

func (c *Checker) LeaveFunc() {
	c.funcLvl--
}

func (c *Checker) FuncLvl() uint32 { return c.funcLvl }

func (c *Checker) FreshLoc() SourceLoc { return c.locs.fresh() }

// NewVar allocates a flexible inference variable: a single graph node
// addressable as both a Value (its current lower bound) and a Use (its
// current upper bound), the mechanism by which unannotated parameters and
// let-bindings get their type filled in during checking (spec §4).
func (c *Checker) NewVar(src HoleSrc) (Value, Use) {
	c.varCount++
	ind := c.g.addNode(typeNode{Kind: kindVar, Var: varData{FuncLvl: c.funcLvl, Src: src}})
	return Value{Ind: ind}, Use{Ind: ind}
}

// NewValue / NewUse allocate a fixed (non-variable) node around the given
// head, used by the materializer to build concrete type fragments.
func (c *Checker) NewValue(h vHead, span token.Span, deps PolyDeps) Value {
	ind := c.g.addNode(typeNode{Kind: kindValue, Value: valueNode{Head: h, Span: span, Deps: deps}})
	return Value{Ind: ind}
}

func (c *Checker) NewUse(h uHead, span token.Span, deps PolyDeps) Use {
	ind := c.g.addNode(typeNode{Kind: kindUse, Use: useNode{Head: h, Span: span, Deps: deps}})
	return Use{Ind: ind}
}

// Flow is the public entry point: it asserts lhs <: rhs at the given
// provenance span, runs the transitive-closure worklist, and head-checks
// every newly discovered pair until the worklist is dry or an error is
// found (spec §4.1 "flow()" / §4.3 "the flow driver").
func (c *Checker) Flow(lhs Value, rhs Use, span token.Span) *diagnostics.DiagnosticError {
	if lhs.Ind == None || rhs.Ind == None {
		// Bot() and TopUse() are sentinels, not graph nodes: a flow
		// touching either trivially succeeds (spec §3 "flow(v, NONE, _)").
		return nil
	}
	c.flowCount++
	root := typeEdge{funcLvl: c.funcLvl, reason: flowReason{kind: reasonRoot, span: span}}
	return c.runFlow(lhs.Ind, rhs.Ind, root)
}

func (c *Checker) runFlow(lhsInd, rhsInd NodeInd, edge typeEdge) *diagnostics.DiagnosticError {
	var pending []pendingPair
	c.g.addEdge(lhsInd, rhsInd, edge, &pending)
	return c.drain(pending)
}

// drain head-checks every pending pair, recursing through addEdge for
// whatever subordinate obligations or instantiation copies each check
// produces, until none remain.
func (c *Checker) drain(pending []pendingPair) *diagnostics.DiagnosticError {
	for len(pending) > 0 {
		p := pending[0]
		pending = pending[1:]

		lhsNode := c.g.get(p.lhs)
		rhsNode := c.g.get(p.rhs)
		if lhsNode == nil || rhsNode == nil || lhsNode.Kind != kindValue || rhsNode.Kind != kindUse {
			// Edges touching a variable (or, transiently, a placeholder)
			// carry no head pair to check yet; they become checkable once a
			// head lands on that side via a later addEdge call.
			continue
		}

		res, err := c.checkHeads(Value{Ind: p.lhs}, &lhsNode.Value, Use{Ind: p.rhs}, &rhsNode.Use, p.edge, &pending)
		if err != nil {
			return err
		}
		if res.instantiate != nil {
			c.runInstantiate(*res.instantiate, &pending)
		}
	}
	return nil
}

// Save/Revert/MakePermanent bracket one top-level statement's worth of
// inference so a failing statement leaves no trace (spec §4.8).
func (c *Checker) Save() { c.g.save() }

func (c *Checker) Revert() { c.g.revert() }

func (c *Checker) MakePermanent() { c.g.makePermanent() }
