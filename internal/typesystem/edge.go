package typesystem

import "github.com/polysubml/polysubml/internal/token"

// flowReasonKind mirrors diagnostics.FlowReason but stays internal to
// typesystem so the engine never imports diagnostics for anything other
// than constructing the final error value.
type flowReasonKind int

const (
	reasonRoot flowReasonKind = iota
	reasonTransitivity
	reasonCheck
)

type flowReason struct {
	kind flowReasonKind
	span token.Span
	via  NodeInd // meaningful for reasonTransitivity
	lhs  Value   // meaningful for reasonCheck
	rhs  Use     // meaningful for reasonCheck
}

// typeEdge is the per-edge context of spec §3: a funclvl (minimum over
// transitive closure), a BoundPairsSet, and provenance.
type typeEdge struct {
	funcLvl    uint32
	boundPairs BoundPairsSet
	reason     flowReason
}

// flip returns a copy with BoundPairsSet polarity swapped — used for
// contravariant positions (function arguments, mutable-field writes).
func (e typeEdge) flip() typeEdge {
	e.boundPairs = e.boundPairs.Flip()
	return e
}

// expand lowers funcLvl to the traversed node's own level and stamps a
// transitivity reason; called while propagating an edge update across
// flows_from/flows_to during incremental closure (spec §4.1).
func (e typeEdge) expand(hole *typeNode, ind NodeInd) typeEdge {
	if lvl := hole.funcLvl(); lvl < e.funcLvl {
		e.funcLvl = lvl
	}
	e.reason = flowReason{kind: reasonTransitivity, via: ind}
	return e
}

// update tightens e toward the meet of e and other — funcLvl to the min,
// bound pairs to the intersection — returning whether anything changed
// (spec's TypeEdge::update, invariant 4 "edge monotonicity").
func (e *typeEdge) update(other typeEdge) bool {
	changed := false
	if other.funcLvl < e.funcLvl {
		e.funcLvl = other.funcLvl
		changed = true
	}
	if e.boundPairs.UpdateIntersect(other.boundPairs) {
		changed = true
	}
	return changed
}
