package typesystem

// orderedEdges is an insertion-ordered map keyed by peer NodeInd, giving
// deterministic iteration for diagnostic tie-breaks (spec §4.1). Duplicate
// inserts update the value without changing position; retain-style
// filtering reconciles stale keys left over from deletions.
type orderedEdges struct {
	keys []NodeInd
	m    map[NodeInd]typeEdge
}

func newOrderedEdges() orderedEdges {
	return orderedEdges{m: make(map[NodeInd]typeEdge)}
}

func (o *orderedEdges) insert(k NodeInd, v typeEdge) (typeEdge, bool) {
	old, had := o.m[k]
	o.m[k] = v
	if !had {
		o.keys = append(o.keys, k)
	}
	return old, had
}

func (o *orderedEdges) get(k NodeInd) (typeEdge, bool) {
	v, ok := o.m[k]
	return v, ok
}

func (o *orderedEdges) remove(k NodeInd) (typeEdge, bool) {
	v, ok := o.m[k]
	if ok {
		delete(o.m, k)
	}
	return v, ok
}

// retainBelow drops every key >= bound, reconciling the key slice with the
// backing map the way a journal-driven revert would leave stale keys that
// must be swept.
func (o *orderedEdges) retainBelow(bound NodeInd) {
	kept := o.keys[:0]
	for _, k := range o.keys {
		if k < bound {
			if _, ok := o.m[k]; ok {
				kept = append(kept, k)
			}
		} else {
			delete(o.m, k)
		}
	}
	o.keys = kept
}

type reachNode struct {
	data      typeNode
	flowsFrom orderedEdges
	flowsTo   orderedEdges
}

// journalEntry is the inverse of one edge mutation: lhs->rhs previously had
// `old` (nil meaning the edge slot was absent).
type journalEntry struct {
	lhs, rhs NodeInd
	old      *typeEdge
}

// pendingPair is one (lhs, rhs, edge) obligation discovered by add_edge, to
// be head-checked by the flow driver.
type pendingPair struct {
	lhs, rhs NodeInd
	edge     typeEdge
}

// graph is the reachability graph of spec.md §4.1: a vector of nodes plus
// directed, transitively-closed edges, with save/revert/make_permanent
// journaling for atomic top-level statements. Grounded on
// original_source/compiler_lib/src/reachability.rs.
type graph struct {
	nodes []*reachNode

	rewindMark NodeInd // 0 means "no savepoint set"
	journal    []journalEntry
}

func newGraph() *graph {
	return &graph{rewindMark: 0}
}

func (g *graph) len() int { return len(g.nodes) }

func (g *graph) get(i NodeInd) *typeNode {
	if int(i) < 0 || int(i) >= len(g.nodes) {
		return nil
	}
	return &g.nodes[i].data
}

func (g *graph) getEdge(lhs, rhs NodeInd) (typeEdge, bool) {
	if int(lhs) < 0 || int(lhs) >= len(g.nodes) {
		return typeEdge{}, false
	}
	return g.nodes[lhs].flowsTo.get(rhs)
}

func (g *graph) addNode(data typeNode) NodeInd {
	i := NodeInd(len(g.nodes))
	g.nodes = append(g.nodes, &reachNode{
		data:      data,
		flowsFrom: newOrderedEdges(),
		flowsTo:   newOrderedEdges(),
	})
	return i
}

func (g *graph) updateEdgeValue(lhs, rhs NodeInd, val typeEdge) {
	old, had := g.nodes[lhs].flowsTo.insert(rhs, val)
	g.nodes[rhs].flowsFrom.insert(lhs, val)

	if lhs < g.rewindMark && rhs < g.rewindMark {
		var oldPtr *typeEdge
		if had {
			o := old
			oldPtr = &o
		}
		g.journal = append(g.journal, journalEntry{lhs: lhs, rhs: rhs, old: oldPtr})
	}
}

// addEdge inserts or strengthens lhs->rhs and performs incremental
// transitive closure, appending every (lhs, rhs, edge) triple that is new
// or changed to out so the flow driver can head-check it.
func (g *graph) addEdge(lhs, rhs NodeInd, edgeVal typeEdge, out *[]pendingPair) {
	work := []pendingPair{{lhs, rhs, edgeVal}}

	for len(work) > 0 {
		top := work[len(work)-1]
		work = work[:len(work)-1]
		lhs, rhs, edgeVal := top.lhs, top.rhs, top.edge

		if old, ok := g.nodes[lhs].flowsTo.get(rhs); ok {
			if !old.update(edgeVal) {
				continue
			}
			edgeVal = old
		}
		g.updateEdgeValue(lhs, rhs, edgeVal)

		fromHole := edgeVal.expand(&g.nodes[lhs].data, lhs)
		for _, lhs2 := range g.nodes[lhs].flowsFrom.keys {
			work = append(work, pendingPair{lhs2, rhs, fromHole})
		}

		toHole := edgeVal.expand(&g.nodes[rhs].data, rhs)
		for _, rhs2 := range g.nodes[rhs].flowsTo.keys {
			work = append(work, pendingPair{lhs, rhs2, toHole})
		}

		*out = append(*out, pendingPair{lhs, rhs, edgeVal})
	}
}

// save stamps the current node count as the rewind mark; only callable
// from a clean state (spec §4.8).
func (g *graph) save() {
	if g.rewindMark != 0 {
		panic("typesystem: save() called while a savepoint is already active")
	}
	g.rewindMark = NodeInd(len(g.nodes))
}

// revert truncates the graph back to the rewind mark and replays the
// journal in reverse.
func (g *graph) revert() {
	mark := g.rewindMark
	g.rewindMark = 0
	g.nodes = g.nodes[:mark]

	for i := len(g.journal) - 1; i >= 0; i-- {
		e := g.journal[i]
		if e.old != nil {
			g.nodes[e.lhs].flowsTo.m[e.rhs] = *e.old
			g.nodes[e.rhs].flowsFrom.m[e.lhs] = *e.old
		} else {
			g.nodes[e.lhs].flowsTo.remove(e.rhs)
			g.nodes[e.rhs].flowsFrom.remove(e.lhs)
		}
	}
	g.journal = g.journal[:0]

	for _, n := range g.nodes {
		n.data.truncate(mark)
		n.flowsFrom.retainBelow(mark)
		n.flowsTo.retainBelow(mark)
	}
}

// makePermanent discards the journal and rewind mark, keeping every node
// added since save().
func (g *graph) makePermanent() {
	g.rewindMark = 0
	g.journal = g.journal[:0]
}
