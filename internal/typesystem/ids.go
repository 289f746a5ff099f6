package typesystem

// SourceLoc uniquely identifies one occurrence of a polymorphic binder
// (a `forall`/`exists` parameter list) in the program. Two generalizations
// of "the same" surface binder get distinct SourceLocs, which is exactly
// what lets BoundPairsSet tell them apart (spec.md §3).
type SourceLoc int

// locGen mints fresh SourceLocs. A Checker owns one.
type locGen struct{ next SourceLoc }

func (g *locGen) fresh() SourceLoc {
	g.next++
	return g.next
}

// NodeInd is a dense index into the reachability graph.
type NodeInd int

const (
	// None means the top of the use-lattice / bottom of the value-lattice:
	// any flow obligation touching it is trivially satisfied.
	None NodeInd = -1
	// Invalid is reserved and must never be dereferenced.
	Invalid NodeInd = -2
)

// Value is a positive (producer) reference to a graph node.
type Value struct{ Ind NodeInd }

// Use is a negative (consumer) reference to a graph node.
type Use struct{ Ind NodeInd }

// Bot is the value-lattice bottom (spec §6: "flow(v, NONE, _) ... always
// succeed").
func Bot() Value { return Value{None} }

// TopUse is the use-lattice top.
func TopUse() Use { return Use{None} }
