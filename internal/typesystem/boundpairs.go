package typesystem

// VarSpec names one type-variable occurrence: which binder it comes from
// (SourceLoc) and its surface name. Two VarSpecs with the same name but
// different SourceLocs are "the same letter, different binder".
type VarSpec struct {
	Loc  SourceLoc
	Name string
}

// boundPairsBody is the shared, immutable-once-published payload of a
// BoundPairsSet: a mapping from SourceLoc to SourceLoc. It is always
// accessed through a BoundPairsSet, never directly, so clone-on-write can
// be enforced at that layer (spec §4.2).
type boundPairsBody struct {
	m map[SourceLoc]SourceLoc
}

func (b *boundPairsBody) get(a, c SourceLoc) bool {
	v, ok := b.m[a]
	return ok && v == c
}

func (b *boundPairsBody) clone() *boundPairsBody {
	m := make(map[SourceLoc]SourceLoc, len(b.m))
	for k, v := range b.m {
		m[k] = v
	}
	return &boundPairsBody{m: m}
}

func (b *boundPairsBody) equal(o *boundPairsBody) bool {
	if len(b.m) != len(o.m) {
		return false
	}
	for k, v := range b.m {
		if ov, ok := o.m[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// BoundPairsSet is a persistent, flip-able set of paired polymorphic-binder
// locations carried on a TypeEdge as context for same-parameter reasoning
// (spec.md §3). The zero value is the empty set.
//
// "flipped" swaps the logical roles of key/value without copying the
// underlying body; mutation is clone-on-write against that shared body.
type BoundPairsSet struct {
	body    *boundPairsBody // nil means empty
	flipped bool
}

// sameStorage reports whether two sets share identity *and* polarity — the
// fast path update_intersect relies on (spec §4.2).
func (s BoundPairsSet) sameStorage(o BoundPairsSet) bool {
	return s.body == o.body && s.flipped == o.flipped
}

// mutate applies f to a private copy of the body (or a fresh empty one),
// then keeps the edit only if it actually changed anything — an edit that
// round-trips to the same content is rolled back so update() can correctly
// report "no change" for idempotent intersections.
func (s *BoundPairsSet) mutate(f func(*boundPairsBody)) bool {
	var next *boundPairsBody
	if s.body != nil {
		next = s.body.clone()
	} else {
		next = &boundPairsBody{m: make(map[SourceLoc]SourceLoc)}
	}
	f(next)
	if len(next.m) == 0 {
		next = nil
	}

	changed := true
	switch {
	case s.body == nil && next == nil:
		changed = false
	case s.body != nil && next != nil && s.body.equal(next):
		changed = false
	}
	if changed {
		s.body = next
	}
	return changed
}

// Push inserts pair (a, c), respecting the flipped polarity.
func (s *BoundPairsSet) Push(a, c SourceLoc) {
	if s.flipped {
		a, c = c, a
	}
	s.mutate(func(b *boundPairsBody) { b.m[a] = c })
}

// FilterLeft retains only entries whose logical key passes keep.
func (s *BoundPairsSet) FilterLeft(keep func(SourceLoc) bool) {
	if s.flipped {
		s.filterRightRaw(keep)
	} else {
		s.filterLeftRaw(keep)
	}
}

// FilterRight retains only entries whose logical value passes keep.
func (s *BoundPairsSet) FilterRight(keep func(SourceLoc) bool) {
	if s.flipped {
		s.filterLeftRaw(keep)
	} else {
		s.filterRightRaw(keep)
	}
}

func (s *BoundPairsSet) filterLeftRaw(keep func(SourceLoc) bool) {
	s.mutate(func(b *boundPairsBody) {
		for k := range b.m {
			if !keep(k) {
				delete(b.m, k)
			}
		}
	})
}

func (s *BoundPairsSet) filterRightRaw(keep func(SourceLoc) bool) {
	s.mutate(func(b *boundPairsBody) {
		for k, v := range b.m {
			if !keep(v) {
				delete(b.m, k)
			}
		}
	})
}

// Flip returns a new set with key/value roles swapped, in O(1).
func (s BoundPairsSet) Flip() BoundPairsSet {
	return BoundPairsSet{body: s.body, flipped: !s.flipped}
}

// Clear empties the set.
func (s *BoundPairsSet) Clear() { *s = BoundPairsSet{} }

// Get reports whether (a, c) is a member, honoring polarity.
func (s BoundPairsSet) Get(a, c SourceLoc) bool {
	if s.body == nil {
		return false
	}
	if s.flipped {
		return s.body.get(c, a)
	}
	return s.body.get(a, c)
}

// UpdateIntersect intersects self with other as mappings (pairs present in
// both), returning whether self changed. Two sets sharing storage and
// polarity are "equal" and short-circuit to no-op (spec §3).
func (s *BoundPairsSet) UpdateIntersect(other BoundPairsSet) bool {
	if s.sameStorage(other) {
		return false
	}
	if other.body == nil {
		changed := s.body != nil
		s.Clear()
		return changed
	}
	flip := s.flipped != other.flipped
	if flip {
		return s.mutate(func(b *boundPairsBody) {
			for k, v := range b.m {
				if !other.body.get(v, k) {
					delete(b.m, k)
				}
			}
		})
	}
	return s.mutate(func(b *boundPairsBody) {
		for k, v := range b.m {
			if !other.body.get(k, v) {
				delete(b.m, k)
			}
		}
	})
}

// DisjointUnionVarsHaveMatch reports whether some (a, c) in the set has
// (a, n) in lhs and (c, n) in rhs for some shared name n (spec §3).
func (s BoundPairsSet) DisjointUnionVarsHaveMatch(lhs, rhs map[VarSpec]struct{}) bool {
	if s.flipped {
		lhs, rhs = rhs, lhs
	}
	if s.body == nil {
		return false
	}
	for spec := range lhs {
		loc2, ok := s.body.m[spec.Loc]
		if !ok {
			continue
		}
		if _, ok := rhs[VarSpec{Loc: loc2, Name: spec.Name}]; ok {
			return true
		}
	}
	return false
}
