package slotreuse

import "github.com/speakeasy-api/poolopt"

// usesAreDisjoint reports whether no store into a slot of b computes its
// value from a load of a slot of a, and no store into a slot of a computes
// its value from a load of a slot of b.
func (ix *index) usesAreDisjoint(a, b group) bool {
	return !ix.storesReadFrom(b, a) && !ix.storesReadFrom(a, b)
}

// storesReadFrom reports whether any store into dst depends on a load from
// src. It stops at the first witness.
func (ix *index) storesReadFrom(dst, src group) bool {
	for _, slot := range dst {
		for _, store := range ix.stores[slot] {
			if ix.dependsOnLoad(store, src) {
				return true
			}
		}
	}
	return false
}

// dependsOnLoad walks the operand graph of the value stored by store and
// reports whether it reaches a load of a slot in src. Block arguments end
// the walk: they carry no dependency the analysis can follow.
func (ix *index) dependsOnLoad(store poolopt.OpID, src group) bool {
	f := ix.f
	work := newValueStack()
	work.push(f.Op(store).Operands[0])
	visited := make(map[poolopt.OpID]struct{})

	for !work.empty() {
		def := f.DefOp(work.pop())
		if def == poolopt.NoOp {
			continue
		}
		if _, seen := visited[def]; seen {
			continue
		}
		visited[def] = struct{}{}

		op := f.Op(def)
		if op.Code == poolopt.OpLoad {
			for _, slot := range ix.resolveSlots(op.Operands[0]) {
				if src.contains(slot) {
					return true
				}
			}
			continue
		}
		work.push(op.Operands...)
	}
	return false
}
