package slotreuse

import "github.com/speakeasy-api/poolopt"

// liveRange is the stretch of program order between the first and last
// access of a group.
type liveRange struct {
	first, last poolopt.OpID
}

// liveRangeExtent returns the first and last load or store touching any slot
// of g, in program order.
func (ix *index) liveRangeExtent(g group) (liveRange, error) {
	lr := liveRange{first: poolopt.NoOp, last: poolopt.NoOp}
	for _, slot := range g {
		for _, acc := range ix.accesses[slot] {
			if lr.first == poolopt.NoOp || ix.before(acc, lr.first) {
				lr.first = acc
			}
			if lr.last == poolopt.NoOp || ix.before(lr.last, acc) {
				lr.last = acc
			}
		}
	}
	if lr.first == poolopt.NoOp {
		if len(g) == 0 {
			return lr, ErrUnusedSlot
		}
		return lr, slotError(ix.f, g[0], ErrUnusedSlot)
	}
	return lr, nil
}

// liveRangeSpan returns every op from the first to the last access of g,
// inclusive, in program order. Regions are walked in place, so a loop
// contributes its body once.
func (ix *index) liveRangeSpan(g group) ([]poolopt.OpID, error) {
	lr, err := ix.liveRangeExtent(g)
	if err != nil {
		return nil, err
	}
	return ix.span(lr), nil
}

func (ix *index) span(lr liveRange) []poolopt.OpID {
	var ops []poolopt.OpID
	inRange := false
	for _, id := range ix.order {
		if id == lr.first {
			inRange = true
		}
		if inRange {
			ops = append(ops, id)
		}
		if id == lr.last {
			break
		}
	}
	return ops
}

// covers reports whether op lies within lr's span.
func (ix *index) covers(lr liveRange, op poolopt.OpID) bool {
	p := ix.pos[op]
	return ix.pos[lr.first] <= p && p <= ix.pos[lr.last]
}

// liveRangesIntersect reports whether the live ranges of groups a and b
// conflict. Co-located slots alias the same bytes, so a group lives from the
// first access of any member to the last access of any member.
func (ix *index) liveRangesIntersect(a, b group) (bool, error) {
	ra, err := ix.liveRangeExtent(a)
	if err != nil {
		return false, err
	}
	rb, err := ix.liveRangeExtent(b)
	if err != nil {
		return false, err
	}
	return ix.rangesConflict(ra, rb), nil
}

// rangesConflict applies the three intersection rules in order.
func (ix *index) rangesConflict(a, b liveRange) bool {
	// (1) an extremity of one range lies inside the other.
	if ix.covers(a, b.first) || ix.covers(a, b.last) ||
		ix.covers(b, a.first) || ix.covers(b, a.last) {
		return true
	}
	// (2) one range nests inside the other.
	if ix.contained(b, a) || ix.contained(a, b) {
		return true
	}
	// (3) the facing extremities share an outermost loop.
	return ix.inSameLoopNest(a, b)
}

// contained reports whether inner lies between outer's extremities.
func (ix *index) contained(inner, outer liveRange) bool {
	return !ix.before(inner.first, outer.first) && !ix.before(outer.last, inner.last)
}

// inSameLoopNest reports whether the end of one range and the start of the
// other sit in the same outermost loop. Extremities directly in the function
// body never share a loop nest.
func (ix *index) inSameLoopNest(a, b liveRange) bool {
	if ix.topLevel[b.first] && ix.topLevel[b.last] {
		return false
	}
	if ix.topLevel[a.first] && ix.topLevel[a.last] {
		return false
	}
	if !ix.topLevel[b.last] && !ix.topLevel[a.first] && ix.sameLoopNest(b.last, a.first) {
		return true
	}
	if !ix.topLevel[b.first] && !ix.topLevel[a.last] && ix.sameLoopNest(b.first, a.last) {
		return true
	}
	return false
}
