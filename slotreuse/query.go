package slotreuse

import (
	"fmt"

	"github.com/speakeasy-api/poolopt"
)

// group is a set of slots considered together, in program order.
type group []poolopt.OpID

func (g group) contains(slot poolopt.OpID) bool {
	for _, s := range g {
		if s == slot {
			return true
		}
	}
	return false
}

// index is a read-only snapshot of the queries the rules need. It is built
// once per rule application and must be rebuilt after the function mutates.
type index struct {
	f *poolopt.Func

	// order is the pre-order walk of the function; pos maps an op to its
	// position in order, -1 for dead ops.
	order []poolopt.OpID
	pos   []int
	// outerLoop is the outermost iterate op enclosing each op, NoOp if none.
	outerLoop []poolopt.OpID
	// topLevel is set for ops sitting directly in the function body.
	topLevel []bool

	// slotOf maps a getref result back to its op.
	slotOf map[poolopt.ValueID]poolopt.OpID
	// slots lists the getrefs reading each pool value, in program order.
	slots map[poolopt.ValueID][]poolopt.OpID
	// accesses lists loads and stores of each slot, stores those writing it.
	accesses map[poolopt.OpID][]poolopt.OpID
	stores   map[poolopt.OpID][]poolopt.OpID
}

func newIndex(f *poolopt.Func) *index {
	n := f.NumOps()
	ix := &index{
		f:         f,
		order:     make([]poolopt.OpID, 0, n),
		pos:       make([]int, n),
		outerLoop: make([]poolopt.OpID, n),
		topLevel:  make([]bool, n),
		slotOf:    make(map[poolopt.ValueID]poolopt.OpID),
		slots:     make(map[poolopt.ValueID][]poolopt.OpID),
		accesses:  make(map[poolopt.OpID][]poolopt.OpID),
		stores:    make(map[poolopt.OpID][]poolopt.OpID),
	}
	for i := range ix.pos {
		ix.pos[i] = -1
	}

	// Parents are visited before their regions, so each op inherits the
	// outermost loop already recorded for its parent.
	f.Walk(func(op *poolopt.Op) bool {
		ix.pos[op.ID] = len(ix.order)
		ix.order = append(ix.order, op.ID)
		parent := f.ParentOp(op.ID)
		ix.topLevel[op.ID] = parent == poolopt.NoOp
		ix.outerLoop[op.ID] = poolopt.NoOp
		if parent != poolopt.NoOp {
			ix.outerLoop[op.ID] = ix.outerLoop[parent]
			if ix.outerLoop[op.ID] == poolopt.NoOp && f.Op(parent).Code.IsLoop() {
				ix.outerLoop[op.ID] = parent
			}
		}
		if op.Code == poolopt.OpGetRef && len(op.Operands) > 0 {
			ix.slotOf[op.Result] = op.ID
			ix.slots[op.Operands[0]] = append(ix.slots[op.Operands[0]], op.ID)
		}
		return true
	})

	// Accesses are collected in a second sweep so that a slot defined after
	// a use in walk order (which Verify rejects) cannot be missed.
	for _, id := range ix.order {
		op := f.Op(id)
		var mem poolopt.ValueID
		switch op.Code {
		case poolopt.OpLoad:
			mem = op.Operands[0]
		case poolopt.OpStore:
			mem = op.Operands[1]
		default:
			continue
		}
		for _, slot := range ix.resolveSlots(mem) {
			ix.accesses[slot] = append(ix.accesses[slot], id)
			if op.Code == poolopt.OpStore {
				ix.stores[slot] = append(ix.stores[slot], id)
			}
		}
	}
	return ix
}

// resolveSlots returns the getrefs mem is derived from. A memref produced by
// any other op views every memref among its operands. Block arguments end
// the walk.
func (ix *index) resolveSlots(mem poolopt.ValueID) []poolopt.OpID {
	f := ix.f
	var slots []poolopt.OpID
	work := newValueStack()
	work.push(mem)
	seen := make(map[poolopt.ValueID]struct{})
	for !work.empty() {
		v := work.pop()
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		if slot, ok := ix.slotOf[v]; ok {
			slots = append(slots, slot)
			continue
		}
		def := f.DefOp(v)
		if def == poolopt.NoOp || f.Op(def).Code == poolopt.OpAlloc {
			continue
		}
		for _, arg := range f.Op(def).Operands {
			if f.Value(arg).Type.IsMemRef() {
				work.push(arg)
			}
		}
	}
	return slots
}

// isPool reports whether id is an alloc in the function body with the shape
// of a byte pool.
func (ix *index) isPool(id poolopt.OpID) bool {
	op := ix.f.Op(id)
	return !op.Dead() && op.Code == poolopt.OpAlloc && ix.f.InBody(id) &&
		ix.f.ResultType(id).IsBytePool()
}

// poolSize returns the declared byte size of a pool.
func (ix *index) poolSize(pool poolopt.OpID) int64 {
	size, _ := ix.f.ResultType(pool).SizeBytes()
	return size
}

// pools returns every pool of the function that hosts at least one slot.
func (ix *index) pools() []poolopt.OpID {
	var pools []poolopt.OpID
	for _, id := range ix.f.Block(ix.f.Body).Ops {
		if ix.isPool(id) && ix.slotCount(id) > 0 {
			pools = append(pools, id)
		}
	}
	return pools
}

// ownerPool returns the pool a slot views.
func (ix *index) ownerPool(slot poolopt.OpID) (poolopt.OpID, error) {
	op := ix.f.Op(slot)
	if op.Code != poolopt.OpGetRef || len(op.Operands) != 2 {
		return poolopt.NoOp, slotError(ix.f, slot, ErrMalformedSlot)
	}
	def := ix.f.DefOp(op.Operands[0])
	if def == poolopt.NoOp || ix.f.Op(def).Code != poolopt.OpAlloc || !ix.f.InBody(def) {
		return poolopt.NoOp, slotError(ix.f, slot, fmt.Errorf("%w: buffer is not a pool in the function body", ErrMalformedSlot))
	}
	return def, nil
}

// slotsOf returns the slots viewing pool, in program order.
func (ix *index) slotsOf(pool poolopt.OpID) []poolopt.OpID {
	return ix.slots[ix.f.Op(pool).Result]
}

func (ix *index) slotCount(pool poolopt.OpID) int {
	return len(ix.slotsOf(pool))
}

// offset returns the constant byte offset of a slot.
func (ix *index) offset(slot poolopt.OpID) (int64, error) {
	op := ix.f.Op(slot)
	if len(op.Operands) != 2 {
		return 0, slotError(ix.f, slot, ErrMalformedSlot)
	}
	def := ix.f.DefOp(op.Operands[1])
	if def == poolopt.NoOp || ix.f.Op(def).Code != poolopt.OpConst {
		return 0, slotError(ix.f, slot, fmt.Errorf("%w: offset is not a constant", ErrMalformedSlot))
	}
	return ix.f.Op(def).Const, nil
}

// footprint returns the number of bytes a slot covers.
func (ix *index) footprint(slot poolopt.OpID) (int64, error) {
	size, ok := ix.f.ResultType(slot).SizeBytes()
	if !ok {
		return 0, slotError(ix.f, slot, ErrDynamicShape)
	}
	return size, nil
}

// colocated returns every slot sharing slot's pool and offset, slot included.
func (ix *index) colocated(slot poolopt.OpID) (group, error) {
	off, err := ix.offset(slot)
	if err != nil {
		return nil, err
	}
	mem := ix.f.Op(slot).Operands[0]
	var g group
	for _, s := range ix.slots[mem] {
		if o, err := ix.offset(s); err == nil && o == off {
			g = append(g, s)
		}
	}
	return g, nil
}

// slotGroup is one distinct (pool, offset) pair and the slots sharing it.
type slotGroup struct {
	offset int64
	slots  group
}

// distinctSlotGroups partitions the slots of pool by offset. Groups are
// ordered by their first slot in program order.
func (ix *index) distinctSlotGroups(pool poolopt.OpID) ([]slotGroup, error) {
	var groups []slotGroup
	at := make(map[int64]int)
	for _, s := range ix.slotsOf(pool) {
		off, err := ix.offset(s)
		if err != nil {
			return nil, err
		}
		i, ok := at[off]
		if !ok {
			i = len(groups)
			at[off] = i
			groups = append(groups, slotGroup{offset: off})
		}
		groups[i].slots = append(groups[i].slots, s)
	}
	return groups, nil
}

// groupFootprint is the largest footprint among the group's slots.
func (ix *index) groupFootprint(g group) (int64, error) {
	var size int64
	for _, s := range g {
		fp, err := ix.footprint(s)
		if err != nil {
			return 0, err
		}
		size = max(size, fp)
	}
	return size, nil
}

// totalUsedBytes sums one footprint per distinct offset of pool.
func (ix *index) totalUsedBytes(pool poolopt.OpID) (int64, error) {
	groups, err := ix.distinctSlotGroups(pool)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, g := range groups {
		size, err := ix.groupFootprint(g.slots)
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

// sameLoopNest reports whether a and b share an outermost enclosing loop.
func (ix *index) sameLoopNest(a, b poolopt.OpID) bool {
	la, lb := ix.outerLoop[a], ix.outerLoop[b]
	return la != poolopt.NoOp && la == lb
}

// before reports whether a comes strictly before b in program order.
func (ix *index) before(a, b poolopt.OpID) bool {
	return ix.pos[a] < ix.pos[b]
}
