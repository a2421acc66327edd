package poolopt

import "fmt"

// Builder appends ops to a block, or inserts them before an anchor op.
type Builder struct {
	f      *Func
	block  BlockID
	before OpID
}

// NewBuilder returns a builder appending to the function body.
func NewBuilder(f *Func) *Builder {
	return &Builder{f: f, block: f.Body, before: NoOp}
}

// NewBuilderBefore returns a builder inserting immediately before anchor,
// in anchor's block.
func NewBuilderBefore(f *Func, anchor OpID) *Builder {
	return &Builder{f: f, block: f.Op(anchor).Block, before: anchor}
}

// Func returns the function being built.
func (b *Builder) Func() *Func { return b.f }

// Block returns the current insertion block.
func (b *Builder) Block() BlockID { return b.block }

// SetBlock moves the insertion point to the end of blk.
func (b *Builder) SetBlock(blk BlockID) {
	b.block = blk
	b.before = NoOp
}

func (b *Builder) insert(id OpID) {
	f := b.f
	f.ops[id].Block = b.block
	blk := &f.blocks[b.block]
	if b.before == NoOp {
		blk.Ops = append(blk.Ops, id)
		return
	}
	i := indexOf(blk.Ops, b.before)
	if i < 0 {
		panic(fmt.Sprintf("anchor op %d is not in block %d", b.before, b.block))
	}
	blk.Ops = append(blk.Ops, NoOp)
	copy(blk.Ops[i+1:], blk.Ops[i:])
	blk.Ops[i] = id
}

func (b *Builder) emit(code Opcode, t Type, operands ...ValueID) (OpID, ValueID) {
	id := b.f.newOp(code, operands)
	v := NoValue
	if t.Kind != TypeNone {
		v = b.f.setResult(id, t)
	}
	b.insert(id)
	return id, v
}

// Const emits an index constant.
func (b *Builder) Const(c int64) ValueID {
	id, v := b.emit(OpConst, ScalarType(Index))
	b.f.ops[id].Const = c
	return v
}

// Alloc emits a buffer allocation of type t.
func (b *Builder) Alloc(t Type) ValueID {
	_, v := b.emit(OpAlloc, t)
	return v
}

// Pool emits a byte pool of the given size.
func (b *Builder) Pool(size int64) ValueID {
	return b.Alloc(MemRef(I8, size))
}

// GetRef emits a view of type t into pool at the byte offset held by offset.
func (b *Builder) GetRef(pool, offset ValueID, t Type) ValueID {
	_, v := b.emit(OpGetRef, t, pool, offset)
	return v
}

// Load emits a read of one element of mem.
func (b *Builder) Load(mem ValueID, indices ...ValueID) ValueID {
	elem := ScalarType(b.f.values[mem].Type.Elem)
	_, v := b.emit(OpLoad, elem, append([]ValueID{mem}, indices...)...)
	return v
}

// Store emits a write of val into mem.
func (b *Builder) Store(val, mem ValueID, indices ...ValueID) OpID {
	id, _ := b.emit(OpStore, Type{}, append([]ValueID{val, mem}, indices...)...)
	return id
}

// Compute emits an arbitrary named operation. A zero t yields no result.
func (b *Builder) Compute(name string, t Type, args ...ValueID) ValueID {
	id, v := b.emit(OpCompute, t, args...)
	b.f.ops[id].Name = name
	return v
}

// Iterate emits a loop over bounds and returns the loop op and its body.
// The body binds the induction variable as its first argument.
func (b *Builder) Iterate(bounds ...ValueID) (OpID, BlockID) {
	id, _ := b.emit(OpIterate, Type{}, bounds...)
	body := b.f.newBlock(id)
	b.f.addBlockArg(body, ScalarType(Index))
	b.f.ops[id].Regions = []BlockID{body}
	return id, body
}

// If emits a conditional with a then region and, if withElse is set, an else
// region. els is NoBlock otherwise.
func (b *Builder) If(cond ValueID, withElse bool) (id OpID, then, els BlockID) {
	id, _ = b.emit(OpIf, Type{}, cond)
	then = b.f.newBlock(id)
	els = NoBlock
	b.f.ops[id].Regions = []BlockID{then}
	if withElse {
		els = b.f.newBlock(id)
		b.f.ops[id].Regions = append(b.f.ops[id].Regions, els)
	}
	return id, then, els
}

// Dealloc emits the release of mem.
func (b *Builder) Dealloc(mem ValueID) OpID {
	id, _ := b.emit(OpDealloc, Type{}, mem)
	return id
}

// Return emits a function terminator.
func (b *Builder) Return(vals ...ValueID) OpID {
	id, _ := b.emit(OpReturn, Type{}, vals...)
	return id
}

// IV returns the induction variable of a loop op.
func (f *Func) IV(loop OpID) ValueID {
	return f.blocks[f.ops[loop].Regions[0]].Args[0]
}

func indexOf(ops []OpID, id OpID) int {
	for i, o := range ops {
		if o == id {
			return i
		}
	}
	return -1
}
