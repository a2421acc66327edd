// Package poolopt is a small block-structured IR for functions whose scratch
// buffers have been bundled into statically sized byte pools. Operations,
// blocks and values live in per-function arenas and are addressed by stable
// integer IDs, so analyses can keep side tables indexed by ID.
package poolopt

import "fmt"

type (
	// OpID identifies an Op within its Func.
	OpID int32
	// BlockID identifies a Block within its Func.
	BlockID int32
	// ValueID identifies a Value within its Func.
	ValueID int32
)

const (
	NoOp    OpID    = -1
	NoBlock BlockID = -1
	NoValue ValueID = -1
)

// Op is a single operation. Fields are interpreted according to Code.
type Op struct {
	ID       OpID
	Code     Opcode
	Operands []ValueID
	// Result is NoValue for ops without a result.
	Result ValueID
	// Block is the block the op currently lives in.
	Block   BlockID
	Regions []BlockID
	// Const holds the value of a const op.
	Const int64
	// Name holds the callee of a compute op.
	Name string

	dead bool
}

// Dead reports whether the op has been erased.
func (op *Op) Dead() bool { return op.dead }

// Block is an ordered list of ops with optional arguments.
type Block struct {
	ID BlockID
	// Parent is NoOp for the function body.
	Parent OpID
	Args   []ValueID
	Ops    []OpID
}

// Value is an SSA definition: an op result or a block argument.
type Value struct {
	ID   ValueID
	Type Type
	// Def is NoOp for block arguments.
	Def OpID
	// Owner is the block binding an argument, NoBlock for op results.
	Owner BlockID
	// Name is an optional annotation used when printing.
	Name string
}

// IsBlockArg reports whether v is bound by a block rather than an op.
func (v *Value) IsBlockArg() bool { return v.Def == NoOp }

// Func is a single function.
type Func struct {
	Name string
	Body BlockID

	ops    []Op
	blocks []Block
	values []Value
}

// NewFunc returns an empty function whose body binds one argument per type.
func NewFunc(name string, args ...Type) *Func {
	f := &Func{Name: name}
	f.Body = f.newBlock(NoOp)
	for _, t := range args {
		f.addBlockArg(f.Body, t)
	}
	return f
}

// Op returns the op with the given ID.
func (f *Func) Op(id OpID) *Op { return &f.ops[id] }

// Block returns the block with the given ID.
func (f *Func) Block(id BlockID) *Block { return &f.blocks[id] }

// Value returns the value with the given ID.
func (f *Func) Value(id ValueID) *Value { return &f.values[id] }

// NumOps returns the size of the op arena, dead ops included.
func (f *Func) NumOps() int { return len(f.ops) }

// NumValues returns the size of the value arena.
func (f *Func) NumValues() int { return len(f.values) }

// Args returns the function arguments.
func (f *Func) Args() []ValueID { return f.blocks[f.Body].Args }

// ResultType returns the type of op's result.
func (f *Func) ResultType(id OpID) Type {
	op := f.Op(id)
	if op.Result == NoValue {
		return Type{}
	}
	return f.values[op.Result].Type
}

// DefOp returns the op defining v, or NoOp for block arguments.
func (f *Func) DefOp(v ValueID) OpID {
	return f.values[v].Def
}

// ParentOp returns the op owning the block of id, or NoOp when id sits in
// the function body.
func (f *Func) ParentOp(id OpID) OpID {
	return f.blocks[f.ops[id].Block].Parent
}

// InBody reports whether id sits directly in the function body.
func (f *Func) InBody(id OpID) bool {
	return f.ops[id].Block == f.Body
}

// ValueName returns the annotation of v or a generated name.
func (f *Func) ValueName(v ValueID) string {
	if v == NoValue {
		return "<none>"
	}
	if name := f.values[v].Name; name != "" {
		return name
	}
	return fmt.Sprintf("v%d", v)
}

// Walk visits every live op of the function in pre-order: an op is visited
// before the ops nested in its regions. Returning false from fn stops the
// walk.
func (f *Func) Walk(fn func(*Op) bool) {
	f.WalkBlock(f.Body, fn)
}

// WalkBlock is Walk restricted to block b and its nested regions.
func (f *Func) WalkBlock(b BlockID, fn func(*Op) bool) bool {
	for _, id := range f.blocks[b].Ops {
		op := &f.ops[id]
		if !fn(op) {
			return false
		}
		for _, r := range op.Regions {
			if !f.WalkBlock(r, fn) {
				return false
			}
		}
	}
	return true
}

// Users returns the live ops reading v, in walk order.
func (f *Func) Users(v ValueID) []OpID {
	var users []OpID
	f.Walk(func(op *Op) bool {
		for _, o := range op.Operands {
			if o == v {
				users = append(users, op.ID)
				break
			}
		}
		return true
	})
	return users
}

// Ancestors returns the ops enclosing id, innermost first.
func (f *Func) Ancestors(id OpID) []OpID {
	var chain []OpID
	for p := f.ParentOp(id); p != NoOp; p = f.ParentOp(p) {
		chain = append(chain, p)
	}
	return chain
}

func (f *Func) newBlock(parent OpID) BlockID {
	id := BlockID(len(f.blocks))
	f.blocks = append(f.blocks, Block{ID: id, Parent: parent})
	return id
}

func (f *Func) addBlockArg(b BlockID, t Type) ValueID {
	v := f.newValue(t, NoOp)
	f.values[v].Owner = b
	f.blocks[b].Args = append(f.blocks[b].Args, v)
	return v
}

func (f *Func) newValue(t Type, def OpID) ValueID {
	id := ValueID(len(f.values))
	f.values = append(f.values, Value{ID: id, Type: t, Def: def, Owner: NoBlock})
	return id
}

// newOp allocates an op that is not yet linked into a block.
func (f *Func) newOp(code Opcode, operands []ValueID) OpID {
	id := OpID(len(f.ops))
	f.ops = append(f.ops, Op{
		ID:       id,
		Code:     code,
		Operands: append([]ValueID(nil), operands...),
		Result:   NoValue,
		Block:    NoBlock,
	})
	return id
}

func (f *Func) setResult(id OpID, t Type) ValueID {
	v := f.newValue(t, id)
	f.ops[id].Result = v
	return v
}
