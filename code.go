package poolopt

// Opcode is the kind discriminant of an Op.
type Opcode int

const (
	OpInvalid Opcode = iota
	OpConst
	OpAlloc
	OpGetRef
	OpLoad
	OpStore
	OpCompute
	OpIterate
	OpIf
	OpDealloc
	OpReturn
)

func (op Opcode) String() string {
	switch op {
	case OpInvalid:
		return "invalid"
	case OpConst:
		return "const"
	case OpAlloc:
		return "alloc"
	case OpGetRef:
		return "getref"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpCompute:
		return "compute"
	case OpIterate:
		return "iterate"
	case OpIf:
		return "if"
	case OpDealloc:
		return "dealloc"
	case OpReturn:
		return "return"
	default:
		panic(int(op))
	}
}

// ParseOpcode returns the opcode whose String() is s.
func ParseOpcode(s string) (Opcode, bool) {
	for op := OpConst; op <= OpReturn; op++ {
		if op.String() == s {
			return op, true
		}
	}
	return OpInvalid, false
}

// IsLoop reports whether ops of this kind carry a loop body region.
func (op Opcode) IsLoop() bool {
	return op == OpIterate
}

// HasRegions reports whether ops of this kind own nested blocks.
func (op Opcode) HasRegions() bool {
	return op == OpIterate || op == OpIf
}

// memrefOperand returns the index of the memref operand for memory
// accesses, or -1.
func (op Opcode) memrefOperand() int {
	switch op {
	case OpLoad, OpDealloc:
		return 0
	case OpStore:
		return 1
	default:
		return -1
	}
}
