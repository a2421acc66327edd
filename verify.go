package poolopt

import (
	"errors"
	"fmt"
)

// Verify checks that the function is well formed: every operand is defined
// and visible at its use, memory operands are memrefs, and getref offsets are
// constants that keep the view inside its pool.
func (f *Func) Verify() error {
	v := &verifier{f: f}
	scope := make(map[ValueID]struct{})
	for _, a := range f.Args() {
		scope[a] = struct{}{}
	}
	v.block(f.Body, scope)
	return errors.Join(v.errs...)
}

type verifier struct {
	f    *Func
	errs []error
}

func (v *verifier) errorf(op *Op, format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf("op %d (%s): %s", op.ID, op.Code, fmt.Sprintf(format, args...)))
}

func (v *verifier) block(b BlockID, outer map[ValueID]struct{}) {
	scope := make(map[ValueID]struct{}, len(outer))
	for k := range outer {
		scope[k] = struct{}{}
	}
	for _, a := range v.f.blocks[b].Args {
		scope[a] = struct{}{}
	}
	for _, id := range v.f.blocks[b].Ops {
		op := v.f.Op(id)
		if op.dead {
			v.errorf(op, "erased op still linked")
			continue
		}
		if op.Block != b {
			v.errorf(op, "linked into block %d but records block %d", b, op.Block)
		}
		for i, o := range op.Operands {
			if o < 0 || int(o) >= len(v.f.values) {
				v.errorf(op, "operand %d out of range", i)
				continue
			}
			if _, ok := scope[o]; !ok {
				v.errorf(op, "operand %d (%s) is not visible here", i, v.f.ValueName(o))
			}
		}
		v.check(op)
		for _, r := range op.Regions {
			if v.f.blocks[r].Parent != id {
				v.errorf(op, "region %d has parent %d", r, v.f.blocks[r].Parent)
			}
			v.block(r, scope)
		}
		if op.Result != NoValue {
			scope[op.Result] = struct{}{}
		}
	}
}

func (v *verifier) check(op *Op) {
	f := v.f
	if i := op.Code.memrefOperand(); i >= 0 {
		if len(op.Operands) <= i || !f.values[op.Operands[i]].Type.IsMemRef() {
			v.errorf(op, "expects a memref operand at position %d", i)
			return
		}
	}
	switch op.Code {
	case OpAlloc:
		if !f.ResultType(op.ID).IsMemRef() {
			v.errorf(op, "result must be a memref")
		}
	case OpIterate:
		if len(op.Regions) != 1 || len(f.blocks[op.Regions[0]].Args) == 0 {
			v.errorf(op, "expects one body region binding the induction variable")
		}
	case OpIf:
		if len(op.Regions) < 1 || len(op.Regions) > 2 {
			v.errorf(op, "expects one or two regions")
		}
	case OpGetRef:
		v.checkGetRef(op)
	}
}

func (v *verifier) checkGetRef(op *Op) {
	f := v.f
	if len(op.Operands) != 2 {
		v.errorf(op, "expects pool and offset operands")
		return
	}
	poolType := f.values[op.Operands[0]].Type
	if !poolType.IsMemRef() {
		v.errorf(op, "pool operand is not a memref")
		return
	}
	def := f.DefOp(op.Operands[1])
	if def == NoOp || f.Op(def).Code != OpConst {
		v.errorf(op, "offset is not a constant")
		return
	}
	offset := f.Op(def).Const
	poolSize, ok := poolType.SizeBytes()
	if !ok {
		return
	}
	if offset < 0 || (offset >= poolSize && poolSize > 0) {
		v.errorf(op, "offset %d outside pool of %d bytes", offset, poolSize)
		return
	}
	if size, ok := f.ResultType(op.ID).SizeBytes(); ok && offset+size > poolSize {
		v.errorf(op, "view [%d, %d) overruns pool of %d bytes", offset, offset+size, poolSize)
	}
}
