package poolopt

import "fmt"

// ReplaceAllUses rebinds every operand reading old to read repl instead. It
// returns the number of rebound operands.
func (f *Func) ReplaceAllUses(old, repl ValueID) int {
	n := 0
	for i := range f.ops {
		op := &f.ops[i]
		if op.dead {
			continue
		}
		for j, o := range op.Operands {
			if o == old {
				op.Operands[j] = repl
				n++
			}
		}
	}
	return n
}

// Erase unlinks an op from its block. The op's result must be unused and the
// op must not own regions.
func (f *Func) Erase(id OpID) error {
	op := &f.ops[id]
	if op.dead {
		return fmt.Errorf("op %d (%s) already erased", id, op.Code)
	}
	if len(op.Regions) > 0 {
		return fmt.Errorf("op %d (%s) owns regions and cannot be erased", id, op.Code)
	}
	if op.Result != NoValue {
		if users := f.Users(op.Result); len(users) > 0 {
			return fmt.Errorf("op %d (%s) still has %d users", id, op.Code, len(users))
		}
	}
	blk := &f.blocks[op.Block]
	i := indexOf(blk.Ops, id)
	if i < 0 {
		return fmt.Errorf("op %d (%s) is not linked into block %d", id, op.Code, op.Block)
	}
	blk.Ops = append(blk.Ops[:i], blk.Ops[i+1:]...)
	op.dead = true
	op.Block = NoBlock
	return nil
}

// Replace rebinds all uses of id's result to v and erases id. The name of
// the replaced value carries over to v when v has none.
func (f *Func) Replace(id OpID, v ValueID) error {
	old := f.ops[id].Result
	if old == NoValue {
		return fmt.Errorf("op %d (%s) has no result to replace", id, f.ops[id].Code)
	}
	if old == v {
		return fmt.Errorf("op %d (%s) replaced by its own result", id, f.ops[id].Code)
	}
	f.ReplaceAllUses(old, v)
	if f.values[v].Name == "" {
		f.values[v].Name = f.values[old].Name
	}
	return f.Erase(id)
}

// PruneUnused erases ops of the given kinds whose results have no users and
// returns how many were erased.
func (f *Func) PruneUnused(codes ...Opcode) int {
	uses := make([]int, len(f.values))
	f.Walk(func(op *Op) bool {
		for _, o := range op.Operands {
			uses[o]++
		}
		return true
	})
	var victims []OpID
	f.Walk(func(op *Op) bool {
		if op.Result != NoValue && uses[op.Result] == 0 && len(op.Regions) == 0 {
			for _, c := range codes {
				if op.Code == c {
					victims = append(victims, op.ID)
					break
				}
			}
		}
		return true
	})
	for _, id := range victims {
		if err := f.Erase(id); err != nil {
			panic(err)
		}
	}
	return len(victims)
}
