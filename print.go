package poolopt

import (
	"strconv"
	"strings"
)

// String renders the function in a textual form. Unnamed values are numbered
// in order of definition, so two structurally identical functions print the
// same regardless of arena layout.
func (f *Func) String() string {
	p := &printer{f: f, names: make(map[ValueID]string)}
	p.b.WriteString("func @")
	p.b.WriteString(f.Name)
	p.b.WriteByte('(')
	p.args(f.Args(), true)
	p.b.WriteString(") {\n")
	p.block(f.Body, 1)
	p.b.WriteString("}\n")
	return p.b.String()
}

// OpString renders a single op without its regions.
func (f *Func) OpString(id OpID) string {
	p := &printer{f: f, names: make(map[ValueID]string)}
	p.op(f.Op(id), 0, false)
	return strings.TrimSuffix(p.b.String(), "\n")
}

type printer struct {
	f     *Func
	b     strings.Builder
	names map[ValueID]string
	next  int
}

func (p *printer) name(v ValueID) string {
	if n, ok := p.names[v]; ok {
		return n
	}
	var n string
	if v == NoValue {
		n = "%<none>"
	} else if ann := p.f.values[v].Name; ann != "" {
		n = "%" + ann
	} else {
		n = "%" + strconv.Itoa(p.next)
		p.next++
	}
	p.names[v] = n
	return n
}

func (p *printer) args(vs []ValueID, typed bool) {
	for i, v := range vs {
		if i > 0 {
			p.b.WriteString(", ")
		}
		p.b.WriteString(p.name(v))
		if typed {
			p.b.WriteString(": ")
			p.b.WriteString(p.f.values[v].Type.String())
		}
	}
}

func (p *printer) block(id BlockID, depth int) {
	for _, op := range p.f.blocks[id].Ops {
		p.op(p.f.Op(op), depth, true)
	}
}

func (p *printer) indent(depth int) {
	for i := 0; i < depth; i++ {
		p.b.WriteString("  ")
	}
}

func (p *printer) op(op *Op, depth int, regions bool) {
	p.indent(depth)
	if op.Result != NoValue {
		p.b.WriteString(p.name(op.Result))
		p.b.WriteString(" = ")
	}
	p.b.WriteString(op.Code.String())
	switch op.Code {
	case OpConst:
		p.b.WriteByte(' ')
		p.b.WriteString(strconv.FormatInt(op.Const, 10))
	case OpGetRef, OpLoad:
		p.b.WriteByte(' ')
		p.b.WriteString(p.name(op.Operands[0]))
		p.b.WriteByte('[')
		p.args(op.Operands[1:], false)
		p.b.WriteByte(']')
	case OpStore:
		p.b.WriteByte(' ')
		p.b.WriteString(p.name(op.Operands[0]))
		p.b.WriteString(", ")
		p.b.WriteString(p.name(op.Operands[1]))
		p.b.WriteByte('[')
		p.args(op.Operands[2:], false)
		p.b.WriteByte(']')
	case OpCompute:
		p.b.WriteString(" ")
		p.b.WriteString(strconv.Quote(op.Name))
		p.b.WriteByte('(')
		p.args(op.Operands, false)
		p.b.WriteByte(')')
	case OpIterate, OpIf:
		p.b.WriteByte('(')
		p.args(op.Operands, false)
		p.b.WriteByte(')')
	default:
		if len(op.Operands) > 0 {
			p.b.WriteByte(' ')
			p.args(op.Operands, false)
		}
	}
	if op.Result != NoValue {
		p.b.WriteString(" : ")
		p.b.WriteString(p.f.values[op.Result].Type.String())
	}
	if !regions || len(op.Regions) == 0 {
		p.b.WriteByte('\n')
		return
	}
	for i, r := range op.Regions {
		if i > 0 {
			p.b.WriteString(" else")
		}
		if args := p.f.blocks[r].Args; len(args) > 0 {
			p.b.WriteString(" (")
			p.args(args, false)
			p.b.WriteByte(')')
		}
		p.b.WriteString(" {\n")
		p.block(r, depth+1)
		p.indent(depth)
		p.b.WriteByte('}')
	}
	p.b.WriteByte('\n')
}
