package irload

import (
	"strconv"

	"github.com/speakeasy-api/poolopt"
)

// Program is the YAML form of a function, as read by Parse.
type Program struct {
	Func string `yaml:"func"`
	Args []Arg  `yaml:"args,omitempty"`
	Body []Op   `yaml:"body"`
}

// Arg is a function argument.
type Arg struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
}

// Op is one op of a Program.
type Op struct {
	ID    string   `yaml:"id,omitempty"`
	Op    string   `yaml:"op"`
	Args  []string `yaml:"args,omitempty,flow"`
	Type  string   `yaml:"type,omitempty"`
	Value *int64   `yaml:"value,omitempty"`
	Name  string   `yaml:"name,omitempty"`
	IV    string   `yaml:"iv,omitempty"`
	Body  []Op     `yaml:"body,omitempty"`
	Then  []Op     `yaml:"then,omitempty"`
	Else  []Op     `yaml:"else,omitempty"`
}

// Export converts f to its YAML form. Unnamed values get ids of the form
// _N, numbered in order of definition.
func Export(f *poolopt.Func) *Program {
	e := &exporter{f: f, ids: make(map[poolopt.ValueID]string)}
	p := &Program{Func: f.Name}
	for _, a := range f.Args() {
		p.Args = append(p.Args, Arg{ID: e.id(a), Type: f.Value(a).Type.String()})
	}
	p.Body = e.block(f.Body)
	return p
}

type exporter struct {
	f    *poolopt.Func
	ids  map[poolopt.ValueID]string
	next int
}

func (e *exporter) id(v poolopt.ValueID) string {
	if id, ok := e.ids[v]; ok {
		return id
	}
	id := e.f.Value(v).Name
	if id == "" {
		id = "_" + strconv.Itoa(e.next)
		e.next++
	}
	e.ids[v] = id
	return id
}

func (e *exporter) block(b poolopt.BlockID) []Op {
	var ops []Op
	for _, id := range e.f.Block(b).Ops {
		ops = append(ops, e.op(id))
	}
	return ops
}

func (e *exporter) op(id poolopt.OpID) Op {
	f := e.f
	op := f.Op(id)
	out := Op{Op: op.Code.String()}
	for _, a := range op.Operands {
		out.Args = append(out.Args, e.id(a))
	}

	switch op.Code {
	case poolopt.OpConst:
		c := op.Const
		out.Value = &c
	case poolopt.OpAlloc, poolopt.OpGetRef:
		out.Type = f.ResultType(id).String()
	case poolopt.OpCompute:
		out.Name = op.Name
		if op.Result != poolopt.NoValue {
			out.Type = f.ResultType(id).String()
		}
	case poolopt.OpIterate:
		out.IV = e.id(f.IV(id))
		out.Body = e.block(op.Regions[0])
	case poolopt.OpIf:
		out.Then = e.block(op.Regions[0])
		if len(op.Regions) > 1 {
			out.Else = e.block(op.Regions[1])
		}
	}

	if op.Result != poolopt.NoValue {
		out.ID = e.id(op.Result)
	}
	return out
}
