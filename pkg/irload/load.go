// Package irload reads programs written in YAML into poolopt functions.
//
// A program is a mapping with the function name, its arguments and a body:
//
//	func: main
//	args: [n]
//	body:
//	  - {id: pool, op: alloc, type: "memref<64xi8>"}
//	  - {id: c0, op: const, value: 0}
//	  - {id: x, op: getref, args: [pool, c0], type: "memref<4xf32>"}
//	  - op: iterate
//	    args: [c0, n]
//	    iv: i
//	    body:
//	      - {id: v, op: load, args: [x, i]}
//	      - {op: store, args: [v, x, i]}
//	  - {op: dealloc, args: [pool]}
//	  - {op: return}
//
// Ids name op results and become the value names of the loaded function.
package irload

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/speakeasy-api/poolopt"
)

var idRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Error is a problem found at a position of the YAML source.
type Error struct {
	Line   int
	Column int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func errAt(n *yaml.Node, format string, args ...any) *Error {
	return &Error{Line: n.Line, Column: n.Column, Msg: fmt.Sprintf(format, args...)}
}

// LoadFile reads a program from path.
func LoadFile(path string) (*poolopt.Func, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Load reads a program from r.
func Load(r io.Reader) (*poolopt.Func, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML program and verifies the resulting function.
func Parse(data []byte) (*poolopt.Func, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &Error{Line: 1, Column: 1, Msg: "empty program"}
	}

	l := &loader{defined: make(map[string]int)}
	f, err := l.program(doc.Content[0])
	if err != nil {
		return nil, err
	}
	if err := f.Verify(); err != nil {
		return nil, fmt.Errorf("program is not well formed: %w", err)
	}
	return f, nil
}

// scope holds the ids visible in one region.
type scope struct {
	vals   map[string]poolopt.ValueID
	parent *scope
}

func (s *scope) lookup(name string) (poolopt.ValueID, bool) {
	for ; s != nil; s = s.parent {
		if v, ok := s.vals[name]; ok {
			return v, true
		}
	}
	return poolopt.NoValue, false
}

type loader struct {
	f *poolopt.Func
	b *poolopt.Builder

	// defined maps every id seen so far to its line.
	defined map[string]int
}

func (l *loader) program(root *yaml.Node) (*poolopt.Func, error) {
	fields, err := mapping(root, "program", "func", "args", "body")
	if err != nil {
		return nil, err
	}
	nameNode, ok := fields["func"]
	if !ok {
		return nil, errAt(root, "program requires 'func'")
	}
	name, err := scalar(nameNode, "func")
	if err != nil {
		return nil, err
	}

	top := &scope{vals: make(map[string]poolopt.ValueID)}
	var argNames []*yaml.Node
	var argTypes []poolopt.Type
	if n, ok := fields["args"]; ok {
		if n.Kind != yaml.SequenceNode {
			return nil, errAt(n, "'args' must be a list")
		}
		for _, a := range n.Content {
			id, t, err := l.arg(a)
			if err != nil {
				return nil, err
			}
			argNames = append(argNames, id)
			argTypes = append(argTypes, t)
		}
	}

	l.f = poolopt.NewFunc(name, argTypes...)
	l.b = poolopt.NewBuilder(l.f)
	for i, id := range argNames {
		if err := l.define(top, id, l.f.Args()[i]); err != nil {
			return nil, err
		}
	}

	body, ok := fields["body"]
	if !ok {
		return nil, errAt(root, "program requires 'body'")
	}
	if err := l.block(body, l.f.Body, top, "body"); err != nil {
		return nil, err
	}
	return l.f, nil
}

// arg decodes a function argument: a bare id of index type, or a mapping
// with id and type.
func (l *loader) arg(n *yaml.Node) (*yaml.Node, poolopt.Type, error) {
	if n.Kind == yaml.ScalarNode {
		return n, poolopt.ScalarType(poolopt.Index), nil
	}
	fields, err := mapping(n, "argument", "id", "type")
	if err != nil {
		return nil, poolopt.Type{}, err
	}
	id, ok := fields["id"]
	if !ok {
		return nil, poolopt.Type{}, errAt(n, "argument requires 'id'")
	}
	t := poolopt.ScalarType(poolopt.Index)
	if tn, ok := fields["type"]; ok {
		if t, err = parseType(tn); err != nil {
			return nil, poolopt.Type{}, err
		}
	}
	return id, t, nil
}

func (l *loader) block(n *yaml.Node, blk poolopt.BlockID, sc *scope, what string) error {
	if n.Kind != yaml.SequenceNode {
		return errAt(n, "'%s' must be a list of ops", what)
	}
	for _, item := range n.Content {
		l.b.SetBlock(blk)
		if err := l.op(item, sc); err != nil {
			return err
		}
	}
	l.b.SetBlock(blk)
	return nil
}

var opFields = []string{"id", "op", "args", "type", "value", "name", "iv", "body", "then", "else"}

func (l *loader) op(n *yaml.Node, sc *scope) error {
	fields, err := mapping(n, "op", opFields...)
	if err != nil {
		return err
	}
	codeNode, ok := fields["op"]
	if !ok {
		return errAt(n, "op requires 'op'")
	}
	codeName, err := scalar(codeNode, "op")
	if err != nil {
		return err
	}
	code, ok := poolopt.ParseOpcode(codeName)
	if !ok || code == poolopt.OpInvalid {
		return errAt(codeNode, "unknown op %q", codeName)
	}

	var args []poolopt.ValueID
	if an, ok := fields["args"]; ok {
		if an.Kind != yaml.SequenceNode {
			return errAt(an, "'args' must be a list")
		}
		for _, a := range an.Content {
			v, err := l.ref(a, sc)
			if err != nil {
				return err
			}
			args = append(args, v)
		}
	}
	if err := allowOnly(code, fields); err != nil {
		return err
	}
	argc := func(want int) error {
		if len(args) < want {
			return errAt(n, "%s requires at least %d args, got %d", code, want, len(args))
		}
		return nil
	}

	b := l.b
	result := poolopt.NoValue
	switch code {
	case poolopt.OpConst:
		vn, ok := fields["value"]
		if !ok {
			return errAt(n, "const requires 'value'")
		}
		c, err := strconv.ParseInt(vn.Value, 10, 64)
		if err != nil || vn.Kind != yaml.ScalarNode {
			return errAt(vn, "const value %q is not an integer", vn.Value)
		}
		result = b.Const(c)

	case poolopt.OpAlloc:
		t, err := requiredType(n, fields)
		if err != nil {
			return err
		}
		if !t.IsMemRef() {
			return errAt(fields["type"], "alloc type must be a memref, got %s", t)
		}
		result = b.Alloc(t)

	case poolopt.OpGetRef:
		if len(args) != 2 {
			return errAt(n, "getref requires [pool, offset] args, got %d", len(args))
		}
		t, err := requiredType(n, fields)
		if err != nil {
			return err
		}
		if !t.IsMemRef() {
			return errAt(fields["type"], "getref type must be a memref, got %s", t)
		}
		result = b.GetRef(args[0], args[1], t)

	case poolopt.OpLoad:
		if err := argc(1); err != nil {
			return err
		}
		if err := l.checkMemRef(fields["args"].Content[0], args[0]); err != nil {
			return err
		}
		result = b.Load(args[0], args[1:]...)
		if tn, ok := fields["type"]; ok {
			t, err := parseType(tn)
			if err != nil {
				return err
			}
			if !t.Equal(l.f.Value(result).Type) {
				return errAt(tn, "load type %s does not match element type %s", t, l.f.Value(result).Type)
			}
		}

	case poolopt.OpStore:
		if err := argc(2); err != nil {
			return err
		}
		if err := l.checkMemRef(fields["args"].Content[1], args[1]); err != nil {
			return err
		}
		b.Store(args[0], args[1], args[2:]...)

	case poolopt.OpCompute:
		nn, ok := fields["name"]
		if !ok {
			return errAt(n, "compute requires 'name'")
		}
		name, err := scalar(nn, "name")
		if err != nil {
			return err
		}
		var t poolopt.Type
		if tn, ok := fields["type"]; ok {
			if t, err = parseType(tn); err != nil {
				return err
			}
		}
		result = b.Compute(name, t, args...)

	case poolopt.OpIterate:
		loop, body := b.Iterate(args...)
		inner := &scope{vals: make(map[string]poolopt.ValueID), parent: sc}
		if ivn, ok := fields["iv"]; ok {
			if err := l.define(inner, ivn, l.f.IV(loop)); err != nil {
				return err
			}
		}
		if bn, ok := fields["body"]; ok {
			if err := l.block(bn, body, inner, "body"); err != nil {
				return err
			}
		}

	case poolopt.OpIf:
		if len(args) != 1 {
			return errAt(n, "if requires a single condition arg, got %d", len(args))
		}
		en, withElse := fields["else"]
		_, then, els := b.If(args[0], withElse)
		if tn, ok := fields["then"]; ok {
			if err := l.block(tn, then, &scope{vals: make(map[string]poolopt.ValueID), parent: sc}, "then"); err != nil {
				return err
			}
		}
		if withElse {
			if err := l.block(en, els, &scope{vals: make(map[string]poolopt.ValueID), parent: sc}, "else"); err != nil {
				return err
			}
		}

	case poolopt.OpDealloc:
		if len(args) != 1 {
			return errAt(n, "dealloc requires a single memref arg, got %d", len(args))
		}
		if err := l.checkMemRef(fields["args"].Content[0], args[0]); err != nil {
			return err
		}
		b.Dealloc(args[0])

	case poolopt.OpReturn:
		b.Return(args...)
	}

	idn, hasID := fields["id"]
	if !hasID {
		return nil
	}
	if result == poolopt.NoValue {
		return errAt(idn, "%s has no result to name", code)
	}
	return l.define(sc, idn, result)
}

// allowOnly rejects fields that have no meaning for code.
func allowOnly(code poolopt.Opcode, fields map[string]*yaml.Node) error {
	allowed := map[string]bool{"id": true, "op": true, "args": true}
	switch code {
	case poolopt.OpConst:
		allowed["value"] = true
		allowed["type"] = true
	case poolopt.OpAlloc, poolopt.OpGetRef, poolopt.OpLoad:
		allowed["type"] = true
	case poolopt.OpCompute:
		allowed["name"] = true
		allowed["type"] = true
	case poolopt.OpIterate:
		allowed["iv"] = true
		allowed["body"] = true
	case poolopt.OpIf:
		allowed["then"] = true
		allowed["else"] = true
	}
	for _, k := range opFields {
		if n, ok := fields[k]; ok && !allowed[k] {
			return errAt(n, "field '%s' is not allowed on %s", k, code)
		}
	}
	if tn, ok := fields["type"]; ok && code == poolopt.OpConst && tn.Value != "index" {
		return errAt(tn, "const type must be index, got %q", tn.Value)
	}
	return nil
}

func (l *loader) define(sc *scope, n *yaml.Node, v poolopt.ValueID) error {
	id, err := scalar(n, "id")
	if err != nil {
		return err
	}
	if !idRe.MatchString(id) {
		return errAt(n, "invalid id %q", id)
	}
	if line, dup := l.defined[id]; dup {
		return errAt(n, "duplicate id %q (first defined on line %d)", id, line)
	}
	l.defined[id] = n.Line
	sc.vals[id] = v
	l.f.Value(v).Name = id
	return nil
}

func (l *loader) ref(n *yaml.Node, sc *scope) (poolopt.ValueID, error) {
	id, err := scalar(n, "arg")
	if err != nil {
		return poolopt.NoValue, err
	}
	if v, ok := sc.lookup(id); ok {
		return v, nil
	}
	if line, ok := l.defined[id]; ok {
		return poolopt.NoValue, errAt(n, "value %q (line %d) is not visible here", id, line)
	}
	return poolopt.NoValue, errAt(n, "undefined value %q", id)
}

func (l *loader) checkMemRef(n *yaml.Node, v poolopt.ValueID) error {
	if t := l.f.Value(v).Type; !t.IsMemRef() {
		return errAt(n, "value %q is %s, expected a memref", n.Value, t)
	}
	return nil
}

func requiredType(op *yaml.Node, fields map[string]*yaml.Node) (poolopt.Type, error) {
	tn, ok := fields["type"]
	if !ok {
		return poolopt.Type{}, errAt(op, "op requires 'type'")
	}
	return parseType(tn)
}

func parseType(n *yaml.Node) (poolopt.Type, error) {
	if n.Kind != yaml.ScalarNode {
		return poolopt.Type{}, errAt(n, "type must be a string")
	}
	t, err := poolopt.ParseType(n.Value)
	if err != nil {
		return poolopt.Type{}, errAt(n, "%v", err)
	}
	return t, nil
}

// mapping returns the key/value pairs of n, rejecting keys outside allowed
// and repeated keys.
func mapping(n *yaml.Node, what string, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errAt(n, "%s must be a mapping", what)
	}
	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if !contains(allowed, key.Value) {
			return nil, errAt(key, "unknown field '%s' in %s", key.Value, what)
		}
		if _, dup := fields[key.Value]; dup {
			return nil, errAt(key, "field '%s' repeated in %s", key.Value, what)
		}
		fields[key.Value] = val
	}
	return fields, nil
}

func scalar(n *yaml.Node, what string) (string, error) {
	if n.Kind != yaml.ScalarNode || n.Value == "" {
		return "", errAt(n, "'%s' must be a non-empty string", what)
	}
	return n.Value, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
