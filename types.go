package poolopt

import (
	"fmt"
	"strconv"
	"strings"
)

// DynamicDim marks a memref dimension whose extent is unknown at compile time.
const DynamicDim int64 = -1

// Scalar is an element type.
type Scalar uint8

const (
	ScalarInvalid Scalar = iota
	I1
	I8
	I16
	I32
	I64
	F16
	F32
	F64
	Index
)

var scalarNames = [...]string{
	ScalarInvalid: "invalid",
	I1:            "i1",
	I8:            "i8",
	I16:           "i16",
	I32:           "i32",
	I64:           "i64",
	F16:           "f16",
	F32:           "f32",
	F64:           "f64",
	Index:         "index",
}

func (s Scalar) String() string {
	if int(s) < len(scalarNames) {
		return scalarNames[s]
	}
	return "invalid"
}

// Bytes returns the storage size of one element. i1 is stored as a byte.
func (s Scalar) Bytes() int64 {
	switch s {
	case I1, I8:
		return 1
	case I16, F16:
		return 2
	case I32, F32:
		return 4
	case I64, F64, Index:
		return 8
	default:
		return 0
	}
}

// TypeKind tells scalars and memrefs apart.
type TypeKind uint8

const (
	TypeNone TypeKind = iota
	TypeScalar
	TypeMemRef
)

// Type is the type of a Value.
type Type struct {
	Kind  TypeKind
	Elem  Scalar
	Shape []int64
}

// ScalarType returns the scalar type s.
func ScalarType(s Scalar) Type {
	return Type{Kind: TypeScalar, Elem: s}
}

// MemRef returns a memref type of the given element and shape.
func MemRef(elem Scalar, shape ...int64) Type {
	return Type{Kind: TypeMemRef, Elem: elem, Shape: append([]int64(nil), shape...)}
}

// IsMemRef reports whether t is a buffer type.
func (t Type) IsMemRef() bool { return t.Kind == TypeMemRef }

// Rank returns the number of dimensions of a memref.
func (t Type) Rank() int { return len(t.Shape) }

// ElemBytes returns the size of one element in bytes.
func (t Type) ElemBytes() int64 { return t.Elem.Bytes() }

// IsStatic reports whether every dimension is a compile-time constant.
func (t Type) IsStatic() bool {
	for _, d := range t.Shape {
		if d < 0 {
			return false
		}
	}
	return true
}

// SizeBytes returns element size times the product of all dimensions. The
// second result is false if any dimension is dynamic.
func (t Type) SizeBytes() (int64, bool) {
	if !t.IsMemRef() || !t.IsStatic() {
		return 0, false
	}
	size := t.ElemBytes()
	for _, d := range t.Shape {
		size *= d
	}
	return size, true
}

// IsBytePool reports whether t has the shape of a memory pool: rank 1, byte
// elements, static extent.
func (t Type) IsBytePool() bool {
	return t.IsMemRef() && t.Rank() == 1 && t.ElemBytes() == 1 && t.IsStatic()
}

func (t Type) String() string {
	switch t.Kind {
	case TypeScalar:
		return t.Elem.String()
	case TypeMemRef:
		var b strings.Builder
		b.WriteString("memref<")
		for _, d := range t.Shape {
			if d < 0 {
				b.WriteByte('?')
			} else {
				b.WriteString(strconv.FormatInt(d, 10))
			}
			b.WriteByte('x')
		}
		b.WriteString(t.Elem.String())
		b.WriteByte('>')
		return b.String()
	default:
		return "none"
	}
}

// Equal reports whether two types are identical.
func (t Type) Equal(u Type) bool {
	if t.Kind != u.Kind || t.Elem != u.Elem || len(t.Shape) != len(u.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != u.Shape[i] {
			return false
		}
	}
	return true
}

// ParseType parses the textual form produced by Type.String, e.g. "f32" or
// "memref<4x?xi8>".
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if elem, ok := parseScalar(s); ok {
		return ScalarType(elem), nil
	}
	if !strings.HasPrefix(s, "memref<") || !strings.HasSuffix(s, ">") {
		return Type{}, fmt.Errorf("invalid type %q", s)
	}
	rest := s[len("memref<") : len(s)-1]
	var shape []int64
	for len(rest) > 0 && (rest[0] == '?' || (rest[0] >= '0' && rest[0] <= '9')) {
		i := strings.IndexByte(rest, 'x')
		if i < 0 {
			return Type{}, fmt.Errorf("missing element type in %q", s)
		}
		p := rest[:i]
		rest = rest[i+1:]
		if p == "?" {
			shape = append(shape, DynamicDim)
			continue
		}
		d, err := strconv.ParseInt(p, 10, 64)
		if err != nil || d < 0 {
			return Type{}, fmt.Errorf("invalid dimension %q in %q", p, s)
		}
		shape = append(shape, d)
	}
	elem, ok := parseScalar(rest)
	if !ok {
		return Type{}, fmt.Errorf("invalid element type in %q", s)
	}
	return MemRef(elem, shape...), nil
}

func parseScalar(s string) (Scalar, bool) {
	for i, name := range scalarNames {
		if i != int(ScalarInvalid) && name == s {
			return Scalar(i), true
		}
	}
	return ScalarInvalid, false
}
