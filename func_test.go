package poolopt

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildSample builds a function with one pool, two slots and a loop.
func buildSample() (*Func, map[string]ValueID) {
	f := NewFunc("sample", ScalarType(Index))
	b := NewBuilder(f)
	vals := map[string]ValueID{}
	vals["pool"] = b.Pool(64)
	c0 := b.Const(0)
	c16 := b.Const(16)
	vals["x"] = b.GetRef(vals["pool"], c0, MemRef(F32, 4))
	vals["y"] = b.GetRef(vals["pool"], c16, MemRef(F32, 4))
	_, body := b.Iterate(c0, f.Args()[0])
	b.SetBlock(body)
	iv := f.Block(body).Args[0]
	v := b.Load(vals["x"], iv)
	w := b.Compute("mulf", ScalarType(F32), v, v)
	b.Store(w, vals["y"], iv)
	b.SetBlock(f.Body)
	b.Dealloc(vals["pool"])
	b.Return()
	return f, vals
}

func TestFuncString(t *testing.T) {
	f, vals := buildSample()
	f.Value(vals["pool"]).Name = "pool"
	want := `func @sample(%0: index) {
  %pool = alloc : memref<64xi8>
  %1 = const 0 : index
  %2 = const 16 : index
  %3 = getref %pool[%1] : memref<4xf32>
  %4 = getref %pool[%2] : memref<4xf32>
  iterate(%1, %0) (%5) {
    %6 = load %3[%5] : f32
    %7 = compute "mulf"(%6, %6) : f32
    store %7, %4[%5]
  }
  dealloc %pool
  return
}
`
	if diff := cmp.Diff(want, f.String()); diff != "" {
		t.Errorf("String() mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkPreOrder(t *testing.T) {
	f, _ := buildSample()
	var got []string
	f.Walk(func(op *Op) bool {
		got = append(got, op.Code.String())
		return true
	})
	want := []string{"alloc", "const", "const", "getref", "getref", "iterate", "load", "compute", "store", "dealloc", "return"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Walk order mismatch (-want +got):\n%s", diff)
	}
}

func TestVerify(t *testing.T) {
	f, _ := buildSample()
	if err := f.Verify(); err != nil {
		t.Fatalf("Verify() = %v", err)
	}

	t.Run("view overruns pool", func(t *testing.T) {
		f := NewFunc("bad")
		b := NewBuilder(f)
		pool := b.Pool(8)
		off := b.Const(4)
		b.GetRef(pool, off, MemRef(I8, 8))
		err := f.Verify()
		if err == nil || !strings.Contains(err.Error(), "overruns pool") {
			t.Fatalf("expected overrun error, got %v", err)
		}
	})

	t.Run("loop value used outside loop", func(t *testing.T) {
		f := NewFunc("scope")
		b := NewBuilder(f)
		mem := b.Alloc(MemRef(F32, 4))
		_, body := b.Iterate()
		b.SetBlock(body)
		v := b.Load(mem, f.Block(body).Args[0])
		b.SetBlock(f.Body)
		b.Store(v, mem)
		err := f.Verify()
		if err == nil || !strings.Contains(err.Error(), "not visible") {
			t.Fatalf("expected visibility error, got %v", err)
		}
	})

	t.Run("offset not constant", func(t *testing.T) {
		f := NewFunc("dyn", ScalarType(Index))
		b := NewBuilder(f)
		pool := b.Pool(8)
		b.GetRef(pool, f.Args()[0], MemRef(I8, 4))
		err := f.Verify()
		if err == nil || !strings.Contains(err.Error(), "offset is not a constant") {
			t.Fatalf("expected constant offset error, got %v", err)
		}
	})
}

func TestReplaceAndErase(t *testing.T) {
	f, vals := buildSample()
	xOp := f.DefOp(vals["x"])
	b := NewBuilderBefore(f, xOp)
	off := b.Const(32)
	nx := b.GetRef(vals["pool"], off, MemRef(F32, 4))
	if err := f.Replace(xOp, nx); err != nil {
		t.Fatalf("Replace() = %v", err)
	}
	if !f.Op(xOp).Dead() {
		t.Error("replaced op should be erased")
	}
	if users := f.Users(vals["x"]); len(users) != 0 {
		t.Errorf("old slot still has users: %v", users)
	}
	if users := f.Users(nx); len(users) != 1 || f.Op(users[0]).Code != OpLoad {
		t.Errorf("new slot users = %v, want the load", users)
	}
	if err := f.Erase(f.DefOp(vals["pool"])); err == nil {
		t.Error("erasing a used pool should fail")
	}
	if err := f.Verify(); err != nil {
		t.Fatalf("Verify() after replace = %v", err)
	}

	// The two pre-rewrite offset constants: 0 is still used by the loop bounds,
	// 0's getref user is gone but the loop keeps it alive; 16 is still used.
	if n := f.PruneUnused(OpConst); n != 0 {
		t.Errorf("PruneUnused() = %d, want 0", n)
	}
}

func TestFingerprintStable(t *testing.T) {
	f1, _ := buildSample()
	f2, _ := buildSample()
	if Fingerprint(f1) != Fingerprint(f2) {
		t.Error("identical functions should share a fingerprint")
	}
	b := NewBuilderBefore(f2, f2.Block(f2.Body).Ops[0])
	b.Const(99)
	if Fingerprint(f1) == Fingerprint(f2) {
		t.Error("fingerprint should change after inserting an op")
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		size int64
		ok   bool
	}{
		{"f32", ScalarType(F32), 0, false},
		{"memref<64xi8>", MemRef(I8, 64), 64, true},
		{"memref<4x4xf32>", MemRef(F32, 4, 4), 64, true},
		{"memref<2xindex>", MemRef(Index, 2), 16, true},
		{"memref<?x4xf64>", MemRef(F64, DynamicDim, 4), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if err != nil {
				t.Fatalf("ParseType(%q) = %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseType(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
			size, ok := got.SizeBytes()
			if size != tt.size || ok != tt.ok {
				t.Errorf("SizeBytes() = %d, %v; want %d, %v", size, ok, tt.size, tt.ok)
			}
		})
	}
	for _, bad := range []string{"memref<4x>", "memref<axi8>", "u8", "memref<4xi8"} {
		if _, err := ParseType(bad); err == nil {
			t.Errorf("ParseType(%q) should fail", bad)
		}
	}
}
