package slotreuse

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/speakeasy-api/poolopt"
)

var vec4 = poolopt.MemRef(poolopt.F32, 4)

// prog is a small function under construction with a single pool named
// "pool" and an index constant "i" for element accesses.
type prog struct {
	f    *poolopt.Func
	b    *poolopt.Builder
	vals map[string]poolopt.ValueID
}

func newProg(poolSize int64) *prog {
	f := poolopt.NewFunc("test", poolopt.ScalarType(poolopt.Index))
	p := &prog{f: f, b: poolopt.NewBuilder(f), vals: map[string]poolopt.ValueID{}}
	p.named("pool", p.b.Pool(poolSize))
	p.named("i", p.b.Const(0))
	return p
}

func (p *prog) named(name string, v poolopt.ValueID) poolopt.ValueID {
	p.f.Value(v).Name = name
	p.vals[name] = v
	return v
}

// slot emits a named view of the pool at off.
func (p *prog) slot(name string, off int64, t poolopt.Type) poolopt.ValueID {
	return p.named(name, p.b.GetRef(p.vals["pool"], p.b.Const(off), t))
}

// input emits an opaque f32 value with no memory dependency.
func (p *prog) input() poolopt.ValueID {
	return p.b.Compute("input", poolopt.ScalarType(poolopt.F32))
}

func (p *prog) store(v poolopt.ValueID, slot string) poolopt.OpID {
	return p.b.Store(v, p.vals[slot], p.vals["i"])
}

func (p *prog) load(slot string) poolopt.ValueID {
	return p.b.Load(p.vals[slot], p.vals["i"])
}

func (p *prog) sink(v poolopt.ValueID) {
	p.b.Compute("sink", poolopt.Type{}, v)
}

// finish terminates the function and returns it.
func (p *prog) finish() *poolopt.Func {
	p.b.SetBlock(p.f.Body)
	p.b.Dealloc(p.vals["pool"])
	p.b.Return()
	return p.f
}

func (p *prog) op(name string) poolopt.OpID {
	return p.f.DefOp(p.vals[name])
}

// sequential builds a 32-byte pool whose two slots are written and read one
// after the other with no data flowing between them.
func sequential() *prog {
	p := newProg(32)
	p.slot("A", 0, vec4)
	p.slot("B", 16, vec4)
	x := p.input()
	p.store(x, "A")
	p.sink(p.load("A"))
	p.store(x, "B")
	p.sink(p.load("B"))
	return p
}

func TestIndexPools(t *testing.T) {
	p := sequential()
	p.named("scratch", p.b.Pool(8))
	p.named("buf", p.b.Alloc(vec4))
	f := p.finish()
	ix := newIndex(f)

	if got := ix.pools(); !cmp.Equal(got, []poolopt.OpID{p.op("pool")}) {
		t.Errorf("pools() = %v, want only the pool hosting slots", got)
	}
	if !ix.isPool(p.op("scratch")) {
		t.Error("unused byte alloc should still be a pool")
	}
	if ix.isPool(p.op("buf")) {
		t.Error("f32 alloc is not a pool")
	}
	if got := ix.poolSize(p.op("pool")); got != 32 {
		t.Errorf("poolSize() = %d, want 32", got)
	}
	if got := ix.slotCount(p.op("pool")); got != 2 {
		t.Errorf("slotCount() = %d, want 2", got)
	}

	owner, err := ix.ownerPool(p.op("B"))
	if err != nil {
		t.Fatalf("ownerPool() error: %v", err)
	}
	if owner != p.op("pool") {
		t.Errorf("ownerPool() = %d, want %d", owner, p.op("pool"))
	}
	if _, err := ix.ownerPool(p.op("pool")); !errors.Is(err, ErrMalformedSlot) {
		t.Errorf("ownerPool(alloc) error = %v, want ErrMalformedSlot", err)
	}
}

func TestIndexOwnerPoolNested(t *testing.T) {
	p := newProg(16)
	_, body := p.b.Iterate(p.vals["i"], p.f.Args()[0])
	p.b.SetBlock(body)
	inner := p.named("inner", p.b.Pool(16))
	p.named("S", p.b.GetRef(inner, p.vals["i"], vec4))
	f := p.finish()

	ix := newIndex(f)
	if _, err := ix.ownerPool(p.op("S")); !errors.Is(err, ErrMalformedSlot) {
		t.Errorf("ownerPool() error = %v, want ErrMalformedSlot for a pool inside a loop", err)
	}
	if pools := ix.pools(); len(pools) != 0 {
		t.Errorf("pools() = %v, want none", pools)
	}
}

func TestIndexGroups(t *testing.T) {
	p := newProg(64)
	p.slot("A", 32, vec4)
	p.slot("B", 0, poolopt.MemRef(poolopt.F32, 8))
	p.slot("C", 32, poolopt.MemRef(poolopt.I8, 4))
	p.slot("D", 0, vec4)
	f := p.finish()
	ix := newIndex(f)
	pool := p.op("pool")

	groups, err := ix.distinctSlotGroups(pool)
	if err != nil {
		t.Fatalf("distinctSlotGroups() error: %v", err)
	}
	want := []slotGroup{
		{offset: 32, slots: group{p.op("A"), p.op("C")}},
		{offset: 0, slots: group{p.op("B"), p.op("D")}},
	}
	if diff := cmp.Diff(want, groups, cmp.AllowUnexported(slotGroup{})); diff != "" {
		t.Errorf("distinctSlotGroups() mismatch (-want +got):\n%s", diff)
	}

	got, err := ix.colocated(p.op("D"))
	if err != nil {
		t.Fatalf("colocated() error: %v", err)
	}
	if diff := cmp.Diff(group{p.op("B"), p.op("D")}, got); diff != "" {
		t.Errorf("colocated() mismatch (-want +got):\n%s", diff)
	}

	// The larger member sets the footprint of its group: 16 + 32.
	used, err := ix.totalUsedBytes(pool)
	if err != nil {
		t.Fatalf("totalUsedBytes() error: %v", err)
	}
	if used != 48 {
		t.Errorf("totalUsedBytes() = %d, want 48", used)
	}
}

func TestIndexFootprint(t *testing.T) {
	p := newProg(64)
	p.slot("M", 0, poolopt.MemRef(poolopt.F64, 2, 3))
	p.slot("D", 48, poolopt.MemRef(poolopt.F32, poolopt.DynamicDim))
	f := p.finish()
	ix := newIndex(f)

	if got, err := ix.footprint(p.op("M")); err != nil || got != 48 {
		t.Errorf("footprint(M) = %d, %v; want 48", got, err)
	}
	_, err := ix.footprint(p.op("D"))
	if !errors.Is(err, ErrDynamicShape) {
		t.Fatalf("footprint(D) error = %v, want ErrDynamicShape", err)
	}
	if want := "slot D: dynamic slot shape"; err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
	if _, err := ix.totalUsedBytes(p.op("pool")); !errors.Is(err, ErrDynamicShape) {
		t.Errorf("totalUsedBytes() error = %v, want ErrDynamicShape", err)
	}
}

func TestIndexLoopNest(t *testing.T) {
	p := newProg(16)
	p.slot("A", 0, vec4)
	outer, body := p.b.Iterate(p.vals["i"], p.f.Args()[0])
	p.b.SetBlock(body)
	_, inner := p.b.Iterate(p.vals["i"], p.f.Args()[0])
	p.b.SetBlock(inner)
	s1 := p.store(p.input(), "A")
	p.b.SetBlock(body)
	_, then, _ := p.b.If(p.f.IV(outer), false)
	p.b.SetBlock(then)
	s2 := p.store(p.input(), "A")
	p.b.SetBlock(p.f.Body)
	s3 := p.store(p.input(), "A")
	f := p.finish()
	ix := newIndex(f)

	if ix.outerLoop[s1] != outer || ix.outerLoop[s2] != outer {
		t.Errorf("outerLoop = %d, %d; want %d", ix.outerLoop[s1], ix.outerLoop[s2], outer)
	}
	if !ix.sameLoopNest(s1, s2) {
		t.Error("stores under the same outer loop should share a loop nest")
	}
	if ix.sameLoopNest(s1, s3) || ix.sameLoopNest(s3, s3) {
		t.Error("top-level ops have no loop nest")
	}
	if !ix.topLevel[s3] || ix.topLevel[s1] {
		t.Error("topLevel misclassified")
	}
	if !ix.before(s1, s2) || !ix.before(s2, s3) {
		t.Error("program order should follow the pre-order walk")
	}
	if diff := cmp.Diff([]poolopt.OpID{s1, s2, s3}, ix.accesses[p.op("A")]); diff != "" {
		t.Errorf("accesses mismatch (-want +got):\n%s", diff)
	}
}

func TestValueStack(t *testing.T) {
	s := newValueStack()
	s.push(1, 2)
	s.push(3)
	var got []poolopt.ValueID
	for !s.empty() {
		got = append(got, s.pop())
	}
	if diff := cmp.Diff([]poolopt.ValueID{3, 2, 1}, got); diff != "" {
		t.Errorf("pop order mismatch (-want +got):\n%s", diff)
	}
	defer func() {
		if recover() == nil {
			t.Error("pop on empty stack should panic")
		}
	}()
	s.pop()
}
