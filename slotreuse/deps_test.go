package slotreuse

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/speakeasy-api/poolopt"
)

func TestUsesAreDisjoint(t *testing.T) {
	tests := []struct {
		name  string
		build func(p *prog)
		want  bool
	}{
		{
			name: "independent values",
			build: func(p *prog) {
				x := p.input()
				p.store(x, "A")
				p.sink(p.load("A"))
				p.store(x, "B")
			},
			want: true,
		},
		{
			name: "B stores a value loaded from A",
			build: func(p *prog) {
				p.store(p.input(), "A")
				p.store(p.load("A"), "B")
			},
			want: false,
		},
		{
			name: "A stores a value computed from B",
			build: func(p *prog) {
				p.store(p.input(), "B")
				v := p.b.Compute("addf", poolopt.ScalarType(poolopt.F32), p.load("B"), p.input())
				p.store(v, "A")
			},
			want: false,
		},
		{
			name: "dependency through a loop body",
			build: func(p *prog) {
				p.store(p.input(), "A")
				_, body := p.b.Iterate(p.vals["i"], p.f.Args()[0])
				p.b.SetBlock(body)
				v := p.b.Compute("exp", poolopt.ScalarType(poolopt.F32), p.load("A"))
				w := p.b.Compute("negf", poolopt.ScalarType(poolopt.F32), v)
				p.store(w, "B")
			},
			want: false,
		},
		{
			name: "store of a value loaded from B into B",
			build: func(p *prog) {
				p.store(p.input(), "A")
				p.store(p.load("B"), "B")
			},
			want: true,
		},
		{
			name: "B stores a value loaded through a view of A",
			build: func(p *prog) {
				p.store(p.input(), "A")
				view := p.b.Compute("view", vec4, p.vals["A"])
				p.store(p.b.Load(view, p.vals["i"]), "B")
			},
			want: false,
		},
		{
			name: "loop induction variable ends the walk",
			build: func(p *prog) {
				loop, body := p.b.Iterate(p.vals["i"], p.f.Args()[0])
				p.b.SetBlock(body)
				v := p.b.Compute("sitofp", poolopt.ScalarType(poolopt.F32), p.f.IV(loop))
				p.store(v, "A")
				p.store(v, "B")
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProg(32)
			p.slot("A", 0, vec4)
			p.slot("B", 16, vec4)
			tt.build(p)
			f := p.finish()
			ix := newIndex(f)

			a, b := group{p.op("A")}, group{p.op("B")}
			if got := ix.usesAreDisjoint(a, b); got != tt.want {
				t.Errorf("usesAreDisjoint(A, B) = %v, want %v", got, tt.want)
			}
			if got := ix.usesAreDisjoint(b, a); got != tt.want {
				t.Errorf("usesAreDisjoint(B, A) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUsesAreDisjointColocated(t *testing.T) {
	// A2 shares A's offset, so a dependency on A2 counts against the whole
	// group of A.
	p := newProg(32)
	p.slot("A", 0, vec4)
	p.slot("A2", 0, vec4)
	p.slot("B", 16, vec4)
	p.store(p.input(), "A2")
	p.store(p.load("A2"), "B")
	f := p.finish()
	ix := newIndex(f)

	ga, err := ix.colocated(p.op("A"))
	if err != nil {
		t.Fatalf("colocated() error: %v", err)
	}
	if ix.usesAreDisjoint(ga, group{p.op("B")}) {
		t.Error("group of A should depend on B through A2")
	}
	if !ix.usesAreDisjoint(group{p.op("A")}, group{p.op("B")}) {
		t.Error("A alone has no uses and should be disjoint from B")
	}
}

func TestIndexAccessesThroughViews(t *testing.T) {
	p := newProg(32)
	p.slot("A", 0, vec4)
	view := p.b.Compute("view", vec4, p.vals["A"])
	st := p.b.Store(p.input(), view, p.vals["i"])
	ld := p.load("A")
	f := p.finish()
	ix := newIndex(f)

	want := []poolopt.OpID{st, f.DefOp(ld)}
	if diff := cmp.Diff(want, ix.accesses[p.op("A")]); diff != "" {
		t.Errorf("accesses mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]poolopt.OpID{st}, ix.stores[p.op("A")]); diff != "" {
		t.Errorf("stores mismatch (-want +got):\n%s", diff)
	}
}
