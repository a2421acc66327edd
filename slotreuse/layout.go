package slotreuse

import "github.com/speakeasy-api/poolopt"

// Layout describes every pool of f that hosts at least one slot. Slots whose
// offset is not a constant are left out.
func Layout(f *poolopt.Func) []PoolLayout {
	ix := newIndex(f)
	var out []PoolLayout
	for _, pool := range ix.pools() {
		pl := PoolLayout{
			Pool: pool,
			Name: f.ValueName(f.Op(pool).Result),
			Size: ix.poolSize(pool),
		}
		at := make(map[int64]int)
		for _, s := range ix.slotsOf(pool) {
			off, err := ix.offset(s)
			if err != nil {
				continue
			}
			i, ok := at[off]
			if !ok {
				i = len(pl.Groups)
				at[off] = i
				pl.Groups = append(pl.Groups, SlotGroup{Offset: off})
			}
			g := &pl.Groups[i]
			g.Slots = append(g.Slots, f.ValueName(f.Op(s).Result))
			if g.Footprint < 0 {
				continue
			}
			fp, err := ix.footprint(s)
			if err != nil {
				g.Footprint = -1
				continue
			}
			g.Footprint = max(g.Footprint, fp)
		}
		for _, g := range pl.Groups {
			if g.Footprint > 0 {
				pl.Used += g.Footprint
			}
		}
		out = append(out, pl)
	}
	return out
}
