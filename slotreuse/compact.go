package slotreuse

import "github.com/speakeasy-api/poolopt"

// TryCompactPool plans a replacement of pool sized to the bytes its distinct
// slot groups need, with the groups laid out back to back from offset zero in
// order of first appearance. It returns nil when the pool is already tight or
// cannot be analyzed, and an *InternalConsistencyError when the slots need
// more bytes than the pool declares.
func (p *Pass) TryCompactPool(f *poolopt.Func, pool poolopt.OpID) (*Mutation, error) {
	ix := newIndex(f)
	if !ix.isPool(pool) || ix.slotCount(pool) < 1 {
		return nil, nil
	}
	groups, err := ix.distinctSlotGroups(pool)
	if err != nil {
		p.warn(err)
		return nil, nil
	}

	sizes := make([]int64, len(groups))
	var used int64
	for i, g := range groups {
		size, err := ix.groupFootprint(g.slots)
		if err != nil {
			p.warn(err)
			return nil, nil
		}
		sizes[i] = size
		used += size
	}

	name := ix.f.ValueName(ix.f.Op(pool).Result)
	declared := ix.poolSize(pool)
	if used > declared {
		return nil, &InternalConsistencyError{Pool: name, Used: used, Declared: declared}
	}
	if used == declared {
		return nil, nil
	}

	p.logger.With(map[string]any{"rule": RuleCompact, "pool": name}).
		Debugf("shrinking %d -> %d bytes across %d groups", declared, used, len(groups))

	m := &Mutation{Rule: RuleCompact, Pool: pool, NewSize: used}
	var next int64
	for i, g := range groups {
		for _, s := range g.slots {
			m.Redirects = append(m.Redirects, Redirect{Slot: s, Offset: next})
		}
		next += sizes[i]
	}
	return m, nil
}
