package slotreuse

import "github.com/speakeasy-api/poolopt"

// TryMergeSlots looks for slots of pool that can be redirected onto the offset
// of another slot. Anchors are tried in program order, and the first anchor
// that absorbs at least one other group yields the rewrite. It returns nil
// when pool is not a pool or nothing can be merged.
func (p *Pass) TryMergeSlots(f *poolopt.Func, pool poolopt.OpID) *Mutation {
	ix := newIndex(f)
	if !ix.isPool(pool) || ix.slotCount(pool) < 2 {
		return nil
	}
	for _, anchor := range ix.slotsOf(pool) {
		if !ix.topLevel[anchor] {
			continue
		}
		if m := p.mergeInto(ix, pool, anchor); m != nil {
			return m
		}
	}
	return nil
}

// mergeInto collects every group that can share anchor's offset. Each
// accepted group joins the anchor side, so later candidates are checked
// against all of them.
func (p *Pass) mergeInto(ix *index, pool, anchor poolopt.OpID) *Mutation {
	log := p.logger.With(map[string]any{
		"rule": RuleMerge,
		"pool": ix.f.ValueName(ix.f.Op(pool).Result),
	})

	size, err := ix.footprint(anchor)
	if err != nil {
		p.warn(err)
		return nil
	}
	base, err := ix.colocated(anchor)
	if err != nil {
		p.warn(err)
		return nil
	}
	if gsize, err := ix.groupFootprint(base); err != nil {
		p.warn(err)
		return nil
	} else if gsize != size {
		log.Debugf("mixed footprints at anchor: %s", groupSummary(ix, base, p.opts.LogMaxSlots))
		return nil
	}
	target, _ := ix.offset(anchor)

	var accepted group
	for _, cand := range ix.slotsOf(pool) {
		if cand == anchor || !ix.topLevel[cand] || accepted.contains(cand) {
			continue
		}
		off, err := ix.offset(cand)
		if err != nil {
			p.warn(err)
			continue
		}
		if off == target {
			continue
		}
		fp, err := ix.footprint(cand)
		if err != nil {
			p.warn(err)
			continue
		}
		if fp != size {
			continue
		}

		first := append(append(group(nil), base...), accepted...)
		second, err := ix.colocated(cand)
		if err != nil {
			p.warn(err)
			continue
		}
		if gsize, err := ix.groupFootprint(second); err != nil {
			p.warn(err)
			continue
		} else if gsize != size {
			log.Debugf("mixed footprints: %s", groupSummary(ix, second, p.opts.LogMaxSlots))
			continue
		}
		if !ix.usesAreDisjoint(first, second) {
			log.Debugf("dependent uses: %s %s", groupSummary(ix, first, p.opts.LogMaxSlots), groupSummary(ix, second, p.opts.LogMaxSlots))
			continue
		}
		hit, err := ix.liveRangesIntersect(first, second)
		if err != nil {
			p.warn(err)
			continue
		}
		if hit {
			log.Debugf("live ranges overlap: %s %s", groupSummary(ix, first, p.opts.LogMaxSlots), groupSummary(ix, second, p.opts.LogMaxSlots))
			continue
		}
		log.Debugf("moving %s to offset %d", groupSummary(ix, second, p.opts.LogMaxSlots), target)
		accepted = append(accepted, second...)
	}

	if len(accepted) == 0 {
		return nil
	}
	m := &Mutation{Rule: RuleMerge, Pool: pool}
	for _, s := range accepted {
		m.Redirects = append(m.Redirects, Redirect{Slot: s, Offset: target})
	}
	return m
}
