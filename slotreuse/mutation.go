package slotreuse

import (
	"fmt"

	"github.com/speakeasy-api/poolopt"
)

// Redirect moves one slot to a new offset.
type Redirect struct {
	Slot   poolopt.OpID
	Offset int64
}

// Mutation is a planned rewrite of one pool. Nothing changes until Commit.
type Mutation struct {
	Rule RuleKind
	Pool poolopt.OpID
	// NewSize is the byte size of the replacement pool; compaction only.
	NewSize   int64
	Redirects []Redirect
}

func (m *Mutation) String() string {
	if m.Rule == RuleCompact {
		return fmt.Sprintf("%s pool=%d size=%d redirects=%d", m.Rule, m.Pool, m.NewSize, len(m.Redirects))
	}
	return fmt.Sprintf("%s pool=%d redirects=%d", m.Rule, m.Pool, len(m.Redirects))
}

// Commit applies the rewrite to f. Each redirected slot is replaced by a view
// at its new offset that keeps the slot's type and name. A compaction also
// inserts the smaller pool ahead of the old one and erases the old one.
//
// The mutation is checked against f before anything is touched, so a stale
// mutation fails without changing f.
func (m *Mutation) Commit(f *poolopt.Func) error {
	if err := m.validate(f); err != nil {
		return err
	}

	target := f.Op(m.Pool).Result
	if m.Rule == RuleCompact {
		target = poolopt.NewBuilderBefore(f, m.Pool).Pool(m.NewSize)
	}

	for _, r := range m.Redirects {
		t := f.ResultType(r.Slot)
		b := poolopt.NewBuilderBefore(f, r.Slot)
		view := b.GetRef(target, b.Const(r.Offset), t)
		if err := f.Replace(r.Slot, view); err != nil {
			return fmt.Errorf("redirect %s: %w", f.ValueName(view), err)
		}
	}

	if m.Rule == RuleCompact {
		if err := f.Replace(m.Pool, target); err != nil {
			return fmt.Errorf("replace pool: %w", err)
		}
	}
	return nil
}

func (m *Mutation) validate(f *poolopt.Func) error {
	if m.Pool < 0 || int(m.Pool) >= f.NumOps() {
		return fmt.Errorf("unknown pool op %d", m.Pool)
	}
	ix := newIndex(f)
	if !ix.isPool(m.Pool) {
		return fmt.Errorf("op %d is not a pool", m.Pool)
	}
	switch m.Rule {
	case RuleMerge:
	case RuleCompact:
		if m.NewSize < 0 {
			return fmt.Errorf("negative pool size %d", m.NewSize)
		}
	default:
		return fmt.Errorf("unknown rule %q", m.Rule)
	}

	seen := make(map[poolopt.OpID]struct{}, len(m.Redirects))
	for _, r := range m.Redirects {
		if r.Slot < 0 || int(r.Slot) >= f.NumOps() || f.Op(r.Slot).Dead() {
			return fmt.Errorf("redirect of missing op %d", r.Slot)
		}
		if _, dup := seen[r.Slot]; dup {
			return slotError(f, r.Slot, fmt.Errorf("redirected twice"))
		}
		seen[r.Slot] = struct{}{}
		owner, err := ix.ownerPool(r.Slot)
		if err != nil {
			return err
		}
		if owner != m.Pool {
			return slotError(f, r.Slot, fmt.Errorf("belongs to a different pool"))
		}
		if r.Offset < 0 {
			return slotError(f, r.Slot, fmt.Errorf("negative offset %d", r.Offset))
		}
	}
	return nil
}
