// Package slotreuse shrinks statically sized memory pools. It redirects slots
// whose uses never overlap onto a shared offset, then compacts each pool down
// to the bytes its remaining distinct slots need.
package slotreuse

import (
	"context"
	"fmt"

	"github.com/speakeasy-api/poolopt"
)

// Run optimizes the memory pools of f in place, applying the merge and
// compaction rules until neither fires.
//
// Example:
//
//	f, err := irload.LoadFile("model.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := slotreuse.Run(context.Background(), f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("pools: %d -> %d bytes\n", res.BytesBefore, res.BytesAfter)
func Run(ctx context.Context, f *poolopt.Func, opts ...Options) (*Result, error) {
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	return New(opt).Run(ctx, f)
}

// Pass holds the configuration and diagnostics of one pass instance. A Pass
// is not safe for concurrent use.
type Pass struct {
	opts   Options
	logger Logger

	warnings []string
	warned   map[string]struct{}
}

// New returns a pass configured by opts.
func New(opts Options) *Pass {
	var logger Logger
	if opts.LogLevel != "" {
		logger = NewLogger(ParseLogLevel(opts.LogLevel), opts.LogOutput, opts.LogTimeFormat)
	} else {
		logger = newNoopLogger()
	}
	return &Pass{
		opts:   opts,
		logger: logger,
		warned: make(map[string]struct{}),
	}
}

// Warnings returns the analysis failures recorded so far, each once.
func (p *Pass) Warnings() []string {
	return append([]string(nil), p.warnings...)
}

// warn records an analysis error that excluded a slot or pool from the
// current iteration.
func (p *Pass) warn(err error) {
	msg := err.Error()
	if _, ok := p.warned[msg]; ok {
		return
	}
	p.warned[msg] = struct{}{}
	p.warnings = append(p.warnings, msg)
	p.logger.Warnf("skipping: %s", msg)
}

// Run applies the rules to f until a fixpoint is reached.
func (p *Pass) Run(ctx context.Context, f *poolopt.Func) (*Result, error) {
	if f == nil {
		return nil, fmt.Errorf("function cannot be nil")
	}
	if err := f.Verify(); err != nil {
		return nil, fmt.Errorf("invalid input function: %w", err)
	}

	log := p.logger.With(map[string]any{"func": f.Name})
	res := &Result{}
	res.BytesBefore = totalBytes(Layout(f))
	log.Infof("Starting pool optimization")

	seen := map[string]struct{}{poolopt.Fingerprint(f): {}}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		m, err := p.next(f)
		if err != nil {
			log.Errorf("%v", err)
			return nil, err
		}
		if m == nil {
			break
		}
		if p.opts.MaxIterations > 0 && res.Iterations >= p.opts.MaxIterations {
			return nil, fmt.Errorf("exceeded maximum iterations (%d)", p.opts.MaxIterations)
		}
		if err := m.Commit(f); err != nil {
			return nil, fmt.Errorf("failed to commit %s rewrite: %w", m.Rule, err)
		}
		res.Iterations++
		switch m.Rule {
		case RuleMerge:
			res.Merges++
		case RuleCompact:
			res.Compactions++
		}
		log.Debugf("committed %s", m)

		fp := poolopt.Fingerprint(f)
		if _, ok := seen[fp]; ok {
			return nil, fmt.Errorf("%w: program repeated after %d rewrites", ErrNoProgress, res.Iterations)
		}
		seen[fp] = struct{}{}
	}

	if p.opts.PruneConstants {
		if n := f.PruneUnused(poolopt.OpConst); n > 0 {
			log.Debugf("pruned %d unused constants", n)
		}
	}

	res.Pools = Layout(f)
	res.BytesAfter = totalBytes(res.Pools)
	res.Warnings = p.Warnings()
	log.With(map[string]any{
		"merges":      res.Merges,
		"compactions": res.Compactions,
		"before":      res.BytesBefore,
		"after":       res.BytesAfter,
	}).Infof("Pool optimization finished")
	return res, nil
}

// next returns the first rewrite that applies: merges are tried on every pool
// before any pool is compacted.
func (p *Pass) next(f *poolopt.Func) (*Mutation, error) {
	pools := newIndex(f).pools()
	if p.opts.EnableMerge {
		for _, pool := range pools {
			if m := p.TryMergeSlots(f, pool); m != nil {
				return m, nil
			}
		}
	}
	if p.opts.EnableCompaction {
		for _, pool := range pools {
			m, err := p.TryCompactPool(f, pool)
			if err != nil {
				return nil, err
			}
			if m != nil {
				return m, nil
			}
		}
	}
	return nil, nil
}

func totalBytes(pools []PoolLayout) int64 {
	var total int64
	for _, p := range pools {
		total += p.Size
	}
	return total
}
