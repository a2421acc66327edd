package slotreuse

import (
	"io"

	"github.com/speakeasy-api/poolopt"
)

// Options configures the pass.
type Options struct {
	// Rules
	EnableMerge      bool // Redirect slots with disjoint uses onto one offset (default: true)
	EnableCompaction bool // Shrink pools to the bytes their slots need (default: true)
	PruneConstants   bool // Erase offset constants orphaned by rewrites (default: true)

	// MaxIterations bounds the number of committed rewrites (default: 10000).
	MaxIterations int

	// Logging configuration
	LogLevel      string    // "error", "warn", "info", "debug"; empty disables logging (default: "")
	LogTimeFormat string    // strftime layout for timestamps; empty omits them (default: DefaultTimeFormat)
	LogOutput     io.Writer // destination for log lines (default: os.Stderr)
	LogMaxSlots   int       // max slots shown per group in trace lines (default: 5)
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		EnableMerge:      true,
		EnableCompaction: true,
		PruneConstants:   true,
		MaxIterations:    10000,
		LogLevel:         "",
		LogTimeFormat:    DefaultTimeFormat,
		LogMaxSlots:      5,
	}
}

// RuleKind names a rewrite rule.
type RuleKind string

const (
	RuleMerge   RuleKind = "merge"
	RuleCompact RuleKind = "compact"
)

// Result summarizes a pass run.
type Result struct {
	Merges      int // committed slot merges
	Compactions int // committed pool compactions
	Iterations  int // committed rewrites in total

	// BytesBefore and BytesAfter total the declared sizes of all pools.
	BytesBefore int64
	BytesAfter  int64

	Pools    []PoolLayout
	Warnings []string // slots and pools skipped because analysis failed
}

// PoolLayout describes one pool and its distinct slot groups.
type PoolLayout struct {
	Pool   poolopt.OpID
	Name   string
	Size   int64
	Used   int64
	Groups []SlotGroup
}

// SlotGroup is a set of co-located slots.
type SlotGroup struct {
	Offset    int64
	Footprint int64 // -1 when a member has a dynamic shape
	Slots     []string
}
