package slotreuse

import (
	"errors"
	"fmt"

	"github.com/speakeasy-api/poolopt"
)

var (
	// ErrMalformedSlot is returned when a getref's pool operand does not
	// resolve to a pool in the function body, or its offset is not constant.
	ErrMalformedSlot = errors.New("malformed slot")
	// ErrDynamicShape is returned when a slot's footprint is not a
	// compile-time constant.
	ErrDynamicShape = errors.New("dynamic slot shape")
	// ErrUnusedSlot is returned when a slot has no load or store, so it has
	// no live range.
	ErrUnusedSlot = errors.New("slot is never accessed")
	// ErrInternalConsistency is wrapped by InternalConsistencyError.
	ErrInternalConsistency = errors.New("internal consistency violation")
	// ErrNoProgress is returned when the driver revisits a program state.
	ErrNoProgress = errors.New("rewrites did not converge")
)

// InternalConsistencyError reports a pool whose slots need more bytes than
// the pool declares. It indicates a bug in the stage that produced the pool.
type InternalConsistencyError struct {
	Pool     string
	Used     int64
	Declared int64
}

func (e *InternalConsistencyError) Error() string {
	return fmt.Sprintf("pool %s: slots use %d bytes but only %d are allocated", e.Pool, e.Used, e.Declared)
}

func (e *InternalConsistencyError) Unwrap() error { return ErrInternalConsistency }

func slotError(f *poolopt.Func, slot poolopt.OpID, err error) error {
	return fmt.Errorf("slot %s: %w", f.ValueName(f.Op(slot).Result), err)
}
