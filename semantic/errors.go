package semantic

import (
	"errors"
	"fmt"

	"github.com/gogpu/uam/ir"
)

// ErrInconsistent is wrapped by every mapping failure. Mapping fails only
// when the program description violates an invariant that upstream lowering
// must already guarantee, so it always indicates a bug in the front end.
var ErrInconsistent = errors.New("semantic: internal inconsistency")

// Error describes the slot that broke a mapping invariant.
type Error struct {
	Stage  ir.Stage
	Space  ir.SlotSpace
	Slot   uint8
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("semantic: internal inconsistency in %s stage at %s: %s",
		e.Stage, ir.SlotName(e.Space, e.Slot), e.Reason)
}

func (e *Error) Unwrap() error { return ErrInconsistent }

func inconsistent(stage ir.Stage, space ir.SlotSpace, slot uint8, format string, args ...any) error {
	return &Error{Stage: stage, Space: space, Slot: slot, Reason: fmt.Sprintf(format, args...)}
}
