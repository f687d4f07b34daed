package uam

import (
	"errors"
	"fmt"

	"github.com/gogpu/uam/ir"
)

// ErrorKind categorizes compilation errors.
type ErrorKind uint8

const (
	// ErrStageDetermination indicates the pipeline stage is unknown or
	// could not be deduced.
	ErrStageDetermination ErrorKind = iota

	// ErrFrontEnd indicates the front end or the translation routine
	// rejected the program. It is reported as-is.
	ErrFrontEnd

	// ErrMappingInconsistency indicates the program description broke an
	// invariant that upstream lowering guarantees. It is a bug upstream.
	ErrMappingInconsistency

	// ErrCodeGen indicates the machine-code generator failed.
	ErrCodeGen

	// ErrEncodingOverflow indicates a size does not fit its container
	// field. Only the affected output fails.
	ErrEncodingOverflow

	// ErrInvalidState indicates an operation was called in the wrong
	// compiler state.
	ErrInvalidState

	// ErrEmit indicates an output could not be produced or written.
	ErrEmit
)

// String returns a human-readable error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrStageDetermination:
		return "StageDetermination"
	case ErrFrontEnd:
		return "FrontEnd"
	case ErrMappingInconsistency:
		return "MappingInconsistency"
	case ErrCodeGen:
		return "CodeGen"
	case ErrEncodingOverflow:
		return "EncodingOverflow"
	case ErrInvalidState:
		return "InvalidState"
	case ErrEmit:
		return "Emit"
	default:
		return "Unknown"
	}
}

// Error is a compilation error.
type Error struct {
	// Kind categorizes the error.
	Kind ErrorKind

	// Stage is the stage being compiled.
	Stage ir.Stage

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("uam %s (%s): %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, stage ir.Stage, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsMappingInconsistency returns true if the error is ErrMappingInconsistency.
func (e *Error) IsMappingInconsistency() bool {
	return e.Kind == ErrMappingInconsistency
}

// IsEncodingOverflow returns true if the error is ErrEncodingOverflow.
func (e *Error) IsEncodingOverflow() bool {
	return e.Kind == ErrEncodingOverflow
}

// IsInvalidState returns true if the error is ErrInvalidState.
func (e *Error) IsInvalidState() bool {
	return e.Kind == ErrInvalidState
}
