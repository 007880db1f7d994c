// Package pipelineerr implements the error taxonomy of spec.md §7 as a
// closed set of kinds rather than a hierarchy of exception types, matching
// the teacher's fmt.Errorf("...: %w", err) wrapping convention.
package pipelineerr

import (
	"errors"
	"fmt"
)

// Kind is one of the seven error kinds from §7.
type Kind string

const (
	KindInputMissing    Kind = "InputMissing"
	KindGateFailed      Kind = "GateFailed"
	KindDetectorError   Kind = "DetectorError"
	KindStoreConflict   Kind = "StoreConflict"
	KindDispatcherError Kind = "DispatcherError"
	KindPolicyViolation Kind = "PolicyViolation"
	KindFatal           Kind = "Fatal"
)

// Error wraps an underlying cause with a taxonomy Kind and a component tag.
type Error struct {
	Kind      Kind
	Component string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Component, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a taxonomy error.
func New(kind Kind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// Recoverable reports whether the propagation policy of §7 absorbs this kind
// at the run boundary rather than aborting the run. Only Fatal aborts.
func Recoverable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind != KindFatal
	}
	return true
}
