package dispatch

import (
	"errors"
	"fmt"
)

// Sentinel errors for the dispatch package.
var (
	// ErrHandlerPanic is matched by PanicError.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrPayloadType is returned when an event or model cannot be passed to
	// a handler's declared parameter type.
	ErrPayloadType = errors.New("argument type mismatch")
)

// HandlerError wraps an error returned by a handler.
type HandlerError struct {
	ModelID   string
	EventName string
	Stage     string
	Member    string
	Err       error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s for %s/%s (%s): %v", e.Member, e.ModelID, e.EventName, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a handler panic.
type PanicError struct {
	ModelID   string
	EventName string
	Stage     string
	Member    string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %s for %s/%s (%s) panicked: %v", e.Member, e.ModelID, e.EventName, e.Stage, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
