package router

import (
	"errors"
	"fmt"

	"github.com/dshills/stagerouter/internal/router/discovery"
)

// Sentinel errors for the router.
var (
	// ErrUnknownModel is matched by UnknownModelError.
	ErrUnknownModel = errors.New("unknown model")

	// ErrDuplicateModel is matched by DuplicateModelError.
	ErrDuplicateModel = errors.New("duplicate model")

	// ErrEmptyModelID is returned when a model id is empty.
	ErrEmptyModelID = errors.New("model id is empty")

	// ErrEmptyEventName is returned when publishing an event without a name.
	ErrEmptyEventName = errors.New("event name is empty")

	// ErrNilAction is returned when RunAction is given a nil function.
	ErrNilAction = errors.New("action cannot be nil")

	// ErrAmbiguousHandler is matched by AmbiguousHandlerError.
	ErrAmbiguousHandler = discovery.ErrAmbiguousHandler

	// ErrPointerReceiver is returned when an observer passed by value has
	// handlers declared on its pointer type.
	ErrPointerReceiver = discovery.ErrPointerReceiver
)

// AmbiguousHandlerError reports a member bound to different stages by its
// name and its annotation.
type AmbiguousHandlerError = discovery.AmbiguousHandlerError

// UnknownModelError is returned when an operation names a model id that is
// not registered.
type UnknownModelError struct {
	ModelID string

	// Suggestion is the closest registered id, if any is close enough.
	Suggestion string
}

// Error implements the error interface.
func (e *UnknownModelError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown model %q (did you mean %q?)", e.ModelID, e.Suggestion)
	}
	return fmt.Sprintf("unknown model %q", e.ModelID)
}

// Is allows errors.Is to match UnknownModelError with ErrUnknownModel.
func (e *UnknownModelError) Is(target error) bool {
	return target == ErrUnknownModel
}

// DuplicateModelError is returned when registering an id that is already
// registered.
type DuplicateModelError struct {
	ModelID string
}

// Error implements the error interface.
func (e *DuplicateModelError) Error() string {
	return fmt.Sprintf("model %q is already registered", e.ModelID)
}

// Is allows errors.Is to match DuplicateModelError with ErrDuplicateModel.
func (e *DuplicateModelError) Is(target error) bool {
	return target == ErrDuplicateModel
}

// DispatchError collects the handler failures of one dispatched event.
type DispatchError struct {
	ModelID   string
	EventName string

	// Committed reports whether the event was committed despite the failures.
	Committed bool

	// Failures holds *dispatch.HandlerError and *dispatch.PanicError values
	// in execution order.
	Failures []error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("dispatching %s to %s: %v", e.EventName, e.ModelID, e.Failures[0])
	}
	return fmt.Sprintf("dispatching %s to %s: %d handlers failed, first: %v", e.EventName, e.ModelID, len(e.Failures), e.Failures[0])
}

// Unwrap returns the individual failures.
func (e *DispatchError) Unwrap() []error {
	return e.Failures
}

// ActionError wraps a failure of an action run with RunAction.
type ActionError struct {
	ModelID string
	Err     error
}

// Error implements the error interface.
func (e *ActionError) Error() string {
	return fmt.Sprintf("action on %s: %v", e.ModelID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ActionError) Unwrap() error {
	return e.Err
}
