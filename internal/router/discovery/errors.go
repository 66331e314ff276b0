package discovery

import (
	"errors"
	"fmt"

	"github.com/dshills/stagerouter/internal/router/stage"
)

// Sentinel errors for handler discovery.
var (
	// ErrAmbiguousHandler is matched by AmbiguousHandlerError.
	ErrAmbiguousHandler = errors.New("ambiguous handler")

	// ErrInvalidHandler is returned when a member selected as a handler does
	// not have a handler signature.
	ErrInvalidHandler = errors.New("invalid handler signature")

	// ErrNilTarget is returned when discovery is run on a nil target.
	ErrNilTarget = errors.New("observer target is nil")

	// ErrUnknownMethod is returned when an annotation names a method the
	// type does not have.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrPointerReceiver is returned when a target passed by value has
	// handlers declared on its pointer type, which the value cannot reach.
	ErrPointerReceiver = errors.New("handler has a pointer receiver, observe a pointer")
)

// AmbiguousHandlerError reports a member that the naming convention and an
// annotation bind to different stages.
type AmbiguousHandlerError struct {
	Member          string
	ConventionEvent string
	ConventionStage stage.Stage
	AnnotatedEvent  string
	AnnotatedStage  stage.Stage
}

// Error implements the error interface.
func (e *AmbiguousHandlerError) Error() string {
	return fmt.Sprintf("member %s is named for %s/%s but annotated for %s/%s",
		e.Member, e.ConventionEvent, e.ConventionStage, e.AnnotatedEvent, e.AnnotatedStage)
}

// Is allows errors.Is to match AmbiguousHandlerError with ErrAmbiguousHandler.
func (e *AmbiguousHandlerError) Is(target error) bool {
	return target == ErrAmbiguousHandler
}
