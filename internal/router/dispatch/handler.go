package dispatch

import (
	"time"

	"github.com/dshills/stagerouter/internal/router/stage"
)

// Handler processes an event for one model at one stage.
type Handler func(event any, ctx *Context, model any) error

// Entry is one handler registered in a dispatch table.
type Entry struct {
	// Member is the name the handler was discovered under.
	Member string

	// SubscriptionID identifies the subscription that owns the entry.
	SubscriptionID string

	// Handler is bound to the observed target.
	Handler Handler
}

// Source supplies the handlers for one event and stage. Implementations
// must return a list the dispatcher may iterate while the source changes.
type Source interface {
	Snapshot(eventName string, st stage.Stage) []*Entry
}

// Result is the outcome of a single handler execution.
type Result struct {
	// Success is true if the handler completed without error or panic.
	Success bool

	// Error is the error returned by the handler, if any.
	Error error

	// Panicked is true if the handler panicked.
	Panicked bool

	// PanicValue is the value passed to panic().
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the handler took to execute.
	Duration time.Duration
}

// IsSuccess returns true if the result indicates successful execution.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// Invocation describes one handler call, passed to invocation hooks.
type Invocation struct {
	ModelID        string
	EventName      string
	Stage          stage.Stage
	Member         string
	SubscriptionID string
	Result         Result
}

// Outcome summarises one dispatch.
type Outcome struct {
	// Committed is true if a normal handler committed the event.
	Committed bool

	// Cancelled is true if a preview handler cancelled the event.
	Cancelled bool

	// Invoked counts handler executions per stage.
	Invoked map[stage.Stage]int

	// Failures holds a *HandlerError or *PanicError per failed handler,
	// in execution order.
	Failures []error

	// Duration is the wall time of the whole dispatch.
	Duration time.Duration
}
