package dispatch

import (
	"runtime/debug"
	"time"
)

// PanicFunc receives a handler panic after it has been recovered. It runs
// before the panic is recorded as a failure of the dispatch.
type PanicFunc func(ctx *Context, entry *Entry, value any, stack []byte)

// Executor invokes single handlers, timing each call and turning panics
// into results.
type Executor struct {
	onPanic PanicFunc
}

// NewExecutor creates an executor. onPanic may be nil.
func NewExecutor(onPanic PanicFunc) *Executor {
	return &Executor{onPanic: onPanic}
}

// Run calls entry's handler with payload and model. A panicking handler
// does not unwind into the dispatcher.
func (e *Executor) Run(ctx *Context, entry *Entry, payload, model any) (result Result) {
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		p := recover()
		if p == nil {
			return
		}
		result.Success = false
		result.Panicked = true
		result.PanicValue = p
		result.PanicStack = debug.Stack()
		e.reportPanic(ctx, entry, p, result.PanicStack)
	}()

	result.Error = entry.Handler(payload, ctx, model)
	result.Success = result.Error == nil
	return result
}

// reportPanic calls onPanic, discarding anything it panics with.
func (e *Executor) reportPanic(ctx *Context, entry *Entry, value any, stack []byte) {
	if e.onPanic == nil {
		return
	}
	defer func() { _ = recover() }()
	e.onPanic(ctx, entry, value, stack)
}
