// Package router provides a staged publish/subscribe event router.
//
// Models are registered under string ids. Observers attach to a model with
// ObserveEventsOn, which discovers handler methods on a target and records
// them in the model's dispatch table. PublishEvent runs every handler for
// the event through three phases:
//
//	preview    observe the event before it is applied
//	normal     apply the event; a handler calls ctx.Commit() on change
//	committed  runs only if the event was committed
//
// # Observers
//
// Handlers are found by naming convention or by declarative metadata:
//
//	type Counter struct{ n int }
//
//	func (c *Counter) Observe_increment(e any, ctx *router.Context, model any) {
//	    c.n += e.(int)
//	    ctx.Commit()
//	}
//
//	func (c *Counter) Observe_increment_committed(e any, ctx *router.Context, model any) {
//	    fmt.Println("count is now", c.n)
//	}
//
//	r := router.New()
//	c := &Counter{}
//	_ = r.RegisterModel("counter", c)
//	sub, _ := r.ObserveEventsOn("counter", c)
//	defer sub.Dispose()
//	_ = r.PublishEvent("counter", "increment", 2)
//
// See package discovery for the convention and for ObserveEvent.
//
// # Re-entrant publishing
//
// Publishing while a dispatch is running, including from inside a handler,
// queues the event and returns immediately. Queued events run in
// submission order after the current dispatch has finished all of its
// phases, so phases of different events never interleave.
//
// # Errors
//
// Handler errors and panics do not stop sibling handlers. They are returned
// as a *DispatchError from the PublishEvent call that drained the queue,
// after the dispatch completes.
//
// # Thread Safety
//
// A Router is safe for concurrent use. Handlers never run in parallel: the
// caller that finds the router idle processes the queue, and concurrent
// callers return as soon as their event is queued.
package router
