package dispatch

import (
	"time"

	"github.com/dshills/stagerouter/internal/router/stage"
)

// Hook observes every handler invocation.
type Hook func(Invocation)

// Dispatcher runs the preview, normal and committed phases for one event.
// A Dispatcher holds no per-publish state and may be reused.
type Dispatcher struct {
	executor *Executor
	hooks    []Hook
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPanicFunc reports recovered handler panics to fn.
func WithPanicFunc(fn PanicFunc) Option {
	return func(d *Dispatcher) {
		d.executor = NewExecutor(fn)
	}
}

// WithHook adds an invocation hook. Hooks run in the order added, after
// each handler returns.
func WithHook(h Hook) Option {
	return func(d *Dispatcher) {
		if h != nil {
			d.hooks = append(d.hooks, h)
		}
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{executor: NewExecutor(nil)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch processes eventName with payload against the handlers in src.
func (d *Dispatcher) Dispatch(src Source, modelID, eventName string, payload, model any) Outcome {
	start := time.Now()
	ctx := NewContext(modelID, eventName)
	out := Outcome{Invoked: make(map[stage.Stage]int, len(stage.All))}

	d.runPhase(src, ctx, stage.Preview, payload, model, &out)
	if ctx.IsCancelled() {
		out.Cancelled = true
		out.Duration = time.Since(start)
		return out
	}

	d.runPhase(src, ctx, stage.Normal, payload, model, &out)

	// Commits made by committed handlers must not reopen the phase.
	out.Committed = ctx.IsCommitted()
	if out.Committed {
		d.runPhase(src, ctx, stage.Committed, payload, model, &out)
	}

	out.Duration = time.Since(start)
	return out
}

func (d *Dispatcher) runPhase(src Source, ctx *Context, st stage.Stage, payload, model any, out *Outcome) {
	ctx.stage = st
	entries := src.Snapshot(ctx.eventName, st)

	for _, entry := range entries {
		result := d.executor.Run(ctx, entry, payload, model)
		out.Invoked[st]++

		switch {
		case result.Panicked:
			out.Failures = append(out.Failures, &PanicError{
				ModelID:   ctx.modelID,
				EventName: ctx.eventName,
				Stage:     st.String(),
				Member:    entry.Member,
				Value:     result.PanicValue,
				Stack:     string(result.PanicStack),
			})
		case result.Error != nil:
			out.Failures = append(out.Failures, &HandlerError{
				ModelID:   ctx.modelID,
				EventName: ctx.eventName,
				Stage:     st.String(),
				Member:    entry.Member,
				Err:       result.Error,
			})
		}

		for _, h := range d.hooks {
			h(Invocation{
				ModelID:        ctx.modelID,
				EventName:      ctx.eventName,
				Stage:          st,
				Member:         entry.Member,
				SubscriptionID: entry.SubscriptionID,
				Result:         result,
			})
		}

		if st == stage.Preview && ctx.IsCancelled() {
			return
		}
	}
}
