package router

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/stagerouter/internal/router/discovery"
	"github.com/dshills/stagerouter/internal/router/dispatch"
)

// Router routes published events to the observers of registered models.
type Router struct {
	logger      zerolog.Logger
	prefix      string
	annotations *discovery.Annotations
	metrics     *Metrics
	hooks       []func(Invocation)

	registry   *Registry
	queue      publishQueue
	dispatcher *dispatch.Dispatcher

	eventsPublished     atomic.Uint64
	eventsCommitted     atomic.Uint64
	eventsCancelled     atomic.Uint64
	eventsDropped       atomic.Uint64
	actionsRun          atomic.Uint64
	handlersExecuted    atomic.Uint64
	handlerErrors       atomic.Uint64
	handlerPanics       atomic.Uint64
	activeSubscriptions atomic.Int64
}

// Stats contains router statistics.
type Stats struct {
	// Models is the number of registered models.
	Models int

	// HandlerEntries is the number of handlers across all tables.
	HandlerEntries int

	// ActiveSubscriptions is the number of subscriptions not yet disposed.
	ActiveSubscriptions int64

	// EventsPublished is the number of events dispatched.
	EventsPublished uint64

	// EventsCommitted is the number of dispatched events that committed.
	EventsCommitted uint64

	// EventsCancelled is the number of events cancelled during preview.
	EventsCancelled uint64

	// EventsDropped is the number of queued items dropped because their
	// model was unregistered before they ran.
	EventsDropped uint64

	// ActionsRun is the number of actions run with RunAction.
	ActionsRun uint64

	// HandlersExecuted is the total number of handler invocations.
	HandlersExecuted uint64

	// HandlerErrors is the number of handlers that returned errors.
	HandlerErrors uint64

	// HandlerPanics is the number of handlers that panicked.
	HandlerPanics uint64

	// QueueDepth is the number of items waiting to be processed.
	QueueDepth int
}

// New creates a router.
func New(opts ...Option) *Router {
	r := &Router{
		logger:      zerolog.Nop(),
		prefix:      DefaultPrefix,
		annotations: discovery.DefaultAnnotations,
		registry:    NewRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.dispatcher = dispatch.NewDispatcher(
		dispatch.WithHook(r.onInvocation),
		dispatch.WithPanicFunc(r.onHandlerPanic),
	)
	return r
}

// RegisterModel registers model under id. It fails with a
// *DuplicateModelError if id is already registered.
func (r *Router) RegisterModel(id string, model any) error {
	if _, err := r.registry.Register(id, model); err != nil {
		return err
	}
	r.logger.Debug().Str("model", id).Msg("model registered")
	return nil
}

// UnregisterModel removes the model registered under id. Every
// subscription to it becomes inert and queued work for it is dropped.
// Unknown ids are ignored.
func (r *Router) UnregisterModel(id string) {
	entry, ok := r.registry.Unregister(id)
	if !ok {
		return
	}
	r.updateEntriesGauge()
	r.logger.Debug().Str("model", entry.ID()).Msg("model unregistered")
}

// ObserveEventsOn discovers the handlers of target and subscribes them to
// the model registered under id. Nothing is inserted if discovery fails.
func (r *Router) ObserveEventsOn(id string, target any, opts ...ObserveOption) (*Subscription, error) {
	entry, err := r.registry.Get(id)
	if err != nil {
		return nil, err
	}

	cfg := observeConfig{prefix: r.prefix}
	for _, opt := range opts {
		opt(&cfg)
	}

	observer, err := discovery.Discover(target,
		discovery.WithPrefix(cfg.prefix),
		discovery.WithAnnotations(r.annotations),
	)
	if err != nil {
		return nil, fmt.Errorf("observe %s: %w", id, err)
	}

	sub := newSubscription(uuid.NewString(), id, entry.Table())
	entries, ok := entry.Table().insertAll(sub.id, observer.Bindings)
	if !ok {
		// Unregistered between Get and insert.
		return nil, &UnknownModelError{ModelID: id}
	}
	sub.entries = entries
	sub.onDispose = r.subscriptionDisposed

	r.activeSubscriptions.Add(1)
	r.updateEntriesGauge()
	r.logger.Debug().
		Str("model", id).
		Str("subscription", sub.id).
		Int("handlers", len(entries)).
		Strs("events", observer.Events()).
		Msg("observer subscribed")

	return sub, nil
}

func (r *Router) subscriptionDisposed(sub *Subscription, removed int) {
	r.activeSubscriptions.Add(-1)
	r.updateEntriesGauge()
	r.logger.Debug().
		Str("model", sub.modelID).
		Str("subscription", sub.id).
		Int("removed", removed).
		Msg("subscription disposed")
}

// PublishEvent dispatches eventName with payload to the observers of the
// model registered under id.
//
// If the router is idle the event is dispatched before PublishEvent
// returns, together with anything published meanwhile, and the returned
// error joins the *DispatchError of every failed event. If a dispatch is
// already running the event is queued and PublishEvent returns nil.
func (r *Router) PublishEvent(id, eventName string, payload any) error {
	if eventName == "" {
		return ErrEmptyEventName
	}
	entry, err := r.registry.Get(id)
	if err != nil {
		return err
	}
	return r.submit(queuedItem{entry: entry, eventName: eventName, payload: payload})
}

// BroadcastEvent publishes eventName with payload to every registered
// model, in registration order. It returns like PublishEvent.
func (r *Router) BroadcastEvent(eventName string, payload any) error {
	if eventName == "" {
		return ErrEmptyEventName
	}
	entries := r.registry.Entries()
	if len(entries) == 0 {
		return nil
	}
	items := make([]queuedItem, len(entries))
	for i, e := range entries {
		items[i] = queuedItem{entry: e, eventName: eventName, payload: payload}
	}
	return r.submit(items...)
}

// RunAction runs fn against the model registered under id on the dispatch
// loop, in order with queued events. It returns like PublishEvent; a
// failure of fn is reported as an *ActionError.
func (r *Router) RunAction(id string, fn func(model any) error) error {
	if fn == nil {
		return ErrNilAction
	}
	entry, err := r.registry.Get(id)
	if err != nil {
		return err
	}
	return r.submit(queuedItem{entry: entry, action: fn})
}

// IsRegistered reports whether id is registered.
func (r *Router) IsRegistered(id string) bool {
	return r.registry.Has(id)
}

// Model returns the model registered under id.
func (r *Router) Model(id string) (any, bool) {
	entry, err := r.registry.Get(id)
	if err != nil {
		return nil, false
	}
	return entry.Model(), true
}

// ModelIDs returns the registered ids in registration order.
func (r *Router) ModelIDs() []string {
	return r.registry.IDs()
}

// ObservedEvents returns the event names the model registered under id
// has at least one handler for, sorted.
func (r *Router) ObservedEvents(id string) ([]string, error) {
	entry, err := r.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return entry.Table().Events(), nil
}

// Dispatching reports whether a caller is currently draining the queue.
func (r *Router) Dispatching() bool {
	return r.queue.busy()
}

// Stats returns a snapshot of the router statistics.
func (r *Router) Stats() Stats {
	return Stats{
		Models:              r.registry.Len(),
		HandlerEntries:      r.registry.HandlerCount(),
		ActiveSubscriptions: r.activeSubscriptions.Load(),
		EventsPublished:     r.eventsPublished.Load(),
		EventsCommitted:     r.eventsCommitted.Load(),
		EventsCancelled:     r.eventsCancelled.Load(),
		EventsDropped:       r.eventsDropped.Load(),
		ActionsRun:          r.actionsRun.Load(),
		HandlersExecuted:    r.handlersExecuted.Load(),
		HandlerErrors:       r.handlerErrors.Load(),
		HandlerPanics:       r.handlerPanics.Load(),
		QueueDepth:          r.queue.len(),
	}
}

func (r *Router) submit(items ...queuedItem) error {
	drain := r.queue.enqueue(items...)
	r.updateQueueGauge()
	if !drain {
		r.logger.Debug().Int("items", len(items)).Msg("dispatch in progress, queued")
		return nil
	}
	return r.drain()
}

// drain processes queued items until the queue is empty. Only the caller
// that won enqueue runs it.
func (r *Router) drain() error {
	defer func() {
		if p := recover(); p != nil {
			dropped := r.queue.reset()
			r.updateQueueGauge()
			r.logger.Error().
				Interface("panic", p).
				Int("dropped", dropped).
				Msg("dispatch loop panicked, queue reset")
			panic(p)
		}
	}()

	var errs []error
	for {
		item, ok := r.queue.next()
		if !ok {
			break
		}
		r.updateQueueGauge()
		if err := r.process(item); err != nil {
			errs = append(errs, err)
		}
	}
	r.updateQueueGauge()
	return errors.Join(errs...)
}

func (r *Router) process(item queuedItem) error {
	entry := item.entry
	if entry.Table().Detached() {
		r.eventsDropped.Add(1)
		if r.metrics != nil {
			r.metrics.eventsDropped.Inc()
		}
		r.logger.Warn().
			Str("model", entry.ID()).
			Str("event", item.eventName).
			Msg("model unregistered before queued item ran, dropped")
		return nil
	}

	if item.action != nil {
		return r.runAction(entry, item.action)
	}
	return r.dispatch(entry, item.eventName, item.payload)
}

func (r *Router) runAction(entry *ModelEntry, fn func(model any) error) (err error) {
	r.actionsRun.Add(1)
	defer func() {
		if p := recover(); p != nil {
			err = &ActionError{
				ModelID: entry.ID(),
				Err:     fmt.Errorf("%w: %v", dispatch.ErrHandlerPanic, p),
			}
		}
		if err != nil {
			r.logger.Warn().Err(err).Str("model", entry.ID()).Msg("action failed")
		}
	}()

	if err := fn(entry.Model()); err != nil {
		return &ActionError{ModelID: entry.ID(), Err: err}
	}
	return nil
}

func (r *Router) dispatch(entry *ModelEntry, eventName string, payload any) error {
	id, model := entry.ID(), entry.Model()
	r.logger.Debug().Str("model", id).Str("event", eventName).Msg("dispatching event")

	var failures []error
	if pre, ok := model.(PreEventProcessor); ok {
		if err := r.callProcessor(id, eventName, "PreProcess", func() { pre.PreProcess(eventName) }); err != nil {
			failures = append(failures, err)
		}
	}

	out := r.dispatcher.Dispatch(entry.Table(), id, eventName, payload, model)
	failures = append(failures, out.Failures...)

	if post, ok := model.(PostEventProcessor); ok {
		if err := r.callProcessor(id, eventName, "PostProcess", func() { post.PostProcess(eventName, out.Committed) }); err != nil {
			failures = append(failures, err)
		}
	}

	r.eventsPublished.Add(1)
	if out.Committed {
		r.eventsCommitted.Add(1)
	}
	if out.Cancelled {
		r.eventsCancelled.Add(1)
	}
	if r.metrics != nil {
		r.metrics.observeOutcome(out)
	}

	logEvent := r.logger.Debug().
		Str("model", id).
		Str("event", eventName).
		Bool("committed", out.Committed).
		Bool("cancelled", out.Cancelled).
		Dur("duration", out.Duration)
	if !out.Committed && !out.Cancelled {
		logEvent.Msg("event dispatched, committed phase skipped")
	} else {
		logEvent.Msg("event dispatched")
	}

	if len(failures) == 0 {
		return nil
	}
	for _, f := range failures {
		r.logger.Warn().Err(f).Str("model", id).Str("event", eventName).Msg("handler failed")
	}
	return &DispatchError{
		ModelID:   id,
		EventName: eventName,
		Committed: out.Committed,
		Failures:  failures,
	}
}

// callProcessor runs a pre or post processing call, converting a panic
// into a *dispatch.PanicError.
func (r *Router) callProcessor(id, eventName, member string, fn func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &dispatch.PanicError{
				ModelID:   id,
				EventName: eventName,
				Member:    member,
				Value:     p,
				Stack:     string(debug.Stack()),
			}
		}
	}()
	fn()
	return nil
}

func (r *Router) onInvocation(inv Invocation) {
	r.handlersExecuted.Add(1)
	switch {
	case inv.Result.Panicked:
		r.handlerPanics.Add(1)
	case inv.Result.Error != nil:
		r.handlerErrors.Add(1)
	}
	if r.metrics != nil {
		r.metrics.observeInvocation(inv)
	}
	for _, h := range r.hooks {
		h(inv)
	}
}

func (r *Router) onHandlerPanic(ctx *Context, entry *HandlerEntry, value any, stack []byte) {
	r.logger.Error().
		Str("model", ctx.ModelID()).
		Str("event", ctx.EventName()).
		Str("stage", ctx.Stage().String()).
		Str("member", entry.Member).
		Str("subscription", entry.SubscriptionID).
		Interface("panic", value).
		Bytes("stack", stack).
		Msg("handler panicked")
}

func (r *Router) updateQueueGauge() {
	if r.metrics != nil {
		r.metrics.queueDepth.Set(float64(r.queue.len()))
	}
}

func (r *Router) updateEntriesGauge() {
	if r.metrics != nil {
		r.metrics.handlerEntries.Set(float64(r.registry.HandlerCount()))
	}
}
