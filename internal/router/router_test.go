package router

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/stagerouter/internal/router/discovery"
	"github.com/dshills/stagerouter/internal/router/dispatch"
)

// fooObserver counts its three fooEvent handlers.
type fooObserver struct {
	preview, normal, committed int
	order                      []string
}

func (o *fooObserver) Observe_fooEvent_preview(e any, ctx *Context, model any) {
	o.preview++
	o.order = append(o.order, "preview")
}

func (o *fooObserver) Observe_fooEvent(e any, ctx *Context, model any) {
	o.normal++
	o.order = append(o.order, "normal")
	ctx.Commit()
}

func (o *fooObserver) Observe_fooEvent_committed(e any, ctx *Context, model any) {
	o.committed++
	o.order = append(o.order, "committed")
}

type model struct {
	name string
}

func newTestRouter(t *testing.T, opts ...Option) *Router {
	t.Helper()
	opts = append([]Option{WithAnnotations(discovery.NewAnnotations())}, opts...)
	return New(opts...)
}

func TestRouter_ExampleScenario(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("m", &model{}))

	obs := &fooObserver{}
	sub, err := r.ObserveEventsOn("m", obs)
	require.NoError(t, err)

	require.NoError(t, r.PublishEvent("m", "fooEvent", 1))
	assert.Equal(t, 1, obs.preview)
	assert.Equal(t, 1, obs.normal)
	assert.Equal(t, 1, obs.committed)
	assert.Equal(t, []string{"preview", "normal", "committed"}, obs.order)

	require.NoError(t, r.PublishEvent("m", "fooEvent", 1))
	require.NoError(t, r.PublishEvent("m", "fooEvent", 1))
	sub.Dispose()
	require.NoError(t, r.PublishEvent("m", "fooEvent", 1))

	assert.Equal(t, 3, obs.preview)
	assert.Equal(t, 3, obs.normal)
	assert.Equal(t, 3, obs.committed)
}

type noCommitObserver struct {
	normal, committed int
}

func (o *noCommitObserver) Observe_save(e any, ctx *Context, model any) { o.normal++ }

func (o *noCommitObserver) Observe_save_committed(e any, ctx *Context, model any) {
	o.committed++
}

func TestRouter_CommittedPhaseSkippedWithoutCommit(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("m", &model{}))

	obs := &noCommitObserver{}
	_, err := r.ObserveEventsOn("m", obs)
	require.NoError(t, err)

	require.NoError(t, r.PublishEvent("m", "save", nil))
	assert.Equal(t, 1, obs.normal)
	assert.Zero(t, obs.committed)
	assert.Equal(t, uint64(0), r.Stats().EventsCommitted)
}

func TestRouter_DisposeAfterNPublishes(t *testing.T) {
	for n := 0; n <= 4; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			r := newTestRouter(t)
			require.NoError(t, r.RegisterModel("m", &model{}))

			obs := &fooObserver{}
			sub, err := r.ObserveEventsOn("m", obs)
			require.NoError(t, err)

			for i := 0; i < n; i++ {
				require.NoError(t, r.PublishEvent("m", "fooEvent", i))
			}
			sub.Dispose()
			sub.Dispose()
			for i := 0; i < 3; i++ {
				require.NoError(t, r.PublishEvent("m", "fooEvent", i))
			}

			assert.Equal(t, n, obs.preview)
			assert.Equal(t, n, obs.normal)
			assert.Equal(t, n, obs.committed)
			assert.True(t, sub.IsDisposed())
			assert.Zero(t, sub.Len())
		})
	}
}

type baseObserver struct {
	hits int
}

func (b *baseObserver) Observe_tick(e any, ctx *Context, model any) { b.hits++ }

type derivedObserver struct {
	baseObserver
	extra int
}

func (d *derivedObserver) Observe_tock(e any, ctx *Context, model any) { d.extra++ }

func TestRouter_InheritedHandlersFireIdentically(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("m", &model{}))

	base := &baseObserver{}
	derived := &derivedObserver{}
	_, err := r.ObserveEventsOn("m", base)
	require.NoError(t, err)
	_, err = r.ObserveEventsOn("m", derived)
	require.NoError(t, err)

	require.NoError(t, r.PublishEvent("m", "tick", nil))
	require.NoError(t, r.PublishEvent("m", "tick", nil))

	assert.Equal(t, 2, base.hits)
	assert.Equal(t, 2, derived.hits)
	assert.Zero(t, derived.extra)
}

type prefixedObserver struct {
	custom, standard int
}

func (o *prefixedObserver) On_ping(e any, ctx *Context, model any)      { o.custom++ }
func (o *prefixedObserver) Observe_ping(e any, ctx *Context, model any) { o.standard++ }

func TestRouter_CustomPrefix(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("m", &model{}))

	obs := &prefixedObserver{}
	sub, err := r.ObserveEventsOn("m", obs, WithPrefix("On_"))
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Len())

	require.NoError(t, r.PublishEvent("m", "ping", nil))
	assert.Equal(t, 1, obs.custom)
	assert.Zero(t, obs.standard)
}

func TestRouter_DefaultPrefixOption(t *testing.T) {
	r := newTestRouter(t, WithDefaultPrefix("On_"))
	require.NoError(t, r.RegisterModel("m", &model{}))

	obs := &prefixedObserver{}
	_, err := r.ObserveEventsOn("m", obs)
	require.NoError(t, err)

	require.NoError(t, r.PublishEvent("m", "ping", nil))
	assert.Equal(t, 1, obs.custom)
	assert.Zero(t, obs.standard)
}

func TestRouter_ModelErrors(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("editor", &model{}))

	err := r.RegisterModel("editor", &model{})
	var dup *DuplicateModelError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "editor", dup.ModelID)
	assert.True(t, errors.Is(err, ErrDuplicateModel))

	assert.ErrorIs(t, r.RegisterModel("", &model{}), ErrEmptyModelID)

	err = r.PublishEvent("editr", "fooEvent", nil)
	var unknown *UnknownModelError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "editor", unknown.Suggestion)
	assert.Contains(t, err.Error(), `did you mean "editor"`)
	assert.ErrorIs(t, err, ErrUnknownModel)

	_, err = r.ObserveEventsOn("nothing-like-it", &fooObserver{})
	require.ErrorAs(t, err, &unknown)
	assert.Empty(t, unknown.Suggestion)

	assert.ErrorIs(t, r.PublishEvent("editor", "", nil), ErrEmptyEventName)
	assert.ErrorIs(t, r.RunAction("editor", nil), ErrNilAction)

	// Unknown ids are ignored.
	r.UnregisterModel("missing")
	assert.True(t, r.IsRegistered("editor"))
}

type conflictObserver struct{}

func (conflictObserver) Observe_save_preview(e any, ctx *Context, model any) {}

func TestRouter_FailedDiscoveryInsertsNothing(t *testing.T) {
	ann := discovery.NewAnnotations()
	require.NoError(t, ann.Add(
		reflect.TypeOf(conflictObserver{}),
		"Observe_save_preview",
		discovery.Annotation{EventName: "save", Stage: StageCommitted},
	))

	r := New(WithAnnotations(ann))
	require.NoError(t, r.RegisterModel("m", &model{}))

	_, err := r.ObserveEventsOn("m", &conflictObserver{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousHandler)

	var amb *AmbiguousHandlerError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, "Observe_save_preview", amb.Member)
	assert.Zero(t, r.Stats().HandlerEntries)
}

func TestRouter_ObserverByValueWithPointerHandlers(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("v", &model{}))

	sub, err := r.ObserveEventsOn("v", fooObserver{})
	assert.ErrorIs(t, err, ErrPointerReceiver)
	assert.Nil(t, sub)
	assert.Zero(t, r.Stats().HandlerEntries)
	assert.Zero(t, r.Stats().ActiveSubscriptions)
}

func TestRouter_UnregisterMakesSubscriptionsInert(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("m", &model{}))

	obs := &fooObserver{}
	sub, err := r.ObserveEventsOn("m", obs)
	require.NoError(t, err)
	assert.True(t, sub.IsActive())
	events, err := r.ObservedEvents("m")
	require.NoError(t, err)
	assert.Equal(t, []string{"fooEvent"}, events)

	r.UnregisterModel("m")
	_, err = r.ObservedEvents("m")
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.False(t, r.IsRegistered("m"))
	assert.False(t, sub.IsActive())
	assert.ErrorIs(t, r.PublishEvent("m", "fooEvent", nil), ErrUnknownModel)

	// Re-registering gives a fresh table; the old subscription stays inert.
	require.NoError(t, r.RegisterModel("m", &model{}))
	require.NoError(t, r.PublishEvent("m", "fooEvent", nil))
	assert.Zero(t, obs.normal)

	assert.NotPanics(t, sub.Dispose)
	assert.True(t, sub.IsDisposed())
}

// chainObserver publishes follow-up events from inside handlers.
type chainObserver struct {
	t   *testing.T
	r   *Router
	log []string
}

func (o *chainObserver) Observe_first(e any, ctx *Context, model any) {
	o.log = append(o.log, "first:normal:start")
	assert.NoError(o.t, o.r.PublishEvent("m", "second", nil))
	assert.NoError(o.t, o.r.PublishEvent("m", "third", nil))
	o.log = append(o.log, "first:normal:end")
	ctx.Commit()
}

func (o *chainObserver) Observe_first_committed(e any, ctx *Context, model any) {
	o.log = append(o.log, "first:committed")
}

func (o *chainObserver) Observe_second_preview(e any, ctx *Context, model any) {
	o.log = append(o.log, "second:preview")
}

func (o *chainObserver) Observe_second(e any, ctx *Context, model any) {
	o.log = append(o.log, "second:normal")
}

func (o *chainObserver) Observe_third(e any, ctx *Context, model any) {
	o.log = append(o.log, "third:normal")
}

func TestRouter_ReentrantPublishIsQueuedFIFO(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("m", &model{}))

	obs := &chainObserver{t: t, r: r}
	_, err := r.ObserveEventsOn("m", obs)
	require.NoError(t, err)

	require.NoError(t, r.PublishEvent("m", "first", nil))
	assert.Equal(t, []string{
		"first:normal:start",
		"first:normal:end",
		"first:committed",
		"second:preview",
		"second:normal",
		"third:normal",
	}, obs.log)
	assert.False(t, r.Dispatching())
	assert.Equal(t, uint64(3), r.Stats().EventsPublished)
}

type failingObserver struct {
	ran []string
}

func (o *failingObserver) Observe_go_preview(e any, ctx *Context, model any) error {
	o.ran = append(o.ran, "preview")
	return errors.New("preview failed")
}

func (o *failingObserver) Observe_go(e any, ctx *Context, model any) {
	o.ran = append(o.ran, "normal")
	ctx.Commit()
	panic("boom")
}

func (o *failingObserver) Observe_go_committed(e any, ctx *Context, model any) {
	o.ran = append(o.ran, "committed")
}

func TestRouter_HandlerFailuresAreIsolatedAndAggregated(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("m", &model{}))

	obs := &failingObserver{}
	_, err := r.ObserveEventsOn("m", obs)
	require.NoError(t, err)

	err = r.PublishEvent("m", "go", nil)
	require.Error(t, err)
	assert.Equal(t, []string{"preview", "normal", "committed"}, obs.ran)

	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "m", de.ModelID)
	assert.Equal(t, "go", de.EventName)
	assert.True(t, de.Committed)
	require.Len(t, de.Failures, 2)

	var he *dispatch.HandlerError
	require.ErrorAs(t, de.Failures[0], &he)
	assert.Equal(t, "Observe_go_preview", he.Member)
	assert.ErrorIs(t, err, dispatch.ErrHandlerPanic)

	stats := r.Stats()
	assert.Equal(t, uint64(3), stats.HandlersExecuted)
	assert.Equal(t, uint64(1), stats.HandlerErrors)
	assert.Equal(t, uint64(1), stats.HandlerPanics)
}

func TestRouter_HandlerPanicIsLogged(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRouter(t, WithLogger(zerolog.New(&buf).Level(zerolog.ErrorLevel)))
	require.NoError(t, r.RegisterModel("m", &model{}))
	_, err := r.ObserveEventsOn("m", &failingObserver{})
	require.NoError(t, err)

	require.Error(t, r.PublishEvent("m", "go", nil))

	out := buf.String()
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"message":"handler panicked"`)
	assert.Contains(t, out, `"member":"Observe_go"`)
	assert.Contains(t, out, `"stage":"normal"`)
	assert.Contains(t, out, `"panic":"boom"`)
	assert.Contains(t, out, `"stack":`)
	assert.NotContains(t, out, "preview failed")
}

type reentrantFailer struct {
	t *testing.T
	r *Router
}

func (o *reentrantFailer) Observe_outer(e any, ctx *Context, model any) error {
	assert.NoError(o.t, o.r.PublishEvent("m", "inner", nil))
	return errors.New("outer failed")
}

func (o *reentrantFailer) Observe_inner(e any, ctx *Context, model any) error {
	return errors.New("inner failed")
}

func TestRouter_DrainerReceivesQueuedFailures(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("m", &model{}))
	_, err := r.ObserveEventsOn("m", &reentrantFailer{t: t, r: r})
	require.NoError(t, err)

	err = r.PublishEvent("m", "outer", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outer failed")
	assert.Contains(t, err.Error(), "inner failed")
}

type processedModel struct {
	calls []string
}

func (m *processedModel) PreProcess(eventName string) {
	m.calls = append(m.calls, "pre:"+eventName)
}

func (m *processedModel) PostProcess(eventName string, committed bool) {
	m.calls = append(m.calls, fmt.Sprintf("post:%s:%t", eventName, committed))
}

type modelWriter struct{}

func (modelWriter) Observe_edit(e any, ctx *Context, m any) {
	pm := m.(*processedModel)
	pm.calls = append(pm.calls, "handler")
	if e.(bool) {
		ctx.Commit()
	}
}

func TestRouter_PrePostProcessing(t *testing.T) {
	r := newTestRouter(t)
	pm := &processedModel{}
	require.NoError(t, r.RegisterModel("m", pm))
	_, err := r.ObserveEventsOn("m", modelWriter{})
	require.NoError(t, err)

	require.NoError(t, r.PublishEvent("m", "edit", true))
	require.NoError(t, r.PublishEvent("m", "edit", false))

	assert.Equal(t, []string{
		"pre:edit", "handler", "post:edit:true",
		"pre:edit", "handler", "post:edit:false",
	}, pm.calls)
}

type panickyModel struct{}

func (panickyModel) PreProcess(string) { panic("pre") }

func TestRouter_PreProcessPanicIsReported(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("m", panickyModel{}))

	obs := &noCommitObserver{}
	_, err := r.ObserveEventsOn("m", obs)
	require.NoError(t, err)

	err = r.PublishEvent("m", "save", nil)
	assert.ErrorIs(t, err, dispatch.ErrHandlerPanic)
	assert.Equal(t, 1, obs.normal)
}

type cancelObserver struct {
	ran []string
}

func (o *cancelObserver) Observe_close_preview(e any, ctx *Context, model any) {
	o.ran = append(o.ran, "preview")
	if e.(bool) {
		ctx.Cancel()
	}
}

func (o *cancelObserver) Observe_close(e any, ctx *Context, model any) {
	o.ran = append(o.ran, "normal")
	ctx.Commit()
}

func TestRouter_PreviewCancel(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("m", &model{}))
	obs := &cancelObserver{}
	_, err := r.ObserveEventsOn("m", obs)
	require.NoError(t, err)

	require.NoError(t, r.PublishEvent("m", "close", true))
	assert.Equal(t, []string{"preview"}, obs.ran)

	require.NoError(t, r.PublishEvent("m", "close", false))
	assert.Equal(t, []string{"preview", "preview", "normal"}, obs.ran)

	assert.Equal(t, uint64(1), r.Stats().EventsCancelled)
}

type nameRecorder struct {
	mu    sync.Mutex
	names []string
}

func (o *nameRecorder) Observe_reset(e any, ctx *Context, model any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, ctx.ModelID())
}

func TestRouter_BroadcastEvent(t *testing.T) {
	r := newTestRouter(t)
	rec := &nameRecorder{}
	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, r.RegisterModel(id, &model{name: id}))
		_, err := r.ObserveEventsOn(id, rec)
		require.NoError(t, err)
	}

	require.NoError(t, r.BroadcastEvent("reset", nil))
	assert.Equal(t, []string{"b", "a", "c"}, rec.names)
	assert.Equal(t, []string{"b", "a", "c"}, r.ModelIDs())

	assert.ErrorIs(t, r.BroadcastEvent("", nil), ErrEmptyEventName)
	assert.NoError(t, newTestRouter(t).BroadcastEvent("reset", nil))
}

type actionObserver struct {
	t   *testing.T
	r   *Router
	log []string
}

func (o *actionObserver) Observe_rename(e any, ctx *Context, m any) {
	o.log = append(o.log, "rename")
	err := o.r.RunAction("m", func(m any) error {
		o.log = append(o.log, "action:"+m.(*model).name)
		return nil
	})
	assert.NoError(o.t, err)
	o.log = append(o.log, "rename:end")
}

func TestRouter_RunAction(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("m", &model{name: "doc"}))

	var seen any
	require.NoError(t, r.RunAction("m", func(m any) error {
		seen = m
		return nil
	}))
	assert.Equal(t, "doc", seen.(*model).name)

	err := r.RunAction("m", func(any) error { return errors.New("nope") })
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "m", ae.ModelID)

	err = r.RunAction("m", func(any) error { panic("bad") })
	assert.ErrorIs(t, err, dispatch.ErrHandlerPanic)

	obs := &actionObserver{t: t, r: r}
	_, err = r.ObserveEventsOn("m", obs)
	require.NoError(t, err)
	require.NoError(t, r.PublishEvent("m", "rename", nil))
	assert.Equal(t, []string{"rename", "rename:end", "action:doc"}, obs.log)
	assert.Equal(t, uint64(4), r.Stats().ActionsRun)
}

type unregisterObserver struct {
	t      *testing.T
	r      *Router
	second int
}

func (o *unregisterObserver) Observe_first(e any, ctx *Context, m any) {
	assert.NoError(o.t, o.r.PublishEvent("m", "second", nil))
	o.r.UnregisterModel("m")
}

func (o *unregisterObserver) Observe_second(e any, ctx *Context, m any) { o.second++ }

func TestRouter_QueuedItemForUnregisteredModelIsDropped(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("m", &model{}))
	obs := &unregisterObserver{t: t, r: r}
	_, err := r.ObserveEventsOn("m", obs)
	require.NoError(t, err)

	require.NoError(t, r.PublishEvent("m", "first", nil))
	assert.Zero(t, obs.second)
	assert.Equal(t, uint64(1), r.Stats().EventsDropped)
}

// reregisterObserver queues a publish to "x" and then replaces the model
// registered under "x" before the queued publish runs.
type reregisterObserver struct {
	t           *testing.T
	r           *Router
	replacement *fooObserver
}

func (o *reregisterObserver) Observe_swap(e any, ctx *Context, m any) {
	assert.NoError(o.t, o.r.PublishEvent("x", "fooEvent", nil))
	o.r.UnregisterModel("x")
	assert.NoError(o.t, o.r.RegisterModel("x", &model{name: "new"}))
	_, err := o.r.ObserveEventsOn("x", o.replacement)
	assert.NoError(o.t, err)
}

func TestRouter_QueuedItemNotRedirectedToReregisteredModel(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("ctl", &model{}))
	require.NoError(t, r.RegisterModel("x", &model{name: "old"}))

	obs := &reregisterObserver{t: t, r: r, replacement: &fooObserver{}}
	_, err := r.ObserveEventsOn("ctl", obs)
	require.NoError(t, err)

	require.NoError(t, r.PublishEvent("ctl", "swap", nil))
	assert.Zero(t, obs.replacement.preview)
	assert.Zero(t, obs.replacement.normal)
	assert.Zero(t, obs.replacement.committed)
	assert.Equal(t, uint64(1), r.Stats().EventsDropped)

	// Later publishes reach the new registration.
	require.NoError(t, r.PublishEvent("x", "fooEvent", nil))
	assert.Equal(t, 1, obs.replacement.committed)
}

func TestRouter_ConcurrentPublishers(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.RegisterModel("m", &model{}))

	var mu sync.Mutex
	count := 0
	_, err := r.ObserveEventsOn("m", &countingObserver{fn: func() {
		mu.Lock()
		count++
		mu.Unlock()
	}})
	require.NoError(t, err)

	const publishers, each = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				_ = r.PublishEvent("m", "hit", j)
			}
		}()
	}
	wg.Wait()

	// Every queued item is processed by some drainer before it returns.
	assert.False(t, r.Dispatching())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, publishers*each, count)
}

type countingObserver struct {
	fn func()
}

func (o *countingObserver) Observe_hit(e any, ctx *Context, m any) { o.fn() }

func TestRouter_InvocationHookAndStats(t *testing.T) {
	var invocations []Invocation
	r := newTestRouter(t, WithInvocationHook(func(inv Invocation) {
		invocations = append(invocations, inv)
	}))
	require.NoError(t, r.RegisterModel("m", &model{}))
	sub, err := r.ObserveEventsOn("m", &fooObserver{})
	require.NoError(t, err)

	require.NoError(t, r.PublishEvent("m", "fooEvent", nil))
	require.Len(t, invocations, 3)
	assert.Equal(t, StagePreview, invocations[0].Stage)
	assert.Equal(t, StageNormal, invocations[1].Stage)
	assert.Equal(t, StageCommitted, invocations[2].Stage)
	assert.Equal(t, "Observe_fooEvent", invocations[1].Member)
	assert.Equal(t, sub.ID(), invocations[1].SubscriptionID)

	stats := r.Stats()
	assert.Equal(t, 1, stats.Models)
	assert.Equal(t, 3, stats.HandlerEntries)
	assert.Equal(t, int64(1), stats.ActiveSubscriptions)
	assert.Equal(t, uint64(1), stats.EventsCommitted)

	sub.Dispose()
	stats = r.Stats()
	assert.Zero(t, stats.HandlerEntries)
	assert.Zero(t, stats.ActiveSubscriptions)

	m, ok := r.Model("m")
	require.True(t, ok)
	assert.IsType(t, &model{}, m)
	_, ok = r.Model("x")
	assert.False(t, ok)
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test")
	require.NoError(t, m.Register(reg))

	r := newTestRouter(t, WithMetrics(m))
	require.NoError(t, r.RegisterModel("m", &model{}))
	_, err := r.ObserveEventsOn("m", &fooObserver{})
	require.NoError(t, err)
	_, err = r.ObserveEventsOn("m", &noCommitObserver{})
	require.NoError(t, err)

	require.NoError(t, r.PublishEvent("m", "fooEvent", nil))
	require.NoError(t, r.PublishEvent("m", "save", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.committedSkipped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.invocations.WithLabelValues("normal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("committed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.handlerEntries))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1, testutil.CollectAndCount(m.dispatchDuration))

	// Registering twice fails.
	assert.Error(t, m.Register(reg))
}
