package router

import (
	"github.com/dshills/stagerouter/internal/router/discovery"
	"github.com/dshills/stagerouter/internal/router/dispatch"
	"github.com/dshills/stagerouter/internal/router/stage"
)

// Context is the per-publish context passed to handlers.
type Context = dispatch.Context

// Handler is the function signature handlers are adapted to.
type Handler = dispatch.Handler

// HandlerEntry is one handler in a dispatch table.
type HandlerEntry = dispatch.Entry

// Invocation describes one handler call.
type Invocation = dispatch.Invocation

// Stage is a processing phase.
type Stage = stage.Stage

// Stages.
const (
	StagePreview   = stage.Preview
	StageNormal    = stage.Normal
	StageCommitted = stage.Committed
)

// DefaultPrefix is the naming-convention prefix used by ObserveEventsOn.
const DefaultPrefix = discovery.DefaultPrefix

// PreEventProcessor is implemented by models that want to run code before
// each event dispatched against them.
type PreEventProcessor interface {
	PreProcess(eventName string)
}

// PostEventProcessor is implemented by models that want to run code after
// each event dispatched against them.
type PostEventProcessor interface {
	PostProcess(eventName string, committed bool)
}
