package dispatch

import "github.com/dshills/stagerouter/internal/router/stage"

// Context is created fresh for every published event and handed to each
// handler that processes it. It is not safe for use after the dispatch
// returns.
type Context struct {
	modelID   string
	eventName string
	stage     stage.Stage

	committed bool
	cancelled bool
}

// NewContext creates a context for one publish of eventName against modelID.
func NewContext(modelID, eventName string) *Context {
	return &Context{
		modelID:   modelID,
		eventName: eventName,
		stage:     stage.Preview,
	}
}

// ModelID returns the id of the model the event was published to.
func (c *Context) ModelID() string { return c.modelID }

// EventName returns the published event name.
func (c *Context) EventName() string { return c.eventName }

// Stage returns the phase currently executing.
func (c *Context) Stage() stage.Stage { return c.stage }

// Commit marks the event as having changed state. Calling it more than once
// has no further effect. Only a commit made before the normal phase ends
// enables the committed phase.
func (c *Context) Commit() { c.committed = true }

// IsCommitted reports whether Commit has been called.
func (c *Context) IsCommitted() bool { return c.committed }

// Cancel stops the event during the preview phase: remaining preview
// handlers are skipped and the normal and committed phases do not run.
// It has no effect in any other phase.
func (c *Context) Cancel() {
	if c.stage == stage.Preview {
		c.cancelled = true
	}
}

// IsCancelled reports whether a preview handler cancelled the event.
func (c *Context) IsCancelled() bool { return c.cancelled }
