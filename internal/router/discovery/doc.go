// Package discovery finds the event handlers exposed by an observer target.
//
// Two mechanisms feed the same result and may be mixed on one target.
//
// # Naming convention
//
// Every method in the target's method set whose name has the form
//
//	<prefix><eventName>[_preview|_normal|_committed]
//
// is bound to eventName at the stage named by the suffix, or at the normal
// stage when there is no suffix. The default prefix is "Observe_", so
//
//	func (m *Model) Observe_bar_Event_preview(e any, c *dispatch.Context, model any)
//
// observes "bar_Event" at the preview stage. Methods promoted from embedded
// types are part of the method set and are found exactly once; a method
// redefined on the outer type replaces the promoted one.
//
// # Declarative metadata
//
// ObserveEvent records an explicit (eventName, stage) for a method in a side
// table, normally from a package-level var so the table is populated once
// when the defining package initialises:
//
//	var _ = discovery.ObserveEvent[*Model]("OnFoo", "fooEvent", stage.Preview)
//
// Annotated methods do not need to follow the naming convention. An
// annotation on an embedded type's method applies wherever that method is
// promoted.
//
// # Enumeration order
//
// Members are visited in ascending name order, which is the order reflect
// reports methods in. The order of bindings for one event and stage is
// therefore stable across runs.
package discovery
