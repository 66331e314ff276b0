// Package dispatch runs the three-phase processing of a single published
// event against an ordered set of handlers.
//
// # Phases
//
// For one publish the Dispatcher runs, in order:
//
//   - preview: every preview handler, in registration order
//   - normal: every normal handler, in registration order; any may call
//     Context.Commit and a commit never stops the remaining normal handlers
//   - committed: every committed handler, only if the context was committed
//     by the end of the normal phase
//
// Each phase reads a snapshot of its handler list taken when the phase
// starts. Removing a handler while a phase runs does not skip handlers that
// were already captured.
//
// # Failures
//
// A handler that returns an error or panics is isolated. The failure is
// recorded as a HandlerError or PanicError, sibling handlers and later phases
// still run, and the failures are reported in the Outcome once the dispatch
// has completed.
package dispatch
