// Package engine implements the binding runtime.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// One goroutine owns the document and drives the loop with Run or Tick.
// Everything that touches nodes happens there:
//   - mutation batches: the document notifies the engine when records
//     become pending; the records are drained on a later turn, never
//     synchronously, so an element may sit in the tree briefly before its
//     bindings are wired
//   - posted tasks: Post hands work from other goroutines to the loop
//   - frames: schedulers request frames from the engine, which runs them as
//     loop turns
//
// Node lifecycle:
//
//	Unbound --attached--> Bound --detached--> Disposed
//
// Binding drains the element's marker and wires every binding in
// registration order. Source bindings for bubbling events go through one
// delegated listener per event name at the document root; non-bubbling
// events get a capturing listener on the element. Sink bindings subscribe
// the source to the sink built for the element, or for the next split text
// node when the binding is a text slot.
//
// Disposal walks the removed subtree depth-first and releases each node's
// subscriptions exactly once. Futures cannot be cancelled; sinks ignore
// values arriving after disposal. A disposed node that is attached again is
// not rebound.
//
// ERROR HANDLING:
// Nothing here returns binding errors to the caller. Degraded outcomes
// become a RuntimeError handed to the binding's own error handler or to the
// default error sink, which logs it, writes a trace row and calls the
// WithErrorHandler hook.
package engine
