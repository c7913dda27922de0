// Package ir defines the shared data model of the livemark engine.
//
// # Expressions
//
// Every value interpolated into a template is classified once, by
// Classify, into a closed set of variants (Expr). Downstream code switches
// on Expr.Kind() instead of probing capabilities ad hoc:
//
//	Empty     nil
//	Plain     strings, numbers, slices joined into markup verbatim
//	Func      event listeners (func(*dom.Event), func())
//	Observer  values exposing Next(any)
//	Handler   values exposing HandleEvent(*dom.Event)
//	KeyPath   a (container, key) pair written from form input
//	Stream    values exposing Subscribe; Stateful streams also carry Current()
//	Thenable  values exposing Then(resolve, reject)
//	Object    flat key/value maps (mixins, class/style objects)
//	Hint      an explicit sink tag wrapped around another expression
//
// # Bindings
//
// The compiler records one Binding per interpolation that needs live
// wiring: a SourceBinding (DOM event feeding a listener) or a SinkBinding
// (expression feeding a named sink). Bindings are keyed by Marker in the
// registry until the binding engine drains them.
//
// # Canonical JSON
//
// MarshalCanonical renders snapshots (registry contents, scenario traces)
// with sorted keys and NFC-normalized strings so golden files are stable.
package ir
