// Package harness runs conformance scenarios against the binding engine.
//
// A scenario compiles a template against named fixtures, mounts the result
// in a fresh document, drives the fixtures and the document through a list
// of steps and checks the final markup, handler calls, bound model values,
// runtime error codes and the engine's trace.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: counter
//	description: "A click handler feeds a state rendered as content"
//	template: '<button onclick="${inc}">+</button><span>${count}</span>'
//	fixtures:
//	  count: { type: state, value: 0 }
//	  inc: { type: handler, emit: count }
//	steps:
//	  - dispatch: { target: button, event: click }
//	expect:
//	  markup: '<button>+</button><span>1</span>'
//	  calls: { inc: 1 }
//	assertions:
//	  - type: trace_count
//	    kind: bind
//	    count: 2
//
// Fixture types are state, subject, future, plain, attrs, handler, bind
// and hint. Steps are dispatch, input, next, error, complete, resolve,
// reject, remove and append; the engine takes one full turn after each.
//
// # Assertion Types
//
//   - trace_contains: an event of a kind, optionally with a marker and a
//     detail subset, appears in the trace
//   - trace_order: the first events of the given kinds appear in order
//   - trace_count: events of a kind appear exactly N times
//
// # Deterministic Testing
//
// Every run uses an in-memory SQLite store, a fixed session ID
// (testutil.FixedSessionGenerator) and a registry clock starting at zero,
// so markers, node IDs and traces are identical across runs and can be
// compared against golden files with RunWithGolden.
package harness
