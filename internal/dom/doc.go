// Package dom is the live document the binding engine attaches to.
//
// It is a deliberately small node tree: elements, text nodes and one
// document root, with ordered attributes, a property bag for live form
// state (value, checked), DOM-style event dispatch and a mutation record
// queue.
//
// # Mutation Records
//
// Every child list change under a connected parent appends a
// MutationRecord to the owning Document. Records are not delivered
// synchronously: observers registered with Document.Observe are notified
// once when the pending list goes from empty to non-empty, and are expected
// to call TakeRecords later, on their own turn. This keeps attach/detach
// detection batched, the same way a browser MutationObserver does.
//
// # Threading
//
// The tree has no locks. It is owned by the goroutine running the binding
// engine's event loop; other goroutines hand work to that loop instead of
// touching nodes directly.
package dom
