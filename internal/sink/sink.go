// Package sink maps sink tags to the functions that write delivered values
// onto nodes.
//
// A Factory is called once per bound node and returns the Func the engine
// feeds every delivered value. The engine never looks inside a sink; it only
// looks factories up by tag. Unknown tags fall back to the generic
// attribute sink.
//
// Every built-in sink is a no-op once its node has been disposed: futures
// cannot be cancelled and may settle after their element is gone.
package sink

import (
	"sync"

	"github.com/roach88/livemark/internal/dom"
	"github.com/roach88/livemark/internal/ir"
)

// Func writes one delivered value.
type Func func(value any)

// Factory builds the Func for one node. params is the binding's Params.
type Factory func(node *dom.Node, params any) Func

// Table is a registry of sink factories keyed by tag.
type Table struct {
	mu        sync.RWMutex
	factories map[string]Factory
	fallback  Factory
}

// NewTable creates a table pre-loaded with the built-in sinks.
func NewTable() *Table {
	t := &Table{
		factories: make(map[string]Factory),
		fallback:  Attribute,
	}
	t.Register(ir.SinkAttribute, Attribute)
	t.Register(ir.SinkClass, Class)
	t.Register(ir.SinkStyle, Style)
	t.Register(ir.SinkValue, Value)
	t.Register(ir.SinkDataset, Dataset)
	t.Register(ir.SinkMixin, Mixin)
	t.Register(ir.SinkInnerHTML, InnerHTML)
	t.Register(ir.SinkTextContent, TextContent)
	t.Register(ir.SinkText, Text)
	t.Register(ir.SinkRemove, Remove)
	return t
}

// Register installs or replaces the factory for tag.
func (t *Table) Register(tag string, f Factory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.factories[tag] = f
}

// Has reports whether tag has a specialized factory.
func (t *Table) Has(tag string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.factories[tag]
	return ok
}

// Lookup returns the factory for tag, or the attribute fallback.
func (t *Table) Lookup(tag string) Factory {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if f, ok := t.factories[tag]; ok {
		return f
	}
	return t.fallback
}

// live wraps fn so it does nothing for a disposed node.
func live(n *dom.Node, fn Func) Func {
	return func(v any) {
		if n.Disposed() {
			return
		}
		fn(v)
	}
}

// truthy mirrors the loose truthiness templates expect: nil, false, "" and
// numeric zero are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}
