package sink

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/livemark/internal/dom"
	"github.com/roach88/livemark/internal/ir"
	"github.com/roach88/livemark/internal/source"
)

// Attribute sets the attribute named by params (a string). nil and false
// remove it, true sets it empty.
func Attribute(n *dom.Node, params any) Func {
	name, _ := params.(string)
	return live(n, func(v any) { setAttr(n, name, v) })
}

func setAttr(n *dom.Node, name string, v any) {
	if name == "" {
		return
	}
	switch x := v.(type) {
	case nil:
		n.RemoveAttr(name)
	case bool:
		if x {
			n.SetAttr(name, "")
		} else {
			n.RemoveAttr(name)
		}
	default:
		n.SetAttr(name, ir.Stringify(v))
	}
}

// Class replaces the class attribute. Strings are used verbatim, string
// slices are space-joined, and objects contribute each key whose value is
// truthy, in key order.
func Class(n *dom.Node, _ any) Func {
	return live(n, func(v any) {
		var cls string
		switch x := v.(type) {
		case nil:
			n.RemoveAttr("class")
			return
		case []string:
			cls = strings.Join(x, " ")
		case map[string]any:
			cls = strings.Join(truthyKeys(x), " ")
		case ir.Attrs:
			cls = strings.Join(truthyKeys(x), " ")
		default:
			cls = ir.Stringify(v)
		}
		n.SetAttr("class", cls)
	})
}

func truthyKeys(m map[string]any) []string {
	var out []string
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if truthy(m[k]) {
			out = append(out, k)
		}
	}
	return out
}

// Style replaces the style attribute. Objects render as "k: v" pairs in key
// order; nil values drop the property.
func Style(n *dom.Node, _ any) Func {
	return live(n, func(v any) {
		var m map[string]any
		switch x := v.(type) {
		case nil:
			n.RemoveAttr("style")
			return
		case map[string]any:
			m = x
		case ir.Attrs:
			m = x
		default:
			n.SetAttr("style", ir.Stringify(v))
			return
		}
		var parts []string
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if m[k] == nil {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %s", k, ir.Stringify(m[k])))
		}
		n.SetAttr("style", strings.Join(parts, "; "))
	})
}

// Value sets the live value property of a form control.
func Value(n *dom.Node, _ any) Func {
	return live(n, func(v any) {
		n.SetProp("value", ir.Stringify(v))
	})
}

// Dataset writes data-* attributes. With a string params the value goes to
// data-<params>; with an object value every key is written.
func Dataset(n *dom.Node, params any) Func {
	key, _ := params.(string)
	return live(n, func(v any) {
		var m map[string]any
		switch x := v.(type) {
		case map[string]any:
			m = x
		case ir.Attrs:
			m = x
		}
		if m == nil {
			if key != "" {
				setAttr(n, "data-"+key, v)
			}
			return
		}
		for _, k := range slices.Sorted(maps.Keys(m)) {
			setAttr(n, "data-"+kebab(k), m[k])
		}
	})
}

func kebab(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Mixin merges a flat object onto the element in one shot. Keys starting
// with "on" whose value normalizes to a listener are attached as direct
// listeners; listeners from the previous delivery are removed first.
// Everything else follows attribute semantics.
func Mixin(n *dom.Node, _ any) Func {
	var removers []func()
	return live(n, func(v any) {
		var m map[string]any
		switch x := v.(type) {
		case map[string]any:
			m = x
		case ir.Attrs:
			m = x
		default:
			return
		}
		for _, rm := range removers {
			rm()
		}
		removers = removers[:0]
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if event, ok := strings.CutPrefix(k, "on"); ok && event != "" {
				if l := source.Normalize(m[k]); l != nil {
					removers = append(removers, n.AddEventListener(event, l, false))
					continue
				}
			}
			setAttr(n, k, m[k])
		}
	})
}

// InnerHTML replaces the element's children with the delivered markup.
// Markup that carries markers is bound on the engine's next tick.
func InnerHTML(n *dom.Node, _ any) Func {
	return live(n, func(v any) {
		if err := n.SetInnerHTML(ir.Stringify(v)); err != nil {
			n.SetTextContent(ir.Stringify(v))
		}
	})
}

// TextContent replaces the element's children with one text node.
func TextContent(n *dom.Node, _ any) Func {
	return live(n, func(v any) {
		n.SetTextContent(ir.Stringify(v))
	})
}

// Text replaces a text node's data. Used for interactive text slots.
func Text(n *dom.Node, _ any) Func {
	return live(n, func(v any) {
		n.SetData(ir.Stringify(v))
	})
}

// Remove detaches the node when a truthy value is delivered.
func Remove(n *dom.Node, _ any) Func {
	return live(n, func(v any) {
		if truthy(v) {
			n.Remove()
		}
	})
}
