package dom

import (
	"iter"
	"slices"
	"strings"
)

// NodeType distinguishes node kinds.
type NodeType int

const (
	// ElementNode is a tagged element carrying attributes and children.
	ElementNode NodeType = iota + 1
	// TextNode is a run of character data.
	TextNode
	// DocumentNode is the root of a Document.
	DocumentNode
)

// NodeID is a stable per-document node identity.
// IDs are never reused within a Document.
type NodeID uint64

// Attr is one element attribute. Attribute order is preserved.
type Attr struct {
	Name  string
	Value string
}

// Node is an element, a text node or a document root.
type Node struct {
	id   NodeID
	typ  NodeType
	tag  string
	data string

	attrs []Attr
	props map[string]any

	doc      *Document
	parent   *Node
	children []*Node

	listeners map[string][]*listenerEntry
	disposed  bool
}

// ID returns the node's stable identity.
func (n *Node) ID() NodeID { return n.id }

// Type returns the node kind.
func (n *Node) Type() NodeType { return n.typ }

// Tag returns the lowercase tag name for elements, "" otherwise.
func (n *Node) Tag() string { return n.tag }

// IsElement reports whether n is an element.
func (n *Node) IsElement() bool { return n != nil && n.typ == ElementNode }

// IsText reports whether n is a text node.
func (n *Node) IsText() bool { return n != nil && n.typ == TextNode }

// Document returns the owning document.
func (n *Node) Document() *Document { return n.doc }

// Parent returns the parent node, or nil when detached.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// FirstChild returns the first child or nil.
func (n *Node) FirstChild() *Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.children[0]
}

// IsConnected reports whether n is reachable from its document root.
func (n *Node) IsConnected() bool {
	for p := n; p != nil; p = p.parent {
		if p.typ == DocumentNode {
			return true
		}
	}
	return false
}

// Disposed reports whether the binding engine has torn down n's
// subscriptions. A disposed node is never rebound.
func (n *Node) Disposed() bool { return n.disposed }

// MarkDisposed flags n as disposed.
func (n *Node) MarkDisposed() { n.disposed = true }

// Data returns a text node's character data.
func (n *Node) Data() string { return n.data }

// SetData replaces a text node's character data.
func (n *Node) SetData(s string) { n.data = s }

// Attr returns the named attribute value.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// HasAttr reports whether the named attribute is present.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.Attr(name)
	return ok
}

// Attrs returns a copy of the attributes in document order.
func (n *Node) Attrs() []Attr { return slices.Clone(n.attrs) }

// SetAttr sets or replaces an attribute, keeping its original position.
func (n *Node) SetAttr(name, value string) {
	for i := range n.attrs {
		if n.attrs[i].Name == name {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, Attr{Name: name, Value: value})
}

// RemoveAttr deletes an attribute. Missing attributes are ignored.
func (n *Node) RemoveAttr(name string) {
	n.attrs = slices.DeleteFunc(n.attrs, func(a Attr) bool { return a.Name == name })
}

// ClassList returns the whitespace separated class tokens.
func (n *Node) ClassList() []string {
	v, _ := n.Attr("class")
	return strings.Fields(v)
}

// Prop returns a live property such as "value" or "checked".
func (n *Node) Prop(name string) (any, bool) {
	v, ok := n.props[name]
	return v, ok
}

// SetProp sets a live property.
func (n *Node) SetProp(name string, v any) {
	if n.props == nil {
		n.props = make(map[string]any)
	}
	n.props[name] = v
}

// Value returns the live "value" property, falling back to the attribute.
func (n *Node) Value() string {
	if v, ok := n.props["value"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	v, _ := n.Attr("value")
	return v
}

// Checked returns the live "checked" property, falling back to the attribute.
func (n *Node) Checked() bool {
	if v, ok := n.props["checked"]; ok {
		b, _ := v.(bool)
		return b
	}
	return n.HasAttr("checked")
}

// TextContent concatenates the data of all descendant text nodes.
func (n *Node) TextContent() string {
	if n.typ == TextNode {
		return n.data
	}
	var b strings.Builder
	for d := range n.Descendants() {
		if d.typ == TextNode {
			b.WriteString(d.data)
		}
	}
	return b.String()
}

// SetTextContent replaces all children with a single text node.
func (n *Node) SetTextContent(s string) {
	if n.typ == TextNode {
		n.data = s
		return
	}
	n.removeAllChildren()
	if s != "" {
		n.AppendChild(n.doc.CreateTextNode(s))
	}
}

// AppendChild appends child, detaching it from any previous parent first.
func (n *Node) AppendChild(child *Node) *Node {
	return n.InsertBefore(child, nil)
}

// InsertBefore inserts child before ref. A nil ref appends.
func (n *Node) InsertBefore(child, ref *Node) *Node {
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	idx := len(n.children)
	if ref != nil {
		if i := slices.Index(n.children, ref); i >= 0 {
			idx = i
		}
	}
	n.children = slices.Insert(n.children, idx, child)
	child.parent = n
	n.record(MutationRecord{Target: n, Added: []*Node{child}})
	return child
}

// RemoveChild detaches child from n. Returns nil if child is not a child of n.
func (n *Node) RemoveChild(child *Node) *Node {
	i := slices.Index(n.children, child)
	if i < 0 {
		return nil
	}
	n.children = slices.Delete(n.children, i, i+1)
	child.parent = nil
	n.record(MutationRecord{Target: n, Removed: []*Node{child}})
	return child
}

// Remove detaches n from its parent.
func (n *Node) Remove() {
	if n.parent != nil {
		n.parent.RemoveChild(n)
	}
}

// ReplaceChildren removes every child and appends nodes in order.
func (n *Node) ReplaceChildren(nodes ...*Node) {
	n.removeAllChildren()
	for _, c := range nodes {
		n.AppendChild(c)
	}
}

func (n *Node) removeAllChildren() {
	for len(n.children) > 0 {
		n.RemoveChild(n.children[len(n.children)-1])
	}
}

// SplitText splits a text node at a byte offset. n keeps data[:offset] and
// the returned node, inserted right after n, holds the rest.
func (n *Node) SplitText(offset int) *Node {
	offset = max(0, min(offset, len(n.data)))
	rest := n.doc.CreateTextNode(n.data[offset:])
	n.data = n.data[:offset]
	if n.parent != nil {
		n.parent.InsertBefore(rest, n.NextSibling())
	}
	return rest
}

// NextSibling returns the following sibling or nil.
func (n *Node) NextSibling() *Node {
	if n.parent == nil {
		return nil
	}
	sibs := n.parent.children
	i := slices.Index(sibs, n)
	if i < 0 || i+1 >= len(sibs) {
		return nil
	}
	return sibs[i+1]
}

// Descendants yields every descendant of n in document order, excluding n.
func (n *Node) Descendants() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		var walk func(p *Node) bool
		walk = func(p *Node) bool {
			for _, c := range slices.Clone(p.children) {
				if !yield(c) || !walk(c) {
					return false
				}
			}
			return true
		}
		walk(n)
	}
}

// Find returns the first descendant matching pred, or nil.
func (n *Node) Find(pred func(*Node) bool) *Node {
	for d := range n.Descendants() {
		if pred(d) {
			return d
		}
	}
	return nil
}

// FindAll returns every descendant matching pred.
func (n *Node) FindAll(pred func(*Node) bool) []*Node {
	var out []*Node
	for d := range n.Descendants() {
		if pred(d) {
			out = append(out, d)
		}
	}
	return out
}

// ByID finds the element whose id attribute equals id.
func (n *Node) ByID(id string) *Node {
	return n.Find(func(d *Node) bool {
		v, ok := d.Attr("id")
		return ok && v == id
	})
}

// ByTag finds the first element with the given tag.
func (n *Node) ByTag(tag string) *Node {
	return n.Find(func(d *Node) bool { return d.typ == ElementNode && d.tag == tag })
}

func (n *Node) record(r MutationRecord) {
	if n.IsConnected() {
		n.doc.enqueue(r)
	}
}
