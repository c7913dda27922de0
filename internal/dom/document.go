package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MutationRecord describes one child list change under Target.
type MutationRecord struct {
	Target  *Node
	Added   []*Node
	Removed []*Node
}

// Document owns a node tree and its pending mutation records.
type Document struct {
	root    *Node
	nextID  NodeID
	pending []MutationRecord

	observers []func()
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	d := &Document{}
	d.root = d.newNode(DocumentNode)
	d.root.tag = "#document"
	return d
}

// Root returns the document root. Nodes appended under it are connected.
func (d *Document) Root() *Node { return d.root }

// CreateElement creates a detached element.
func (d *Document) CreateElement(tag string) *Node {
	n := d.newNode(ElementNode)
	n.tag = strings.ToLower(tag)
	return n
}

// CreateTextNode creates a detached text node.
func (d *Document) CreateTextNode(data string) *Node {
	n := d.newNode(TextNode)
	n.data = data
	return n
}

func (d *Document) newNode(t NodeType) *Node {
	d.nextID++
	return &Node{id: d.nextID, typ: t, doc: d}
}

// Observe registers fn to be called whenever the pending record list
// becomes non-empty. fn must not call TakeRecords synchronously; it should
// schedule a later drain.
func (d *Document) Observe(fn func()) {
	d.observers = append(d.observers, fn)
}

// TakeRecords returns and clears the pending mutation records.
func (d *Document) TakeRecords() []MutationRecord {
	recs := d.pending
	d.pending = nil
	return recs
}

// Pending returns the number of undelivered mutation records.
func (d *Document) Pending() int { return len(d.pending) }

func (d *Document) enqueue(r MutationRecord) {
	first := len(d.pending) == 0
	d.pending = append(d.pending, r)
	if first {
		for _, fn := range d.observers {
			fn()
		}
	}
}

// ParseFragment parses markup in body context into detached nodes owned by d.
func (d *Document) ParseFragment(markup string) ([]*Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	parsed, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	out := make([]*Node, 0, len(parsed))
	for _, p := range parsed {
		if n := d.adopt(p); n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// adopt converts a parsed html.Node subtree. Comments and doctypes are dropped.
func (d *Document) adopt(h *html.Node) *Node {
	var n *Node
	switch h.Type {
	case html.ElementNode:
		n = d.CreateElement(h.Data)
		for _, a := range h.Attr {
			n.attrs = append(n.attrs, Attr{Name: a.Key, Value: a.Val})
		}
	case html.TextNode:
		return d.CreateTextNode(h.Data)
	default:
		return nil
	}
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		if cn := d.adopt(c); cn != nil {
			cn.parent = n
			n.children = append(n.children, cn)
		}
	}
	return n
}

// SetInnerHTML replaces n's children with the parsed markup.
func (n *Node) SetInnerHTML(markup string) error {
	nodes, err := n.doc.ParseFragment(markup)
	if err != nil {
		return err
	}
	n.ReplaceChildren(nodes...)
	return nil
}

// InnerHTML serializes n's children.
func (n *Node) InnerHTML() string {
	var b strings.Builder
	for _, c := range n.children {
		_ = html.Render(&b, c.toHTML())
	}
	return b.String()
}

// OuterHTML serializes n and its subtree.
func (n *Node) OuterHTML() string {
	if n.typ == DocumentNode {
		return n.InnerHTML()
	}
	var b strings.Builder
	_ = html.Render(&b, n.toHTML())
	return b.String()
}

func (n *Node) toHTML() *html.Node {
	switch n.typ {
	case TextNode:
		return &html.Node{Type: html.TextNode, Data: n.data}
	case ElementNode:
		h := &html.Node{Type: html.ElementNode, Data: n.tag, DataAtom: atom.Lookup([]byte(n.tag))}
		for _, a := range n.attrs {
			h.Attr = append(h.Attr, html.Attribute{Key: a.Name, Val: a.Value})
		}
		for _, c := range n.children {
			h.AppendChild(c.toHTML())
		}
		return h
	default:
		h := &html.Node{Type: html.DocumentNode}
		for _, c := range n.children {
			h.AppendChild(c.toHTML())
		}
		return h
	}
}
