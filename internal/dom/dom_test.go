package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mount(t *testing.T, doc *Document, markup string) *Node {
	t.Helper()
	host := doc.CreateElement("main")
	require.NoError(t, host.SetInnerHTML(markup))
	doc.Root().AppendChild(host)
	return host
}

func TestParseFragment_RoundTrip(t *testing.T) {
	doc := NewDocument()
	host := mount(t, doc, `<ul class="list"><li id="a">one</li><li>two<!-- gone --></li></ul>`)

	assert.Equal(t, `<ul class="list"><li id="a">one</li><li>two</li></ul>`, host.InnerHTML())
	assert.Equal(t, `<main><ul class="list"><li id="a">one</li><li>two</li></ul></main>`, host.OuterHTML())
	assert.Equal(t, "onetwo", host.TextContent())

	li := host.ByID("a")
	require.NotNil(t, li)
	assert.Equal(t, "li", li.Tag())
	assert.True(t, li.IsConnected())
}

func TestAttrs_KeepPosition(t *testing.T) {
	doc := NewDocument()
	n := doc.CreateElement("DIV")
	assert.Equal(t, "div", n.Tag())

	n.SetAttr("id", "x")
	n.SetAttr("class", "a b")
	n.SetAttr("id", "y")
	assert.Equal(t, []Attr{{"id", "y"}, {"class", "a b"}}, n.Attrs())
	assert.Equal(t, []string{"a", "b"}, n.ClassList())

	n.RemoveAttr("id")
	n.RemoveAttr("missing")
	assert.Equal(t, []Attr{{"class", "a b"}}, n.Attrs())
}

func TestValueAndChecked(t *testing.T) {
	doc := NewDocument()
	host := mount(t, doc, `<input value="seed" checked>`)
	in := host.FirstChild()

	assert.Equal(t, "seed", in.Value())
	assert.True(t, in.Checked())

	in.SetProp("value", "typed")
	in.SetProp("checked", false)
	assert.Equal(t, "typed", in.Value())
	assert.False(t, in.Checked())
}

func TestMutationRecords_OnlyForConnectedTrees(t *testing.T) {
	doc := NewDocument()
	detached := doc.CreateElement("div")
	detached.AppendChild(doc.CreateTextNode("x"))
	assert.Equal(t, 0, doc.Pending())

	doc.Root().AppendChild(detached)
	recs := doc.TakeRecords()
	require.Len(t, recs, 1)
	assert.Same(t, doc.Root(), recs[0].Target)
	assert.Equal(t, []*Node{detached}, recs[0].Added)

	detached.Remove()
	recs = doc.TakeRecords()
	require.Len(t, recs, 1)
	assert.Equal(t, []*Node{detached}, recs[0].Removed)
}

func TestObserve_NotifiesOncePerBatch(t *testing.T) {
	doc := NewDocument()
	notified := 0
	doc.Observe(func() { notified++ })

	host := mount(t, doc, `<p>a</p>`)
	host.AppendChild(doc.CreateElement("b"))
	host.AppendChild(doc.CreateElement("i"))
	assert.Equal(t, 1, notified)
	assert.Equal(t, 3, doc.Pending())

	doc.TakeRecords()
	host.FirstChild().Remove()
	assert.Equal(t, 2, notified)
}

func TestSplitText(t *testing.T) {
	doc := NewDocument()
	host := mount(t, doc, `<p>hello world</p>`)
	txt := host.FirstChild().FirstChild()

	rest := txt.SplitText(5)
	assert.Equal(t, "hello", txt.Data())
	assert.Equal(t, " world", rest.Data())
	assert.Same(t, rest, txt.NextSibling())
	assert.Equal(t, "hello world", host.TextContent())

	tail := rest.SplitText(100)
	assert.Equal(t, "", tail.Data())
}

func TestSetTextContent_Escapes(t *testing.T) {
	doc := NewDocument()
	host := mount(t, doc, `<div><b>x</b></div>`)
	div := host.FirstChild()

	div.SetTextContent("<b>")
	assert.Equal(t, "&lt;b&gt;", div.InnerHTML())
	div.SetTextContent("")
	assert.Empty(t, div.Children())
}

func TestDispatch_Phases(t *testing.T) {
	doc := NewDocument()
	host := mount(t, doc, `<div><button>go</button></div>`)
	div := host.FirstChild()
	btn := div.FirstChild()

	var trace []string
	log := func(label string) Listener {
		return func(ev *Event) { trace = append(trace, label) }
	}
	doc.Root().AddEventListener("click", log("root-capture"), true)
	div.AddEventListener("click", log("div-capture"), true)
	div.AddEventListener("click", log("div-bubble"), false)
	btn.AddEventListener("click", log("target"), false)
	doc.Root().AddEventListener("click", log("root-bubble"), false)

	ev := NewEvent("click", true)
	btn.Dispatch(ev)
	assert.Equal(t, []string{"root-capture", "div-capture", "target", "div-bubble", "root-bubble"}, trace)
	assert.Same(t, btn, ev.Target)
	assert.Nil(t, ev.CurrentTarget)

	trace = nil
	btn.Dispatch(NewEvent("click", false))
	assert.Equal(t, []string{"root-capture", "div-capture", "target"}, trace)
}

func TestDispatch_StopPropagation(t *testing.T) {
	doc := NewDocument()
	host := mount(t, doc, `<div><span></span></div>`)
	div := host.FirstChild()
	span := div.FirstChild()

	outer := 0
	div.AddEventListener("x", func(*Event) { outer++ }, false)
	span.AddEventListener("x", func(ev *Event) { ev.StopPropagation() }, false)

	ev := NewEvent("x", true)
	span.Dispatch(ev)
	assert.True(t, ev.Stopped())
	assert.Equal(t, 0, outer)

	second := 0
	span.AddEventListener("y", func(ev *Event) { ev.StopImmediatePropagation() }, false)
	span.AddEventListener("y", func(*Event) { second++ }, false)
	span.Dispatch(NewEvent("y", true))
	assert.Equal(t, 0, second)
}

func TestAddEventListener_Remove(t *testing.T) {
	doc := NewDocument()
	n := doc.CreateElement("div")
	calls := 0
	remove := n.AddEventListener("click", func(*Event) { calls++ }, false)
	assert.Equal(t, 1, n.ListenerCount("click"))

	n.Dispatch(NewEvent("click", true))
	remove()
	remove()
	n.Dispatch(NewEvent("click", true))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, n.ListenerCount("click"))
}

func TestClearListeners(t *testing.T) {
	doc := NewDocument()
	n := doc.CreateElement("div")
	calls := 0
	remove := n.AddEventListener("click", func(*Event) { calls++ }, false)
	n.AddEventListener("input", func(*Event) { calls++ }, true)

	n.ClearListeners()
	remove()
	n.Dispatch(NewEvent("click", true))
	n.Dispatch(NewEvent("input", true))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, n.ListenerCount("click"))
}

func TestDescendants_EarlyExit(t *testing.T) {
	doc := NewDocument()
	host := mount(t, doc, `<a></a><b></b><i></i>`)

	var tags []string
	for d := range host.Descendants() {
		tags = append(tags, d.Tag())
		if d.Tag() == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, tags)
	assert.Len(t, host.FindAll(func(n *Node) bool { return n.IsElement() }), 3)
	assert.Equal(t, "i", host.ByTag("i").Tag())
}
