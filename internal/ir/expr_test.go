package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/livemark/internal/dom"
)

type fakeStream struct{}

func (fakeStream) Subscribe(func(any), func(error), func()) Subscription { return nil }

type fakeState struct{ fakeStream }

func (fakeState) Current() (any, bool) { return "now", true }

type fakeSubject struct{ fakeStream }

func (fakeSubject) Next(any) {}

type fakeFuture struct{}

func (fakeFuture) Then(func(any), func(error)) {}

type fakeObserver struct{}

func (fakeObserver) Next(any) {}

type fakeHandler struct{}

func (fakeHandler) HandleEvent(*dom.Event) {}

func TestClassify(t *testing.T) {
	var nilListener dom.Listener

	tests := []struct {
		name string
		in   any
		want Kind
	}{
		{"nil", nil, KindEmpty},
		{"nil listener", nilListener, KindEmpty},
		{"string", "hi", KindPlain},
		{"int", 3, KindPlain},
		{"slice", []any{"a", 1}, KindPlain},
		{"event func", func(*dom.Event) {}, KindFunc},
		{"listener", dom.Listener(func(*dom.Event) {}), KindFunc},
		{"thunk", func() {}, KindFunc},
		{"stream", fakeStream{}, KindStream},
		{"stateful", fakeState{}, KindStream},
		{"subject prefers stream", fakeSubject{}, KindStream},
		{"future", fakeFuture{}, KindThenable},
		{"observer", fakeObserver{}, KindObserver},
		{"handler", fakeHandler{}, KindHandler},
		{"map", map[string]any{"a": 1}, KindObject},
		{"attrs", Attrs{"a": 1}, KindObject},
		{"keypath", Bind(Map{}, "k"), KindKeyPath},
		{"hint", WithSink(SinkTextContent, "x"), KindHint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in).Kind())
		})
	}
}

func TestClassify_StatefulFlag(t *testing.T) {
	e := Classify(fakeState{})
	v, ok := Current(e)
	assert.True(t, ok)
	assert.Equal(t, "now", v)

	_, ok = Current(Classify(fakeStream{}))
	assert.False(t, ok)
}

func TestIsLive(t *testing.T) {
	assert.True(t, IsLive(Classify(fakeStream{})))
	assert.True(t, IsLive(Classify(fakeFuture{})))
	assert.True(t, IsLive(Classify(map[string]any{})))
	assert.True(t, IsLive(Classify(WithSink("x", 1))))
	assert.False(t, IsLive(Classify("text")))
	assert.False(t, IsLive(Classify(func() {})))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "ab", Stringify([]string{"a", "b"}))
	assert.Equal(t, "a1true", Stringify([]any{"a", 1, true}))
	assert.Equal(t, "2.5", Stringify(2.5))
}

func TestMapAssign(t *testing.T) {
	m := Map{}
	Bind(m, "name").Container.Assign("name", "ada")
	assert.Equal(t, "ada", m["name"])
}

func TestBindingDescribe(t *testing.T) {
	assert.Equal(t, "source:click", SourceBinding{Event: "click"}.Describe())
	assert.Equal(t, "source:load:direct", SourceBinding{Event: "load", Direct: true}.Describe())
	assert.Equal(t, "sink:class:stream", SinkBinding{Sink: SinkClass, Source: Classify(fakeStream{})}.Describe())
	assert.Equal(t, "sink:attribute(title):thenable", SinkBinding{Sink: SinkAttribute, Params: "title", Source: Classify(fakeFuture{})}.Describe())
}
