package harness

import (
	"github.com/roach88/livemark/internal/store"
)

// TraceEvent is one row of the engine's trace, as read back from the store.
type TraceEvent struct {
	Seq    int64          `json:"seq"`
	Kind   string         `json:"kind"`
	Marker string         `json:"marker,omitempty"`
	NodeID uint64         `json:"node_id"`
	Detail map[string]any `json:"detail,omitempty"`
}

func fromStore(events []store.Event) []TraceEvent {
	out := make([]TraceEvent, len(events))
	for i, ev := range events {
		out[i] = TraceEvent{
			Seq:    ev.Seq,
			Kind:   ev.Kind,
			Marker: ev.Marker,
			NodeID: ev.NodeID,
			Detail: ev.Detail,
		}
	}
	return out
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expectation and assertion held.
	Pass bool `json:"pass"`

	// Compiled is the annotated markup the template compiled to.
	Compiled string `json:"compiled"`

	// Markup is the host element's inner markup after the last step.
	Markup string `json:"markup"`

	// Trace contains every trace event of the run in seq order.
	Trace []TraceEvent `json:"trace"`

	// Calls counts handler fixture invocations by name.
	Calls map[string]int `json:"calls,omitempty"`

	// Model holds the values bind fixtures wrote.
	Model map[string]any `json:"model,omitempty"`

	// Codes lists the runtime error codes raised, in order.
	Codes []string `json:"codes,omitempty"`

	// Subscriptions is the number of live subscriptions after the last step.
	Subscriptions int `json:"subscriptions"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Calls:  make(map[string]int),
		Model:  make(map[string]any),
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
