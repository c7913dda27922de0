package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/livemark/internal/scheduler"
)

// Scenario defines a conformance scenario.
// A scenario compiles a template against named fixtures, mounts it, drives
// the fixtures and the document through a list of steps and checks the
// resulting markup and trace.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Template is the markup source with ${name} placeholders.
	Template string `yaml:"template"`

	// Fixtures are the values placeholders resolve to, by name.
	Fixtures map[string]Fixture `yaml:"fixtures,omitempty"`

	// Scheduler names a scheduling strategy for sink deliveries.
	// Empty runs sinks immediately.
	Scheduler string `yaml:"scheduler,omitempty"`

	// OrphanAge reports markers still unbound after this many mutation
	// batches. Zero disables orphan reporting.
	OrphanAge int64 `yaml:"orphan_age,omitempty"`

	// Steps run in order after the template is mounted. The engine takes
	// one turn after every step.
	Steps []Step `yaml:"steps,omitempty"`

	// Expect checks the final state of the run.
	Expect *Expect `yaml:"expect,omitempty"`

	// Assertions validate the trace.
	// Supported types: trace_contains, trace_order, trace_count
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Session is an optional fixed trace session ID. Defaults to
	// "test-session" so golden files are stable.
	Session string `yaml:"session,omitempty"`
}

// Fixture describes one template value.
type Fixture struct {
	// Type is one of the Fixture* constants.
	Type string `yaml:"type"`

	// Value is the initial value of a state, the value of a plain or
	// attrs fixture, or the value a handler emits.
	Value any `yaml:"value,omitempty"`

	// Sink and Source build a hint: Source names another fixture routed
	// into Sink.
	Sink   string `yaml:"sink,omitempty"`
	Source string `yaml:"source,omitempty"`

	// Key is the model key a bind fixture writes.
	Key string `yaml:"key,omitempty"`

	// Emit names a state or subject fixture a handler feeds. Without a
	// Value the handler emits its own call count.
	Emit string `yaml:"emit,omitempty"`

	// Stop makes a handler stop propagation of the event it receives.
	Stop bool `yaml:"stop,omitempty"`
}

// Fixture types.
const (
	FixtureState   = "state"
	FixtureSubject = "subject"
	FixtureFuture  = "future"
	FixturePlain   = "plain"
	FixtureAttrs   = "attrs"
	FixtureHandler = "handler"
	FixtureBind    = "bind"
	FixtureHint    = "hint"
)

// Step is one scenario action. Exactly one field is set.
type Step struct {
	// Dispatch fires an event on the element matching a target.
	Dispatch *DispatchStep `yaml:"dispatch,omitempty"`

	// Input sets a form control's live value and fires an input event.
	Input *InputStep `yaml:"input,omitempty"`

	// Next pushes a value into a state or subject fixture.
	Next *EmitStep `yaml:"next,omitempty"`

	// Error fails a subject fixture with Value as the message.
	Error *EmitStep `yaml:"error,omitempty"`

	// Complete completes the named subject fixture.
	Complete string `yaml:"complete,omitempty"`

	// Resolve and Reject settle a future fixture.
	Resolve *EmitStep `yaml:"resolve,omitempty"`
	Reject  *EmitStep `yaml:"reject,omitempty"`

	// Remove detaches the element matching a target.
	Remove string `yaml:"remove,omitempty"`

	// Append parses markup into a new element appended to the host.
	Append string `yaml:"append,omitempty"`
}

// DispatchStep fires Event on Target.
// Target is "#id" or a tag name (first match in document order).
type DispatchStep struct {
	Target  string `yaml:"target"`
	Event   string `yaml:"event"`
	Bubbles *bool  `yaml:"bubbles,omitempty"`
}

// InputStep sets Target's value (or checked state) and fires Event,
// "input" by default.
type InputStep struct {
	Target  string `yaml:"target"`
	Value   string `yaml:"value,omitempty"`
	Checked *bool  `yaml:"checked,omitempty"`
	Event   string `yaml:"event,omitempty"`
}

// EmitStep carries a value for a fixture.
type EmitStep struct {
	Fixture string `yaml:"fixture"`
	Value   any    `yaml:"value,omitempty"`
}

// Expect checks the final state of a run. Unset fields are not checked.
type Expect struct {
	// Markup is the exact inner markup of the host element.
	Markup *string `yaml:"markup,omitempty"`

	// Calls maps handler fixtures to their call counts.
	Calls map[string]int `yaml:"calls,omitempty"`

	// Model is a subset of the values bind fixtures wrote.
	Model map[string]any `yaml:"model,omitempty"`

	// Errors lists the runtime error codes raised, in order.
	Errors []string `yaml:"errors,omitempty"`

	// Subscriptions is the number of live subscriptions at the end.
	Subscriptions *int `yaml:"subscriptions,omitempty"`
}

// Assertion validates the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of Kind, optionally with Marker and a
	//   Detail subset, appears in the trace
	// - "trace_order": the first events of Kinds appear in order
	// - "trace_count": events of Kind appear exactly Count times
	Type string `yaml:"type"`

	Kind   string         `yaml:"kind,omitempty"`
	Marker string         `yaml:"marker,omitempty"`
	Detail map[string]any `yaml:"detail,omitempty"`
	Count  int            `yaml:"count,omitempty"`
	Kinds  []string       `yaml:"kinds,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// name a step or fixture refers to exists.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Template == "" {
		return fmt.Errorf("template is required")
	}
	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}
	if s.Scheduler != "" && !slices.Contains(scheduler.Strategies, s.Scheduler) {
		return fmt.Errorf("unknown scheduler strategy %q", s.Scheduler)
	}
	if s.OrphanAge < 0 {
		return fmt.Errorf("orphan_age must be non-negative")
	}

	for name, f := range s.Fixtures {
		if err := validateFixture(s, name, f); err != nil {
			return err
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(s, i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateFixture(s *Scenario, name string, f Fixture) error {
	switch f.Type {
	case FixtureState, FixtureSubject, FixtureFuture, FixturePlain:
	case FixtureAttrs:
		if _, ok := f.Value.(map[string]any); !ok {
			return fmt.Errorf("fixtures.%s: attrs value must be a mapping", name)
		}
	case FixtureHandler:
		if f.Emit != "" {
			if t := s.Fixtures[f.Emit].Type; t != FixtureState && t != FixtureSubject {
				return fmt.Errorf("fixtures.%s: emit target %q is not a state or subject", name, f.Emit)
			}
		}
	case FixtureBind:
		if f.Key == "" {
			return fmt.Errorf("fixtures.%s: key is required for bind", name)
		}
	case FixtureHint:
		if f.Sink == "" {
			return fmt.Errorf("fixtures.%s: sink is required for hint", name)
		}
		src, ok := s.Fixtures[f.Source]
		if !ok {
			return fmt.Errorf("fixtures.%s: unknown source fixture %q", name, f.Source)
		}
		if src.Type == FixtureHint {
			return fmt.Errorf("fixtures.%s: hint source %q is itself a hint", name, f.Source)
		}
	case "":
		return fmt.Errorf("fixtures.%s: type is required", name)
	default:
		return fmt.Errorf("fixtures.%s: unknown fixture type %q", name, f.Type)
	}
	return nil
}

func validateStep(s *Scenario, i int, step Step) error {
	set := 0
	for _, present := range []bool{
		step.Dispatch != nil, step.Input != nil, step.Next != nil, step.Error != nil,
		step.Complete != "", step.Resolve != nil, step.Reject != nil,
		step.Remove != "", step.Append != "",
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one action is required, got %d", i, set)
	}

	fixture := func(name string, types ...string) error {
		f, ok := s.Fixtures[name]
		if !ok {
			return fmt.Errorf("steps[%d]: unknown fixture %q", i, name)
		}
		for _, t := range types {
			if f.Type == t {
				return nil
			}
		}
		return fmt.Errorf("steps[%d]: fixture %q has type %s, want one of %v", i, name, f.Type, types)
	}

	switch {
	case step.Dispatch != nil:
		if step.Dispatch.Target == "" || step.Dispatch.Event == "" {
			return fmt.Errorf("steps[%d]: dispatch needs target and event", i)
		}
	case step.Input != nil:
		if step.Input.Target == "" {
			return fmt.Errorf("steps[%d]: input needs a target", i)
		}
	case step.Next != nil:
		return fixture(step.Next.Fixture, FixtureState, FixtureSubject)
	case step.Error != nil:
		return fixture(step.Error.Fixture, FixtureSubject)
	case step.Complete != "":
		return fixture(step.Complete, FixtureSubject)
	case step.Resolve != nil:
		return fixture(step.Resolve.Fixture, FixtureFuture)
	case step.Reject != nil:
		return fixture(step.Reject.Fixture, FixtureFuture)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
