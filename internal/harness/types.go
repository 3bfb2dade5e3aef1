package harness

// Trace entry types.
const (
	EntryInvocation = "invocation"
	EntryEvent      = "event"
	EntryCompletion = "completion"
)

// TraceEvent is one entry of a scenario trace: a step invocation, a bus
// event it caused, or the step's completion.
type TraceEvent struct {
	Seq     int64          `json:"seq"`
	Type    string         `json:"type"`
	Action  string         `json:"action,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Topic   string         `json:"topic,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Case    string         `json:"case,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains invocations, bus events and completions in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	seq int64
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(ev TraceEvent) {
	r.seq++
	ev.Seq = r.seq
	r.Trace = append(r.Trace, ev)
}

// AddInvocationTrace adds a step invocation to the trace.
func (r *Result) AddInvocationTrace(action string, args map[string]any) {
	r.add(TraceEvent{Type: EntryInvocation, Action: action, Args: args})
}

// AddEventTrace adds a bus event to the trace.
func (r *Result) AddEventTrace(topic string, payload map[string]any) {
	r.add(TraceEvent{Type: EntryEvent, Topic: topic, Payload: payload})
}

// AddCompletionTrace adds a step completion to the trace.
func (r *Result) AddCompletionTrace(outcome string, result map[string]any) {
	r.add(TraceEvent{Type: EntryCompletion, Case: outcome, Result: result})
}

// Events returns the bus events of the trace.
func (r *Result) Events() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EntryEvent {
			out = append(out, ev)
		}
	}
	return out
}
