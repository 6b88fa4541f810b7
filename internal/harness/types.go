package harness

// TraceEvent is one event emitted by a traced action.
type TraceEvent struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// TraceAction is one executed action in the trace, boot actions included.
type TraceAction struct {
	Seq     int64          `json:"seq"`
	Kind    string         `json:"kind"`
	Args    map[string]any `json:"args"`
	Now     int64          `json:"now"`
	Outcome string         `json:"outcome"`
	Code    string         `json:"code,omitempty"`
	Events  []TraceEvent   `json:"events"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every executed action in seq order.
	Trace []TraceAction `json:"trace"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceAction{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// events returns every traced event in order.
func (r *Result) events() []TraceEvent {
	var out []TraceEvent
	for _, a := range r.Trace {
		out = append(out, a.Events...)
	}
	return out
}
