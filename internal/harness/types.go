package harness

// Trace entry types.
const (
	EntryEvent    = "event"
	EntryRequest  = "request"
	EntryResponse = "response"
)

// TraceEvent is one ledger event or remote exchange.
type TraceEvent struct {
	Seq    int64          `json:"seq"`
	Type   string         `json:"type"` // "event", "request" or "response"
	Name   string         `json:"name"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains ledger events and remote exchanges in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the flattened final ledger state.
	State map[string]any `json:"state,omitempty"`

	// Requests is the number of remote requests sent.
	Requests int `json:"requests"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(typ, name string, fields map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    int64(len(r.Trace) + 1),
		Type:   typ,
		Name:   name,
		Fields: fields,
	})
}
