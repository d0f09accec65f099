package harness

// Trace line types.
const (
	TraceInvocation = "invocation"
	TraceMirror     = "mirror"
	TraceNotify     = "event"
	TraceCompletion = "completion"
)

// TraceEvent is one line of a scenario trace. Invocations and completions
// bracket every flow step; mirror and event lines are what the stores did
// in between, in the order they did it.
//
// Paths are relative to the scenario root so traces are identical across
// machines.
type TraceEvent struct {
	Type       string `json:"type"`
	Seq        int64  `json:"seq"`
	Op         string `json:"op"`
	Repo       string `json:"repo,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Path       string `json:"path,omitempty"`
	Class      string `json:"class,omitempty"`
	To         string `json:"to,omitempty"`
	Library    string `json:"library,omitempty"`
	ChangeDate int64  `json:"change_date,omitempty"`
	Update     bool   `json:"update,omitempty"`
	Result     *bool  `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Key returns "type:op", the form used by trace_order.
func (e TraceEvent) Key() string {
	return e.Type + ":" + e.Op
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every line in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
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
