package harness

// Trace event types.
const (
	TypeEvent   = "event"
	TypeAdvance = "advance"
	TypeResolve = "resolve"
	TypeReport  = "report"
)

// TraceEvent is one entry of a scenario trace. Fields not relevant to
// Type are left empty.
type TraceEvent struct {
	Type      string `json:"type"`
	Key       string `json:"key,omitempty"`
	Seq       int64  `json:"seq,omitempty"`
	Scheduled bool   `json:"scheduled,omitempty"`
	At        int64  `json:"at,omitempty"`
	State     string `json:"state,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Report    string `json:"report,omitempty"`
	ResultID  uint64 `json:"result_id,omitempty"`
}

// ReportRecord is a report composed during a run.
type ReportRecord struct {
	Name     string
	Path     string
	Kind     string
	ResultID uint64
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace lists each step followed by the resolutions and reports it
	// caused.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Reports []ReportRecord `json:"-"`
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

// Resolutions returns the resolve entries of the trace.
func (r *Result) Resolutions() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == TypeResolve {
			out = append(out, ev)
		}
	}
	return out
}
