package harness

import (
	"fmt"

	"github.com/roach88/chord/internal/ir"
)

// TraceEvent is one recorded run, as read back from the run log.
type TraceEvent struct {
	Seq    int64      `json:"seq"`
	Kind   ir.RunKind `json:"kind"`
	Target string     `json:"target"`
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	Result ir.Value   `json:"result"`
}

// Key returns "kind:target", the form assertions name runs by.
func (e TraceEvent) Key() string {
	return fmt.Sprintf("%s:%s", e.Kind, e.Target)
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the run log in seq order.
	Trace []TraceEvent `json:"trace"`

	// Outputs holds each step's result value, Null for failed steps.
	Outputs []ir.Value `json:"outputs"`

	// Errors lists failed expectations and assertions. Empty if Pass.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Outputs: []ir.Value{},
		Errors:  []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a run log record to the trace.
func (r *Result) AddTrace(rec ir.RunRecord) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    rec.Seq,
		Kind:   rec.Kind,
		Target: rec.Target,
		Status: rec.Status,
		Error:  rec.Error,
		Result: rec.Result,
	})
}
