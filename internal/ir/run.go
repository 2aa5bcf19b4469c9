package ir

// RunKind names what a run executed.
type RunKind string

const (
	RunView RunKind = "view"
	RunTask RunKind = "task"
	RunFlow RunKind = "flow"
	RunAuto RunKind = "auto"
)

// Run status values.
const (
	RunStatusOK      = "ok"
	RunStatusNoViews = "no_views"
	RunStatusError   = "error"
)

// RunRecord is one entry in the persisted run log.
//
// NOTE: Run records are store-layer types. ID is a time-ordered UUID and Seq
// is the runtime's logical clock, so ordering by (seq, id) is stable.
type RunRecord struct {
	ID         string  `json:"id"`
	Seq        int64   `json:"seq"`
	Kind       RunKind `json:"kind"`
	Target     string  `json:"target"`
	DocHash    string  `json:"ir_hash"`
	Status     string  `json:"status"`
	Error      string  `json:"error,omitempty"`
	Result     Value   `json:"result"`
	ResultHash string  `json:"result_hash"`
}
