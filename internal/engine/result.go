package engine

import "github.com/roach88/chord/internal/ir"

// ViewResult is the outcome of executing one view.
type ViewResult struct {
	ViewID          string
	Task            ir.Value
	Role            ir.Value // properties of the referenced role node, or Null
	Model           ir.Value // properties of the referenced model node, or Null
	ResolvedContext ir.Object
	Prompt          ir.Object
	ResponseFormat  ir.Value
	Asserts         ir.Value
}

// Value renders the result as an IR object.
func (r *ViewResult) Value() ir.Object {
	return ir.Object{
		{Key: "view_id", Value: ir.String(r.ViewID)},
		{Key: "task", Value: orNull(r.Task)},
		{Key: "role", Value: orNull(r.Role)},
		{Key: "model", Value: orNull(r.Model)},
		{Key: "resolved_context", Value: r.ResolvedContext},
		{Key: "prompt", Value: r.Prompt},
		{Key: "response_format", Value: orNull(r.ResponseFormat)},
		{Key: "asserts", Value: orNull(r.Asserts)},
	}
}

// TaskResult is the outcome of executing one task. View is nil and Status
// is ir.RunStatusNoViews when no view targets the task.
type TaskResult struct {
	TaskID string
	Status string
	Task   ir.Object
	View   *ViewResult
}

// Value renders the result as an IR object.
func (r *TaskResult) Value() ir.Object {
	if r.View == nil {
		return ir.Object{
			{Key: "task_id", Value: ir.String(r.TaskID)},
			{Key: "status", Value: ir.String(r.Status)},
		}
	}
	return ir.Object{
		{Key: "task_id", Value: ir.String(r.TaskID)},
		{Key: "task", Value: r.Task},
		{Key: "view_result", Value: r.View.Value()},
	}
}

// FlowResult is the outcome of executing one flow: the task results in
// execution order.
type FlowResult struct {
	FlowID  string
	Results []*TaskResult
}

// Value renders the result as an IR object.
func (r *FlowResult) Value() ir.Object {
	results := make(ir.Array, len(r.Results))
	for i, tr := range r.Results {
		results[i] = tr.Value()
	}
	return ir.Object{
		{Key: "flow_id", Value: ir.String(r.FlowID)},
		{Key: "results", Value: results},
	}
}

func orNull(v ir.Value) ir.Value {
	if v == nil {
		return ir.Null{}
	}
	return v
}
