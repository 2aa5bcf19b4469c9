package compiler

import (
	"fmt"

	"github.com/roach88/chord/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Structural errors (E100)
	ErrSchemaViolation = "E100" // document does not match the schema

	// View errors (E101-E109)
	ErrViewTaskNotTask   = "E101" // view task is not a reference to a task node
	ErrViewRoleNotRole   = "E102" // view role is not a reference to a role node
	ErrViewModelNotModel = "E103" // view model is not a reference to a model node
	ErrSelectorShape     = "E104" // selector is not an object
	ErrSelectorFrom      = "E105" // selector from names no node
	ErrPromptShape       = "E106" // prompt is not an object of strings

	// Flow errors (E110-E119)
	ErrFlowEntryNotTask = "E110" // flow entry is not a reference to a task node
	ErrFlowEdgeShape    = "E111" // flow edge is not an object
	ErrFlowEdgeNotTask  = "E112" // flow edge "to" names no task node
	ErrFlowEdgesShape   = "E113" // flow edges is not a list
)

// ValidationError represents a validation finding.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled document: first its structure against the
// schema, then the cross-node rules compilation deliberately leaves lenient
// (for example that a view's task names a task). Returns all errors found
// (does not fail-fast).
//
// A document that fails Validate can still compile and run; validation is
// a lint, not a gate.
func Validate(doc *ir.Document) []ValidationError {
	if errs := CheckSchema(doc); len(errs) > 0 {
		return errs
	}

	var errs []ValidationError
	for i, view := range doc.Views {
		errs = append(errs, validateView(doc, i, view)...)
	}
	for i, flow := range doc.Flows {
		errs = append(errs, validateFlow(doc, i, flow)...)
	}
	return errs
}

func validateView(doc *ir.Document, idx int, view ir.View) []ValidationError {
	var errs []ValidationError
	prefix := fmt.Sprintf("views[%d]", idx)

	checkRef := func(field string, v ir.Value, want ir.NodeType, code string) {
		if ir.IsNull(v) {
			return
		}
		if !refersTo(doc, v, want) {
			errs = append(errs, ValidationError{
				Field:   prefix + "." + field,
				Message: fmt.Sprintf("view %q: %s %s is not a reference to a %s node", view.ID, field, ir.Stringify(v), want),
				Code:    code,
			})
		}
	}
	checkRef("task", view.Task, ir.NodeTask, ErrViewTaskNotTask)
	checkRef("role", view.Role, ir.NodeRole, ErrViewRoleNotRole)
	checkRef("model", view.Model, ir.NodeModel, ErrViewModelNotModel)

	for i, sel := range view.Selectors {
		field := fmt.Sprintf("%s.selectors[%d]", prefix, i)
		obj, ok := sel.(ir.Object)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("view %q: selector must be an object, got %s", view.ID, ir.Stringify(sel)),
				Code:    ErrSelectorShape,
			})
			continue
		}
		if root, ok := ir.RefRoot(obj.Get("from")); ok {
			if _, exists := doc.Node(root); !exists {
				errs = append(errs, ValidationError{
					Field:   field + ".from",
					Message: fmt.Sprintf("view %q: selector reads from unknown node %q", view.ID, root),
					Code:    ErrSelectorFrom,
				})
			}
		}
	}

	if prompt, ok := view.Prompt.(ir.Object); ok {
		for _, f := range prompt {
			section := f.Key
			if _, isStr := f.Value.(ir.String); !isStr {
				errs = append(errs, ValidationError{
					Field:   prefix + ".prompt." + section,
					Message: fmt.Sprintf("view %q: prompt section %q is not a template string", view.ID, section),
					Code:    ErrPromptShape,
				})
			}
		}
	} else if !ir.IsNull(view.Prompt) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".prompt",
			Message: fmt.Sprintf("view %q: prompt must be an object of sections", view.ID),
			Code:    ErrPromptShape,
		})
	}

	return errs
}

func validateFlow(doc *ir.Document, idx int, flow ir.Flow) []ValidationError {
	var errs []ValidationError
	prefix := fmt.Sprintf("flows[%d]", idx)

	if flow.Entry != nil && !refersTo(doc, flow.Entry, ir.NodeTask) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".entry",
			Message: fmt.Sprintf("flow %q: entry %s is not a reference to a task node", flow.ID, ir.Stringify(flow.Entry)),
			Code:    ErrFlowEntryNotTask,
		})
	}

	if flow.Edges == nil {
		return errs
	}
	edges, ok := flow.Edges.(ir.Array)
	if !ok {
		return append(errs, ValidationError{
			Field:   prefix + ".edges",
			Message: fmt.Sprintf("flow %q: edges must be a list", flow.ID),
			Code:    ErrFlowEdgesShape,
		})
	}

	for i, edge := range edges {
		field := fmt.Sprintf("%s.edges[%d]", prefix, i)
		obj, ok := edge.(ir.Object)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("flow %q: edge must be an object with from/to", flow.ID),
				Code:    ErrFlowEdgeShape,
			})
			continue
		}
		if to := obj.Get("to"); to != nil && !refersTo(doc, to, ir.NodeTask) {
			errs = append(errs, ValidationError{
				Field:   field + ".to",
				Message: fmt.Sprintf("flow %q: edge target %s is not a reference to a task node", flow.ID, ir.Stringify(to)),
				Code:    ErrFlowEdgeNotTask,
			})
		}
	}
	return errs
}

// refersTo reports whether v is a reference whose root is a node of type want.
func refersTo(doc *ir.Document, v ir.Value, want ir.NodeType) bool {
	root, ok := ir.RefRoot(v)
	if !ok {
		return false
	}
	n, ok := doc.Node(root)
	return ok && n.Type == want
}
