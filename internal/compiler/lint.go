package compiler

import (
	"fmt"

	"github.com/roach88/chord/internal/ir"
)

// Lint warning codes (W001-W099)
const (
	WarnUnreferencedNode = "W001" // no view names the node as task, role, model or policy
	WarnContextNoURI     = "W002" // ctx node has no uri property
)

// NodeWarning is a lint finding about a single node. Like flow warnings it
// never fails validation.
type NodeWarning struct {
	Node    string `json:"node"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LintNodes reports nodes that no view's task, role, model or policy
// references, and ctx nodes without a uri. Findings follow sorted node ids.
//
// Selector sources do not count as references, so ctx nodes read only by
// selectors are reported too, as are views, flows and tests.
func LintNodes(doc *ir.Document) []NodeWarning {
	referenced := make(map[string]bool)
	for _, view := range doc.Views {
		for _, ref := range []ir.Value{view.Task, view.Role, view.Model, view.Policy} {
			if root, ok := ir.RefRoot(ref); ok {
				referenced[root] = true
			}
		}
	}

	warnings := []NodeWarning{}
	for _, id := range doc.NodeIDs() {
		if !referenced[id] {
			warnings = append(warnings, NodeWarning{
				Node:    id,
				Code:    WarnUnreferencedNode,
				Message: "not referenced by any view",
			})
		}
	}
	for _, id := range doc.NodeIDs() {
		node := doc.Nodes[id]
		if node.Type == ir.NodeCtx && !node.Properties.Has("uri") {
			warnings = append(warnings, NodeWarning{
				Node:    id,
				Code:    WarnContextNoURI,
				Message: fmt.Sprintf("context %s missing 'uri' property", id),
			})
		}
	}
	return warnings
}
