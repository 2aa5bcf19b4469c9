package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/chord/internal/ir"
)

// FlowWarning describes a flow that compiles but probably does not do what
// its author intended.
//
// These are warnings, not errors: the runtime executes the entry task and
// then every edge target in order, once per edge, and ignores edge sources
// and guards. A cycle or a repeated task is therefore legal, just surprising.
type FlowWarning struct {
	Flow    string   `json:"flow"`
	Path    []string `json:"path,omitempty"` // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"`
	Level   string   `json:"level"` // "warning" or "info"
}

// AnalyzeFlows performs static analysis of every flow in doc.
//
// For each flow it:
//  1. Builds a task graph from the edges' from/to references
//  2. Uses Tarjan's algorithm to find strongly connected components
//  3. Reports each SCC with size > 1, or a self-loop, as a cycle warning
//  4. Reports tasks that will execute more than once
//  5. Reports edges without a task reference in "to", which never execute
//
// Warnings are returned in flow declaration order.
func AnalyzeFlows(doc *ir.Document) []FlowWarning {
	warnings := []FlowWarning{}
	for _, flow := range doc.Flows {
		warnings = append(warnings, analyzeFlow(flow)...)
	}
	return warnings
}

func analyzeFlow(flow ir.Flow) []FlowWarning {
	var warnings []FlowWarning
	graph := make(dependencyGraph)
	runs := make(map[string]int)
	var order []string

	count := func(task string) {
		if runs[task] == 0 {
			order = append(order, task)
		}
		runs[task]++
	}

	if task, ok := ir.RefRoot(flow.Entry); ok {
		count(task)
	}

	for i, edge := range ir.AsArray(flow.Edges) {
		e, _ := edge.(ir.Object)
		to, ok := ir.RefRoot(e.Get("to"))
		if !ok {
			warnings = append(warnings, FlowWarning{
				Flow:    flow.ID,
				Message: fmt.Sprintf("edge %d has no task reference in \"to\" and is skipped", i),
				Level:   "warning",
			})
			continue
		}
		count(to)

		if graph[to] == nil {
			graph[to] = []string{}
		}
		if from, ok := ir.RefRoot(e.Get("from")); ok {
			graph[from] = append(graph[from], to)
		}
	}

	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(flow.ID, scc, graph))
		}
	}

	for _, task := range order {
		if runs[task] > 1 {
			warnings = append(warnings, FlowWarning{
				Flow:    flow.ID,
				Message: fmt.Sprintf("task %q executes %d times", task, runs[task]),
				Level:   "info",
			})
		}
	}

	return warnings
}

// dependencyGraph maps task id → task ids that edges lead to.
type dependencyGraph map[string][]string

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes are visited in sorted order and each SCC is sorted, so the result
// is deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop the stack into one SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a FlowWarning.
// For self-loops, the path is [task, task].
func cycleSCCToWarning(flowID string, scc []string, graph dependencyGraph) FlowWarning {
	if len(scc) == 1 {
		task := scc[0]
		return FlowWarning{
			Flow:    flowID,
			Path:    []string{task, task},
			Message: fmt.Sprintf("edge from a task to itself: %s → %s", task, task),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return FlowWarning{
		Flow:    flowID,
		Path:    path,
		Message: fmt.Sprintf("edges form a cycle: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
