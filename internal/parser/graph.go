package parser

import "github.com/roach88/chord/internal/ir"

// Node is one parsed declaration, before reference resolution.
type Node struct {
	Type       ir.NodeType
	ID         string
	Properties ir.Object
	Metadata   ir.Object
	Line       int
}

// Graph holds the parsed nodes keyed by id. It is only mutated by the
// parser and is read-only once Parse returns.
type Graph struct {
	Metadata ir.Object

	nodes map[string]*Node
	order []string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Metadata: ir.Object{},
		nodes:    make(map[string]*Node),
	}
}

// add stores n, replacing any node with the same id. A replaced node keeps
// its original position in declaration order. It returns the node that was
// replaced, if any.
func (g *Graph) add(n *Node) *Node {
	prev, exists := g.nodes[n.ID]
	if !exists {
		g.order = append(g.order, n.ID)
	}
	g.nodes[n.ID] = n
	return prev
}

// Get returns the node with the given id.
func (g *Graph) Get(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns the nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}
