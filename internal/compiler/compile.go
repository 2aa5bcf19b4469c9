// Package compiler turns parsed chord graphs into IR documents.
//
// Compilation resolves every static reference found in node properties,
// projects view and flow nodes into their executable records, and collects
// test nodes. It either produces a complete document or fails; there is no
// partial output.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/chord/internal/ir"
	"github.com/roach88/chord/internal/parser"
)

// Option configures compilation.
type Option func(*options)

type options struct {
	logger *slog.Logger
	strict bool
}

// WithLogger sets the logger for compiler diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStrictRedefinition rejects sources that define the same node id twice.
func WithStrictRedefinition() Option {
	return func(o *options) { o.strict = true }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Compile tokenizes, parses and compiles chord source text.
func Compile(src string, opts ...Option) (*ir.Document, error) {
	o := buildOptions(opts)

	popts := []parser.Option{parser.WithLogger(o.logger)}
	if o.strict {
		popts = append(popts, parser.WithStrictRedefinition())
	}
	g, err := parser.ParseSource(src, popts...)
	if err != nil {
		return nil, err
	}
	return compileGraph(g, o)
}

// CompileGraph compiles an already parsed graph.
func CompileGraph(g *parser.Graph, opts ...Option) (*ir.Document, error) {
	return compileGraph(g, buildOptions(opts))
}

func compileGraph(g *parser.Graph, o options) (*ir.Document, error) {
	c := &compiler{graph: g}

	doc := &ir.Document{
		Version:  ir.IRVersion,
		Metadata: g.Metadata,
		Nodes:    make(map[string]ir.Node, g.Len()),
		Views:    []ir.View{},
		Flows:    []ir.Flow{},
		Tests:    []ir.Node{},
	}
	if doc.Metadata == nil {
		doc.Metadata = ir.Object{}
	}

	for _, n := range g.Nodes() {
		compiled, err := c.compileNode(n)
		if err != nil {
			return nil, err
		}
		doc.Nodes[n.ID] = compiled

		switch n.Type {
		case ir.NodeView:
			view, err := c.compileView(n)
			if err != nil {
				return nil, err
			}
			doc.Views = append(doc.Views, view)
		case ir.NodeFlow:
			doc.Flows = append(doc.Flows, compileFlow(n))
		case ir.NodeTest:
			doc.Tests = append(doc.Tests, compiled)
		}
	}

	o.logger.Debug("compiled document",
		"nodes", len(doc.Nodes),
		"views", len(doc.Views),
		"flows", len(doc.Flows),
		"tests", len(doc.Tests),
		"unresolved", c.unresolved,
	)
	return doc, nil
}

type compiler struct {
	graph      *parser.Graph
	unresolved int
}

func (c *compiler) compileNode(n *parser.Node) (ir.Node, error) {
	props, err := c.compileValue(n, n.Properties)
	if err != nil {
		return ir.Node{}, err
	}

	out := ir.Node{
		Type:       n.Type,
		ID:         n.ID,
		Properties: props.(ir.Object),
	}
	if len(n.Metadata) > 0 {
		out.Metadata = n.Metadata
	}
	return out, nil
}

// compileValue resolves references in v, recursing through arrays and
// objects. Non-reference scalars are returned unchanged.
func (c *compiler) compileValue(n *parser.Node, v ir.Value) (ir.Value, error) {
	switch val := v.(type) {
	case ir.String:
		if !ir.IsReference(string(val)) {
			return val, nil
		}
		res, err := ResolveReference(c.graph, string(val))
		if err != nil {
			var re *ReferenceError
			if errors.As(err, &re) {
				re.NodeID = n.ID
				re.Line = n.Line
			}
			return nil, err
		}
		if res.Kind == Unresolved {
			c.unresolved++
		}
		return res.Value, nil

	case ir.Array:
		out := make(ir.Array, len(val))
		for i, elem := range val {
			compiled, err := c.compileValue(n, elem)
			if err != nil {
				return nil, err
			}
			out[i] = compiled
		}
		return out, nil

	case ir.Object:
		out := make(ir.Object, len(val))
		for i, f := range val {
			compiled, err := c.compileValue(n, f.Value)
			if err != nil {
				return nil, err
			}
			out[i] = ir.Field{Key: f.Key, Value: compiled}
		}
		return out, nil

	default:
		return v, nil
	}
}

// compileView projects a view node. Only the selectors are compiled; the
// other fields keep their declared values.
func (c *compiler) compileView(n *parser.Node) (ir.View, error) {
	props := n.Properties

	declared := ir.AsArray(props.Get("selectors"))
	selectors := make(ir.Array, len(declared))
	for i, sel := range declared {
		if _, ok := sel.(ir.Object); !ok {
			selectors[i] = sel
			continue
		}
		compiled, err := c.compileValue(n, sel)
		if err != nil {
			return ir.View{}, fmt.Errorf("view %q selector %d: %w", n.ID, i, err)
		}
		selectors[i] = compiled
	}

	return ir.View{
		ID:             n.ID,
		Type:           string(ir.NodeView),
		Task:           field(props, "task", ir.Null{}),
		Role:           field(props, "role", ir.Null{}),
		Model:          field(props, "model", ir.Null{}),
		Policy:         field(props, "policy", ir.Null{}),
		Selectors:      selectors,
		Prompt:         field(props, "prompt", ir.Object{}),
		ResponseFormat: field(props, "response_format", ir.Null{}),
		PostProcess:    field(props, "post_process", ir.Array{}),
		Asserts:        field(props, "asserts", ir.Array{}),
	}, nil
}

// compileFlow projects a flow node. Fields that are absent or null are
// dropped; edges default to an empty list.
func compileFlow(n *parser.Node) ir.Flow {
	props := n.Properties
	opt := func(key string) ir.Value {
		v := props.Get(key)
		if ir.IsNull(v) {
			return nil
		}
		return v
	}

	edges := field(props, "edges", ir.Array{})
	if ir.IsNull(edges) {
		edges = nil
	}

	return ir.Flow{
		ID:            n.ID,
		Type:          string(ir.NodeFlow),
		Entry:         opt("entry"),
		Edges:         edges,
		Parallel:      opt("parallel"),
		Sequential:    opt("sequential"),
		Conditional:   opt("conditional"),
		ErrorHandling: opt("error_handling"),
		Schedule:      opt("schedule"),
	}
}

func field(props ir.Object, key string, def ir.Value) ir.Value {
	if v, ok := props.Lookup(key); ok {
		return v
	}
	return def
}
