package compiler

import (
	"github.com/roach88/chord/internal/ir"
	"github.com/roach88/chord/internal/parser"
)

// ResolutionKind tags the outcome of resolving one reference.
type ResolutionKind int

const (
	// Resolved means the reference named a node, or a property path that
	// exists in that node's declared properties.
	Resolved ResolutionKind = iota

	// Unresolved means the node exists but the property path does not. The
	// original text is kept so partial declarations still compile.
	Unresolved

	// Dynamic means an "@{expr}" reference, left for render time.
	Dynamic
)

func (k ResolutionKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Unresolved:
		return "unresolved"
	case Dynamic:
		return "dynamic"
	}
	return "unknown"
}

// Resolution is the result of ResolveReference. Value is what the compiled
// document stores in place of the reference; Text is the original reference.
type Resolution struct {
	Kind  ResolutionKind
	Value ir.Value
	Text  string
}

// ResolveReference resolves ref against the declared properties of g.
//
// A bare "@id" resolves to the canonical "@id" string. A path is walked one
// segment at a time through the referenced node's raw properties; a missing
// segment or a non-object along the way yields Unresolved with the original
// text. The walk is single-hop: a reference found at the end of the path is
// returned as is and never followed.
//
// The only error is a ReferenceError for an unknown root id.
func ResolveReference(g *parser.Graph, ref string) (Resolution, error) {
	parsed, ok := ir.ParseReference(ref)
	if !ok {
		return Resolution{Kind: Resolved, Value: ir.String(ref), Text: ref}, nil
	}
	if parsed.Dynamic {
		return Resolution{Kind: Dynamic, Value: ir.String(ref), Text: ref}, nil
	}

	node, ok := g.Get(parsed.Root)
	if !ok {
		return Resolution{}, &ReferenceError{Ref: ref}
	}
	if len(parsed.Path) == 0 {
		return Resolution{Kind: Resolved, Value: ir.Ref(node.ID), Text: ref}, nil
	}

	var cur ir.Value = node.Properties
	for _, seg := range parsed.Path {
		obj, isObj := cur.(ir.Object)
		if !isObj || !obj.Has(seg) {
			return Resolution{Kind: Unresolved, Value: ir.String(ref), Text: ref}, nil
		}
		cur = obj.Get(seg)
	}
	return Resolution{Kind: Resolved, Value: cur, Text: ref}, nil
}
