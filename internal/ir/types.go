package ir

import (
	"encoding/json"
	"fmt"
	"slices"
)

// NodeType is the declared type of a node. The set is closed.
type NodeType string

const (
	NodeCtx    NodeType = "ctx"
	NodeCap    NodeType = "cap"
	NodeRole   NodeType = "role"
	NodePolicy NodeType = "policy"
	NodeModel  NodeType = "model"
	NodeTask   NodeType = "task"
	NodeFlow   NodeType = "flow"
	NodeView   NodeType = "view"
	NodeSignal NodeType = "signal"
	NodeMemory NodeType = "memory"
	NodeHook   NodeType = "hook"
	NodeTest   NodeType = "test"
	NodeCache  NodeType = "cache"
)

// NodeTypes lists every valid node type in declaration order of the language.
var NodeTypes = []NodeType{
	NodeCtx, NodeCap, NodeRole, NodePolicy, NodeModel, NodeTask, NodeFlow,
	NodeView, NodeSignal, NodeMemory, NodeHook, NodeTest, NodeCache,
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	return slices.Contains(NodeTypes, t)
}

// Document is the compiled program. It is the only contract between the
// compiler and the runtime and must survive a JSON round trip unchanged.
type Document struct {
	Version  string          `json:"version"`
	Metadata Object          `json:"metadata"`
	Nodes    map[string]Node `json:"nodes"`
	Views    []View          `json:"views"`
	Flows    []Flow          `json:"flows"`
	Tests    []Node          `json:"tests"`
}

// Node is a compiled node with every static reference in its properties
// resolved.
type Node struct {
	Type       NodeType `json:"type"`
	ID         string   `json:"id"`
	Properties Object   `json:"properties"`
	Metadata   Object   `json:"metadata,omitempty"`
}

// View is the executable projection of a view node.
//
// Task, Role, Model, Policy and ResponseFormat hold the values as declared
// (Null when absent). Selectors are compiled; the other fields are not.
type View struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Task           Value  `json:"task"`
	Role           Value  `json:"role"`
	Model          Value  `json:"model"`
	Policy         Value  `json:"policy"`
	Selectors      Array  `json:"selectors"`
	Prompt         Value  `json:"prompt"`
	ResponseFormat Value  `json:"response_format"`
	PostProcess    Value  `json:"post_process"`
	Asserts        Value  `json:"asserts"`
}

// UnmarshalJSON implements json.Unmarshaler for View.
func (v *View) UnmarshalJSON(data []byte) error {
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	id, _ := AsString(obj.Get("id"))
	*v = View{
		ID:             id,
		Type:           string(NodeView),
		Task:           orNull(obj.Get("task")),
		Role:           orNull(obj.Get("role")),
		Model:          orNull(obj.Get("model")),
		Policy:         orNull(obj.Get("policy")),
		Selectors:      AsArray(obj.Get("selectors")),
		Prompt:         orDefault(obj, "prompt", Object{}),
		ResponseFormat: orNull(obj.Get("response_format")),
		PostProcess:    orDefault(obj, "post_process", Array{}),
		Asserts:        orDefault(obj, "asserts", Array{}),
	}
	return nil
}

// Flow is the projection of a flow node. Optional fields are nil when the
// node did not declare them and are then left out of the JSON form.
type Flow struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Entry         Value  `json:"entry,omitempty"`
	Edges         Value  `json:"edges,omitempty"`
	Parallel      Value  `json:"parallel,omitempty"`
	Sequential    Value  `json:"sequential,omitempty"`
	Conditional   Value  `json:"conditional,omitempty"`
	ErrorHandling Value  `json:"error_handling,omitempty"`
	Schedule      Value  `json:"schedule,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler for Flow.
func (f *Flow) UnmarshalJSON(data []byte) error {
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	id, _ := AsString(obj.Get("id"))
	*f = Flow{
		ID:            id,
		Type:          string(NodeFlow),
		Entry:         dropNull(obj.Get("entry")),
		Edges:         dropNull(obj.Get("edges")),
		Parallel:      dropNull(obj.Get("parallel")),
		Sequential:    dropNull(obj.Get("sequential")),
		Conditional:   dropNull(obj.Get("conditional")),
		ErrorHandling: dropNull(obj.Get("error_handling")),
		Schedule:      dropNull(obj.Get("schedule")),
	}
	return nil
}

// Node returns the compiled node with the given id.
func (d *Document) Node(id string) (Node, bool) {
	n, ok := d.Nodes[id]
	return n, ok
}

// View returns the first view with the given id in declaration order.
func (d *Document) View(id string) (View, bool) {
	for _, v := range d.Views {
		if v.ID == id {
			return v, true
		}
	}
	return View{}, false
}

// Flow returns the first flow with the given id in declaration order.
func (d *Document) Flow(id string) (Flow, bool) {
	for _, f := range d.Flows {
		if f.ID == id {
			return f, true
		}
	}
	return Flow{}, false
}

// NodeIDs returns the node ids in sorted order.
func (d *Document) NodeIDs() []string {
	ids := make([]string, 0, len(d.Nodes))
	for id := range d.Nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Marshal serializes a document as JSON. HTML characters are not escaped,
// so prompt templates stay readable. With indent set, the output is indented
// by two spaces.
func Marshal(doc *Document, indent bool) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("marshal document: nil document")
	}
	return encodeJSON(doc, indent)
}

// Unmarshal parses a JSON document produced by Marshal.
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	if doc.Metadata == nil {
		doc.Metadata = Object{}
	}
	if doc.Nodes == nil {
		doc.Nodes = map[string]Node{}
	}
	for id, n := range doc.Nodes {
		if n.Properties == nil {
			n.Properties = Object{}
			doc.Nodes[id] = n
		}
	}
	return &doc, nil
}

// AsArray returns v as an Array. Null yields an empty array and any other
// non-array value is wrapped in a one-element array.
func AsArray(v Value) Array {
	switch val := v.(type) {
	case Array:
		return val
	case nil, Null:
		return Array{}
	default:
		return Array{val}
	}
}

func orNull(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v
}

func orDefault(obj Object, key string, def Value) Value {
	if v, ok := obj.Lookup(key); ok {
		return v
	}
	return def
}

func dropNull(v Value) Value {
	if IsNull(v) {
		return nil
	}
	return v
}
