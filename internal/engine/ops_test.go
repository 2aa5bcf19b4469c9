package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chord/internal/ir"
)

func runOp(t *testing.T, name string, data ir.Value, params ir.Object) ir.Value {
	t.Helper()
	op, ok := NewSelectorRegistry().Get(name)
	require.True(t, ok, "operation %s registered", name)
	out, err := op.Execute(context.Background(), data, params)
	require.NoError(t, err)
	return out
}

const fiveLines = "one\ntwo\nthree\nfour\nfive"

func TestHeadTail(t *testing.T) {
	params := ir.Object{{"lines", ir.Int(2)}}
	assert.Equal(t, ir.String("one\ntwo"), runOp(t, "head", ir.String(fiveLines), params))
	assert.Equal(t, ir.String("four\nfive"), runOp(t, "tail", ir.String(fiveLines), params))
}

func TestHeadTailDefaultsAndBounds(t *testing.T) {
	assert.Equal(t, ir.String(fiveLines), runOp(t, "head", ir.String(fiveLines+"\n"), ir.Object{}))
	assert.Equal(t, ir.String(fiveLines), runOp(t, "tail", ir.String(fiveLines), ir.Object{{"lines", ir.Int(50)}}))
	assert.Equal(t, ir.String(""), runOp(t, "tail", ir.String(fiveLines), ir.Object{{"lines", ir.Int(0)}}))
	assert.Equal(t, ir.String("one"), runOp(t, "head", ir.String(fiveLines), ir.Object{{"lines", ir.String("1")}}))

	obj := ir.Object{{"k", ir.String("v")}}
	assert.Equal(t, obj, runOp(t, "head", obj, ir.Object{}), "non-text input passes through")
}

func TestExtractSections(t *testing.T) {
	doc := "intro\n# Install\nrun it\n# Usage\nuse it\n## Install notes\nmore"

	got := runOp(t, "extract", ir.String(doc), ir.Object{{"sections", ir.Array{ir.String("Install")}}})
	assert.Equal(t, ir.String("# Install\nrun it\n\n## Install notes\nmore"), got)

	got = runOp(t, "extract", ir.String(doc), ir.Object{{"sections", ir.String("Usage")}})
	assert.Equal(t, ir.String("# Usage\nuse it"), got)
}

func TestExtractPattern(t *testing.T) {
	text := ir.String("v1.2 and v3.4\nv5.6")

	assert.Equal(t, ir.String("1\n3\n5"), runOp(t, "extract", text, ir.Object{{"pattern", ir.String(`v(\d)`)}}))
	assert.Equal(t, ir.String("v1.2\nv3.4\nv5.6"), runOp(t, "extract", text, ir.Object{{"pattern", ir.String(`v\d\.\d`)}}))
	assert.Equal(t, ir.String("v1.2 and v3.4"), runOp(t, "extract", text, ir.Object{{"pattern", ir.String(`^v1.*$`)}}))
}

func TestExtractPrecedence(t *testing.T) {
	doc := ir.String("# A\nx\n# B\ny")
	got := runOp(t, "extract", doc, ir.Object{
		{"sections", ir.String("B")},
		{"pattern", ir.String("x")},
	})
	assert.Equal(t, ir.String("# B\ny"), got, "sections wins over pattern")
}

func TestExtractLines(t *testing.T) {
	text := ir.String("a\nb\nc\nd")

	assert.Equal(t, ir.String("b\nc"), runOp(t, "extract", text, ir.Object{{"lines", ir.Array{ir.Int(1), ir.Int(3)}}}))
	assert.Equal(t, ir.String("c\nd"), runOp(t, "extract", text, ir.Object{{"lines", ir.Bool(true)}, {"start", ir.Int(-2)}}))
	assert.Equal(t, ir.String("a"), runOp(t, "extract", text, ir.Object{{"lines", ir.Bool(true)}, {"end", ir.Int(1)}}))
	assert.Equal(t, ir.String(""), runOp(t, "extract", text, ir.Object{{"lines", ir.Array{ir.Int(3), ir.Int(1)}}}))
}

func TestExtractPassThrough(t *testing.T) {
	obj := ir.Object{{"k", ir.Int(1)}}
	assert.Equal(t, obj, runOp(t, "extract", obj, ir.Object{{"from", ir.String("@n")}}))
}

func TestGrep(t *testing.T) {
	text := ir.String("a\nb\nmatch one\nc\nd\ne\nmatch two")

	got := runOp(t, "grep", text, ir.Object{{"pattern", ir.String("match")}, {"context", ir.Int(1)}})
	assert.Equal(t, ir.String("b\nmatch one\nc\n---\ne\nmatch two"), got)

	got = runOp(t, "grep", text, ir.Object{{"pattern", ir.String("^match")}})
	assert.Equal(t, ir.String("match one\n---\nmatch two"), got)

	got = runOp(t, "grep", text, ir.Object{{"pattern", ir.String("zzz")}})
	assert.Equal(t, ir.String(""), got)
}

func TestSummarize(t *testing.T) {
	text := ir.String("one two  three\nfour five")

	got := runOp(t, "summarize", text, ir.Object{{"max_tokens", ir.Int(4)}})
	assert.Equal(t, ir.String("one two three... [summarized from 5 words]"), got)

	assert.Equal(t, text, runOp(t, "summarize", text, ir.Object{}), "short text is returned unchanged")
}

func TestTransformJSON(t *testing.T) {
	got := runOp(t, "transform", ir.String(`{"b":1,"a":[1,2]}`), ir.Object{})
	assert.Equal(t, ir.String("{\n  \"b\": 1,\n  \"a\": [\n    1,\n    2\n  ]\n}"), got, "keys keep document order")

	assert.Equal(t, ir.String("not json"), runOp(t, "transform", ir.String("not json"), ir.Object{{"to", ir.String("json")}}))

	got = runOp(t, "transform", ir.Object{{"k", ir.String("<v>")}}, ir.Object{})
	assert.Equal(t, ir.String("{\n  \"k\": \"<v>\"\n}"), got)
}

func TestTransformYAML(t *testing.T) {
	data := ir.Object{
		{"name", ir.String("x")},
		{"n", ir.Int(1)},
		{"tags", ir.Array{ir.String("a"), ir.String("b")}},
	}
	got := runOp(t, "transform", data, ir.Object{{"to", ir.String("yaml")}})
	assert.Equal(t, ir.String("name: x\nn: 1\ntags:\n  [\"a\", \"b\"]"), got)

	declared := ir.Object{
		{"zeta", ir.Int(1)},
		{"alpha", ir.String("x")},
		{"mid", ir.Array{ir.Int(1), ir.Int(2)}},
	}
	got = runOp(t, "transform", declared, ir.Object{{"to", ir.String("yaml")}})
	assert.Equal(t, ir.String("zeta: 1\nalpha: x\nmid:\n  [1, 2]"), got, "keys keep declaration order")

	got = runOp(t, "transform", ir.String("plain"), ir.Object{{"to", ir.String("yaml")}})
	assert.Equal(t, ir.String("plain"), got)
}

func TestTransformOtherTarget(t *testing.T) {
	got := runOp(t, "transform", ir.Array{ir.Int(1), ir.Bool(false)}, ir.Object{{"to", ir.String("text")}})
	assert.Equal(t, ir.String("[1, false]"), got)
}

func TestSemanticSearchIsStable(t *testing.T) {
	text := ir.String("a c\nb c\na b c\nnothing")

	got := runOp(t, "semantic_search", text, ir.Object{{"query", ir.String("a b")}})
	assert.Equal(t, ir.String("a b c\na c\nb c"), got)

	got = runOp(t, "search", text, ir.Object{{"query", ir.String("A B")}, {"top_k", ir.Int(2)}})
	assert.Equal(t, ir.String("a b c\na c"), got)
}

func TestTextOperationsRejectStructuredInput(t *testing.T) {
	for _, name := range []string{"grep", "summarize", "search"} {
		op, _ := NewSelectorRegistry().Get(name)
		_, err := op.Execute(context.Background(), ir.Object{}, ir.Object{})
		assert.Equal(t, ErrCodeInvalidInput, ErrorCode(err), name)
	}
}

func TestInvalidParameters(t *testing.T) {
	reg := NewSelectorRegistry()
	ctx := context.Background()

	head, _ := reg.Get("head")
	_, err := head.Execute(ctx, ir.String("x"), ir.Object{{"lines", ir.String("many")}})
	assert.Equal(t, ErrCodeInvalidSelector, ErrorCode(err))

	grep, _ := reg.Get("grep")
	_, err = grep.Execute(ctx, ir.String("x"), ir.Object{{"pattern", ir.String("(")}})
	assert.Equal(t, ErrCodeInvalidSelector, ErrorCode(err))
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a"}},
		{"a\n\nb", []string{"a", "", "b"}},
		{"a\r\nb\rc", []string{"a", "b", "c"}},
		{"a\u2028b\fc", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitLines(tt.in), "%q", tt.in)
	}
}

func TestSliceBounds(t *testing.T) {
	lo, hi := sliceBounds(4, -2, 4)
	assert.Equal(t, []int{2, 4}, []int{lo, hi})
	lo, hi = sliceBounds(4, 0, 10)
	assert.Equal(t, []int{0, 4}, []int{lo, hi})
	lo, hi = sliceBounds(4, 3, 1)
	assert.Equal(t, []int{3, 3}, []int{lo, hi})
}

func TestRegistry(t *testing.T) {
	reg := NewSelectorRegistry()
	assert.Equal(t,
		[]string{"extract", "grep", "head", "search", "semantic_search", "summarize", "tail", "transform"},
		reg.Names())

	reg.Register("upper", OperationFunc(func(_ context.Context, data ir.Value, _ ir.Object) (ir.Value, error) {
		return ir.String("UP:" + ir.Stringify(data)), nil
	}))
	op, ok := reg.Get("upper")
	require.True(t, ok)
	out, err := op.Execute(context.Background(), ir.String("x"), nil)
	require.NoError(t, err)
	assert.Equal(t, ir.String("UP:x"), out)

	_, ok = NewSelectorRegistry().Get("upper")
	assert.False(t, ok, "registries are independent")
}
