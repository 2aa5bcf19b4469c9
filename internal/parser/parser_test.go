package parser

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chord/internal/ir"
	"github.com/roach88/chord/internal/lexer"
)

func TestParseDefinitions(t *testing.T) {
	src := `
# context for the summary
def ctx readme {
  type: file
  uri: "fs://README.md"
}

def view summary {
  task: @summarize
  selectors: [
    { from: @readme, op: head, lines: 20 },
  ]
  prompt: {
    system: "You summarize."
    user: |
      Summarize:
      {{readme}}
  }
}
`
	g, err := ParseSource(src)
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())

	readme, ok := g.Get("readme")
	require.True(t, ok)
	assert.Equal(t, ir.NodeCtx, readme.Type)
	assert.Equal(t, 3, readme.Line)
	assert.Equal(t, ir.Object{
		{"type", ir.String("file")},
		{"uri", ir.String("fs://README.md")},
	}, readme.Properties)

	view, ok := g.Get("summary")
	require.True(t, ok)
	assert.Equal(t, ir.String("@summarize"), view.Properties.Get("task"))
	assert.Equal(t, ir.Array{ir.Object{
		{"from", ir.String("@readme")},
		{"op", ir.String("head")},
		{"lines", ir.Int(20)},
	}}, view.Properties.Get("selectors"))
	assert.Equal(t, ir.Object{
		{"system", ir.String("You summarize.")},
		{"user", ir.String("Summarize:\n{{readme}}")},
	}, view.Properties.Get("prompt"))
}

func TestParsePreservesDeclarationOrder(t *testing.T) {
	g, err := ParseSource("def task b {}\ndef task a {}\ndef task c {}")
	require.NoError(t, err)

	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestParseCommaSeparatedProperties(t *testing.T) {
	g, err := ParseSource(`def model m { name: "gpt", temperature: 0.2, stream: false, stop: null }`)
	require.NoError(t, err)

	m, _ := g.Get("m")
	assert.Equal(t, ir.Object{
		{"name", ir.String("gpt")},
		{"temperature", ir.Float(0.2)},
		{"stream", ir.Bool(false)},
		{"stop", ir.Null{}},
	}, m.Properties)
}

func TestParsePropertiesKeepDeclarationOrder(t *testing.T) {
	g, err := ParseSource(`def task t { zeta: 1, alpha: "x", mid: { b: 1, a: 2 }, alpha: "y" }`)
	require.NoError(t, err)

	n, _ := g.Get("t")
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, n.Properties.Keys())
	assert.Equal(t, ir.String("y"), n.Properties.Get("alpha"))
	assert.Equal(t, []string{"b", "a"}, n.Properties.Get("mid").(ir.Object).Keys())
}

func TestParseArrays(t *testing.T) {
	g, err := ParseSource("def policy p {\n  rules: [\n    \"a\"\n    \"b\",\n    [1, 2]\n  ]\n  empty: []\n}")
	require.NoError(t, err)

	p, _ := g.Get("p")
	assert.Equal(t, ir.Array{ir.String("a"), ir.String("b"), ir.Array{ir.Int(1), ir.Int(2)}}, p.Properties.Get("rules"))
	assert.Equal(t, ir.Array{}, p.Properties.Get("empty"))
}

func TestParseMetadata(t *testing.T) {
	g, err := ParseSource(`def role r { @meta: { owner: "docs", version: 2 } tone: calm }`)
	require.NoError(t, err)

	r, _ := g.Get("r")
	assert.Equal(t, ir.Object{{"owner", ir.String("docs")}, {"version", ir.Int(2)}}, r.Metadata)
	assert.Equal(t, ir.Object{{"tone", ir.String("calm")}}, r.Properties)
	assert.False(t, r.Properties.Has("@meta"))
}

func TestParseMetadataMustBeObject(t *testing.T) {
	_, err := ParseSource(`def role r { @meta: "x" }`)
	assert.True(t, lexer.IsSyntaxError(err))
}

func TestParseUnknownNodeType(t *testing.T) {
	_, err := ParseSource("def task ok {}\n\n\ndef agent bad {}")
	require.Error(t, err)

	var se *lexer.SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 4, se.Line)
	assert.Contains(t, se.Message, `unknown node type "agent"`)
}

func TestParseExpectedTokenMismatch(t *testing.T) {
	_, err := ParseSource("def task t {\n  name \"x\"\n}")
	require.Error(t, err)

	var se *lexer.SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Line)
	assert.Contains(t, se.Message, "expected COLON, got STRING")
}

func TestParseMissingID(t *testing.T) {
	_, err := ParseSource("def task { }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected IDENTIFIER, got LBRACE")
}

func TestParseSkipsStrayTokens(t *testing.T) {
	g, err := ParseSource(`import "x" 42 , def task t { a: 1 } trailing`)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
}

func TestParseDuplicateIDOverwrites(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	g, err := ParseSource("def task a { v: 1 }\ndef task b {}\ndef task a { v: 2 }", WithLogger(logger))
	require.NoError(t, err)

	a, _ := g.Get("a")
	assert.Equal(t, ir.Int(2), a.Properties.Get("v"))
	assert.Equal(t, 3, a.Line)
	assert.Equal(t, "a", g.Nodes()[0].ID, "overwritten node keeps its position")
	assert.Contains(t, logs.String(), "node redefined")
}

func TestParseDuplicateIDStrict(t *testing.T) {
	_, err := ParseSource("def task a {}\ndef task a {}", WithStrictRedefinition())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `node "a" redefined (first defined at line 1)`)
}

func TestParseReservedWordKeys(t *testing.T) {
	g, err := ParseSource(`def hook h { null: 1, "quoted key": 2 }`)
	require.NoError(t, err)

	h, _ := g.Get("h")
	assert.Equal(t, ir.Object{{"null", ir.Int(1)}, {"quoted key", ir.Int(2)}}, h.Properties)
}

func TestParseUnterminatedBlock(t *testing.T) {
	_, err := ParseSource("def task t {\n  a: 1\n")
	require.Error(t, err)
	assert.True(t, lexer.IsSyntaxError(err))
}

func TestParseDynamicReferenceValue(t *testing.T) {
	g, err := ParseSource(`def task t { who: @{user.name} }`)
	require.NoError(t, err)

	n, _ := g.Get("t")
	assert.Equal(t, ir.String("@{user.name}"), n.Properties.Get("who"))
}

func TestParseArrayNeedsSeparator(t *testing.T) {
	_, err := ParseSource(`def task t { xs: [1 2] }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected RBRACKET, got NUMBER")
}
