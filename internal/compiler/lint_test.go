package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLintNodes(t *testing.T) {
	doc, err := Compile(`
def ctx readme { type: file, uri: "README.md" }
def ctx scratch { type: file }
def task summarize {}
def role writer {}
def policy strict {}
def view v { task: @summarize, role: @writer, policy: @strict }
`)
	require.NoError(t, err)

	warnings := LintNodes(doc)
	var unreferenced, noURI []string
	for _, w := range warnings {
		switch w.Code {
		case WarnUnreferencedNode:
			unreferenced = append(unreferenced, w.Node)
		case WarnContextNoURI:
			noURI = append(noURI, w.Node)
			assert.Equal(t, "context scratch missing 'uri' property", w.Message)
		}
	}
	assert.Equal(t, []string{"readme", "scratch", "v"}, unreferenced)
	assert.Equal(t, []string{"scratch"}, noURI)
}

func TestLintNodesEmptyDocument(t *testing.T) {
	doc, err := Compile(``)
	require.NoError(t, err)
	assert.Empty(t, LintNodes(doc))
}
