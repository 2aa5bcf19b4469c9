package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chord/internal/ir"
)

func kinds(tokens []Token) []Kind {
	out := make([]Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeDefinition(t *testing.T) {
	tokens, err := Tokenize(`def ctx readme { uri: "fs://README.md", size: 3 }`)
	require.NoError(t, err)

	assert.Equal(t, []Kind{
		Def, Identifier, Identifier, LBrace,
		Identifier, Colon, String, Comma,
		Identifier, Colon, Number, RBrace, EOF,
	}, kinds(tokens))
	assert.Equal(t, "readme", tokens[2].Text)
	assert.Equal(t, ir.String("fs://README.md"), tokens[6].Value)
	assert.Equal(t, ir.Int(3), tokens[10].Value)
}

func TestTokenizePositions(t *testing.T) {
	tokens, err := Tokenize("def role r {\n  tone: \"calm\"\n}")
	require.NoError(t, err)

	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Column)

	// tone
	assert.Equal(t, Identifier, tokens[5].Kind)
	assert.Equal(t, 2, tokens[5].Line)
	assert.Equal(t, 3, tokens[5].Column)

	eof := tokens[len(tokens)-1]
	assert.Equal(t, EOF, eof.Kind)
	assert.Equal(t, 3, eof.Line)
}

func TestTokenizeNewlinesAreSignificant(t *testing.T) {
	tokens, err := Tokenize("a\n\nb")
	require.NoError(t, err)
	assert.Equal(t, []Kind{Identifier, Newline, Newline, Identifier, EOF}, kinds(tokens))
}

func TestTokenizeComments(t *testing.T) {
	src := "# leading comment\na #[ block\nspanning ]# b # trailing\nc"
	tokens, err := Tokenize(src)
	require.NoError(t, err)
	assert.Equal(t, []Kind{Newline, Identifier, Identifier, Newline, Identifier, EOF}, kinds(tokens))
	assert.Equal(t, "b", tokens[2].Text)
	assert.Equal(t, 3, tokens[2].Line, "block comment newlines still advance the line")
}

func TestTokenizeStringEscapes(t *testing.T) {
	tokens, err := Tokenize(`"a\nb\tc\\d\"e" 'it\'s'`)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\tc\\d\"e", tokens[0].Text)
	assert.Equal(t, "it's", tokens[1].Text)
}

func TestTokenizeUnterminatedString(t *testing.T) {
	_, err := Tokenize("x: \"never closed")
	require.Error(t, err)
	assert.True(t, IsSyntaxError(err))

	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Line)
	assert.Equal(t, 4, se.Column)
}

func TestTokenizeNumbers(t *testing.T) {
	tests := []struct {
		src      string
		expected ir.Value
	}{
		{"42", ir.Int(42)},
		{"-7", ir.Int(-7)},
		{"3.25", ir.Float(3.25)},
		{"-0.5", ir.Float(-0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			tokens, err := Tokenize(tt.src)
			require.NoError(t, err)
			require.Equal(t, Number, tokens[0].Kind)
			assert.Equal(t, tt.expected, tokens[0].Value)
		})
	}
}

func TestTokenizeSecondDotEndsNumber(t *testing.T) {
	_, err := Tokenize("1.2.3")
	// "1.2" is a number; the following "." cannot start a token.
	require.Error(t, err)

	tokens, err := Tokenize("1.2 3")
	require.NoError(t, err)
	assert.Equal(t, ir.Float(1.2), tokens[0].Value)
	assert.Equal(t, ir.Int(3), tokens[1].Value)
}

func TestTokenizeKeywordsMatchWholeSpan(t *testing.T) {
	tokens, err := Tokenize("def define true trueish false null nullable")
	require.NoError(t, err)
	assert.Equal(t, []Kind{Def, Identifier, Bool, Identifier, Bool, Null, Identifier, EOF}, kinds(tokens))
	assert.Equal(t, ir.Bool(true), tokens[2].Value)
	assert.Equal(t, ir.Bool(false), tokens[4].Value)
	assert.Equal(t, ir.Null{}, tokens[5].Value)
}

func TestTokenizeIdentifiersWithDashes(t *testing.T) {
	tokens, err := Tokenize("code-review step_2")
	require.NoError(t, err)
	assert.Equal(t, "code-review", tokens[0].Text)
	assert.Equal(t, "step_2", tokens[1].Text)
}

func TestTokenizeReferences(t *testing.T) {
	tokens, err := Tokenize("@node @node.props.items[0] @code-review @{user.name} @{a{b}c}")
	require.NoError(t, err)

	var refs []string
	for _, tok := range tokens {
		if tok.Kind == Reference {
			refs = append(refs, tok.Text)
		}
	}
	assert.Equal(t, []string{
		"@node",
		"@node.props.items[0]",
		"@code-review",
		"@{user.name}",
		"@{a{b}c}",
	}, refs)
}

func TestTokenizeReferenceErrors(t *testing.T) {
	_, err := Tokenize("@{never")
	assert.True(t, IsSyntaxError(err))

	_, err = Tokenize("@ x")
	assert.True(t, IsSyntaxError(err))
}

func TestTokenizeUnknownCharacter(t *testing.T) {
	_, err := Tokenize("a\n  $")

	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Line)
	assert.Equal(t, 3, se.Column)
	assert.Contains(t, se.Error(), "unexpected character")
}

func TestTokenizeMultilineString(t *testing.T) {
	src := "system: |\n" +
		"    You are helpful.\n" +
		"      Indented more.\n" +
		"\n" +
		"    Still inside.\n" +
		"  user: \"next\"\n"

	tokens, err := Tokenize(src)
	require.NoError(t, err)

	require.Equal(t, String, tokens[2].Kind)
	assert.Equal(t, "You are helpful.\n  Indented more.\n\nStill inside.", tokens[2].Text)
	assert.Equal(t, 1, tokens[2].Line)

	// The less-indented line is not consumed and keeps its real position.
	next := tokens[3]
	assert.Equal(t, Identifier, next.Kind)
	assert.Equal(t, "user", next.Text)
	assert.Equal(t, 6, next.Line)
	assert.Equal(t, 3, next.Column)
}

func TestTokenizeMultilineStringAtEOF(t *testing.T) {
	tokens, err := Tokenize("x: |\n  one\n  two\n\n")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo", tokens[2].Text)
	assert.Equal(t, EOF, tokens[3].Kind)
}

func TestTokenizeMultilineStringEndsAtBrace(t *testing.T) {
	src := "def task t {\n  instructions: |\n    Do it.\n}\n"
	tokens, err := Tokenize(src)
	require.NoError(t, err)
	assert.Equal(t, []Kind{
		Def, Identifier, Identifier, LBrace, Newline,
		Identifier, Colon, String, RBrace, Newline, EOF,
	}, kinds(tokens))
	assert.Equal(t, "Do it.", tokens[7].Text)
}
