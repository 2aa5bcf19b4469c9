package lexer

import (
	"fmt"

	"github.com/roach88/chord/internal/ir"
)

// Kind identifies the lexical class of a token.
type Kind int

const (
	EOF Kind = iota
	Newline
	LBrace
	RBrace
	LBracket
	RBracket
	Colon
	Comma
	String
	Number
	Bool
	Null
	Identifier
	Reference
	Def
)

var kindNames = [...]string{
	EOF:        "EOF",
	Newline:    "NEWLINE",
	LBrace:     "LBRACE",
	RBrace:     "RBRACE",
	LBracket:   "LBRACKET",
	RBracket:   "RBRACKET",
	Colon:      "COLON",
	Comma:      "COMMA",
	String:     "STRING",
	Number:     "NUMBER",
	Bool:       "BOOLEAN",
	Null:       "NULL",
	Identifier: "IDENTIFIER",
	Reference:  "REFERENCE",
	Def:        "DEF",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one lexical unit with its 1-based source position.
//
// Text holds the token as written (for strings, the decoded contents; for
// references, the full "@..." form). Value is set for literal kinds
// (String, Number, Bool, Null) and for references.
type Token struct {
	Kind   Kind
	Text   string
	Value  ir.Value
	Line   int
	Column int
}

func (t Token) String() string {
	switch t.Kind {
	case EOF, Newline:
		return t.Kind.String()
	}
	return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
}
