// Package parser builds a Graph from chord tokens.
//
// The grammar is a sequence of definitions:
//
//	def <type> <id> { key: value ... }
//
// Properties and array elements are separated by newlines or commas. Values
// are strings, numbers, booleans, null, references, bare words (read as
// strings), arrays and nested objects. The reserved key @meta moves its
// object into the node's metadata. Tokens outside a definition are skipped.
//
// The parser performs no reference resolution.
package parser

import (
	"log/slog"

	"github.com/roach88/chord/internal/ir"
	"github.com/roach88/chord/internal/lexer"
)

const metaKey = "@meta"

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for non-fatal diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithStrictRedefinition makes a repeated node id a syntax error instead of
// a logged overwrite.
func WithStrictRedefinition() Option {
	return func(p *Parser) { p.strict = true }
}

// Parser is a recursive-descent parser over a token slice.
type Parser struct {
	tokens []lexer.Token
	pos    int
	graph  *Graph
	logger *slog.Logger
	strict bool
}

// New returns a parser for tokens. The slice must end with an EOF token,
// as produced by lexer.Tokenize.
func New(tokens []lexer.Token, opts ...Option) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != lexer.EOF {
		tokens = append(tokens, lexer.Token{Kind: lexer.EOF})
	}
	p := &Parser{
		tokens: tokens,
		graph:  NewGraph(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseSource tokenizes and parses src.
func ParseSource(src string, opts ...Option) (*Graph, error) {
	tokens, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return New(tokens, opts...).Parse()
}

// Parse consumes every token and returns the graph.
func (p *Parser) Parse() (*Graph, error) {
	for {
		p.skipNewlines()
		switch p.current().Kind {
		case lexer.EOF:
			return p.graph, nil
		case lexer.Def:
			if err := p.parseDefinition(); err != nil {
				return nil, err
			}
		default:
			// Stray tokens are skipped so newer syntax does not break older
			// parsers.
			p.advance()
		}
	}
}

func (p *Parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

// peek looks offset tokens ahead without consuming anything.
func (p *Parser) peek(offset int) lexer.Token {
	i := p.pos + offset
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *Parser) advance() lexer.Token {
	tok := p.current()
	if tok.Kind != lexer.EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) skipNewlines() {
	for p.current().Kind == lexer.Newline {
		p.advance()
	}
}

func (p *Parser) expect(kind lexer.Kind) (lexer.Token, error) {
	tok := p.current()
	if tok.Kind != kind {
		return tok, lexer.Errorf(tok.Line, tok.Column, "expected %s, got %s", kind, tok.Kind)
	}
	return p.advance(), nil
}

func (p *Parser) parseDefinition() error {
	if _, err := p.expect(lexer.Def); err != nil {
		return err
	}

	typeTok, err := p.expect(lexer.Identifier)
	if err != nil {
		return err
	}
	nodeType := ir.NodeType(typeTok.Text)
	if !nodeType.Valid() {
		return lexer.Errorf(typeTok.Line, typeTok.Column, "unknown node type %q", typeTok.Text)
	}

	idTok, err := p.expect(lexer.Identifier)
	if err != nil {
		return err
	}

	p.skipNewlines()
	props, meta, err := p.parseBlock(true)
	if err != nil {
		return err
	}

	node := &Node{
		Type:       nodeType,
		ID:         idTok.Text,
		Properties: props,
		Metadata:   meta,
		Line:       typeTok.Line,
	}

	if prev, exists := p.graph.Get(node.ID); exists {
		if p.strict {
			return lexer.Errorf(typeTok.Line, typeTok.Column,
				"node %q redefined (first defined at line %d)", node.ID, prev.Line)
		}
		p.logger.Warn("node redefined, later definition wins",
			"id", node.ID,
			"first_line", prev.Line,
			"line", node.Line,
		)
	}
	p.graph.add(node)
	return nil
}

// parseBlock parses "{ key: value ... }". For a definition's properties
// block, the @meta entry is returned separately as metadata.
func (p *Parser) parseBlock(definition bool) (ir.Object, ir.Object, error) {
	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, nil, err
	}

	obj := ir.Object{}
	var meta ir.Object
	for {
		p.skipNewlines()
		tok := p.current()
		if tok.Kind == lexer.RBrace {
			p.advance()
			return obj, meta, nil
		}

		key, err := p.parseKey()
		if err != nil {
			return nil, nil, err
		}
		if _, err := p.expect(lexer.Colon); err != nil {
			return nil, nil, err
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, nil, err
		}

		if definition && key == metaKey {
			m, ok := val.(ir.Object)
			if !ok {
				return nil, nil, lexer.Errorf(tok.Line, tok.Column, "%s must be an object", metaKey)
			}
			meta = m
		} else {
			obj.Set(key, val)
		}

		p.skipNewlines()
		if p.current().Kind == lexer.Comma {
			p.advance()
		}
	}
}

// parseKey accepts bare identifiers, quoted strings and, for @meta, a
// reference token.
func (p *Parser) parseKey() (string, error) {
	tok := p.current()
	switch tok.Kind {
	case lexer.Identifier, lexer.String:
		p.advance()
		return tok.Text, nil
	case lexer.Reference:
		if tok.Text == metaKey {
			p.advance()
			return tok.Text, nil
		}
	case lexer.Def, lexer.Bool, lexer.Null:
		// Reserved words are fine as keys: { null: 1 }
		if p.peek(1).Kind == lexer.Colon {
			p.advance()
			return tok.Text, nil
		}
	}
	return "", lexer.Errorf(tok.Line, tok.Column, "expected property key, got %s", tok.Kind)
}

func (p *Parser) parseValue() (ir.Value, error) {
	p.skipNewlines()
	tok := p.current()

	switch tok.Kind {
	case lexer.String, lexer.Number, lexer.Bool, lexer.Null, lexer.Reference:
		p.advance()
		return tok.Value, nil
	case lexer.Identifier:
		// Bare words such as `type: file` read as strings.
		p.advance()
		return ir.String(tok.Text), nil
	case lexer.LBracket:
		return p.parseArray()
	case lexer.LBrace:
		obj, _, err := p.parseBlock(false)
		if err != nil {
			return nil, err
		}
		return obj, nil
	default:
		return nil, lexer.Errorf(tok.Line, tok.Column, "unexpected token %s", tok.Kind)
	}
}

func (p *Parser) parseArray() (ir.Value, error) {
	if _, err := p.expect(lexer.LBracket); err != nil {
		return nil, err
	}

	items := ir.Array{}
	for {
		p.skipNewlines()
		if p.current().Kind == lexer.RBracket {
			p.advance()
			return items, nil
		}

		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, val)

		newline := p.current().Kind == lexer.Newline
		p.skipNewlines()
		switch {
		case p.current().Kind == lexer.Comma:
			p.advance()
		case p.current().Kind == lexer.RBracket, newline:
		default:
			tok := p.current()
			return nil, lexer.Errorf(tok.Line, tok.Column, "expected %s, got %s", lexer.RBracket, tok.Kind)
		}
	}
}
