// Package lexer turns chord source text into a token stream.
//
// Whitespace other than newlines is skipped; newlines are significant and
// emitted as tokens. Comments are "#" to end of line, or "#[ ... ]#" blocks.
// Strings are quoted with ' or ", or introduced by "|" for an indented
// multi-line block.
package lexer

import (
	"strconv"
	"strings"

	"github.com/roach88/chord/internal/ir"
)

// Lexer scans a source string. Use Tokenize unless you need to drive it
// directly.
type Lexer struct {
	src    []rune
	pos    int
	line   int
	column int
	tokens []Token
}

// New returns a lexer positioned at the start of src.
func New(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1, column: 1}
}

// Tokenize scans src in full. The returned slice always ends with an EOF
// token.
func Tokenize(src string) ([]Token, error) {
	return New(src).Tokenize()
}

// Tokenize scans the remaining input.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		l.skipWhitespace()
		c, ok := l.peek(0)
		if !ok {
			break
		}

		line, column := l.line, l.column

		switch {
		case c == '#':
			l.skipComment()
		case c == '\n':
			l.advance()
			l.emit(Newline, "\n", nil, line, column)
		case c == '"' || c == '\'':
			s, err := l.readString()
			if err != nil {
				return nil, err
			}
			l.emit(String, s, ir.String(s), line, column)
		case c == '|':
			s := l.readBlock()
			l.emit(String, s, ir.String(s), line, column)
		case isDigit(c) || (c == '-' && l.nextIsDigit()):
			text, val, err := l.readNumber()
			if err != nil {
				return nil, err
			}
			l.emit(Number, text, val, line, column)
		case c == '@':
			ref, err := l.readReference()
			if err != nil {
				return nil, err
			}
			l.emit(Reference, ref, ir.String(ref), line, column)
		case c == '{':
			l.punct(LBrace, line, column)
		case c == '}':
			l.punct(RBrace, line, column)
		case c == '[':
			l.punct(LBracket, line, column)
		case c == ']':
			l.punct(RBracket, line, column)
		case c == ':':
			l.punct(Colon, line, column)
		case c == ',':
			l.punct(Comma, line, column)
		case isIdentRune(c):
			l.emitWord(l.readIdentifier(), line, column)
		default:
			return nil, Errorf(line, column, "unexpected character %q", c)
		}
	}

	l.emit(EOF, "", nil, l.line, l.column)
	return l.tokens, nil
}

func (l *Lexer) emit(kind Kind, text string, val ir.Value, line, column int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Text: text, Value: val, Line: line, Column: column})
}

func (l *Lexer) punct(kind Kind, line, column int) {
	c := l.advance()
	l.emit(kind, string(c), nil, line, column)
}

// emitWord classifies an identifier span. Reserved words only match the
// whole span, so "define" and "nullable" stay identifiers.
func (l *Lexer) emitWord(word string, line, column int) {
	switch word {
	case "def":
		l.emit(Def, word, nil, line, column)
	case "true", "false":
		l.emit(Bool, word, ir.Bool(word == "true"), line, column)
	case "null":
		l.emit(Null, word, ir.Null{}, line, column)
	default:
		l.emit(Identifier, word, nil, line, column)
	}
}

func (l *Lexer) peek(offset int) (rune, bool) {
	i := l.pos + offset
	if i >= len(l.src) {
		return 0, false
	}
	return l.src[i], true
}

func (l *Lexer) advance() rune {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return c
}

func (l *Lexer) nextIsDigit() bool {
	c, ok := l.peek(1)
	return ok && isDigit(c)
}

func (l *Lexer) skipWhitespace() {
	for {
		c, ok := l.peek(0)
		if !ok || (c != ' ' && c != '\t' && c != '\r') {
			return
		}
		l.advance()
	}
}

// skipComment consumes a comment but never the newline that ends it.
// An unterminated block comment runs to the end of input.
func (l *Lexer) skipComment() {
	l.advance() // '#'
	if c, ok := l.peek(0); ok && c == '[' {
		l.advance()
		for {
			c, ok := l.peek(0)
			if !ok {
				return
			}
			if c == ']' {
				if n, ok := l.peek(1); ok && n == '#' {
					l.advance()
					l.advance()
					return
				}
			}
			l.advance()
		}
	}
	for {
		c, ok := l.peek(0)
		if !ok || c == '\n' {
			return
		}
		l.advance()
	}
}

func (l *Lexer) readString() (string, error) {
	line, column := l.line, l.column
	quote := l.advance()

	var sb strings.Builder
	for {
		c, ok := l.peek(0)
		if !ok {
			return "", Errorf(line, column, "unterminated string")
		}
		l.advance()
		if c == quote {
			return sb.String(), nil
		}
		if c != '\\' {
			sb.WriteRune(c)
			continue
		}

		esc, ok := l.peek(0)
		if !ok {
			return "", Errorf(line, column, "unterminated string")
		}
		l.advance()
		switch esc {
		case 'n':
			sb.WriteRune('\n')
		case 't':
			sb.WriteRune('\t')
		default:
			// Covers \\ and the matching quote; unknown escapes keep the
			// escaped character.
			sb.WriteRune(esc)
		}
	}
}

// readBlock reads a "|" multi-line string. The rest of the "|" line is
// ignored. The indentation of the first non-blank body line is the block's
// base; every following line indented at least that much belongs to the
// block with the base stripped. The first non-blank line indented less ends
// the block and is left unconsumed. Blank lines inside the block are kept;
// trailing blank lines are dropped.
func (l *Lexer) readBlock() string {
	l.advance() // '|'
	for {
		c, ok := l.peek(0)
		if !ok {
			return ""
		}
		l.advance()
		if c == '\n' {
			break
		}
	}

	var (
		lines   []string
		base    = -1
		pending int
	)
	for l.pos < len(l.src) {
		start := l.pos
		indent := 0
		for start+indent < len(l.src) && isIndent(l.src[start+indent]) {
			indent++
		}
		end := start + indent
		for end < len(l.src) && l.src[end] != '\n' {
			end++
		}
		body := strings.TrimRight(string(l.src[start+indent:end]), "\r")

		if strings.TrimSpace(body) == "" {
			if base >= 0 {
				pending++
			}
			l.skipTo(end)
			continue
		}
		if base < 0 {
			base = indent
		} else if indent < base {
			break
		}

		for ; pending > 0; pending-- {
			lines = append(lines, "")
		}
		text := strings.TrimRight(string(l.src[start+base:end]), "\r")
		lines = append(lines, text)
		l.skipTo(end)
	}
	return strings.Join(lines, "\n")
}

// skipTo advances to end and past the newline there, if any.
func (l *Lexer) skipTo(end int) {
	for l.pos < end {
		l.advance()
	}
	if l.pos < len(l.src) && l.src[l.pos] == '\n' {
		l.advance()
	}
}

// readNumber reads an optionally negative integer or decimal. A second "."
// ends the number rather than being an error.
func (l *Lexer) readNumber() (string, ir.Value, error) {
	line, column := l.line, l.column

	var sb strings.Builder
	if c, _ := l.peek(0); c == '-' {
		sb.WriteRune(l.advance())
	}
	hasDot := false
	for {
		c, ok := l.peek(0)
		if !ok {
			break
		}
		if c == '.' {
			if hasDot {
				break
			}
			hasDot = true
		} else if !isDigit(c) {
			break
		}
		sb.WriteRune(l.advance())
	}

	text := sb.String()
	if hasDot {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return "", nil, Errorf(line, column, "invalid number %q", text)
		}
		return text, ir.Float(f), nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return "", nil, Errorf(line, column, "invalid number %q", text)
	}
	return text, ir.Int(n), nil
}

func (l *Lexer) readIdentifier() string {
	var sb strings.Builder
	for {
		c, ok := l.peek(0)
		if !ok || !isIdentRune(c) {
			return sb.String()
		}
		sb.WriteRune(l.advance())
	}
}

// readReference reads "@path" or "@{expr}". The returned text keeps the
// leading "@". Braces in a dynamic body nest; the closing brace is
// consumed but the body is returned as written.
func (l *Lexer) readReference() (string, error) {
	line, column := l.line, l.column
	l.advance() // '@'

	if c, ok := l.peek(0); ok && c == '{' {
		l.advance()
		var sb strings.Builder
		depth := 1
		for {
			c, ok := l.peek(0)
			if !ok {
				return "", Errorf(line, column, "unterminated dynamic reference")
			}
			l.advance()
			if c == '{' {
				depth++
			} else if c == '}' {
				depth--
				if depth == 0 {
					return "@{" + sb.String() + "}", nil
				}
			}
			sb.WriteRune(c)
		}
	}

	var sb strings.Builder
	for {
		c, ok := l.peek(0)
		if !ok || !isRefRune(c) {
			break
		}
		sb.WriteRune(l.advance())
	}
	if sb.Len() == 0 {
		return "", Errorf(line, column, "empty reference")
	}
	return "@" + sb.String(), nil
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isIndent(c rune) bool {
	return c == ' ' || c == '\t'
}

func isIdentRune(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || isDigit(c) || c == '_' || c == '-'
}

func isRefRune(c rune) bool {
	return isIdentRune(c) || c == '.' || c == '[' || c == ']'
}
