package lexer

import (
	"errors"
	"fmt"
)

// SyntaxError reports malformed source. It is shared by the lexer and the
// parser; both abort on the first one.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("syntax error at line %d: %s", e.Line, e.Message)
}

// Errorf builds a SyntaxError at the given position.
func Errorf(line, column int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Line: line, Column: column, Message: fmt.Sprintf(format, args...)}
}

// IsSyntaxError checks if an error is a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}
