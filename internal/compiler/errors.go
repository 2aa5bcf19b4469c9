package compiler

import (
	"errors"
	"fmt"
)

// ReferenceError reports a static reference whose first segment names no
// node. It aborts compilation.
type ReferenceError struct {
	Ref    string // full reference text, including "@"
	NodeID string // node whose properties contain the reference
	Line   int    // line of that node's definition
}

func (e *ReferenceError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("unknown reference: %s (in %q at line %d)", e.Ref, e.NodeID, e.Line)
	}
	return fmt.Sprintf("unknown reference: %s", e.Ref)
}

// IsReferenceError checks if an error is a ReferenceError.
func IsReferenceError(err error) bool {
	var re *ReferenceError
	return errors.As(err, &re)
}
