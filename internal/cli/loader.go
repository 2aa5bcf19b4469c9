package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/chord/internal/compiler"
	"github.com/roach88/chord/internal/ir"
	"github.com/roach88/chord/internal/lexer"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // Program or IR file unreadable
	ErrCodeSyntax      = "E003" // Lexer or parser error
	ErrCodeReference   = "E004" // Unknown reference root
	ErrCodeNotFound    = "E005" // Path or node not found
	ErrCodeSchema      = "E006" // IR file does not match the schema
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeRunFailed   = "E008" // Runtime error during run
	ErrCodeStore       = "E009" // Run log unavailable
	ErrCodeBadFlag     = "E010" // Malformed flag value
)

// LoadError represents an error that occurred while loading a program.
type LoadError struct {
	Code    string
	Message string
	Line    int // source line, 0 when unknown
	Details any
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Code, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// isIRFile reports whether path names a compiled IR document rather than
// chord source.
func isIRFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// LoadDocument reads path and returns its compiled document. A .json file
// is treated as compiled IR and checked against the schema; anything else
// is compiled as chord source.
func LoadDocument(path string, opts ...compiler.Option) (*ir.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("file not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	if isIRFile(path) {
		doc, errs, err := compiler.ValidateIR(data)
		if len(errs) > 0 {
			return nil, &LoadError{
				Code:    ErrCodeSchema,
				Message: fmt.Sprintf("%s does not match the IR schema: %s", path, errs[0].Error()),
				Details: errs,
			}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeSchema, Message: err.Error()}
		}
		return doc, nil
	}

	doc, err := compiler.Compile(string(data), opts...)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return doc, nil
}

// convertCompileError converts a compiler error to a LoadError with
// position info.
func convertCompileError(err error) *LoadError {
	var se *lexer.SyntaxError
	if errors.As(err, &se) {
		return &LoadError{Code: ErrCodeSyntax, Message: se.Message, Line: se.Line}
	}
	var re *compiler.ReferenceError
	if errors.As(err, &re) {
		return &LoadError{Code: ErrCodeReference, Message: re.Error(), Line: re.Line}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// compileOptions derives compiler options from the root options.
func (o *RootOptions) compileOptions() []compiler.Option {
	opts := []compiler.Option{compiler.WithLogger(o.logger())}
	if o.config().StrictRedefinition {
		opts = append(opts, compiler.WithStrictRedefinition())
	}
	return opts
}

// loadDocument loads path and reports load failures through f.
func (o *RootOptions) loadDocument(f *OutputFormatter, path string) (*ir.Document, error) {
	doc, err := LoadDocument(path, o.compileOptions()...)
	if err == nil {
		return doc, nil
	}
	var le *LoadError
	if !errors.As(err, &le) {
		return nil, f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	msg := le.Message
	if le.Line > 0 {
		msg = fmt.Sprintf("%s:%d: %s", path, le.Line, le.Message)
	}
	return nil, f.fail(ExitCommandError, le.Code, msg, le.Details)
}
