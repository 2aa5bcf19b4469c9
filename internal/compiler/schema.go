package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/chord/internal/ir"
)

// documentSchema is the structural contract of a compiled document. Loaded
// documents are checked against it before the runtime trusts them.
const documentSchema = `
#NodeType: "ctx" | "cap" | "role" | "policy" | "model" | "task" | "flow" | "view" | "signal" | "memory" | "hook" | "test" | "cache"

#Node: {
	type:       #NodeType
	id:         string & != ""
	properties: {...}
	metadata?:  {...}
}

#View: {
	id:              string & != ""
	type:            "view"
	task:            _
	role:            _
	model:           _
	policy:          _
	selectors:       [..._]
	prompt:          _
	response_format: _
	post_process:    _
	asserts:         _
}

#Flow: {
	id:              string & != ""
	type:            "flow"
	entry?:          _
	edges?:          _
	parallel?:       _
	sequential?:     _
	conditional?:    _
	error_handling?: _
	schedule?:       _
}

#Document: {
	version:  string & =~"^[0-9]+\\.[0-9]+\\.[0-9]+$"
	metadata: {...}
	nodes: [ID=string]: #Node & {id: ID}
	views: [...#View]
	flows: [...#Flow]
	tests: [...#Node & {type: "test"}]
}
`

// CheckSchema validates the structure of doc against the document schema.
// It returns one ValidationError per CUE violation.
func CheckSchema(doc *ir.Document) []ValidationError {
	raw, err := ir.Marshal(doc, false)
	if err != nil {
		return []ValidationError{{Field: "document", Message: err.Error(), Code: ErrSchemaViolation}}
	}
	return CheckSchemaJSON(raw)
}

// CheckSchemaJSON validates a serialized document against the schema.
func CheckSchemaJSON(data []byte) []ValidationError {
	ctx := cuecontext.New()

	schema := ctx.CompileString(documentSchema).LookupPath(cue.ParsePath("#Document"))
	if err := schema.Err(); err != nil {
		return []ValidationError{{Field: "schema", Message: fmt.Sprintf("compile schema: %v", err), Code: ErrSchemaViolation}}
	}

	val := ctx.CompileBytes(data)
	if err := val.Err(); err != nil {
		return cueValidationErrors(err)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cueValidationErrors(err)
	}
	return nil
}

// ValidateIR checks serialized IR against the document schema and decodes
// it. Schema violations come back as errs with a nil document; err is only
// set when a conforming document still fails to decode.
func ValidateIR(data []byte) (doc *ir.Document, errs []ValidationError, err error) {
	if errs := CheckSchemaJSON(data); len(errs) > 0 {
		return nil, errs, nil
	}
	doc, err = ir.Unmarshal(data)
	if err != nil {
		return nil, nil, err
	}
	return doc, nil, nil
}

func cueValidationErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range errors.Errors(err) {
		field := strings.Join(e.Path(), ".")
		if field == "" {
			field = "document"
		}
		format, args := e.Msg()
		out = append(out, ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    ErrSchemaViolation,
		})
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Field: "document", Message: err.Error(), Code: ErrSchemaViolation})
	}
	return out
}
