package engine

import (
	"regexp"
	"strings"

	"github.com/roach88/chord/internal/ir"
)

const signalPrefix = "signal."

// placeholderRe matches exactly {{name}}, {{name | bulletize}} and
// {{name | join('sep')}}. Other filters and spacings do not match and are
// left as text.
var placeholderRe = regexp.MustCompile(
	`\{\{([A-Za-z0-9_.\-]+)(?: \| (bulletize|join\('([^']*)'\)))?\}\}`)

// PromptRenderer substitutes {{...}} placeholders in prompt templates.
//
// Substitution is a single pass over the template: text produced by a
// substitution is never scanned again. Placeholders naming unknown
// variables or unset signals are left as written.
type PromptRenderer struct {
	signals func(name string) (ir.Value, bool)
}

// NewPromptRenderer returns a renderer that resolves {{signal.name}}
// through lookup.
func NewPromptRenderer(lookup func(name string) (ir.Value, bool)) *PromptRenderer {
	if lookup == nil {
		lookup = func(string) (ir.Value, bool) { return nil, false }
	}
	return &PromptRenderer{signals: lookup}
}

// Render expands template against vars.
//
// A list variable accepts the bulletize filter (one "• item" line per
// element) and join('sep'). Filters on non-list values leave the
// placeholder untouched.
func (r *PromptRenderer) Render(template string, vars map[string]ir.Value) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		m := placeholderRe.FindStringSubmatch(match)
		name, filter, sep := m[1], m[2], m[3]

		if v, ok := vars[name]; ok {
			return applyFilter(match, v, filter, sep)
		}
		if sig, ok := strings.CutPrefix(name, signalPrefix); ok && filter == "" {
			if v, ok := r.signals(sig); ok {
				return ir.Stringify(v)
			}
		}
		return match
	})
}

func applyFilter(match string, v ir.Value, filter, sep string) string {
	if filter == "" {
		return ir.Stringify(v)
	}
	items, ok := v.(ir.Array)
	if !ok {
		return match
	}

	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = ir.Stringify(item)
	}
	if filter == "bulletize" {
		for i := range parts {
			parts[i] = "• " + parts[i]
		}
		return strings.Join(parts, "\n")
	}
	return strings.Join(parts, sep)
}
