package engine

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/chord/internal/ir"
)

// Defaults for the built-in operations.
const (
	defaultLines     = 100
	defaultMaxTokens = 500
	defaultTopK      = 5
	wordsPerToken    = 0.75
)

// head returns the first N lines. Non-text input passes through.
func head(_ context.Context, data ir.Value, params ir.Object) (ir.Value, error) {
	text, ok := data.(ir.String)
	if !ok {
		return data, nil
	}
	n, err := intParam(params, "lines", defaultLines)
	if err != nil {
		return nil, err
	}
	lines := splitLines(string(text))
	n = clamp(n, 0, len(lines))
	return ir.String(strings.Join(lines[:n], "\n")), nil
}

// tail returns the last N lines. Non-text input passes through.
func tail(_ context.Context, data ir.Value, params ir.Object) (ir.Value, error) {
	text, ok := data.(ir.String)
	if !ok {
		return data, nil
	}
	n, err := intParam(params, "lines", defaultLines)
	if err != nil {
		return nil, err
	}
	lines := splitLines(string(text))
	n = clamp(n, 0, len(lines))
	return ir.String(strings.Join(lines[len(lines)-n:], "\n")), nil
}

// extract applies the first present parameter of sections, pattern and
// lines. With none of them the input passes through.
func extract(_ context.Context, data ir.Value, params ir.Object) (ir.Value, error) {
	switch {
	case params.Has("sections"):
		text, err := requireText("extract", data)
		if err != nil {
			return nil, err
		}
		return ir.String(extractSections(text, ir.AsArray(params.Get("sections")))), nil

	case params.Has("pattern"):
		text, err := requireText("extract", data)
		if err != nil {
			return nil, err
		}
		re, err := patternParam(params)
		if err != nil {
			return nil, err
		}
		return ir.String(strings.Join(findAll(re, text), "\n")), nil

	case params.Has("lines"):
		text, err := requireText("extract", data)
		if err != nil {
			return nil, err
		}
		lines := splitLines(text)
		start, end, err := lineRange(params, len(lines))
		if err != nil {
			return nil, err
		}
		lo, hi := sliceBounds(len(lines), start, end)
		return ir.String(strings.Join(lines[lo:hi], "\n")), nil
	}
	return data, nil
}

// extractSections collects every block that starts at a "#" header line
// whose text contains one of the wanted substrings. A block runs until the
// next header. Text before the first header never matches.
func extractSections(text string, wanted ir.Array) string {
	names := make([]string, len(wanted))
	for i, w := range wanted {
		names[i] = ir.Stringify(w)
	}
	matches := func(header string) bool {
		return slices.ContainsFunc(names, func(n string) bool {
			return strings.Contains(header, n)
		})
	}

	var (
		blocks  []string
		header  string
		current []string
	)
	flush := func() {
		if header != "" && matches(header) {
			blocks = append(blocks, strings.Join(current, "\n"))
		}
	}
	for _, line := range splitLines(text) {
		if strings.HasPrefix(line, "#") {
			flush()
			header = line
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	flush()
	return strings.Join(blocks, "\n\n")
}

// findAll returns whole matches, or the first capture group when the
// pattern has exactly one.
func findAll(re *regexp.Regexp, text string) []string {
	out := []string{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if re.NumSubexp() == 1 {
			out = append(out, m[1])
		} else {
			out = append(out, m[0])
		}
	}
	return out
}

// lineRange reads "lines: [start, end]" or, when lines is not a pair, the
// separate start and end parameters.
func lineRange(params ir.Object, n int) (int, int, error) {
	if pair, ok := params.Get("lines").(ir.Array); ok && len(pair) == 2 {
		start, ok1 := ir.AsInt(pair[0])
		end, ok2 := ir.AsInt(pair[1])
		if !ok1 || !ok2 {
			return 0, 0, newError(ErrCodeInvalidSelector, "", "lines must be a pair of integers")
		}
		return int(start), int(end), nil
	}
	start, err := intParam(params, "start", 0)
	if err != nil {
		return 0, 0, err
	}
	end, err := intParam(params, "end", n)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// grep returns each line matching pattern with context lines on each side.
// Matches are separated by a "---" line.
func grep(_ context.Context, data ir.Value, params ir.Object) (ir.Value, error) {
	text, err := requireText("grep", data)
	if err != nil {
		return nil, err
	}
	re, err := patternParam(params)
	if err != nil {
		return nil, err
	}
	window, err := intParam(params, "context", 0)
	if err != nil {
		return nil, err
	}
	window = max(window, 0)

	lines := splitLines(text)
	var matches []string
	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}
		lo := max(0, i-window)
		hi := min(len(lines), i+window+1)
		matches = append(matches, strings.Join(lines[lo:hi], "\n"))
	}
	return ir.String(strings.Join(matches, "\n---\n")), nil
}

// summarize truncates to max_tokens*0.75 words. It is a length heuristic,
// not a semantic summary.
func summarize(_ context.Context, data ir.Value, params ir.Object) (ir.Value, error) {
	text, err := requireText("summarize", data)
	if err != nil {
		return nil, err
	}
	maxTokens, err := floatParam(params, "max_tokens", defaultMaxTokens)
	if err != nil {
		return nil, err
	}
	maxWords := max(int(maxTokens*wordsPerToken), 0)

	words := strings.Fields(text)
	if len(words) <= maxWords {
		return data, nil
	}
	return ir.String(fmt.Sprintf("%s... [summarized from %d words]",
		strings.Join(words[:maxWords], " "), len(words))), nil
}

// transform renders data as indented JSON ("to: json", the default) or as
// a flat key/value listing ("to: yaml"). Any other target prints the data.
func transform(_ context.Context, data ir.Value, params ir.Object) (ir.Value, error) {
	to := "json"
	if v, ok := params.Lookup("to"); ok && !ir.IsNull(v) {
		to = ir.Stringify(v)
	}

	switch to {
	case "json":
		if s, ok := data.(ir.String); ok {
			parsed, err := ir.UnmarshalValue([]byte(s))
			if err != nil {
				return data, nil
			}
			data = parsed
		}
		out, err := ir.Indent(data)
		if err != nil {
			return nil, newError(ErrCodeInvalidInput, "", "transform: %v", err)
		}
		return ir.String(out), nil

	case "yaml":
		obj, ok := data.(ir.Object)
		if !ok {
			break
		}
		lines := make([]string, 0, len(obj))
		for _, f := range obj {
			switch v := f.Value.(type) {
			case ir.Array, ir.Object:
				lines = append(lines, f.Key+":", "  "+ir.Inline(v))
			default:
				lines = append(lines, f.Key+": "+ir.Stringify(v))
			}
		}
		return ir.String(strings.Join(lines, "\n")), nil
	}
	return ir.String(ir.Stringify(data)), nil
}

// semanticSearch scores each line by how many distinct query words it
// shares with the query, case-insensitively, and returns the top_k lines
// with a positive score. Ties keep their original order.
func semanticSearch(_ context.Context, data ir.Value, params ir.Object) (ir.Value, error) {
	text, err := requireText("search", data)
	if err != nil {
		return nil, err
	}
	query := ""
	if v, ok := params.Lookup("query"); ok && !ir.IsNull(v) {
		query = ir.Stringify(v)
	}
	topK, err := intParam(params, "top_k", defaultTopK)
	if err != nil {
		return nil, err
	}

	queryWords := wordSet(query)
	type scored struct {
		score int
		line  string
	}
	var hits []scored
	for _, line := range splitLines(text) {
		score := 0
		for w := range wordSet(line) {
			if queryWords[w] {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{score, line})
		}
	}
	slices.SortStableFunc(hits, func(a, b scored) int { return b.score - a.score })

	hits = hits[:clamp(topK, 0, len(hits))]
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.line
	}
	return ir.String(strings.Join(out, "\n")), nil
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

// splitLines splits on every line boundary Python's str.splitlines
// recognizes. A trailing line break does not produce an empty last line.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); {
		r, size := rune(s[i]), 1
		if r >= 0x80 {
			r, size = utf8.DecodeRuneInString(s[i:])
		}
		if !isLineBreak(r) {
			i += size
			continue
		}
		lines = append(lines, s[start:i])
		i += size
		if r == '\r' && i < len(s) && s[i] == '\n' {
			i++
		}
		start = i
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}

// sliceBounds converts start and end, which may be negative to count from
// the end, into bounds valid for a slice of length n.
func sliceBounds(n, start, end int) (int, int) {
	norm := func(i int) int {
		if i < 0 {
			i += n
		}
		return clamp(i, 0, n)
	}
	lo, hi := norm(start), norm(end)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func requireText(op string, data ir.Value) (string, error) {
	s, ok := data.(ir.String)
	if !ok {
		return "", newError(ErrCodeInvalidInput, "", "%s expects text input, got %s", op, kindOf(data))
	}
	return string(s), nil
}

func kindOf(v ir.Value) string {
	switch v.(type) {
	case nil, ir.Null:
		return "null"
	case ir.String:
		return "string"
	case ir.Int, ir.Float:
		return "number"
	case ir.Bool:
		return "bool"
	case ir.Array:
		return "list"
	case ir.Object:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func intParam(params ir.Object, key string, def int) (int, error) {
	v, ok := params.Lookup(key)
	if !ok || ir.IsNull(v) {
		return def, nil
	}
	if n, ok := ir.AsInt(v); ok {
		return int(n), nil
	}
	if s, ok := ir.AsString(v); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, nil
		}
	}
	return 0, newError(ErrCodeInvalidSelector, "", "%s must be an integer, got %s", key, ir.Inline(v))
}

func floatParam(params ir.Object, key string, def float64) (float64, error) {
	v, ok := params.Lookup(key)
	if !ok || ir.IsNull(v) {
		return def, nil
	}
	if f, ok := ir.AsFloat(v); ok {
		return f, nil
	}
	if s, ok := ir.AsString(v); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, nil
		}
	}
	return 0, newError(ErrCodeInvalidSelector, "", "%s must be a number, got %s", key, ir.Inline(v))
}

// patternParam compiles the "pattern" parameter in multi-line mode. A
// missing pattern matches everything.
func patternParam(params ir.Object) (*regexp.Regexp, error) {
	pattern := ""
	if v, ok := params.Lookup("pattern"); ok && !ir.IsNull(v) {
		pattern = ir.Stringify(v)
	}
	re, err := regexp.Compile("(?m)" + pattern)
	if err != nil {
		return nil, newError(ErrCodeInvalidSelector, "", "invalid pattern %q: %v", pattern, err)
	}
	return re, nil
}
