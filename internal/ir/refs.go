package ir

import "strings"

// RefPrefix marks a string value as a reference to another node.
const RefPrefix = "@"

// Reference is a parsed "@id.path" or "@{expr}" string.
type Reference struct {
	Raw     string   // the original text, including the leading "@"
	Dynamic bool     // "@{expr}" form, resolved at render time
	Expr    string   // body of a dynamic reference, without braces
	Root    string   // first path segment: the referenced node id
	Path    []string // remaining path segments
}

// IsReference reports whether s has the reference prefix.
func IsReference(s string) bool {
	return strings.HasPrefix(s, RefPrefix)
}

// ParseReference parses s as a reference. It reports false when s does not
// start with "@".
func ParseReference(s string) (Reference, bool) {
	if !IsReference(s) {
		return Reference{}, false
	}
	body := s[len(RefPrefix):]
	ref := Reference{Raw: s}

	if strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}") {
		ref.Dynamic = true
		ref.Expr = body[1 : len(body)-1]
	}

	parts := strings.Split(body, ".")
	ref.Root = parts[0]
	ref.Path = parts[1:]
	return ref, true
}

// Ref returns the canonical reference string for a node id.
func Ref(id string) String {
	return String(RefPrefix + id)
}

// RefRoot returns the node id named by a reference value: the text between
// "@" and the first ".". It reports false for anything that is not a
// reference string.
func RefRoot(v Value) (string, bool) {
	s, ok := AsString(v)
	if !ok {
		return "", false
	}
	ref, ok := ParseReference(s)
	if !ok {
		return "", false
	}
	return ref.Root, true
}

// RefTarget returns everything after the "@" of a reference value.
func RefTarget(v Value) (string, bool) {
	s, ok := AsString(v)
	if !ok || !IsReference(s) {
		return "", false
	}
	return s[len(RefPrefix):], true
}
